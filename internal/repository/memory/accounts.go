package memory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"keeper-notes/internal/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserExists пользователь с таким email уже зарегистрирован
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials неверный email или пароль
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken токен неизвестен
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidOTP код не запрошен или не совпадает
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrInvalidInput пустой email, пароль или телефон
	ErrInvalidInput = errors.New("invalid input")
)

// Account пользователь вместе с его заметками
type Account struct {
	User  model.User
	Notes *Repo
}

type account struct {
	user     model.User
	hash     []byte // bcrypt; пусто для входа по телефону
	notes    *Repo
	identity string
}

// Accounts in-memory хранилище пользователей, токенов и одноразовых кодов
type Accounts struct {
	mu     sync.RWMutex
	users  map[string]*account // identity -> account
	tokens map[string]string   // token -> identity
	codes  map[string]string   // phone -> otp

	cost      int
	notesOpts []Option
}

// AccountsOption настройка Accounts
type AccountsOption func(*Accounts)

// WithBcryptCost задает стоимость bcrypt (в тестах - bcrypt.MinCost)
func WithBcryptCost(cost int) AccountsOption {
	return func(a *Accounts) {
		a.cost = cost
	}
}

// WithNoteOptions задает опции для репозиториев заметок пользователей
func WithNoteOptions(opts ...Option) AccountsOption {
	return func(a *Accounts) {
		a.notesOpts = append(a.notesOpts, opts...)
	}
}

// NewAccounts создает пустое хранилище пользователей
func NewAccounts(opts ...AccountsOption) *Accounts {
	a := &Accounts{
		users:  make(map[string]*account),
		tokens: make(map[string]string),
		codes:  make(map[string]string),
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Signup регистрирует пользователя и сразу выдает токен
func (a *Accounts) Signup(ctx context.Context, email, password string) (string, model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", model.User{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", model.User{}, fmt.Errorf("hash password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.users[email]; exists {
		return "", model.User{}, ErrUserExists
	}
	acc := &account{
		user:     model.User{Email: email, Name: model.NameFromEmail(email)},
		hash:     hash,
		notes:    NewRepository(a.notesOpts...),
		identity: email,
	}
	a.users[email] = acc

	return a.issueLocked(acc), acc.user, nil
}

// Login проверяет пароль и выдает новый токен
func (a *Accounts) Login(ctx context.Context, email, password string) (string, model.User, error) {
	email = normalizeEmail(email)

	a.mu.RLock()
	acc, exists := a.users[email]
	a.mu.RUnlock()
	if !exists || len(acc.hash) == 0 {
		return "", model.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return "", model.User{}, ErrInvalidCredentials
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issueLocked(acc), acc.user, nil
}

// SendOTP создает одноразовый код для телефона и возвращает его
// (доставка кода - забота вызывающего)
func (a *Accounts) SendOTP(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrInvalidInput
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	a.mu.Lock()
	a.codes[phone] = code
	a.mu.Unlock()

	return code, nil
}

// PhoneLogin проверяет код; при первом входе создает пользователя
func (a *Accounts) PhoneLogin(ctx context.Context, phone, otp string) (string, model.User, error) {
	phone = strings.TrimSpace(phone)

	a.mu.Lock()
	defer a.mu.Unlock()

	code, ok := a.codes[phone]
	if !ok || code != strings.TrimSpace(otp) {
		return "", model.User{}, ErrInvalidOTP
	}
	delete(a.codes, phone)

	identity := "phone:" + phone
	acc, exists := a.users[identity]
	if !exists {
		acc = &account{
			user:     model.User{Name: phone, Phone: phone},
			notes:    NewRepository(a.notesOpts...),
			identity: identity,
		}
		a.users[identity] = acc
	}

	return a.issueLocked(acc), acc.user, nil
}

// Authenticate возвращает пользователя по токену
func (a *Accounts) Authenticate(ctx context.Context, token string) (Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	acc, err := a.lookupLocked(token)
	if err != nil {
		return Account{}, err
	}
	return Account{User: acc.user, Notes: acc.notes}, nil
}

// UpdateProfile меняет имя и аватар пользователя
func (a *Accounts) UpdateProfile(ctx context.Context, token string, patch model.ProfilePatch) (model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, err := a.lookupLocked(token)
	if err != nil {
		return model.User{}, err
	}
	acc.user = patch.Apply(acc.user)
	return acc.user, nil
}

// Shared ищет опубликованную заметку среди всех пользователей
func (a *Accounts) Shared(ctx context.Context, id string) (model.Note, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, acc := range a.users {
		if note, err := acc.notes.Shared(ctx, id); err == nil {
			return note, nil
		}
	}
	return model.Note{}, ErrNoteNotFound
}

func (a *Accounts) issueLocked(acc *account) string {
	token := uuid.NewString()
	a.tokens[token] = acc.identity
	return token
}

func (a *Accounts) lookupLocked(token string) (*account, error) {
	identity, ok := a.tokens[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	acc, ok := a.users[identity]
	if !ok {
		return nil, ErrInvalidToken
	}
	return acc, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
