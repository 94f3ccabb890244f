// Package session хранит текущего пользователя и токен доступа.
//
// Manager уведомляет подписчиков о входе (SignedIn), выходе (SignedOut)
// и изменении профиля (ProfileUpdated). SignedIn публикуется только при
// переходе "нет пользователя" -> "есть пользователь" либо при смене
// пользователя; повторный вход тем же пользователем дает ProfileUpdated.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"keeper-notes/internal/apperror"
	"keeper-notes/internal/events"
	"keeper-notes/internal/model"

	"github.com/rs/zerolog"
)

// ErrNotSignedIn возвращается для операций, требующих активной сессии
var ErrNotSignedIn = errors.New("not signed in")

// fallbackMessage сообщение для сетевых ошибок, когда сервер не ответил
const fallbackMessage = "Something went wrong"

// Authenticator удаленная часть аутентификации
type Authenticator interface {
	Login(ctx context.Context, email, password string) (model.AuthResult, error)
	Signup(ctx context.Context, email, password string) (model.AuthResult, error)
	GoogleLogin(ctx context.Context, credential string) (model.AuthResult, error)
	PhoneLogin(ctx context.Context, phone, otp string) (model.AuthResult, error)
	SendOTP(ctx context.Context, phone string) (string, error)
	Verify(ctx context.Context, token string) (model.VerifyResult, error)
	UpdateProfile(ctx context.Context, token string, patch model.ProfilePatch) (model.User, error)
}

// EventKind вид события сессии
type EventKind int

const (
	// SignedIn пользователь появился или сменился
	SignedIn EventKind = iota + 1
	// SignedOut сессия завершена
	SignedOut
	// ProfileUpdated изменились данные текущего пользователя
	ProfileUpdated
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case ProfileUpdated:
		return "profile_updated"
	default:
		return "unknown"
	}
}

// Event событие сессии
type Event struct {
	Kind EventKind
	User model.User
}

// Provider то, что нужно потребителям сессии (например, хранилищу заметок)
type Provider interface {
	Current() (model.User, bool)
	Subscribe() chan Event
	Unsubscribe(ch chan Event)
}

// Manager управляет сессией пользователя
type Manager struct {
	auth   Authenticator
	tokens TokenStore
	log    zerolog.Logger
	broker *events.Broker[Event]

	mu    sync.RWMutex
	user  *model.User
	token string
}

var _ Provider = (*Manager)(nil)

// Option настройка Manager
type Option func(*Manager)

// WithLogger задает логгер
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithTokenStore задает хранилище токена
func WithTokenStore(tokens TokenStore) Option {
	return func(m *Manager) {
		m.tokens = tokens
	}
}

// NewManager создает менеджер сессии. По умолчанию токен хранится в памяти.
func NewManager(auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		auth:   auth,
		tokens: &MemoryTokenStore{},
		log:    zerolog.Nop(),
		broker: events.NewBroker[Event](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current возвращает текущего пользователя
func (m *Manager) Current() (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return model.User{}, false
	}
	return *m.user, true
}

// IsAuthenticated проверяет наличие активной сессии
func (m *Manager) IsAuthenticated() bool {
	_, ok := m.Current()
	return ok
}

// Token возвращает текущий токен (пустой без сессии)
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Unauthorized вызывается транспортом при ответе 401 и завершает сессию
func (m *Manager) Unauthorized() {
	if !m.IsAuthenticated() {
		return
	}
	m.log.Warn().Msg("token rejected by server, signing out")
	m.Logout()
}

// Subscribe подписывает на события сессии
func (m *Manager) Subscribe() chan Event {
	return m.broker.Subscribe()
}

// Unsubscribe отменяет подписку
func (m *Manager) Unsubscribe(ch chan Event) {
	m.broker.Unsubscribe(ch)
}

// Restore восстанавливает сессию по сохраненному токену.
// Без сохраненного токена ничего не делает; недействительный токен удаляется.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.tokens.Load()
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to load token")
		return apperror.New("restore", "Failed to load session", err)
	}
	if token == "" {
		return nil
	}
	return m.restoreToken(ctx, token)
}

func (m *Manager) restoreToken(ctx context.Context, token string) error {
	res, err := m.auth.Verify(ctx, token)
	if err != nil {
		m.log.Warn().Err(err).Msg("token verification failed")
		m.Logout()
		return apperror.New("verify", "Session expired", err)
	}

	user := model.User{
		Email:  res.Username,
		Name:   model.NameFromEmail(res.Username),
		Avatar: res.Avatar,
	}
	m.signIn(user, token, false)
	return nil
}

// Login вход по email и паролю
func (m *Manager) Login(ctx context.Context, email, password string) error {
	res, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return m.fail("login", "Login failed", err)
	}
	m.signIn(fillUser(res.User, email, ""), res.Token, true)
	return nil
}

// Signup регистрация по email и паролю
func (m *Manager) Signup(ctx context.Context, email, password string) error {
	res, err := m.auth.Signup(ctx, email, password)
	if err != nil {
		return m.fail("signup", "Signup failed", err)
	}
	m.signIn(fillUser(res.User, email, ""), res.Token, true)
	return nil
}

// GoogleLogin вход по credential Google
func (m *Manager) GoogleLogin(ctx context.Context, credential string) error {
	res, err := m.auth.GoogleLogin(ctx, credential)
	if err != nil {
		return m.fail("google_login", "Google login failed", err)
	}
	m.signIn(res.User, res.Token, true)
	return nil
}

// SendOTP запрашивает одноразовый код и возвращает сообщение сервера
func (m *Manager) SendOTP(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	msg, err := m.auth.SendOTP(ctx, phone)
	if err != nil {
		return "", m.failWith("send_otp", "Failed to send OTP", "Failed to send OTP", err)
	}
	return msg, nil
}

// PhoneLogin вход по номеру телефона и одноразовому коду
func (m *Manager) PhoneLogin(ctx context.Context, phone, otp string) error {
	phone = strings.TrimSpace(phone)
	res, err := m.auth.PhoneLogin(ctx, phone, strings.TrimSpace(otp))
	if err != nil {
		return m.fail("phone_login", "Phone login failed", err)
	}
	user := fillUser(res.User, "", phone)
	user.Phone = phone
	m.signIn(user, res.Token, true)
	return nil
}

// UpdateProfile обновляет профиль текущего пользователя
func (m *Manager) UpdateProfile(ctx context.Context, patch model.ProfilePatch) error {
	token := m.Token()
	if token == "" {
		return &apperror.Error{Op: "update_profile", Message: "Please sign in first", Err: ErrNotSignedIn}
	}

	updated, err := m.auth.UpdateProfile(ctx, token, patch)
	if err != nil {
		return m.failWith("update_profile", "Failed to update profile", "Failed to update profile", err)
	}

	m.mu.Lock()
	if m.user == nil || m.token != token {
		// Сессия сменилась, пока шел запрос
		m.mu.Unlock()
		return nil
	}
	merged := mergeUser(*m.user, updated)
	m.user = &merged
	m.mu.Unlock()

	m.broker.Publish(Event{Kind: ProfileUpdated, User: merged})
	return nil
}

// Logout завершает сессию и удаляет сохраненный токен
func (m *Manager) Logout() {
	if err := m.tokens.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear token")
	}

	m.mu.Lock()
	prev := m.user
	m.user = nil
	m.token = ""
	m.mu.Unlock()

	if prev != nil {
		m.log.Info().Str("user", prev.Identity()).Msg("signed out")
		m.broker.Publish(Event{Kind: SignedOut, User: *prev})
	}
}

// WatchTokens следит за хранилищем токена, если оно это поддерживает:
// удаление токена другим процессом завершает сессию, новый токен
// восстанавливает ее. Блокирует до отмены ctx.
func (m *Manager) WatchTokens(ctx context.Context) error {
	watcher, ok := m.tokens.(TokenWatcher)
	if !ok {
		<-ctx.Done()
		return nil
	}
	return watcher.Watch(ctx, m.Token(), func(token string) {
		switch {
		case token == "":
			m.mu.Lock()
			prev := m.user
			m.user = nil
			m.token = ""
			m.mu.Unlock()
			if prev != nil {
				m.log.Info().Msg("token removed externally, signing out")
				m.broker.Publish(Event{Kind: SignedOut, User: *prev})
			}
		case token != m.Token():
			m.log.Info().Msg("token replaced externally, restoring session")
			if err := m.restoreToken(ctx, token); err != nil {
				m.log.Warn().Err(err).Msg("failed to restore session from new token")
			}
		}
	})
}

// Close закрывает подписки на события сессии
func (m *Manager) Close() {
	m.broker.Close()
}

// signIn устанавливает пользователя и токен и публикует событие
// Токен сохраняется после обновления состояния, чтобы WatchTokens
// узнал собственную запись.
func (m *Manager) signIn(user model.User, token string, persist bool) {
	m.mu.Lock()
	prev := m.user
	m.user = &user
	m.token = token
	m.mu.Unlock()

	if persist {
		if err := m.tokens.Save(token); err != nil {
			m.log.Warn().Err(err).Msg("failed to persist token")
		}
	}

	kind := SignedIn
	if prev != nil && prev.Identity() == user.Identity() {
		kind = ProfileUpdated
	}
	m.log.Info().Str("user", user.Identity()).Str("event", kind.String()).Msg("session updated")
	m.broker.Publish(Event{Kind: kind, User: user})
}

// fail оборачивает ошибку входа: сообщение сервера, иначе rejected
// для отказа без сообщения и fallbackMessage для сетевой ошибки
func (m *Manager) fail(op, rejected string, err error) error {
	return m.failWith(op, rejected, fallbackMessage, err)
}

func (m *Manager) failWith(op, rejected, transport string, err error) error {
	m.log.Warn().Err(err).Str("op", op).Msg("session operation failed")
	if _, answered := apperror.RemoteMessage(err); answered {
		return apperror.New(op, rejected, err)
	}
	return apperror.New(op, transport, err)
}

// fillUser дополняет данные пользователя: email из запроса, имя из телефона или email
func fillUser(u model.User, email, phone string) model.User {
	if u.Email == "" {
		u.Email = email
	}
	if u.Name == "" {
		if phone != "" {
			u.Name = phone
		} else {
			u.Name = model.NameFromEmail(u.Email)
		}
	}
	return u
}

// mergeUser накладывает непустые поля ответа сервера на текущего пользователя
func mergeUser(cur, upd model.User) model.User {
	if upd.Email != "" {
		cur.Email = upd.Email
	}
	if upd.Name != "" {
		cur.Name = upd.Name
	}
	if upd.Avatar != "" {
		cur.Avatar = upd.Avatar
	}
	if upd.Phone != "" {
		cur.Phone = upd.Phone
	}
	return cur
}
