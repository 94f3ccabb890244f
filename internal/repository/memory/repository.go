package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"keeper-notes/internal/model"
	"keeper-notes/internal/repository"

	"github.com/google/uuid"
)

// ErrNoteNotFound возвращается, когда заметка не найдена
var ErrNoteNotFound = errors.New("note not found")

// ErrUnsupportedShareType возвращается для неизвестного вида доступа
var ErrUnsupportedShareType = errors.New("unsupported share type")

var _ repository.NoteRepository = (*Repo)(nil)

// Repo in-memory реализация хранилища заметок одного пользователя
type Repo struct {
	mu     sync.RWMutex
	notes  map[string]model.Note
	order  []string          // ID в порядке создания
	shared map[string]string // ID -> вид доступа

	shareBaseURL string
	now          func() time.Time
}

// Option настройка in-memory репозитория
type Option func(*Repo)

// WithShareBaseURL задает базовый адрес для ссылок на опубликованные заметки
func WithShareBaseURL(baseURL string) Option {
	return func(r *Repo) {
		r.shareBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(r *Repo) {
		r.now = now
	}
}

// NewRepository создает новый экземпляр in-memory репозитория на основе map
func NewRepository(opts ...Option) *Repo {
	r := &Repo{
		notes:        make(map[string]model.Note),
		shared:       make(map[string]string),
		shareBaseURL: "http://localhost:8080",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List возвращает список всех заметок, новые первыми
func (r *Repo) List(ctx context.Context) ([]model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := make([]model.Note, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		notes = append(notes, r.notes[r.order[i]].Clone())
	}

	return notes, nil
}

// GetByID возвращает заметку по её ID
func (r *Repo) GetByID(ctx context.Context, id string) (model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, exists := r.notes[id]
	if !exists {
		return model.Note{}, ErrNoteNotFound
	}

	return note.Clone(), nil
}

// Create создает новую заметку и возвращает созданную заметку с ID
func (r *Repo) Create(ctx context.Context, draft model.Draft) (model.Note, error) {
	draft = draft.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	note := model.Note{
		ID:        uuid.New().String(),
		Title:     draft.Title,
		Content:   draft.Content,
		Images:    draft.Images,
		Drawing:   draft.Drawing,
		Tags:      draft.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	note = note.Clone()

	r.notes[note.ID] = note
	r.order = append(r.order, note.ID)

	return note.Clone(), nil
}

// Update применяет патч к существующей заметке и возвращает заметку целиком
func (r *Repo) Update(ctx context.Context, id string, patch model.NotePatch) (model.NotePatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.notes[id]
	if !exists {
		return model.NotePatch{}, ErrNoteNotFound
	}

	// Временные метки назначает хранилище, клиентские значения игнорируются
	patch.CreatedAt = nil
	patch.UpdatedAt = nil

	updated := patch.Apply(existing)
	updated.UpdatedAt = r.now()
	r.notes[id] = updated

	return model.PatchFromNote(updated), nil
}

// Delete удаляет заметку по ID
func (r *Repo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[id]; !exists {
		return ErrNoteNotFound
	}

	delete(r.notes, id)
	delete(r.shared, id)
	for i, noteID := range r.order {
		if noteID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return nil
}

// ToggleFavorite инвертирует флаг избранного и возвращает новое значение
func (r *Repo) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	note, exists := r.notes[id]
	if !exists {
		return false, ErrNoteNotFound
	}

	note.IsFavorite = !note.IsFavorite
	note.UpdatedAt = r.now()
	r.notes[id] = note

	return note.IsFavorite, nil
}

// Share помечает заметку как опубликованную и возвращает ссылку на нее
func (r *Repo) Share(ctx context.Context, id string, opts model.ShareOptions) (model.ShareResult, error) {
	kind := opts.Type
	if kind == "" {
		kind = model.ShareVisibilityPublic
	}
	if kind != model.ShareVisibilityPublic {
		return model.ShareResult{}, ErrUnsupportedShareType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[id]; !exists {
		return model.ShareResult{}, ErrNoteNotFound
	}
	r.shared[id] = kind

	return model.ShareResult{
		URL:     r.shareBaseURL + "/shared/" + id,
		Message: "Note shared successfully",
	}, nil
}

// Shared возвращает опубликованную заметку по ID
func (r *Repo) Shared(ctx context.Context, id string) (model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.shared[id]; !ok {
		return model.Note{}, ErrNoteNotFound
	}
	return r.notes[id].Clone(), nil
}
