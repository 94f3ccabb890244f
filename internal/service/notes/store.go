package notes

import (
	"context"
	"strings"
	"sync"

	"keeper-notes/internal/apperror"
	"keeper-notes/internal/events"
	"keeper-notes/internal/model"
	"keeper-notes/internal/repository"
	"keeper-notes/internal/richtext"
	svc "keeper-notes/internal/service"
	"keeper-notes/internal/session"

	"github.com/rs/zerolog"
)

// Сообщения об ошибках, если сервер не прислал своего
const (
	msgFetch    = "Failed to fetch notes"
	msgCreate   = "Failed to create note"
	msgUpdate   = "Failed to update note"
	msgDelete   = "Failed to delete note"
	msgFavorite = "Failed to update favorite"
	msgShare    = "Failed to share note"
)

var _ svc.NoteStore = (*Store)(nil)

// Store кэш заметок текущей сессии поверх удаленного хранилища.
//
// Кэш меняется только после успешного ответа хранилища. Операции
// не сериализуются: если два запроса по одной заметке выполняются
// одновременно, в кэше остается результат последнего ответа.
type Store struct {
	repo    repository.NoteRepository
	log     zerolog.Logger
	changes *events.Broker[ChangeEvent]

	mu              sync.RWMutex
	notes           []model.Note
	loading         int    // количество выполняющихся Refresh
	generation      uint64 // увеличивается при Reset; ответы прошлых поколений отбрасываются
	searchTerm      string
	filterFavorites bool

	bindMu sync.Mutex
	unbind func()
	wg     sync.WaitGroup
}

// Option настройка Store
type Option func(*Store)

// WithLogger задает логгер
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore создает пустой кэш заметок
func NewStore(repo repository.NoteRepository, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		log:     zerolog.Nop(),
		changes: events.NewBroker[ChangeEvent](),
		notes:   []model.Note{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh загружает все заметки и целиком заменяет ими кэш.
// При ошибке кэш становится пустым (а не сохраняет прежние данные).
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loading++
	gen := s.generation
	s.mu.Unlock()
	s.publish(ChangeLoading, "")

	notes, err := s.repo.List(ctx)

	s.mu.Lock()
	s.loading--
	if gen == s.generation {
		if err != nil {
			s.notes = []model.Note{}
		} else {
			s.notes = uniqueNotes(notes)
		}
	}
	s.mu.Unlock()
	s.publish(ChangeRefreshed, "")

	if err != nil {
		s.log.Error().Err(err).Str("op", "refresh").Msg("error fetching notes")
		return apperror.New("refresh", msgFetch, err)
	}
	s.log.Debug().Int("count", len(notes)).Msg("notes refreshed")
	return nil
}

// Create создает заметку; созданная заметка становится первой в кэше
func (s *Store) Create(ctx context.Context, draft model.Draft) (model.Note, error) {
	gen := s.currentGeneration()

	note, err := s.repo.Create(ctx, draft.Normalize())
	if err != nil {
		s.log.Error().Err(err).Str("op", "create").Msg("error creating note")
		return model.Note{}, apperror.New("create", msgCreate, err)
	}

	s.mu.Lock()
	changed := gen == s.generation
	if changed {
		s.notes = append([]model.Note{note.Clone()}, removeNote(s.notes, note.ID)...)
	}
	s.mu.Unlock()
	if changed {
		s.publish(ChangeCreated, note.ID)
	}

	return note.Clone(), nil
}

// Update обновляет заметку. Поля, которые вернул сервер, накладываются на
// закэшированную запись; остальные поля сохраняют прежние значения.
// Если заметки нет в кэше, кэш не меняется и событие не публикуется,
// а возвращается ответ сервера.
func (s *Store) Update(ctx context.Context, id string, patch model.NotePatch) (model.Note, error) {
	gen := s.currentGeneration()

	fields, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		s.log.Error().Err(err).Str("op", "update").Str("note_id", id).Msg("error updating note")
		return model.Note{}, apperror.New("update", msgUpdate, err)
	}

	var result model.Note
	s.mu.Lock()
	idx := indexOf(s.notes, id)
	changed := idx >= 0 && gen == s.generation
	if changed {
		s.notes[idx] = fields.Apply(s.notes[idx])
		result = s.notes[idx].Clone()
	} else {
		result = fields.Apply(model.Note{ID: id})
	}
	s.mu.Unlock()
	if changed {
		s.publish(ChangeUpdated, id)
	}

	return result, nil
}

// Delete удаляет заметку с точно совпадающим ID
func (s *Store) Delete(ctx context.Context, id string) error {
	gen := s.currentGeneration()

	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.Error().Err(err).Str("op", "delete").Str("note_id", id).Msg("error deleting note")
		return apperror.New("delete", msgDelete, err)
	}

	s.mu.Lock()
	changed := gen == s.generation
	if changed {
		s.notes = removeNote(s.notes, id)
	}
	s.mu.Unlock()
	if changed {
		s.publish(ChangeDeleted, id)
	}

	return nil
}

// ToggleFavorite переключает избранное на сервере.
// В кэш записывается ровно то значение, которое вернул сервер.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	gen := s.currentGeneration()

	fav, err := s.repo.ToggleFavorite(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Str("op", "toggle_favorite").Str("note_id", id).Msg("error toggling favorite")
		return false, apperror.New("toggle_favorite", msgFavorite, err)
	}

	s.mu.Lock()
	idx := indexOf(s.notes, id)
	changed := idx >= 0 && gen == s.generation
	if changed {
		s.notes[idx].IsFavorite = fav
	}
	s.mu.Unlock()
	if changed {
		s.publish(ChangeFavorite, id)
	}

	return fav, nil
}

// Share публикует заметку; на кэш не влияет
func (s *Store) Share(ctx context.Context, id string, opts model.ShareOptions) (model.ShareResult, error) {
	res, err := s.repo.Share(ctx, id, opts)
	if err != nil {
		s.log.Error().Err(err).Str("op", "share").Str("note_id", id).Msg("error sharing note")
		return model.ShareResult{}, apperror.New("share", msgShare, err)
	}
	return res, nil
}

// Visible возвращает заметки, подходящие под строку поиска (без учета
// регистра, по заголовку или тексту содержимого) и фильтр избранного.
// Результат вычисляется заново при каждом вызове.
func (s *Store) Visible() []model.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(s.searchTerm)
	visible := make([]model.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if s.filterFavorites && !n.IsFavorite {
			continue
		}
		if !matches(n, term) {
			continue
		}
		visible = append(visible, n.Clone())
	}
	return visible
}

func matches(n model.Note, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(n.Title), term) || richtext.Contains(n.Content, term)
}

// All возвращает копию всех заметок кэша
func (s *Store) All() []model.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]model.Note, len(s.notes))
	for i, n := range s.notes {
		all[i] = n.Clone()
	}
	return all
}

// Lookup возвращает заметку из кэша по ID
func (s *Store) Lookup(id string) (model.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := indexOf(s.notes, id); idx >= 0 {
		return s.notes[idx].Clone(), true
	}
	return model.Note{}, false
}

// Stats считает статистику по всем заметкам кэша
func (s *Store) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.Stats{Total: len(s.notes)}
	for i := range s.notes {
		n := &s.notes[i]
		if n.IsFavorite {
			stats.Favorites++
		}
		if n.HasImages() {
			stats.WithImages++
		}
		if n.HasDrawing() {
			stats.WithDrawings++
		}
	}
	return stats
}

// IsLoading показывает, выполняется ли хотя бы один Refresh
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// SetSearchTerm задает строку поиска
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	s.searchTerm = term
	s.mu.Unlock()
	s.publish(ChangeFilter, "")
}

// SearchTerm возвращает строку поиска
func (s *Store) SearchTerm() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchTerm
}

// SetFilterFavorites включает или выключает фильтр избранного
func (s *Store) SetFilterFavorites(on bool) {
	s.mu.Lock()
	s.filterFavorites = on
	s.mu.Unlock()
	s.publish(ChangeFilter, "")
}

// FilterFavorites возвращает состояние фильтра избранного
func (s *Store) FilterFavorites() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterFavorites
}

// Reset очищает кэш и фильтры. Ответы на запросы, начатые до Reset,
// в кэш уже не попадут.
func (s *Store) Reset() {
	s.mu.Lock()
	s.notes = []model.Note{}
	s.searchTerm = ""
	s.filterFavorites = false
	s.generation++
	s.mu.Unlock()
	s.publish(ChangeReset, "")
}

// Bind связывает кэш с сессией: при входе (или смене пользователя)
// выполняется Refresh, при выходе - Reset. Если сессия уже активна,
// Refresh выполняется сразу. Повторный Bind заменяет прежнюю связь.
//
// События сессии служат только сигналом: состояние всегда читается из
// provider.Current(), поэтому пропущенное событие не оставляет в кэше
// заметки завершенной сессии.
func (s *Store) Bind(ctx context.Context, provider session.Provider) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()
	s.unbindLocked()

	ch := provider.Subscribe()
	bindCtx, cancel := context.WithCancel(ctx)
	s.unbind = func() {
		cancel()
		provider.Unsubscribe(ch)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		var state boundSession
		s.follow(bindCtx, provider, &state)
		for {
			select {
			case <-bindCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				s.follow(bindCtx, provider, &state)
			}
		}
	}()
}

// boundSession сессия, для которой загружен кэш
type boundSession struct {
	active   bool
	identity string
}

// follow приводит кэш к текущей сессии. После Refresh сессия проверяется
// снова: за время загрузки пользователь мог выйти или смениться.
func (s *Store) follow(ctx context.Context, provider session.Provider, state *boundSession) {
	for ctx.Err() == nil {
		user, ok := provider.Current()
		switch {
		case !ok:
			if state.active {
				s.log.Debug().Msg("session ended, clearing notes")
				s.Reset()
			}
			*state = boundSession{}
			return
		case state.active && state.identity == user.Identity():
			return
		default:
			if state.active {
				// Другой пользователь: заметки прежнего не должны быть видны до загрузки
				s.Reset()
			}
			*state = boundSession{active: true, identity: user.Identity()}
			s.log.Debug().Str("user", user.Identity()).Msg("session started, refreshing notes")
			_ = s.Refresh(ctx)
		}
	}
}

// Close отвязывает кэш от сессии и закрывает подписки на изменения
func (s *Store) Close() {
	s.bindMu.Lock()
	s.unbindLocked()
	s.bindMu.Unlock()

	s.wg.Wait()
	s.changes.Close()
}

func (s *Store) unbindLocked() {
	if s.unbind != nil {
		s.unbind()
		s.unbind = nil
	}
}

func (s *Store) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// indexOf ищет заметку с точно совпадающим ID
func indexOf(notes []model.Note, id string) int {
	for i := range notes {
		if notes[i].ID == id {
			return i
		}
	}
	return -1
}

// removeNote возвращает новый слайс без заметки с указанным ID
func removeNote(notes []model.Note, id string) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

// uniqueNotes сохраняет порядок и оставляет первое вхождение каждого ID
func uniqueNotes(notes []model.Note) []model.Note {
	seen := make(map[string]struct{}, len(notes))
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n.Clone())
	}
	return out
}
