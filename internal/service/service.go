package service

import (
	"context"

	"keeper-notes/internal/model"
)

// NoteStore интерфейс кэша заметок текущей сессии.
// Все изменения кэша происходят только после подтверждения удаленной стороной.
type NoteStore interface {
	// Refresh заново загружает все заметки; при ошибке кэш становится пустым
	Refresh(ctx context.Context) error

	// Create создает заметку и добавляет ее в начало кэша
	Create(ctx context.Context, draft model.Draft) (model.Note, error)

	// Update обновляет заметку и сливает ответ сервера с кэшированной записью
	Update(ctx context.Context, id string, patch model.NotePatch) (model.Note, error)

	// Delete удаляет заметку из хранилища и из кэша
	Delete(ctx context.Context, id string) error

	// ToggleFavorite переключает избранное; в кэш записывается значение сервера
	ToggleFavorite(ctx context.Context, id string) (bool, error)

	// Share публикует заметку, кэш не меняется
	Share(ctx context.Context, id string, opts model.ShareOptions) (model.ShareResult, error)

	// Visible возвращает заметки, прошедшие фильтры поиска и избранного
	Visible() []model.Note

	// All возвращает все заметки кэша
	All() []model.Note

	// Lookup возвращает закэшированную заметку по ID
	Lookup(id string) (model.Note, bool)

	// Stats считает статистику по всем заметкам кэша
	Stats() model.Stats

	// IsLoading показывает, идет ли сейчас полная загрузка
	IsLoading() bool

	// SetSearchTerm задает строку поиска
	SetSearchTerm(term string)

	// SearchTerm возвращает строку поиска
	SearchTerm() string

	// SetFilterFavorites включает фильтр избранного
	SetFilterFavorites(on bool)

	// FilterFavorites возвращает состояние фильтра избранного
	FilterFavorites() bool

	// Reset очищает кэш и фильтры (конец сессии)
	Reset()
}
