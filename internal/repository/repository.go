package repository

import (
	"context"

	"keeper-notes/internal/model"
)

// NoteRepository интерфейс удаленного хранилища заметок текущей сессии.
// Хранилище является единственным источником истины: ID и временные метки
// назначаются только им.
type NoteRepository interface {
	// List возвращает все заметки текущего пользователя в порядке хранилища
	List(ctx context.Context) ([]model.Note, error)

	// Create создает заметку из черновика и возвращает ее с назначенным ID
	Create(ctx context.Context, draft model.Draft) (model.Note, error)

	// Update применяет патч к заметке и возвращает поля, которые вернуло хранилище
	Update(ctx context.Context, id string, patch model.NotePatch) (model.NotePatch, error)

	// Delete удаляет заметку по ID
	Delete(ctx context.Context, id string) error

	// ToggleFavorite переключает флаг избранного и возвращает его новое значение
	ToggleFavorite(ctx context.Context, id string) (bool, error)

	// Share публикует заметку с указанными параметрами доступа
	Share(ctx context.Context, id string, opts model.ShareOptions) (model.ShareResult, error)
}
