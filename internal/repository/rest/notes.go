package rest

import (
	"context"
	"net/http"
	"net/url"

	"keeper-notes/internal/model"
	"keeper-notes/internal/repository"
)

var _ repository.NoteRepository = (*Client)(nil)

type listResponse struct {
	envelope
	Notes []model.Note `json:"notes"`
}

type noteResponse struct {
	envelope
	Note *model.Note `json:"note"`
}

type patchResponse struct {
	envelope
	Note *model.NotePatch `json:"note"`
}

type favoriteResponse struct {
	envelope
	IsFavorite *bool `json:"isFavorite"`
}

type shareResponse struct {
	envelope
	ShareURL string `json:"shareUrl"`
}

func notePath(id string, suffix ...string) string {
	p := "/notes/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// List возвращает все заметки текущего пользователя.
// Отсутствующий список в ответе трактуется как пустой.
func (c *Client) List(ctx context.Context) ([]model.Note, error) {
	var resp listResponse
	if err := c.call(ctx, http.MethodGet, "/notes", fromCreds, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Notes == nil {
		return []model.Note{}, nil
	}
	return resp.Notes, nil
}

// Create создает заметку
func (c *Client) Create(ctx context.Context, draft model.Draft) (model.Note, error) {
	var resp noteResponse
	if err := c.callStrict(ctx, http.MethodPost, "/notes", fromCreds, draft, &resp); err != nil {
		return model.Note{}, err
	}
	if resp.Note == nil || resp.Note.ID == "" {
		return model.Note{}, malformed(http.MethodPost, "/notes", "note")
	}
	return *resp.Note, nil
}

// Update обновляет заметку; возвращает только поля, присланные сервером
func (c *Client) Update(ctx context.Context, id string, patch model.NotePatch) (model.NotePatch, error) {
	var resp patchResponse
	path := notePath(id)
	if err := c.callStrict(ctx, http.MethodPut, path, fromCreds, patch, &resp); err != nil {
		return model.NotePatch{}, err
	}
	if resp.Note == nil {
		return model.NotePatch{}, nil
	}
	return *resp.Note, nil
}

// Delete удаляет заметку
func (c *Client) Delete(ctx context.Context, id string) error {
	var resp envelope
	return c.callStrict(ctx, http.MethodDelete, notePath(id), fromCreds, nil, &resp)
}

// ToggleFavorite переключает избранное на сервере и возвращает новое значение
func (c *Client) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var resp favoriteResponse
	path := notePath(id, "favorite")
	if err := c.callStrict(ctx, http.MethodPatch, path, fromCreds, struct{}{}, &resp); err != nil {
		return false, err
	}
	if resp.IsFavorite == nil {
		return false, malformed(http.MethodPatch, path, "favorite state")
	}
	return *resp.IsFavorite, nil
}

// Share публикует заметку
func (c *Client) Share(ctx context.Context, id string, opts model.ShareOptions) (model.ShareResult, error) {
	var resp shareResponse
	if err := c.callStrict(ctx, http.MethodPost, notePath(id, "share"), fromCreds, opts, &resp); err != nil {
		return model.ShareResult{}, err
	}
	return model.ShareResult{URL: resp.ShareURL, Message: resp.Message}, nil
}
