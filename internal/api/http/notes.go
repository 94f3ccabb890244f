package httpapi

import (
	"net/http"
	"net/url"

	"keeper-notes/internal/model"

	"github.com/gorilla/mux"
)

// noteID возвращает ID заметки из пути (маршрутизатор работает с экранированным путем)
func noteID(r *http.Request) string {
	raw := mux.Vars(r)["id"]
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func (h *Handler) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := accountFrom(r.Context()).Notes.List(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (h *Handler) getNote(w http.ResponseWriter, r *http.Request) {
	note, err := accountFrom(r.Context()).Notes.GetByID(r.Context(), noteID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "note": note})
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if !decodeBody(w, r, &draft) {
		return
	}

	note, err := accountFrom(r.Context()).Notes.Create(r.Context(), draft)
	if err != nil {
		handleError(w, err)
		return
	}
	h.log.Debug().Str("note_id", note.ID).Msg("note created")
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"note":    note,
		"message": "Note created successfully",
	})
}

func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request) {
	var patch model.NotePatch
	if !decodeBody(w, r, &patch) {
		return
	}

	id := noteID(r)
	updated, err := accountFrom(r.Context()).Notes.Update(r.Context(), id, patch)
	if err != nil {
		handleError(w, err)
		return
	}

	body, err := patchBody(id, updated)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "note": body})
}

func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := accountFrom(r.Context()).Notes.Delete(r.Context(), noteID(r)); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Note deleted successfully"})
}

func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := accountFrom(r.Context()).Notes.ToggleFavorite(r.Context(), noteID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "isFavorite": fav})
}

func (h *Handler) shareNote(w http.ResponseWriter, r *http.Request) {
	var opts model.ShareOptions
	if r.ContentLength != 0 && !decodeBody(w, r, &opts) {
		return
	}

	res, err := accountFrom(r.Context()).Notes.Share(r.Context(), noteID(r), opts)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"shareUrl": res.URL,
		"message":  res.Message,
	})
}

// sharedNote отдает опубликованную заметку без авторизации
func (h *Handler) sharedNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.accounts.Shared(r.Context(), noteID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "note": note})
}
