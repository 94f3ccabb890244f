// Package httpapi реализует REST API заметок для локальной разработки
// и интеграционных тестов клиента.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"keeper-notes/internal/model"
	"keeper-notes/internal/repository/memory"
)

// maxBodySize ограничение размера тела запроса (изображения передаются как data URL)
const maxBodySize = 64 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeFail отвечает {success:false, message}
func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// decodeBody читает JSON тело запроса; при ошибке уже отправлен ответ 400
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleError переводит ошибки хранилища в HTTP статусы
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrNoteNotFound):
		writeFail(w, http.StatusNotFound, "Note not found")
	case errors.Is(err, memory.ErrUnsupportedShareType):
		writeFail(w, http.StatusBadRequest, "Unsupported share type")
	case errors.Is(err, memory.ErrInvalidCredentials):
		writeFail(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, memory.ErrInvalidToken):
		writeFail(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, memory.ErrInvalidOTP):
		writeFail(w, http.StatusUnauthorized, "Invalid OTP")
	case errors.Is(err, memory.ErrUserExists):
		writeFail(w, http.StatusConflict, "User already exists")
	case errors.Is(err, memory.ErrInvalidInput):
		writeFail(w, http.StatusBadRequest, "Email and password are required")
	default:
		writeFail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// patchBody кодирует поля заметки вместе с ее ID.
// Пустой рисунок кодируется как null, чтобы клиент его сбросил.
func patchBody(id string, patch model.NotePatch) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	idJSON, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	fields["_id"] = idJSON
	return fields, nil
}
