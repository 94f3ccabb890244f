package rest

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse успешный ответ без обязательного поля.
// Не несет сообщения сервера, поэтому пользователю показывается сообщение операции.
var ErrMalformedResponse = errors.New("malformed response")

func malformed(method, path, field string) error {
	return fmt.Errorf("%s %s: %w: no %s", method, path, ErrMalformedResponse, field)
}

// StatusError HTTP-ответ с кодом ошибки (4xx/5xx)
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string // Сообщение из тела ответа, если сервер его прислал
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// UserMessage возвращает сообщение сервера для показа пользователю
func (e *StatusError) UserMessage() string {
	return e.Message
}

// RejectedError запрос выполнен, но сервер сообщил о неуспехе (success: false)
type RejectedError struct {
	Method  string
	Path    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: rejected: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: rejected", e.Method, e.Path)
}

// UserMessage возвращает сообщение сервера для показа пользователю
func (e *RejectedError) UserMessage() string {
	return e.Message
}

// IsUnauthorized проверяет, что ошибка - ответ 401
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == 401
}
