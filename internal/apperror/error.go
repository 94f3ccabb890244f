// Package apperror описывает результат неуспешной операции,
// пригодный для показа пользователю
package apperror

import (
	"errors"
	"fmt"
)

// Error неуспешный результат операции: Message предназначено для пользователя,
// Err - исходная причина для логов и errors.Is/As
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// userMessager ошибки, несущие сообщение удаленной стороны
type userMessager interface {
	UserMessage() string
}

// RemoteMessage возвращает сообщение сервера из цепочки ошибок.
// answered показывает, что сервер ответил (в отличие от сетевой ошибки).
func RemoteMessage(err error) (msg string, answered bool) {
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage(), true
	}
	return "", false
}

// New оборачивает err: сообщение сервера, если оно есть, иначе fallback
func New(op, fallback string, err error) *Error {
	msg, _ := RemoteMessage(err)
	if msg == "" {
		msg = fallback
	}
	return &Error{Op: op, Message: msg, Err: err}
}

// Message возвращает сообщение для пользователя
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
