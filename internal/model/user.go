package model

import "strings"

// User представляет аутентифицированного пользователя
type User struct {
	Email  string `json:"email,omitempty" yaml:"email,omitempty"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Avatar string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Phone  string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// Identity возвращает ключ, по которому сравниваются пользователи
func (u *User) Identity() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Phone
}

// NameFromEmail возвращает локальную часть email адреса
func NameFromEmail(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

// ProfilePatch изменяемые поля профиля
type ProfilePatch struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// Apply применяет изменения профиля к пользователю
func (p *ProfilePatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	return u
}

// AuthResult результат успешного входа или регистрации
type AuthResult struct {
	Token string
	User  User
}

// VerifyResult результат проверки токена
type VerifyResult struct {
	Username string // email пользователя
	Avatar   string
}
