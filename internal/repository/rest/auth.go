package rest

import (
	"context"
	"net/http"

	"keeper-notes/internal/model"
)

type authResponse struct {
	envelope
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type verifyResponse struct {
	envelope
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type profileResponse struct {
	envelope
	User *model.User `json:"user"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp,omitempty"`
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (model.AuthResult, error) {
	var resp authResponse
	if err := c.callStrict(ctx, http.MethodPost, path, anonymous, body, &resp); err != nil {
		return model.AuthResult{}, err
	}
	if resp.Token == "" {
		return model.AuthResult{}, malformed(http.MethodPost, path, "token")
	}
	res := model.AuthResult{Token: resp.Token}
	if resp.User != nil {
		res.User = *resp.User
	}
	return res, nil
}

// Login вход по email и паролю
func (c *Client) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	return c.authenticate(ctx, "/login", credentialsRequest{Email: email, Password: password})
}

// Signup регистрация по email и паролю
func (c *Client) Signup(ctx context.Context, email, password string) (model.AuthResult, error) {
	return c.authenticate(ctx, "/signup", credentialsRequest{Email: email, Password: password})
}

// GoogleLogin вход по credential, выданному Google Identity
func (c *Client) GoogleLogin(ctx context.Context, credential string) (model.AuthResult, error) {
	return c.authenticate(ctx, "/auth/google", map[string]string{"credential": credential})
}

// PhoneLogin вход по номеру телефона и одноразовому коду
func (c *Client) PhoneLogin(ctx context.Context, phone, otp string) (model.AuthResult, error) {
	return c.authenticate(ctx, "/auth/phone", phoneRequest{PhoneNumber: phone, OTP: otp})
}

// SendOTP запрашивает отправку одноразового кода и возвращает сообщение сервера
func (c *Client) SendOTP(ctx context.Context, phone string) (string, error) {
	var resp envelope
	if err := c.callStrict(ctx, http.MethodPost, "/auth/send-otp", anonymous, phoneRequest{PhoneNumber: phone}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Verify проверяет токен и возвращает данные пользователя
func (c *Client) Verify(ctx context.Context, token string) (model.VerifyResult, error) {
	var resp verifyResponse
	if err := c.callStrict(ctx, http.MethodPost, "/verify", withToken(token), struct{}{}, &resp); err != nil {
		return model.VerifyResult{}, err
	}
	return model.VerifyResult{Username: resp.Username, Avatar: resp.Avatar}, nil
}

// UpdateProfile обновляет профиль и возвращает поля пользователя, присланные сервером
func (c *Client) UpdateProfile(ctx context.Context, token string, patch model.ProfilePatch) (model.User, error) {
	var resp profileResponse
	if err := c.callStrict(ctx, http.MethodPut, "/profile", withToken(token), patch, &resp); err != nil {
		return model.User{}, err
	}
	if resp.User == nil {
		return model.User{}, nil
	}
	return *resp.User, nil
}
