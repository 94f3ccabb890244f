// Package rest реализует HTTP клиент удаленного API заметок.
//
// Клиент покрывает две части контракта: операции над заметками
// (repository.NoteRepository) и аутентификацию (вход, регистрация,
// одноразовые коды, проверка токена, профиль). Токен берется из
// Credentials при каждом запросе; ответ 401 сообщается обратно через
// Credentials.Unauthorized, повторной аутентификацией занимается сессия.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Credentials источник токена для авторизованных запросов
type Credentials interface {
	// Token возвращает текущий bearer токен или пустую строку
	Token() string
	// Unauthorized вызывается, когда сервер отклонил токен (401)
	Unauthorized()
}

// Client HTTP клиент API заметок.
// Безопасен для одновременного использования из нескольких горутин.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Option настройка клиента
type Option func(*Client)

// WithHTTPClient подменяет HTTP клиент
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout задает таймаут одного запроса
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithCredentials задает источник токена
func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithRateLimit ограничивает частоту исходящих запросов.
// rps <= 0 отключает ограничение.
func WithRateLimit(rps, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger задает логгер клиента
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient создает клиент API.
// baseURL должен содержать схему и хост, без завершающего слэша.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCredentials задает источник токена после создания клиента
func (c *Client) SetCredentials(creds Credentials) {
	c.creds = creds
}

// envelope общие поля всех ответов API
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func (e *envelope) base() *envelope { return e }

// ok проверяет явный признак успеха в ответе
func (e *envelope) ok() bool {
	return e.Success != nil && *e.Success
}

// response ответ, содержащий envelope
type response interface {
	base() *envelope
}

// credential выбор токена для запроса
type credential struct {
	token     string // явный токен вместо Credentials
	anonymous bool   // запрос без токена (вход, регистрация)
}

var (
	fromCreds = credential{}
	anonymous = credential{anonymous: true}
)

func withToken(token string) credential {
	return credential{token: token}
}

// call выполняет запрос и декодирует JSON ответ в out.
// Credentials.Unauthorized вызывается только для токена, взятого из Credentials.
func (c *Client) call(ctx context.Context, method, path string, cred credential, body any, out response) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: rate limit: %w", method, path, err)
		}
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := cred.token
	usedCreds := false
	if token == "" && !cred.anonymous && c.creds != nil {
		token = c.creds.Token()
		usedCreds = token != ""
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var env envelope
		_ = json.Unmarshal(raw, &env)

		if resp.StatusCode == http.StatusUnauthorized && usedCreds {
			c.creds.Unauthorized()
		}
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: env.Message}
	}

	// 204 без тела считается подтверждением
	if resp.StatusCode == http.StatusNoContent {
		success := true
		out.base().Success = &success
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}

	if env := out.base(); env.Success != nil && !*env.Success {
		return &RejectedError{Method: method, Path: path, Message: env.Message}
	}

	return nil
}

// callStrict как call, но дополнительно требует success: true в ответе
func (c *Client) callStrict(ctx context.Context, method, path string, cred credential, body any, out response) error {
	if err := c.call(ctx, method, path, cred, body, out); err != nil {
		return err
	}
	if env := out.base(); !env.ok() {
		return &RejectedError{Method: method, Path: path, Message: env.Message}
	}
	return nil
}
