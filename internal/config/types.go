package config

import (
	"fmt"
	"time"
)

// ConfigLogger настройки логирования
type ConfigLogger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json или console
	File   string `mapstructure:"file"`   // пусто - писать в stderr
}

// ConfigAPI настройки подключения к удаленному API заметок
type ConfigAPI struct {
	BaseURL        string `mapstructure:"base_url"`
	Timeout        int    `mapstructure:"timeout"` // секунды
	RateLimitRPS   int    `mapstructure:"rate_limit_rps"`
	RateLimitBurst int    `mapstructure:"rate_limit_burst"`
}

// ConfigSession настройки хранения токена
type ConfigSession struct {
	TokenFile      string `mapstructure:"token_file"`
	WatchTokenFile bool   `mapstructure:"watch_token_file"`
}

// ConfigStaging ограничения на загружаемые изображения
type ConfigStaging struct {
	MaxFiles    int    `mapstructure:"max_files"`
	MaxFileSize int64  `mapstructure:"max_file_size"` // байты
	SpoolDir    string `mapstructure:"spool_dir"`
}

// ClientConfig конфигурация CLI клиента
type ClientConfig struct {
	Logger  *ConfigLogger  `mapstructure:"logger"`
	API     *ConfigAPI     `mapstructure:"api"`
	Session *ConfigSession `mapstructure:"session"`
	Staging *ConfigStaging `mapstructure:"staging"`
}

// ConfigServer настройки сервера
type ConfigServer struct {
	PortHTTP                int    `mapstructure:"port_http"`
	HTTPReadTimeout         int    `mapstructure:"http_read_timeout"`
	HTTPWriteTimeout        int    `mapstructure:"http_write_timeout"`
	HTTPIdleTimeout         int    `mapstructure:"http_idle_timeout"`
	HTTPReadHeaderTimeout   int    `mapstructure:"http_read_header_timeout"`
	GracefulShutdownTimeout int    `mapstructure:"graceful_shutdown_timeout"`
	ShareBaseURL            string `mapstructure:"share_base_url"`
}

// ConfigGateway настройки HTTP слоя: CORS и rate limiting
type ConfigGateway struct {
	CORSAllowedOrigins string `mapstructure:"cors_allowed_origins"`
	CORSMaxAge         int    `mapstructure:"cors_max_age"`
	RateLimitRPS       int    `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int    `mapstructure:"rate_limit_burst"`
}

// ServerConfig конфигурация сервера разработки
type ServerConfig struct {
	Logger  *ConfigLogger  `mapstructure:"logger"`
	Server  *ConfigServer  `mapstructure:"server"`
	Gateway *ConfigGateway `mapstructure:"gateway"`
}

// Normalize заполняет отсутствующие секции и нулевые значения значениями по умолчанию
func (c *ClientConfig) Normalize() {
	if c.Logger == nil {
		c.Logger = &ConfigLogger{}
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "warn"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}

	if c.API == nil {
		c.API = &ConfigAPI{}
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080"
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 30
	}

	if c.Session == nil {
		c.Session = &ConfigSession{}
	}

	if c.Staging == nil {
		c.Staging = &ConfigStaging{}
	}
	if c.Staging.MaxFiles <= 0 {
		c.Staging.MaxFiles = 5
	}
	if c.Staging.MaxFileSize <= 0 {
		c.Staging.MaxFileSize = 5 << 20
	}
}

// RequestTimeout таймаут одного запроса к API
func (a *ConfigAPI) RequestTimeout() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// Normalize заполняет отсутствующие секции и нулевые значения значениями по умолчанию
func (c *ServerConfig) Normalize() {
	if c.Logger == nil {
		c.Logger = &ConfigLogger{}
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}

	if c.Server == nil {
		c.Server = &ConfigServer{}
	}
	s := c.Server
	if s.PortHTTP == 0 {
		s.PortHTTP = 8080
	}
	if s.HTTPReadTimeout <= 0 {
		s.HTTPReadTimeout = 15
	}
	if s.HTTPWriteTimeout <= 0 {
		s.HTTPWriteTimeout = 15
	}
	if s.HTTPIdleTimeout <= 0 {
		s.HTTPIdleTimeout = 60
	}
	if s.HTTPReadHeaderTimeout <= 0 {
		s.HTTPReadHeaderTimeout = 5
	}
	if s.GracefulShutdownTimeout <= 0 {
		s.GracefulShutdownTimeout = 10
	}
	if s.ShareBaseURL == "" {
		s.ShareBaseURL = fmt.Sprintf("http://localhost:%d", s.PortHTTP)
	}

	if c.Gateway == nil {
		c.Gateway = &ConfigGateway{}
	}
	g := c.Gateway
	if g.CORSAllowedOrigins == "" {
		g.CORSAllowedOrigins = "*"
	}
	if g.CORSMaxAge <= 0 {
		g.CORSMaxAge = 300
	}
	if g.RateLimitRPS <= 0 {
		g.RateLimitRPS = 100
	}
	if g.RateLimitBurst <= 0 {
		g.RateLimitBurst = 10
	}
}
