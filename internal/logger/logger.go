// Package logger создает zerolog.Logger по настройкам из конфигурации
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"keeper-notes/internal/config"
)

const permission = 0o644

// Форматы вывода
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New создает логгер, пишущий в w.
// Пустой level означает info; format "console" включает человекочитаемый вывод.
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", level, err)
		}
		lvl = parsed
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// FromConfig создает логгер по секции logger. Если задан файл, лог
// дописывается в него; закрыть файл нужно через возвращенный io.Closer.
func FromConfig(cfg *config.ConfigLogger, fallback io.Writer) (zerolog.Logger, io.Closer, error) {
	if cfg == nil {
		cfg = &config.ConfigLogger{}
	}

	var (
		w      = fallback
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		w = zerolog.SyncWriter(f)
		closer = f
	}

	log, err := New(cfg.Level, cfg.Format, w)
	if err != nil {
		_ = closer.Close()
		return zerolog.Nop(), nil, err
	}
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
