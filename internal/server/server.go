package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	httpapi "keeper-notes/internal/api/http"
	"keeper-notes/internal/config"
	"keeper-notes/internal/repository/memory"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Server сервер разработки: REST API заметок поверх in-memory хранилища
type Server struct {
	HTTPServer *http.Server
	HTTPAddr   string
	Listener   net.Listener

	// Пользователи и их заметки
	Accounts *memory.Accounts

	// Конфигурация
	Config *config.ServerConfig

	log zerolog.Logger
}

// NewServer создает сервер и занимает порт из конфигурации
func NewServer(cfg *config.ServerConfig, log zerolog.Logger, opts ...memory.AccountsOption) (*Server, error) {
	cfg.Normalize()

	httpAddr := "0.0.0.0:" + strconv.Itoa(cfg.Server.PortHTTP)
	return newServer(cfg, httpAddr, log, opts...)
}

func newServer(cfg *config.ServerConfig, httpAddr string, log zerolog.Logger, opts ...memory.AccountsOption) (*Server, error) {
	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", httpAddr, err)
	}

	// Инициализация компонентов (DI): Repository → Handler → Router
	opts = append([]memory.AccountsOption{
		memory.WithNoteOptions(memory.WithShareBaseURL(cfg.Server.ShareBaseURL)),
	}, opts...)
	accounts := memory.NewAccounts(opts...)
	handler := httpapi.NewHandler(accounts, log)
	router := httpapi.NewRouter(handler, cfg.Gateway, log)

	srv := &http.Server{
		Handler:           router,
		ReadTimeout:       time.Duration(cfg.Server.HTTPReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.HTTPWriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.HTTPIdleTimeout) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.Server.HTTPReadHeaderTimeout) * time.Second,
	}

	log.Info().
		Str("addr", listener.Addr().String()).
		Str("share_base_url", cfg.Server.ShareBaseURL).
		Str("cors_origins", cfg.Gateway.CORSAllowedOrigins).
		Msg("server initialized")

	return &Server{
		HTTPServer: srv,
		HTTPAddr:   listener.Addr().String(),
		Listener:   listener,
		Accounts:   accounts,
		Config:     cfg,
		log:        log,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем выполняет graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info().Str("addr", s.HTTPAddr).Msg("HTTP server listening")
		if err := s.HTTPServer.Serve(s.Listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown()
	})

	return g.Wait()
}

// Shutdown выполняет graceful shutdown сервера
func (s *Server) Shutdown() error {
	s.log.Info().Msg("starting graceful shutdown")

	shutdownTimeout := time.Duration(s.Config.Server.GracefulShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("graceful shutdown timeout, forcing stop")
		_ = s.HTTPServer.Close()
		return err
	}

	s.log.Info().Msg("HTTP server stopped gracefully")
	return nil
}
