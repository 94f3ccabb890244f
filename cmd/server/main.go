package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"keeper-notes/internal/config"
	"keeper-notes/internal/logger"
	"keeper-notes/internal/server"

	"github.com/spf13/afero"
)

const defaultConfigFile = "configs/server.yml"

func main() {
	configFile := os.Getenv("KEEPER_SERVER_CONFIG")
	if configFile == "" {
		configFile = defaultConfigFile
	}

	// Загружаем конфигурацию из файла
	appConfig, err := config.InitOptionalConfig[config.ServerConfig](afero.NewOsFs(), configFile)
	if err != nil {
		stdlog.Fatalf("Error initializing config: %v", err)
	}
	appConfig.Normalize()

	log, closer, err := logger.FromConfig(appConfig.Logger, os.Stderr)
	if err != nil {
		stdlog.Fatalf("Error initializing logger: %v", err)
	}
	defer closer.Close()

	srv, err := server.NewServer(appConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	// Контекст отменяется по сигналу для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("keeper dev server stopped")
}
