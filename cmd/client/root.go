package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"keeper-notes/internal/apperror"
	"keeper-notes/internal/config"
	"keeper-notes/internal/logger"
	"keeper-notes/internal/repository/rest"
	"keeper-notes/internal/service/notes"
	"keeper-notes/internal/session"
	"keeper-notes/internal/staging"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	configEnv  = "KEEPER_CONFIG"
	appDirName = "keeper"
)

// errNotSignedIn команда требует входа
var errNotSignedIn = errors.New("not signed in, run `keeper login` first")

// app общее состояние команд: конфигурация и клиентский стек
type app struct {
	// Флаги
	configFile string
	baseURL    string
	output     string
	verbose    bool

	fs afero.Fs

	cfg     *config.ClientConfig
	log     zerolog.Logger
	closer  io.Closer
	api     *rest.Client
	session *session.Manager
	store   *notes.Store
	spool   staging.Spool
}

func newApp(fs afero.Fs) *app {
	return &app{fs: fs, log: zerolog.Nop()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "keeper",
		Short: "Keeper notes client",
		Long: `Keeper keeps your notes on a remote notes server.
Sign in once; the session token is stored between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Config file (default $KEEPER_CONFIG or <user config dir>/keeper/config.yml)")
	flags.StringVar(&a.baseURL, "base-url", "", "Notes API base URL (overrides config)")
	flags.StringVarP(&a.output, "output", "o", formatTable, "Output format: table, json or yaml")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newSignupCmd(a),
		newLoginCmd(a),
		newGoogleCmd(a),
		newOTPCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProfileCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newCreateCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newFavoriteCmd(a),
		newShareCmd(a),
		newStatsCmd(a),
		newWatchCmd(a),
	)
	return root
}

// init читает конфигурацию, собирает клиентский стек и восстанавливает сессию
func (a *app) init(cmd *cobra.Command) error {
	if err := checkFormat(a.output); err != nil {
		return err
	}

	configFile, err := a.resolveConfigFile()
	if err != nil {
		return err
	}
	cfg, err := config.InitOptionalConfig[config.ClientConfig](a.fs, configFile)
	if err != nil {
		return err
	}
	cfg.Normalize()
	if a.baseURL != "" {
		cfg.API.BaseURL = a.baseURL
	}
	if a.verbose {
		cfg.Logger.Level = "debug"
	}
	a.cfg = cfg

	log, closer, err := logger.FromConfig(cfg.Logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.log, a.closer = log, closer

	opts := []rest.Option{
		rest.WithTimeout(cfg.API.RequestTimeout()),
		rest.WithLogger(log),
	}
	if cfg.API.RateLimitRPS > 0 {
		opts = append(opts, rest.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst))
	}
	a.api = rest.NewClient(cfg.API.BaseURL, opts...)

	tokenFile, err := a.resolveDataPath(cfg.Session.TokenFile, "token")
	if err != nil {
		return err
	}
	a.session = session.NewManager(a.api,
		session.WithLogger(log),
		session.WithTokenStore(session.NewFileTokenStore(a.fs, tokenFile)),
	)
	a.api.SetCredentials(a.session)
	a.store = notes.NewStore(a.api, notes.WithLogger(log))
	a.spool = staging.NewFileSpool(a.fs, cfg.Staging.SpoolDir)

	log.Debug().
		Str("config", configFile).
		Str("base_url", cfg.API.BaseURL).
		Str("token_file", tokenFile).
		Msg("client initialized")

	// Просроченный токен не мешает командам входа
	if err := a.session.Restore(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg(apperror.Message(err))
	}
	return nil
}

// close освобождает ресурсы, созданные init; безопасен без init
func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

func (a *app) resolveConfigFile() (string, error) {
	if a.configFile != "" {
		return a.configFile, nil
	}
	if env := os.Getenv(configEnv); env != "" {
		return env, nil
	}
	return a.resolveDataPath("", "config.yml")
}

// resolveDataPath возвращает path, а если он пуст - файл name в каталоге пользователя
func (a *app) resolveDataPath(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName, name), nil
}

// requireSession проверяет, что пользователь вошел
func (a *app) requireSession() error {
	if !a.session.IsAuthenticated() {
		return errNotSignedIn
	}
	return nil
}

// limits ограничения на изображения из конфигурации
func (a *app) limits() staging.Limits {
	return staging.Limits{MaxFiles: a.cfg.Staging.MaxFiles, MaxFileSize: a.cfg.Staging.MaxFileSize}
}

// userError возвращает сообщение для пользователя, если оно есть
func userError(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return errors.New(ae.Message)
	}
	return err
}
