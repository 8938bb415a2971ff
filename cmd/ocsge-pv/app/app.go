// Package app provides the application context and dependency management
// for the ocsge-pv CLI. It centralizes configuration, logging, and engine
// construction behind the cobra commands.
package app

import (
	"context"

	"github.com/rs/zerolog"

	ocsgepv "github.com/IGNF/ocsge-pv"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
)

// App represents the ocsge-pv application with all its dependencies:
// version information, configuration, and the logger handed to every
// engine run.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// engine, when set, is returned instead of constructing one (tests).
	engine ocsgepv.Engine
}

// New creates a new App instance with the given version information.
// The app is initialized with configuration loaded from the environment
// that can be customized using functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// NewEngine builds an engine from the configured settings file plus any
// command-specific options. The caller owns the returned engine and must
// Close it after the run.
func (a *App) NewEngine(ctx context.Context, opts ...ocsgepv.Option) (ocsgepv.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	if a.config.ConfigFile == "" {
		return nil, pkgerrors.NewConfigError("cli",
			"no settings file, pass --config or set OCSGE_PV_CONFIG", nil)
	}

	base := []ocsgepv.Option{
		ocsgepv.WithConfigFile(a.config.ConfigFile),
		ocsgepv.WithLogger(a.logger),
	}
	return ocsgepv.New(ctx, append(base, opts...)...)
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithEngine sets a custom engine instance (useful for testing).
func WithEngine(eng ocsgepv.Engine) Option {
	return func(a *App) error {
		a.engine = eng
		return nil
	}
}
