package ocsgepv

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/IGNF/ocsge-pv/pkg/config"
	"github.com/IGNF/ocsge-pv/pkg/constants"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

// options configures an Engine. Tunables are pointers so an unset option
// leaves the settings file value alone.
type options struct {
	configFile string
	settings   *config.Settings
	logger     *zerolog.Logger

	threshold *float64
	mode      *inventory.Mode
	workers   *int
	batchSize *int
}

func defaultOptions() *options {
	return &options{}
}

// Option is a function that configures an Engine.
type Option func(*options) error

func (options *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// newOptions returns engine options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// resolveSettings produces the validated settings the engine will run with:
// the explicit settings or the loaded file, with option overrides applied.
func (o *options) resolveSettings() (*config.Settings, error) {
	var settings *config.Settings
	switch {
	case o.settings != nil:
		copied := *o.settings
		settings = &copied
	case o.configFile != "":
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return nil, err
		}
		settings = loaded
	default:
		return nil, pkgerrors.NewConfigError("engine",
			"a settings file or explicit settings are required", nil)
	}

	if o.threshold != nil {
		settings.Pairing.Threshold = *o.threshold
	}
	if o.mode != nil {
		settings.Pairing.Mode = o.mode.String()
	}
	if o.workers != nil {
		settings.Pairing.Workers = *o.workers
	}
	if o.batchSize != nil {
		settings.Geometrize.BatchSize = *o.batchSize
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// WithConfigFile sets the settings file the engine loads. Ignored when
// WithSettings provides settings directly.
func WithConfigFile(path string) Option {
	return func(o *options) error {
		if path == "" {
			return &pkgerrors.ValidationError{
				Field:   "config file",
				Message: "cannot be empty",
			}
		}
		o.configFile = path
		return nil
	}
}

// WithSettings supplies settings directly instead of loading a file. The
// engine validates them and works on its own copy.
func WithSettings(settings *config.Settings) Option {
	return func(o *options) error {
		if settings == nil {
			return &pkgerrors.ValidationError{
				Field:   "settings",
				Message: "cannot be nil",
			}
		}
		o.settings = settings
		return nil
	}
}

// WithLogger sets the logger every run inherits through its context.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return &pkgerrors.ValidationError{
				Field:   "logger",
				Message: "cannot be nil",
			}
		}
		o.logger = logger
		return nil
	}
}

// WithThreshold overrides the configured minimum overlap score, in [0,1].
func WithThreshold(threshold float64) Option {
	return func(o *options) error {
		if threshold < 0 || threshold > 1 {
			return &pkgerrors.ValidationError{
				Field:   "threshold",
				Value:   threshold,
				Message: "outside [0,1]",
			}
		}
		o.threshold = &threshold
		return nil
	}
}

// WithMode overrides the configured multiplicity mode.
func WithMode(mode inventory.Mode) Option {
	return func(o *options) error {
		if !mode.Valid() {
			return &pkgerrors.ValidationError{
				Field:   "mode",
				Value:   mode,
				Message: "unknown mode",
			}
		}
		o.mode = &mode
		return nil
	}
}

// WithWorkers overrides the scoring worker cap. Zero sizes the pool from
// the CPU count.
func WithWorkers(workers int) Option {
	return func(o *options) error {
		if workers < 0 {
			return &pkgerrors.ValidationError{
				Field:   "workers",
				Value:   workers,
				Message: "cannot be negative",
			}
		}
		o.workers = &workers
		return nil
	}
}

// WithBatchSize overrides the geometrizer's fetch and write-back batch size.
func WithBatchSize(size int) Option {
	return func(o *options) error {
		if size < 1 || size > constants.MaxBatchSize {
			return &pkgerrors.ValidationError{
				Field:   "batch size",
				Value:   size,
				Message: fmt.Sprintf("outside 1-%d", constants.MaxBatchSize),
			}
		}
		o.batchSize = &size
		return nil
	}
}
