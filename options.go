package kineto

import (
	"time"

	"github.com/ramcherukuri/kineto/internal/control"
	"github.com/ramcherukuri/kineto/internal/logging"
)

type settings struct {
	configPath      string
	onDemandPath    string
	baseInterval    time.Duration
	pollInterval    time.Duration
	verboseOverride time.Duration
	fileWatch       bool
	logger          *logging.Logger
}

// Option customizes Start.
type Option func(*settings)

func defaultSettings() settings {
	return settings{
		baseInterval:    control.DefaultBaseInterval,
		pollInterval:    control.DefaultDaemonPollInterval,
		verboseOverride: control.DefaultVerboseOverrideDuration,
		logger:          logging.New(logging.DefaultConfig()),
	}
}

func (s settings) controlOptions() []control.Option {
	opts := []control.Option{
		control.WithBaseInterval(s.baseInterval),
		control.WithDaemonPollInterval(s.pollInterval),
		control.WithVerboseOverrideDuration(s.verboseOverride),
		control.WithLogger(s.logger),
	}
	if s.configPath != "" {
		opts = append(opts, control.WithConfigPath(s.configPath))
	}
	if s.onDemandPath != "" {
		opts = append(opts, control.WithOnDemandPath(s.onDemandPath))
	}
	if s.fileWatch {
		opts = append(opts, control.WithFileWatch())
	}
	return opts
}

// WithConfigPath overrides the base configuration file path. An explicit
// path takes precedence over the KINETO_CONFIG environment variable.
func WithConfigPath(path string) Option {
	return func(s *settings) { s.configPath = path }
}

// WithOnDemandPath overrides the on-demand configuration file path read
// when the trigger signal fires.
func WithOnDemandPath(path string) Option {
	return func(s *settings) { s.onDemandPath = path }
}

// WithBaseInterval overrides the periodic base reload interval.
func WithBaseInterval(d time.Duration) Option {
	return func(s *settings) { s.baseInterval = d }
}

// WithDaemonPollInterval overrides the daemon polling interval.
func WithDaemonPollInterval(d time.Duration) Option {
	return func(s *settings) { s.pollInterval = d }
}

// WithVerboseOverrideDuration overrides how long an on-demand verbose
// level stays in effect before reverting to the base level.
func WithVerboseOverrideDuration(d time.Duration) Option {
	return func(s *settings) { s.verboseOverride = d }
}

// WithFileWatch reloads the base configuration as soon as the file changes
// instead of waiting for the next periodic reload.
func WithFileWatch() Option {
	return func(s *settings) { s.fileWatch = true }
}

// WithLogging replaces the default stderr logger configuration. Level is
// one of debug, info, warn, error; format is json, text or auto.
func WithLogging(level, format string) Option {
	return func(s *settings) {
		cfg := logging.DefaultConfig()
		cfg.Level = level
		cfg.Format = format
		s.logger = logging.New(cfg)
	}
}
