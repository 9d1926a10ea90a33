package control

import (
	"time"

	"github.com/ramcherukuri/kineto/internal/daemon"
	"github.com/ramcherukuri/kineto/internal/events"
	"github.com/ramcherukuri/kineto/internal/logging"
)

// Default timing policy. The base file changes rarely; the daemon is polled
// often enough that an operator-pushed config starts within seconds.
const (
	DefaultBaseInterval            = 300 * time.Second
	DefaultDaemonPollInterval      = 5 * time.Second
	DefaultVerboseOverrideDuration = 120 * time.Second
)

// EnvConfigFile selects the base configuration file path.
const EnvConfigFile = "KINETO_CONFIG"

// Fixed file paths. The on-demand path is deliberately not overridable by
// environment: the signal path must behave identically in every process.
const (
	DefaultConfigPath  = "/etc/kineto.conf"
	OnDemandConfigPath = "/tmp/kineto.conf"
)

type options struct {
	baseInterval            time.Duration
	daemonPollInterval      time.Duration
	verboseOverrideDuration time.Duration
	configPath              string
	onDemandPath            string
	logger                  *logging.Logger
	bus                     *events.Bus
	client                  daemon.Client
	watchFile               bool
}

func defaultOptions() options {
	return options{
		baseInterval:            DefaultBaseInterval,
		daemonPollInterval:      DefaultDaemonPollInterval,
		verboseOverrideDuration: DefaultVerboseOverrideDuration,
		onDemandPath:            OnDemandConfigPath,
	}
}

// Option configures a Controller.
type Option func(*options)

// WithBaseInterval sets the base config reload interval.
func WithBaseInterval(d time.Duration) Option {
	return func(o *options) { o.baseInterval = d }
}

// WithDaemonPollInterval sets the daemon poll interval.
func WithDaemonPollInterval(d time.Duration) Option {
	return func(o *options) { o.daemonPollInterval = d }
}

// WithVerboseOverrideDuration sets how long an on-demand verbose override
// stays active before reverting to the base level.
func WithVerboseOverrideDuration(d time.Duration) Option {
	return func(o *options) { o.verboseOverrideDuration = d }
}

// WithConfigPath overrides the base config file path, taking precedence
// over the KINETO_CONFIG environment variable.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithOnDemandPath overrides the signal-triggered on-demand config path.
// Intended for tests.
func WithOnDemandPath(path string) Option {
	return func(o *options) { o.onDemandPath = path }
}

// WithLogger sets the controller's logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEventBus attaches a bus the scheduler publishes change events to.
func WithEventBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithDaemonClient sets the daemon client directly, bypassing the
// process-wide factory registry.
func WithDaemonClient(client daemon.Client) Option {
	return func(o *options) { o.client = client }
}

// WithFileWatch reloads the base config as soon as the file changes instead
// of waiting out the base interval. Periodic reloads still happen.
func WithFileWatch() Option {
	return func(o *options) { o.watchFile = true }
}
