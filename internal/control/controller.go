// Package control implements the reconfiguration engine: the process-wide
// access point for profiling configuration and the single background worker
// that mutates it. Three triggers drive change: periodic reloads of the base
// config file, SIGUSR2 for an immediate on-demand session, and polls of an
// optional external daemon.
package control

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ramcherukuri/kineto/internal/config"
	"github.com/ramcherukuri/kineto/internal/daemon"
	"github.com/ramcherukuri/kineto/internal/events"
	"github.com/ramcherukuri/kineto/internal/logging"
	"github.com/ramcherukuri/kineto/internal/sigbridge"
)

// Controller holds the current configuration snapshots and owns the
// scheduler goroutine. Exactly one goroutine (the scheduler) writes the
// snapshot slots; arbitrary caller goroutines read them and flip the two
// narrow flags (signal, busy).
type Controller struct {
	opts   options
	logger *logging.Logger
	bus    *events.Bus

	configPath   string
	onDemandPath string

	// mu guards the three snapshot slots. Slots are replaced, never
	// mutated, so a reference obtained under the lock stays consistent.
	mu               sync.Mutex
	base             *config.Snapshot
	onDemandEvent    *config.Snapshot
	onDemandActivity *config.Snapshot

	onDemandSignal atomic.Bool // one-shot, consumed by exchange
	activityBusy   atomic.Bool
	fileChanged    atomic.Bool

	wake chan struct{} // cap 1: repeat wakes coalesce
	stop chan struct{}
	done chan struct{}

	stopOnce sync.Once

	bridge  *sigbridge.Bridge
	client  daemon.Client
	watcher *fileWatcher
}

// New constructs a controller: it synchronously reads the base config so
// callers immediately observe a valid snapshot, reconciles the signal
// bridge, builds the daemon client if a factory is registered, and spawns
// the scheduler. Construction never fails; every setup error degrades to
// last-known-good behavior and is logged.
func New(opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	c := &Controller{
		opts:             o,
		logger:           o.logger,
		bus:              o.bus,
		onDemandPath:     o.onDemandPath,
		onDemandEvent:    config.New(),
		onDemandActivity: config.New(),
		wake:             make(chan struct{}, 1),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}

	c.configPath = o.configPath
	if c.configPath == "" {
		c.configPath = os.Getenv(EnvConfigFile)
	}
	if c.configPath == "" {
		c.configPath = DefaultConfigPath
	}

	c.base = config.New().Parse(c.readConfigFile(c.configPath))
	logging.SetVerboseLevel(c.base.VerboseLogLevel(), c.base.VerboseLogModules())

	c.bridge = sigbridge.New(sigbridge.OnDemandSignal, c.handleOnDemandSignal, c.logger)
	c.bridge.Apply(c.base.SigUsr2Enabled())

	if o.client != nil {
		c.client = o.client
	} else if client, err := daemon.NewFromRegistered(); err != nil {
		c.logger.Error("daemon client construction failed, polling disabled", "error", err)
	} else {
		c.client = client
	}

	if o.watchFile {
		w, err := newFileWatcher(c.configPath, c.noteFileChanged, c.logger)
		if err != nil {
			c.logger.Error("config file watch unavailable", "path", c.configPath, "error", err)
		} else {
			c.watcher = w
		}
	}

	go c.run()
	return c
}

// handleOnDemandSignal is the restricted-context trigger installed behind
// the signal bridge: set the one-shot flag and wake the scheduler. Nothing
// here locks, allocates, or blocks.
func (c *Controller) handleOnDemandSignal() {
	c.onDemandSignal.Store(true)
	c.notifyWake()
}

func (c *Controller) noteFileChanged() {
	c.fileChanged.Store(true)
	c.notifyWake()
}

func (c *Controller) notifyWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// BaseConfig returns the current base snapshot.
func (c *Controller) BaseConfig() *config.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base
}

// EventProfilerOnDemandConfig returns the current event-profiler on-demand
// snapshot.
func (c *Controller) EventProfilerOnDemandConfig() *config.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onDemandEvent
}

// ActivityProfilerOnDemandConfig returns the current activity-profiler
// on-demand snapshot.
func (c *Controller) ActivityProfilerOnDemandConfig() *config.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onDemandActivity
}

// HasNewBaseConfig reports whether the base snapshot is newer than old.
func (c *Controller) HasNewBaseConfig(old *config.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Timestamp().After(old.Timestamp())
}

// HasNewEventProfilerOnDemandConfig reports whether a newer event-profiler
// on-demand session was accepted since old.
func (c *Controller) HasNewEventProfilerOnDemandConfig(old *config.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onDemandEvent.EventProfilerOnDemandStartTime().
		After(old.EventProfilerOnDemandStartTime())
}

// HasNewActivityProfilerOnDemandConfig reports whether a newer
// activity-profiler on-demand request was accepted since old.
func (c *Controller) HasNewActivityProfilerOnDemandConfig(old *config.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onDemandActivity.ActivityProfilerRequestReceivedTime().
		After(old.ActivityProfilerRequestReceivedTime())
}

// SetActivityProfilerBusy is called by the profiling engine to refuse new
// on-demand activity sessions. Takes effect on the next scheduler cycle.
func (c *Controller) SetActivityProfilerBusy(busy bool) {
	c.activityBusy.Store(busy)
}

// ActivityProfilerBusy reports the current busy flag.
func (c *Controller) ActivityProfilerBusy() bool {
	return c.activityBusy.Load()
}

// SignalBridgeInstalled reports whether the SIGUSR2 handler is installed.
func (c *Controller) SignalBridgeInstalled() bool {
	return c.bridge.Installed()
}

// ContextCountForGPU returns the daemon's context count for a device, or 0
// when no daemon client is registered or the call fails.
func (c *Controller) ContextCountForGPU(device uint32) int {
	if c.client == nil {
		return 0
	}
	count, err := c.client.GPUContextCount(context.Background(), device)
	if err != nil {
		c.logger.Error("gpu context count query failed", "device", device, "error", err)
		return 0
	}
	return count
}

// ConfigPath returns the resolved base config file path.
func (c *Controller) ConfigPath() string {
	return c.configPath
}

// Close uninstalls the signal bridge, stops the scheduler, and joins it.
// Shutdown is bounded by the worker's current wait, not the full periodic
// interval.
func (c *Controller) Close() error {
	c.bridge.Uninstall()
	if c.watcher != nil {
		c.watcher.close()
	}
	c.stopOnce.Do(func() { close(c.stop) })
	c.notifyWake()
	<-c.done
	return nil
}

// readConfigFile returns the file's contents, or empty text on any error.
// Transient I/O failure is never fatal: the caller keeps the last-known-good
// configuration.
func (c *Controller) readConfigFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Error("error reading config file", "path", path, "error", err)
		return ""
	}
	return string(data)
}

func (c *Controller) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}
