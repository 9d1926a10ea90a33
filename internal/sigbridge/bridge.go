// Package sigbridge installs and removes the process-wide SIGUSR2 handler
// that triggers on-demand profiling. The handler body is restricted: it only
// invokes the trigger callback, which must set a flag and wake the scheduler
// without locking, allocating, or blocking.
package sigbridge

import (
	"os"
	"os/signal"
	"sync"

	"github.com/ramcherukuri/kineto/internal/logging"
)

// State enumerates the bridge's installation states. Modeling the prior
// disposition explicitly makes install/uninstall restoration exact: the OS
// signal slot is a global resource, and uninstalling must leave it as found.
type State int

const (
	// StateNotInstalled means the bridge holds no signal registration.
	StateNotInstalled State = iota
	// StateInstalled means the bridge is registered and the signal had no
	// prior disposition to restore.
	StateInstalled
	// StateInstalledPrevIgnored means the signal was being ignored before
	// install; uninstall restores the ignore disposition.
	StateInstalledPrevIgnored
)

func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateInstalledPrevIgnored:
		return "installed-prev-ignored"
	default:
		return "not-installed"
	}
}

// Bridge owns the on-demand signal registration. Go's os/signal multiplexes
// deliveries to every Notify subscriber, so a handler the host process
// registered before or after this library keeps receiving the signal
// regardless of the bridge's state; Stop detaches only the bridge's own
// channel.
type Bridge struct {
	mu      sync.Mutex
	state   State
	sig     os.Signal
	ch      chan os.Signal
	done    chan struct{}
	trigger func()
	logger  *logging.Logger
}

// New creates a bridge for the on-demand signal. trigger is invoked once per
// delivery; rapid repeats coalesce through the channel buffer and the
// caller's one-shot flag.
func New(sig os.Signal, trigger func(), logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bridge{
		state:   StateNotInstalled,
		sig:     sig,
		trigger: trigger,
		logger:  logger,
	}
}

// Install registers the bridge's signal channel. Idempotent: a second call
// leaves the recorded prior disposition untouched.
func (b *Bridge) Install() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateNotInstalled {
		return
	}

	prevIgnored := signal.Ignored(b.sig)

	// Capacity 1: a signal arriving while one is pending is the same
	// request; the one-shot flag guarantees single consumption anyway.
	b.ch = make(chan os.Signal, 1)
	b.done = make(chan struct{})
	signal.Notify(b.ch, b.sig)
	go b.deliver(b.ch, b.done)

	if prevIgnored {
		b.state = StateInstalledPrevIgnored
	} else {
		b.state = StateInstalled
	}
	b.logger.Info("on-demand signal handler installed",
		"signal", b.sig.String(), "state", b.state.String())
}

// Uninstall detaches the bridge's channel and restores the signal slot
// exactly as found. Calling it when never installed is a no-op.
func (b *Bridge) Uninstall() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateNotInstalled {
		return
	}

	signal.Stop(b.ch)
	close(b.done)

	if b.state == StateInstalledPrevIgnored {
		signal.Ignore(b.sig)
	}
	b.state = StateNotInstalled
	b.ch = nil
	b.done = nil
	b.logger.Info("on-demand signal handler removed", "signal", b.sig.String())
}

// Apply reconciles the bridge against the active base configuration's flag:
// install when signal triggers are enabled, uninstall when not.
func (b *Bridge) Apply(enabled bool) {
	if enabled {
		b.Install()
	} else {
		b.Uninstall()
	}
}

// State returns the current installation state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Installed reports whether the bridge currently holds a registration.
func (b *Bridge) Installed() bool {
	return b.State() != StateNotInstalled
}

// deliver forwards signal arrivals to the trigger. It owns no other work:
// everything downstream of the trigger happens on the scheduler goroutine.
func (b *Bridge) deliver(ch <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-ch:
			b.trigger()
		case <-done:
			return
		}
	}
}
