// Package kineto is the public entry point for the profiling control plane.
// It owns the process-wide configuration controller and the registration
// hooks external code uses to plug in: an initialization-callback client and
// an optional daemon client factory.
package kineto

import (
	"context"
	"sync"

	"github.com/ramcherukuri/kineto/internal/control"
	"github.com/ramcherukuri/kineto/internal/daemon"
	"github.com/ramcherukuri/kineto/internal/logging"
)

// ClientInterface receives a one-time initialization callback once the
// profiling engine is ready. The callback is documented as not thread-safe:
// it only fires on the goroutine that registered the client.
type ClientInterface interface {
	Init()
}

// DaemonClient mirrors the daemon contract for external implementations.
type DaemonClient interface {
	ReadOnDemandConfig(ctx context.Context, events, activities bool) (string, error)
	GPUContextCount(ctx context.Context, device uint32) (int, error)
}

var global struct {
	mu              sync.Mutex
	controller      *control.Controller
	logger          *logging.Logger
	client          ClientInterface
	clientGoroutine uint64
	profilerReady   bool
}

// Start constructs the process-wide controller. The base configuration is
// read synchronously, so a caller returning from Start observes a valid
// snapshot. A second Start without Stop is a no-op.
func Start(opts ...Option) {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.controller != nil {
		return
	}
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	global.logger = s.logger
	// The controller is published before the signal bridge can observe a
	// trigger: New installs the bridge only after the snapshot slots exist.
	global.controller = control.New(s.controlOptions()...)
}

// Stop shuts the controller down: the signal handler is uninstalled first,
// then the scheduler is woken and joined.
func Stop() {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.controller == nil {
		return
	}
	_ = global.controller.Close()
	global.controller = nil
}

// RegisterClient registers the external client for the initialization
// callback. When the profiling engine is already ready the callback fires
// immediately, synchronously, on the registering goroutine. The registering
// goroutine is recorded: a later initialization attempt from a different
// goroutine is rejected.
func RegisterClient(c ClientInterface) {
	global.mu.Lock()
	global.client = c
	global.clientGoroutine = goroutineID()
	ready := global.profilerReady
	global.mu.Unlock()

	if c != nil && ready {
		c.Init()
	}
}

// InitClientIfRegistered is called by the profiling engine once it is ready
// to accept configuration. It fires the registered client's callback, unless
// the caller is on a different goroutine than the one that registered, in
// which case the violation is logged and the callback skipped.
func InitClientIfRegistered() {
	global.mu.Lock()
	global.profilerReady = true
	c := global.client
	registered := global.clientGoroutine
	logger := global.logger
	global.mu.Unlock()

	if c == nil {
		return
	}
	if current := goroutineID(); current != registered {
		if logger == nil {
			logger = logging.New(logging.DefaultConfig())
		}
		logger.Error("client init callback must run on the registering goroutine, skipping",
			"registered_goroutine", registered, "calling_goroutine", current)
		return
	}
	c.Init()
}

// RegisterDaemonClientFactory registers the process-wide daemon client
// factory. Must be called before Start; the last registration wins.
func RegisterDaemonClientFactory(f func() (DaemonClient, error)) {
	if f == nil {
		daemon.RegisterFactory(nil)
		return
	}
	daemon.RegisterFactory(func() (daemon.Client, error) {
		return f()
	})
}

// SetActivityProfilerBusy forwards the profiling engine's backpressure flag.
func SetActivityProfilerBusy(busy bool) {
	if c := currentController(); c != nil {
		c.SetActivityProfilerBusy(busy)
	}
}

// ContextCountForGPU returns the daemon's GPU context count, 0 when no
// daemon or controller is available.
func ContextCountForGPU(device uint32) int {
	if c := currentController(); c != nil {
		return c.ContextCountForGPU(device)
	}
	return 0
}

// Active reports whether the controller is running.
func Active() bool {
	return currentController() != nil
}

func currentController() *control.Controller {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.controller
}
