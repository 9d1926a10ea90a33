package control

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ramcherukuri/kineto/internal/events"
	"github.com/ramcherukuri/kineto/internal/logging"
)

type testPaths struct {
	base     string
	onDemand string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func setupPaths(t *testing.T, baseContent string) testPaths {
	t.Helper()
	dir := t.TempDir()
	p := testPaths{
		base:     filepath.Join(dir, "kineto.conf"),
		onDemand: filepath.Join(dir, "kineto-ondemand.conf"),
	}
	writeFile(t, p.base, baseContent)
	return p
}

// newTestController builds a controller with fast cycles and no daemon.
func newTestController(t *testing.T, p testPaths, extra ...Option) *Controller {
	t.Helper()
	opts := append([]Option{
		WithConfigPath(p.base),
		WithOnDemandPath(p.onDemand),
		WithBaseInterval(40 * time.Millisecond),
		WithDaemonPollInterval(time.Hour),
		WithVerboseOverrideDuration(200 * time.Millisecond),
		WithLogger(logging.NewNop()),
	}, extra...)
	c := New(opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNew_InitialBaseSnapshot(t *testing.T) {
	p := setupPaths(t, "verbose_log_level = 1\nsig_usr2_enabled = no\n")
	c := newTestController(t, p)

	base := c.BaseConfig()
	if base.VerboseLogLevel() != 1 {
		t.Errorf("VerboseLogLevel() = %d, want 1", base.VerboseLogLevel())
	}
	if base.SigUsr2Enabled() {
		t.Error("SigUsr2Enabled() = true, want false")
	}
	// Construction is synchronous: the snapshot must be valid immediately.
	if base.Timestamp().IsZero() {
		t.Error("base snapshot timestamp should be set after construction")
	}
}

func TestNew_UnreadableFileDegradesToEmpty(t *testing.T) {
	p := setupPaths(t, "unused")
	c := New(
		WithConfigPath(filepath.Join(t.TempDir(), "missing.conf")),
		WithOnDemandPath(p.onDemand),
		WithBaseInterval(time.Hour),
		WithDaemonPollInterval(time.Hour),
		WithLogger(logging.NewNop()),
	)
	defer c.Close()

	if c.BaseConfig().Source() != "" {
		t.Errorf("Source() = %q, want empty on unreadable file", c.BaseConfig().Source())
	}
}

func TestHasNewBaseConfig(t *testing.T) {
	p := setupPaths(t, "verbose_log_level = 1\n")
	c := newTestController(t, p)

	held := c.BaseConfig()
	if c.HasNewBaseConfig(held) {
		t.Error("HasNewBaseConfig should be false for the current snapshot")
	}

	writeFile(t, p.base, "verbose_log_level = 2\n")
	eventually(t, 2*time.Second, func() bool {
		return c.HasNewBaseConfig(held)
	}, "base config change not observed after reload interval")

	if c.BaseConfig().VerboseLogLevel() != 2 {
		t.Errorf("reloaded VerboseLogLevel() = %d, want 2", c.BaseConfig().VerboseLogLevel())
	}
}

func TestBaseReload_UnchangedContentKeepsSnapshot(t *testing.T) {
	p := setupPaths(t, "verbose_log_level = 1\n")
	c := newTestController(t, p)

	held := c.BaseConfig()
	// Several reload intervals with unchanged content.
	time.Sleep(150 * time.Millisecond)
	if c.HasNewBaseConfig(held) {
		t.Error("unchanged file content must not produce a new snapshot")
	}
}

func TestSignal_ImplicitActivityRequest(t *testing.T) {
	p := setupPaths(t, "")
	c := newTestController(t, p)

	held := c.ActivityProfilerOnDemandConfig()
	// No on-demand file at all: a bare signal still starts a default trace.
	c.handleOnDemandSignal()

	eventually(t, 2*time.Second, func() bool {
		return c.HasNewActivityProfilerOnDemandConfig(held)
	}, "signal did not produce an activity on-demand snapshot")

	got := c.ActivityProfilerOnDemandConfig()
	if !got.ActivityProfilerRequested() {
		t.Error("accepted snapshot should request an activity trace")
	}
}

func TestSignal_ConsumedExactlyOnce(t *testing.T) {
	p := setupPaths(t, "")
	bus := events.NewBus(32)
	defer bus.Close()
	ch := bus.Subscribe(events.TypeOnDemandAccepted)

	c := newTestController(t, p, WithEventBus(bus))

	// N deliveries before the worker wakes: one draft, not N. Setting the
	// flag first and waking once makes the ordering deterministic.
	for i := 0; i < 5; i++ {
		c.onDemandSignal.Store(true)
	}
	c.notifyWake()

	accepted := 0
	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case e := <-ch:
			if e.(events.OnDemandAccepted).Kind == events.KindActivityProfiler {
				accepted++
			}
		case <-deadline:
			if accepted != 1 {
				t.Fatalf("accepted %d activity sessions from 5 rapid signals, want 1", accepted)
			}
			return
		}
	}
}

func TestSignal_ActivityBusyBackpressure(t *testing.T) {
	p := setupPaths(t, "")
	bus := events.NewBus(32)
	defer bus.Close()
	dropped := bus.Subscribe(events.TypeOnDemandDropped)

	c := newTestController(t, p, WithEventBus(bus))

	held := c.ActivityProfilerOnDemandConfig()

	c.SetActivityProfilerBusy(true)
	c.handleOnDemandSignal()

	// The drop is observable; the snapshot must be unchanged.
	select {
	case e := <-dropped:
		d := e.(events.OnDemandDropped)
		if d.Kind != events.KindActivityProfiler {
			t.Errorf("dropped kind = %q, want activity", d.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("busy signal was not dropped")
	}
	if c.HasNewActivityProfilerOnDemandConfig(held) {
		t.Error("activity snapshot changed while busy")
	}

	// Clearing busy and resending the signal causes the change.
	c.SetActivityProfilerBusy(false)
	c.handleOnDemandSignal()
	eventually(t, 2*time.Second, func() bool {
		return c.HasNewActivityProfilerOnDemandConfig(held)
	}, "signal after clearing busy did not update the activity snapshot")
}

func TestSignal_EventWindowGating(t *testing.T) {
	p := setupPaths(t, "")
	writeFile(t, p.onDemand, "events_duration_secs = 1\n")
	c := newTestController(t, p)

	// First signal: window elapsed (empty slot), accepted.
	heldEmpty := c.EventProfilerOnDemandConfig()
	c.handleOnDemandSignal()
	eventually(t, 2*time.Second, func() bool {
		return c.HasNewEventProfilerOnDemandConfig(heldEmpty)
	}, "first event request not accepted")

	// Second signal while the 1s window is still open: start unchanged.
	held := c.EventProfilerOnDemandConfig()
	c.handleOnDemandSignal()
	time.Sleep(200 * time.Millisecond)
	if c.HasNewEventProfilerOnDemandConfig(held) {
		t.Error("event snapshot replaced while its on-demand window was open")
	}

	// After the window elapses, an identical signal updates it.
	time.Sleep(time.Second)
	c.handleOnDemandSignal()
	eventually(t, 2*time.Second, func() bool {
		return c.HasNewEventProfilerOnDemandConfig(held)
	}, "event request after window elapsed not accepted")
}

func TestVerboseOverride_AppliedAndReverted(t *testing.T) {
	defer logging.SetVerboseLevel(logging.VerboseLevelOff, nil)

	p := setupPaths(t, "verbose_log_level = 0\n")
	writeFile(t, p.onDemand, "verbose_log_level = 3\n")

	bus := events.NewBus(32)
	defer bus.Close()
	resets := bus.Subscribe(events.TypeVerboseReset)

	c := newTestController(t, p, WithEventBus(bus))

	overrideStart := time.Now()
	c.handleOnDemandSignal()

	eventually(t, 2*time.Second, func() bool {
		return logging.VerboseLevel() == 3
	}, "on-demand verbose override not applied")

	// Revert happens at or after override-duration, never before.
	select {
	case <-resets:
		elapsed := time.Since(overrideStart)
		if elapsed < 200*time.Millisecond {
			t.Errorf("verbose level reverted after %v, before the override duration", elapsed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("verbose level never reverted")
	}
	if logging.VerboseLevel() != 0 {
		t.Errorf("VerboseLevel() = %d, want base level 0 after revert", logging.VerboseLevel())
	}
}

func TestSignalBridge_FollowsBaseConfig(t *testing.T) {
	p := setupPaths(t, "sig_usr2_enabled=no\n")
	c := newTestController(t, p)

	if c.SignalBridgeInstalled() {
		t.Fatal("bridge installed despite sig_usr2_enabled=no")
	}

	writeFile(t, p.base, "sig_usr2_enabled=yes\n")
	eventually(t, 2*time.Second, func() bool {
		return c.SignalBridgeInstalled()
	}, "bridge not installed after config enabled the signal")

	writeFile(t, p.base, "sig_usr2_enabled=no\n")
	eventually(t, 2*time.Second, func() bool {
		return !c.SignalBridgeInstalled()
	}, "bridge not removed after config disabled the signal")
}

func TestClose_PromptShutdownMidSleep(t *testing.T) {
	p := setupPaths(t, "")
	c := New(
		WithConfigPath(p.base),
		WithOnDemandPath(p.onDemand),
		WithBaseInterval(time.Hour),
		WithDaemonPollInterval(time.Hour),
		WithLogger(logging.NewNop()),
	)

	start := time.Now()
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Close() took %v, want prompt shutdown mid-sleep", elapsed)
	}
}

func TestContextCountForGPU_NoDaemon(t *testing.T) {
	p := setupPaths(t, "")
	c := newTestController(t, p)

	if got := c.ContextCountForGPU(0); got != 0 {
		t.Errorf("ContextCountForGPU(0) = %d, want 0 without a daemon", got)
	}
}

func TestFileWatch_AcceleratesReload(t *testing.T) {
	p := setupPaths(t, "verbose_log_level = 1\n")
	c := New(
		WithConfigPath(p.base),
		WithOnDemandPath(p.onDemand),
		WithBaseInterval(time.Hour), // only the watcher can trigger a reload
		WithDaemonPollInterval(time.Hour),
		WithLogger(logging.NewNop()),
		WithFileWatch(),
	)
	t.Cleanup(func() { _ = c.Close() })

	held := c.BaseConfig()
	writeFile(t, p.base, "verbose_log_level = 2\n")

	eventually(t, 3*time.Second, func() bool {
		return c.HasNewBaseConfig(held)
	}, "file watch did not trigger an early reload")
}
