package control

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ramcherukuri/kineto/internal/config"
	"github.com/ramcherukuri/kineto/internal/events"
	"github.com/ramcherukuri/kineto/internal/logging"
)

// run is the reconfiguration scheduler: the only writer of the snapshot
// slots. It sleeps at most min(baseInterval, daemonPollInterval) and wakes
// early on a signal trigger, a file-watch nudge, or shutdown. A signal
// consumed in a cycle takes priority over that cycle's daemon poll so an
// operator's explicit request is never starved by the periodic poll.
func (c *Controller) run() {
	defer close(c.done)

	now := time.Now()
	nextBaseLoad := now.Add(c.opts.baseInterval)
	nextDaemonPoll := now.Add(c.opts.daemonPollInterval)
	var nextVerboseReset time.Time
	verboseOverridden := false

	wait := c.opts.baseInterval
	if c.opts.daemonPollInterval < wait {
		wait = c.opts.daemonPollInterval
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-timer.C:
		case <-c.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		// A stop racing a wake must still exit without starting a cycle.
		select {
		case <-c.stop:
			return
		default:
		}

		now = time.Now()

		if c.fileChanged.Swap(false) || now.After(nextBaseLoad) {
			c.updateBaseConfig()
			nextBaseLoad = now.Add(c.opts.baseInterval)
		}

		var draft *config.Snapshot
		if c.onDemandSignal.Swap(false) {
			draft = c.configureFromSignal(now)
		} else if now.After(nextDaemonPoll) {
			draft = c.configureFromDaemon(now)
			nextDaemonPoll = now.Add(c.opts.daemonPollInterval)
		}

		if draft != nil && draft.VerboseLogLevel() >= 0 {
			c.logger.Info("applying on-demand verbose level",
				"level", draft.VerboseLogLevel())
			logging.SetVerboseLevel(draft.VerboseLogLevel(), draft.VerboseLogModules())
			nextVerboseReset = now.Add(c.opts.verboseOverrideDuration)
			verboseOverridden = true
			c.publish(events.NewVerboseOverride(draft.VerboseLogLevel()))
		}

		if verboseOverridden && now.After(nextVerboseReset) {
			base := c.BaseConfig()
			c.logger.Info("reverting verbose level", "level", base.VerboseLogLevel())
			logging.SetVerboseLevel(base.VerboseLogLevel(), base.VerboseLogModules())
			verboseOverridden = false
			c.publish(events.NewVerboseReset(base.VerboseLogLevel()))
		}

		timer.Reset(wait)
	}
}

// updateBaseConfig re-reads the base file and, when the text changed,
// replaces the base snapshot and reconciles the signal bridge against the
// new snapshot's flag.
func (c *Controller) updateBaseConfig() {
	text := c.readConfigFile(c.configPath)

	c.mu.Lock()
	changed := text != c.base.Source()
	if changed {
		c.base = config.New().Parse(text)
	}
	base := c.base
	c.mu.Unlock()

	if changed {
		c.logger.Info("base config updated", "path", c.configPath)
		c.publish(events.NewBaseConfigUpdated(c.configPath))
	}
	c.bridge.Apply(base.SigUsr2Enabled())
}

// configureFromSignal handles one consumed signal trigger: derive a draft
// from the current base, overlay the on-demand file, apply signal defaults,
// then offer the draft to each profiler kind under its own gate. A signal is
// always an implicit activity-trace request.
func (c *Controller) configureFromSignal(now time.Time) *config.Snapshot {
	c.logger.Info("received on-demand profiling signal",
		"path", c.onDemandPath)

	draft := c.BaseConfig().Clone().Parse(c.readConfigFile(c.onDemandPath))
	draft.ApplySignalDefaults()

	if draft.EventProfilerRequested() {
		if now.After(c.EventProfilerOnDemandConfig().EventProfilerOnDemandEndTime()) {
			c.acceptEventProfiler(draft, events.SourceSignal)
		} else {
			c.logger.Error("on-demand event profiler is busy")
			c.publish(events.NewOnDemandDropped(
				events.KindEventProfiler, events.SourceSignal, events.ReasonEventProfilerBusy))
		}
	}

	draft.MarkActivityRequest(now)
	if !c.activityBusy.Load() {
		c.acceptActivityProfiler(draft, events.SourceSignal)
	} else {
		c.logger.Error("activity profiler is busy")
		c.publish(events.NewOnDemandDropped(
			events.KindActivityProfiler, events.SourceSignal, events.ReasonActivityProfilerBusy))
	}
	return draft
}

// configureFromDaemon polls the daemon for pushed on-demand config. The two
// acceptances are independent: one response may satisfy either kind, both,
// or neither.
func (c *Controller) configureFromDaemon(now time.Time) *config.Snapshot {
	text := c.readOnDemandConfigFromDaemon(now)
	if text == "" {
		return nil
	}
	c.logger.Info("received on-demand config from daemon")

	draft := config.New().Parse(text)
	if draft.EventProfilerRequested() {
		c.acceptEventProfiler(draft, events.SourceDaemon)
	}
	if draft.ActivityProfilerRequested() {
		draft.MarkActivityRequest(now)
		c.acceptActivityProfiler(draft, events.SourceDaemon)
	}
	return draft
}

// readOnDemandConfigFromDaemon returns empty text when no daemon client is
// registered or the poll fails; the poll parameters tell the daemon which
// profiler kinds this process can currently accept.
func (c *Controller) readOnDemandConfigFromDaemon(now time.Time) string {
	if c.client == nil {
		return ""
	}
	wantEvents := now.After(c.EventProfilerOnDemandConfig().EventProfilerOnDemandEndTime())
	wantActivities := !c.activityBusy.Load()

	text, err := c.client.ReadOnDemandConfig(context.Background(), wantEvents, wantActivities)
	if err != nil {
		c.logger.Error("daemon poll failed", "error", err)
		return ""
	}
	return text
}

func (c *Controller) acceptEventProfiler(draft *config.Snapshot, source string) {
	sessionID := uuid.NewString()
	c.logger.WithSession(sessionID).Info("starting on-demand event profiling",
		"source", source)

	c.mu.Lock()
	c.onDemandEvent = draft.Clone()
	c.mu.Unlock()

	c.publish(events.NewOnDemandAccepted(events.KindEventProfiler, source, sessionID))
}

func (c *Controller) acceptActivityProfiler(draft *config.Snapshot, source string) {
	sessionID := uuid.NewString()
	c.logger.WithSession(sessionID).Info("starting on-demand activity profiling",
		"source", source)

	c.mu.Lock()
	c.onDemandActivity = draft.Clone()
	c.mu.Unlock()

	c.publish(events.NewOnDemandAccepted(events.KindActivityProfiler, source, sessionID))
}
