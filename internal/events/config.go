package events

// Event types published by the reconfiguration scheduler.
const (
	TypeBaseConfigUpdated = "base_config_updated"
	TypeOnDemandAccepted  = "on_demand_accepted"
	TypeOnDemandDropped   = "on_demand_dropped"
	TypeVerboseOverride   = "verbose_override"
	TypeVerboseReset      = "verbose_reset"
)

// Profiler kinds referenced by on-demand events.
const (
	KindEventProfiler    = "event"
	KindActivityProfiler = "activity"
)

// Drop reasons for on-demand events.
const (
	ReasonEventProfilerBusy    = "event_profiler_busy"
	ReasonActivityProfilerBusy = "activity_profiler_busy"
)

// On-demand trigger sources.
const (
	SourceSignal = "signal"
	SourceDaemon = "daemon"
)

// BaseConfigUpdated reports that the base snapshot was replaced after a
// reload observed new file content.
type BaseConfigUpdated struct {
	BaseEvent
	Path string `json:"path"`
}

// NewBaseConfigUpdated creates a BaseConfigUpdated event.
func NewBaseConfigUpdated(path string) BaseConfigUpdated {
	return BaseConfigUpdated{BaseEvent: newBaseEvent(TypeBaseConfigUpdated), Path: path}
}

// OnDemandAccepted reports that an on-demand draft was accepted for a
// profiler kind.
type OnDemandAccepted struct {
	BaseEvent
	Kind      string `json:"kind"`
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

// NewOnDemandAccepted creates an OnDemandAccepted event.
func NewOnDemandAccepted(kind, source, sessionID string) OnDemandAccepted {
	return OnDemandAccepted{
		BaseEvent: newBaseEvent(TypeOnDemandAccepted),
		Kind:      kind,
		Source:    source,
		SessionID: sessionID,
	}
}

// OnDemandDropped reports that an on-demand request was rejected. Dropped
// requests are not queued; a fresh trigger is required.
type OnDemandDropped struct {
	BaseEvent
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// NewOnDemandDropped creates an OnDemandDropped event.
func NewOnDemandDropped(kind, source, reason string) OnDemandDropped {
	return OnDemandDropped{
		BaseEvent: newBaseEvent(TypeOnDemandDropped),
		Kind:      kind,
		Source:    source,
		Reason:    reason,
	}
}

// VerboseOverride reports that an on-demand config raised the verbose level.
type VerboseOverride struct {
	BaseEvent
	Level int `json:"level"`
}

// NewVerboseOverride creates a VerboseOverride event.
func NewVerboseOverride(level int) VerboseOverride {
	return VerboseOverride{BaseEvent: newBaseEvent(TypeVerboseOverride), Level: level}
}

// VerboseReset reports that the verbose level reverted to the base config's.
type VerboseReset struct {
	BaseEvent
	Level int `json:"level"`
}

// NewVerboseReset creates a VerboseReset event.
func NewVerboseReset(level int) VerboseReset {
	return VerboseReset{BaseEvent: newBaseEvent(TypeVerboseReset), Level: level}
}
