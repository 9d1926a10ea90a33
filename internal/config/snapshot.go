package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Well-known keys read by the control plane. Everything else found in a
// config text is carried through untouched for downstream profiler components.
const (
	KeyVerboseLogLevel      = "verbose_log_level"
	KeyVerboseLogModules    = "verbose_log_modules"
	KeySigUsr2Enabled       = "sig_usr2_enabled"
	KeyEventsDuration       = "events_duration_secs"
	KeyEventsIterations     = "events_iterations"
	KeyActivitiesDuration   = "activities_duration_secs"
	KeyActivitiesIterations = "activities_iterations"
)

// DefaultSignalTraceDuration is the activity trace length implied by a bare
// SIGUSR2 when the on-demand file specifies no duration or iteration fields.
const DefaultSignalTraceDuration = 10 * time.Second

// VerboseLevelUnset marks a snapshot that carries no verbose-level override.
const VerboseLevelUnset = -1

// Snapshot is one parsed profiler configuration. A snapshot is built up
// privately (Parse, ApplySignalDefaults, MarkActivityRequest) and must be
// treated as immutable once published to readers; the controller replaces
// snapshots instead of mutating them in place.
type Snapshot struct {
	source    string
	timestamp time.Time

	verboseLogLevel   int
	verboseLogModules map[string]struct{}
	sigUsr2Enabled    bool

	eventsDuration   time.Duration
	eventsIterations int

	activitiesDuration   time.Duration
	activitiesIterations int

	eventsOnDemandStart time.Time
	eventsOnDemandEnd   time.Time

	activityRequestReceived time.Time

	// Keys the control plane does not interpret.
	passthrough map[string]string
}

// New returns an empty snapshot: no source, zero timestamp, verbose level
// unset, signal handling enabled.
func New() *Snapshot {
	return &Snapshot{
		verboseLogLevel:   VerboseLevelUnset,
		verboseLogModules: map[string]struct{}{},
		sigUsr2Enabled:    true,
		passthrough:       map[string]string{},
	}
}

// Parse returns a new snapshot derived from s with the settings found in raw
// applied over s's values. The timestamp advances only when raw differs from
// s's own source; reparsing identical text yields a semantically equal
// snapshot with the same timestamp. Malformed text degrades silently to "no
// overrides applied" rather than failing.
func (s *Snapshot) Parse(raw string) *Snapshot {
	next := s.Clone()
	if raw != s.source {
		next.timestamp = time.Now()
	}
	next.source = raw

	settings, err := parseProperties(raw)
	if err != nil {
		return next
	}

	for key, value := range settings {
		switch key {
		case KeyVerboseLogLevel:
			if n, ok := parseInt(value); ok {
				next.verboseLogLevel = n
			}
		case KeyVerboseLogModules:
			next.verboseLogModules = parseModuleList(value)
		case KeySigUsr2Enabled:
			if b, ok := parseBool(value); ok {
				next.sigUsr2Enabled = b
			}
		case KeyEventsDuration:
			if n, ok := parseInt(value); ok && n >= 0 {
				next.eventsDuration = time.Duration(n) * time.Second
			}
		case KeyEventsIterations:
			if n, ok := parseInt(value); ok && n >= 0 {
				next.eventsIterations = n
			}
		case KeyActivitiesDuration:
			if n, ok := parseInt(value); ok && n >= 0 {
				next.activitiesDuration = time.Duration(n) * time.Second
			}
		case KeyActivitiesIterations:
			if n, ok := parseInt(value); ok && n >= 0 {
				next.activitiesIterations = n
			}
		default:
			next.passthrough[key] = value
		}
	}

	if next.EventProfilerRequested() {
		next.eventsOnDemandStart = next.timestamp
		next.eventsOnDemandEnd = next.eventsOnDemandStart.Add(next.eventsOnDemandDuration())
	}
	return next
}

// Clone returns a deep, independent copy sharing no mutable state with s.
func (s *Snapshot) Clone() *Snapshot {
	next := *s
	next.verboseLogModules = make(map[string]struct{}, len(s.verboseLogModules))
	for m := range s.verboseLogModules {
		next.verboseLogModules[m] = struct{}{}
	}
	next.passthrough = make(map[string]string, len(s.passthrough))
	for k, v := range s.passthrough {
		next.passthrough[k] = v
	}
	return &next
}

// ApplySignalDefaults fills in the fields a signal-path config conventionally
// omits: a bare signal implies a short default activity trace even when the
// on-demand file specifies nothing. Only valid on an unpublished draft.
func (s *Snapshot) ApplySignalDefaults() {
	if !s.ActivityProfilerRequested() {
		s.activitiesDuration = DefaultSignalTraceDuration
	}
}

// MarkActivityRequest records when the on-demand activity request was
// received. Only valid on an unpublished draft.
func (s *Snapshot) MarkActivityRequest(t time.Time) {
	s.activityRequestReceived = t
}

// Source returns the raw text this snapshot was parsed from.
func (s *Snapshot) Source() string { return s.source }

// Timestamp returns when this snapshot's content was last parsed.
func (s *Snapshot) Timestamp() time.Time { return s.timestamp }

// VerboseLogLevel returns the verbose override level, or VerboseLevelUnset.
func (s *Snapshot) VerboseLogLevel() int { return s.verboseLogLevel }

// VerboseLogModules returns the module filter as a sorted-insensitive set.
func (s *Snapshot) VerboseLogModules() []string {
	mods := make([]string, 0, len(s.verboseLogModules))
	for m := range s.verboseLogModules {
		mods = append(mods, m)
	}
	return mods
}

// SigUsr2Enabled reports whether this installation accepts on-demand
// triggers via SIGUSR2.
func (s *Snapshot) SigUsr2Enabled() bool { return s.sigUsr2Enabled }

// EventProfilerRequested reports whether this config asks for an on-demand
// event profiling session.
func (s *Snapshot) EventProfilerRequested() bool {
	return s.eventsDuration > 0 || s.eventsIterations > 0
}

// ActivityProfilerRequested reports whether this config asks for an
// on-demand activity trace.
func (s *Snapshot) ActivityProfilerRequested() bool {
	return s.activitiesDuration > 0 || s.activitiesIterations > 0
}

// EventProfilerOnDemandStartTime returns the start of the event-profiler
// on-demand window, zero if never requested.
func (s *Snapshot) EventProfilerOnDemandStartTime() time.Time {
	return s.eventsOnDemandStart
}

// EventProfilerOnDemandEndTime returns the end of the event-profiler
// on-demand window, zero if never requested.
func (s *Snapshot) EventProfilerOnDemandEndTime() time.Time {
	return s.eventsOnDemandEnd
}

// ActivityProfilerRequestReceivedTime returns when the most recent on-demand
// activity request was received, zero if never.
func (s *Snapshot) ActivityProfilerRequestReceivedTime() time.Time {
	return s.activityRequestReceived
}

// EventsDuration returns the requested event profiling duration.
func (s *Snapshot) EventsDuration() time.Duration { return s.eventsDuration }

// EventsIterations returns the requested event profiling iteration count.
func (s *Snapshot) EventsIterations() int { return s.eventsIterations }

// ActivitiesDuration returns the requested activity trace duration.
func (s *Snapshot) ActivitiesDuration() time.Duration { return s.activitiesDuration }

// ActivitiesIterations returns the requested activity trace iteration count.
func (s *Snapshot) ActivitiesIterations() int { return s.activitiesIterations }

// Passthrough returns the value of a key the control plane does not
// interpret, and whether it was present.
func (s *Snapshot) Passthrough(key string) (string, bool) {
	v, ok := s.passthrough[strings.ToLower(key)]
	return v, ok
}

// PassthroughKeys returns all uninterpreted keys present in the source.
func (s *Snapshot) PassthroughKeys() []string {
	keys := make([]string, 0, len(s.passthrough))
	for k := range s.passthrough {
		keys = append(keys, k)
	}
	return keys
}

func (s *Snapshot) eventsOnDemandDuration() time.Duration {
	iters := s.eventsIterations
	if iters < 1 {
		iters = 1
	}
	return s.eventsDuration * time.Duration(iters)
}

// parseProperties reads key/value config text through viper's properties
// backend. Keys come back lowercased.
func parseProperties(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v := viper.New()
	v.SetConfigType("properties")
	if err := v.ReadConfig(strings.NewReader(raw)); err != nil {
		return nil, err
	}
	settings := make(map[string]string)
	for _, key := range v.AllKeys() {
		settings[key] = strings.TrimSpace(v.GetString(key))
	}
	return settings, nil
}
