package config

import (
	"testing"
	"time"
)

func TestNew_Empty(t *testing.T) {
	s := New()

	if s.Source() != "" {
		t.Errorf("Source() = %q, want empty", s.Source())
	}
	if !s.Timestamp().IsZero() {
		t.Errorf("Timestamp() = %v, want zero", s.Timestamp())
	}
	if s.VerboseLogLevel() != VerboseLevelUnset {
		t.Errorf("VerboseLogLevel() = %d, want %d", s.VerboseLogLevel(), VerboseLevelUnset)
	}
	if !s.SigUsr2Enabled() {
		t.Error("SigUsr2Enabled() = false, want true by default")
	}
	if s.EventProfilerRequested() || s.ActivityProfilerRequested() {
		t.Error("empty snapshot should not request any profiling")
	}
}

func TestParse_Fields(t *testing.T) {
	s := New().Parse(`
verbose_log_level = 2
verbose_log_modules = CuptiActivity, EventProfiler
sig_usr2_enabled = no
events_duration_secs = 30
activities_duration_secs = 5
activities_iterations = 3
trace_output = /tmp/trace.json
`)

	if s.VerboseLogLevel() != 2 {
		t.Errorf("VerboseLogLevel() = %d, want 2", s.VerboseLogLevel())
	}
	if len(s.VerboseLogModules()) != 2 {
		t.Errorf("VerboseLogModules() = %v, want 2 entries", s.VerboseLogModules())
	}
	if s.SigUsr2Enabled() {
		t.Error("SigUsr2Enabled() = true, want false")
	}
	if s.EventsDuration() != 30*time.Second {
		t.Errorf("EventsDuration() = %v, want 30s", s.EventsDuration())
	}
	if s.ActivitiesDuration() != 5*time.Second {
		t.Errorf("ActivitiesDuration() = %v, want 5s", s.ActivitiesDuration())
	}
	if s.ActivitiesIterations() != 3 {
		t.Errorf("ActivitiesIterations() = %d, want 3", s.ActivitiesIterations())
	}
	if !s.EventProfilerRequested() {
		t.Error("EventProfilerRequested() = false, want true")
	}
	if !s.ActivityProfilerRequested() {
		t.Error("ActivityProfilerRequested() = false, want true")
	}
}

func TestParse_BoolSpellings(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"yes", true}, {"true", true}, {"on", true}, {"1", true},
		{"no", false}, {"false", false}, {"off", false}, {"0", false},
	}
	for _, tc := range cases {
		s := New().Parse("sig_usr2_enabled = " + tc.value)
		if s.SigUsr2Enabled() != tc.want {
			t.Errorf("sig_usr2_enabled=%s parsed as %v, want %v", tc.value, s.SigUsr2Enabled(), tc.want)
		}
	}
}

func TestParse_TimestampAdvancesOnlyOnNewContent(t *testing.T) {
	s1 := New().Parse("verbose_log_level = 1")
	if s1.Timestamp().IsZero() {
		t.Fatal("timestamp should advance on first parse")
	}

	// Same content: timestamp unchanged.
	s2 := s1.Parse("verbose_log_level = 1")
	if !s2.Timestamp().Equal(s1.Timestamp()) {
		t.Errorf("timestamp advanced on identical content: %v -> %v", s1.Timestamp(), s2.Timestamp())
	}

	// New content: timestamp strictly advances.
	time.Sleep(time.Millisecond)
	s3 := s2.Parse("verbose_log_level = 2")
	if !s3.Timestamp().After(s2.Timestamp()) {
		t.Errorf("timestamp did not advance on new content: %v -> %v", s2.Timestamp(), s3.Timestamp())
	}
}

func TestParse_MalformedTextKeepsDefaults(t *testing.T) {
	s := New().Parse("\x00not a config\n====")
	if s.VerboseLogLevel() != VerboseLevelUnset {
		t.Errorf("VerboseLogLevel() = %d, want unset after malformed parse", s.VerboseLogLevel())
	}
	if s.EventProfilerRequested() || s.ActivityProfilerRequested() {
		t.Error("malformed text should not request profiling")
	}
}

func TestParse_MergesOverReceiver(t *testing.T) {
	base := New().Parse("verbose_log_level = 3\nsig_usr2_enabled = yes")
	derived := base.Parse("activities_duration_secs = 10")

	// Unspecified fields inherit the receiver's values.
	if derived.VerboseLogLevel() != 3 {
		t.Errorf("VerboseLogLevel() = %d, want inherited 3", derived.VerboseLogLevel())
	}
	if !derived.SigUsr2Enabled() {
		t.Error("SigUsr2Enabled() should be inherited")
	}
	if derived.ActivitiesDuration() != 10*time.Second {
		t.Errorf("ActivitiesDuration() = %v, want 10s", derived.ActivitiesDuration())
	}
}

func TestParse_Passthrough(t *testing.T) {
	s := New().Parse("max_gpu_buffer_mb = 128\nverbose_log_level = 1")

	v, ok := s.Passthrough("max_gpu_buffer_mb")
	if !ok || v != "128" {
		t.Errorf("Passthrough(max_gpu_buffer_mb) = %q, %v; want 128, true", v, ok)
	}
	if _, ok := s.Passthrough("verbose_log_level"); ok {
		t.Error("interpreted keys should not appear in passthrough")
	}
}

func TestParse_EventWindow(t *testing.T) {
	s := New().Parse("events_duration_secs = 10\nevents_iterations = 3")

	if s.EventProfilerOnDemandStartTime().IsZero() {
		t.Fatal("event window start should be set")
	}
	want := s.EventProfilerOnDemandStartTime().Add(30 * time.Second)
	if !s.EventProfilerOnDemandEndTime().Equal(want) {
		t.Errorf("event window end = %v, want start+30s = %v", s.EventProfilerOnDemandEndTime(), want)
	}
}

func TestClone_Independent(t *testing.T) {
	orig := New().Parse("verbose_log_modules = A,B\ncustom_key = v1")
	cl := orig.Clone()

	cl.ApplySignalDefaults()
	cl.MarkActivityRequest(time.Now())
	cl.verboseLogModules["C"] = struct{}{}
	cl.passthrough["custom_key"] = "v2"

	if orig.ActivityProfilerRequested() {
		t.Error("mutating clone changed original's activity request")
	}
	if !orig.ActivityProfilerRequestReceivedTime().IsZero() {
		t.Error("mutating clone changed original's request-received time")
	}
	if len(orig.VerboseLogModules()) != 2 {
		t.Errorf("mutating clone changed original's modules: %v", orig.VerboseLogModules())
	}
	if v, _ := orig.Passthrough("custom_key"); v != "v1" {
		t.Errorf("mutating clone changed original's passthrough: %q", v)
	}
}

func TestApplySignalDefaults(t *testing.T) {
	// Bare signal config: implies a short default trace.
	bare := New().Parse("")
	bare.ApplySignalDefaults()
	if !bare.ActivityProfilerRequested() {
		t.Error("bare signal config should request an activity trace")
	}
	if bare.ActivitiesDuration() != DefaultSignalTraceDuration {
		t.Errorf("ActivitiesDuration() = %v, want default %v", bare.ActivitiesDuration(), DefaultSignalTraceDuration)
	}

	// Explicit duration survives.
	explicit := New().Parse("activities_duration_secs = 60")
	explicit.ApplySignalDefaults()
	if explicit.ActivitiesDuration() != 60*time.Second {
		t.Errorf("ActivitiesDuration() = %v, want explicit 60s", explicit.ActivitiesDuration())
	}
}
