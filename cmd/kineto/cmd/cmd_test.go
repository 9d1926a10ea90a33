package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramcherukuri/kineto/internal/config"
)

func TestRequest_WritesComposedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ondemand.conf")

	requestPid = 0
	requestPath = path
	requestActivitySecs = 15 * time.Second
	requestEventSecs = 0
	requestIterations = 3
	requestVerbose = 2
	requestModules = []string{"CuptiActivityProfiler"}
	requestExtra = []string{"PROFILE_REPORT_PATH = /tmp/report.json"}
	t.Cleanup(func() {
		requestPid = 0
		requestPath = ""
		requestActivitySecs = 0
		requestIterations = 0
		requestVerbose = config.VerboseLevelUnset
		requestModules = nil
		requestExtra = nil
	})

	require.NoError(t, runRequest(nil, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "activities_duration_secs = 15")
	assert.Contains(t, text, "activities_iterations = 3")
	assert.Contains(t, text, "verbose_log_level = 2")
	assert.Contains(t, text, "verbose_log_modules = CuptiActivityProfiler")
	assert.Contains(t, text, "PROFILE_REPORT_PATH = /tmp/report.json")
	assert.NotContains(t, text, "events_duration_secs")

	// The composed text round-trips through the controller's parser.
	snap := config.New().Parse(text)
	assert.True(t, snap.ActivityProfilerRequested())
	assert.False(t, snap.EventProfilerRequested())
	assert.Equal(t, 2, snap.VerboseLogLevel())
}

func TestRequest_RejectsMalformedSet(t *testing.T) {
	requestPid = 0
	requestPath = filepath.Join(t.TempDir(), "ondemand.conf")
	requestExtra = []string{"no-equals-sign"}
	t.Cleanup(func() {
		requestPath = ""
		requestExtra = nil
	})

	err := runRequest(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key=value")
}

func TestConfigShow_RendersSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kineto.conf")
	body := strings.Join([]string{
		"events_duration_secs = 30",
		"verbose_log_level = 1",
		"CUPTI_PROFILER_METRICS = kineto__cuda_core_flops",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	viper.Set("config", path)
	t.Cleanup(func() { viper.Set("config", "") })

	require.NoError(t, runConfigShow(nil, nil))
}

func TestConfigShow_MissingFile(t *testing.T) {
	viper.Set("config", filepath.Join(t.TempDir(), "absent.conf"))
	t.Cleanup(func() { viper.Set("config", "") })

	err := runConfigShow(nil, nil)
	require.Error(t, err)
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"watch", "request", "daemon", "status", "config", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
