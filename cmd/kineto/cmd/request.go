package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/ramcherukuri/kineto/internal/config"
	"github.com/ramcherukuri/kineto/internal/control"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Write an on-demand config and trigger a running process",
	Long: `Compose an on-demand profiling config from flags, write it atomically to
the on-demand path, and send SIGUSR2 to the target process. With --pid 0
only the file is written; trigger the process yourself.`,
	RunE: runRequest,
}

var (
	requestPid          int
	requestPath         string
	requestActivitySecs time.Duration
	requestEventSecs    time.Duration
	requestIterations   int
	requestVerbose      int
	requestModules      []string
	requestExtra        []string
)

func init() {
	rootCmd.AddCommand(requestCmd)

	requestCmd.Flags().IntVar(&requestPid, "pid", 0,
		"process to signal after writing the config (0 skips the signal)")
	requestCmd.Flags().StringVar(&requestPath, "on-demand-path", control.OnDemandConfigPath,
		"on-demand config file to write")
	requestCmd.Flags().DurationVar(&requestActivitySecs, "activities", 0,
		"activity trace duration (0 omits the key; a bare signal implies the default trace)")
	requestCmd.Flags().DurationVar(&requestEventSecs, "events", 0,
		"event profiling duration (0 omits the key)")
	requestCmd.Flags().IntVar(&requestIterations, "iterations", 0,
		"iteration count applied to the requested profile kinds")
	requestCmd.Flags().IntVar(&requestVerbose, "verbose", config.VerboseLevelUnset,
		"verbose log level override carried by the request")
	requestCmd.Flags().StringSliceVar(&requestModules, "verbose-modules", nil,
		"module filter for the verbose override")
	requestCmd.Flags().StringArrayVar(&requestExtra, "set", nil,
		"extra key=value pairs passed through to the profiler")
}

func runRequest(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	var b strings.Builder
	if requestActivitySecs > 0 {
		fmt.Fprintf(&b, "%s = %d\n", config.KeyActivitiesDuration, int(requestActivitySecs.Seconds()))
		if requestIterations > 0 {
			fmt.Fprintf(&b, "%s = %d\n", config.KeyActivitiesIterations, requestIterations)
		}
	}
	if requestEventSecs > 0 {
		fmt.Fprintf(&b, "%s = %d\n", config.KeyEventsDuration, int(requestEventSecs.Seconds()))
		if requestIterations > 0 {
			fmt.Fprintf(&b, "%s = %d\n", config.KeyEventsIterations, requestIterations)
		}
	}
	if requestVerbose >= 0 {
		fmt.Fprintf(&b, "%s = %d\n", config.KeyVerboseLogLevel, requestVerbose)
		if len(requestModules) > 0 {
			fmt.Fprintf(&b, "%s = %s\n", config.KeyVerboseLogModules, strings.Join(requestModules, ","))
		}
	}
	for _, kv := range requestExtra {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: want key=value", kv)
		}
		fmt.Fprintf(&b, "%s = %s\n", strings.TrimSpace(key), strings.TrimSpace(value))
	}

	// A partially written file must never be observable: the controller may
	// read it the instant the signal lands.
	if err := renameio.WriteFile(requestPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing on-demand config: %w", err)
	}
	logger.Info("on-demand config written", "path", requestPath, "bytes", b.Len())

	if requestPid <= 0 {
		return nil
	}
	if err := signalProcess(requestPid); err != nil {
		return fmt.Errorf("signaling pid %d: %w", requestPid, err)
	}
	logger.Info("trigger signal sent", "pid", requestPid)
	return nil
}
