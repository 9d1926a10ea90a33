package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ramcherukuri/kineto/internal/config"
	"github.com/ramcherukuri/kineto/internal/control"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect profiling configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Parse a config file and print the effective snapshot",
	Long: `Read the base config (flag, KINETO_CONFIG, or the default path), parse it
the way a running controller would, and print every effective setting.`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

// effectiveConfig is the YAML projection of a parsed snapshot.
type effectiveConfig struct {
	Path                 string            `yaml:"path"`
	VerboseLogLevel      int               `yaml:"verbose_log_level"`
	VerboseLogModules    []string          `yaml:"verbose_log_modules,omitempty"`
	SigUsr2Enabled       bool              `yaml:"sig_usr2_enabled"`
	EventsDurationSecs   int               `yaml:"events_duration_secs"`
	EventsIterations     int               `yaml:"events_iterations"`
	ActivitiesDuration   int               `yaml:"activities_duration_secs"`
	ActivitiesIterations int               `yaml:"activities_iterations"`
	Passthrough          map[string]string `yaml:"passthrough,omitempty"`
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	path := viper.GetString("config")
	if path == "" {
		path = os.Getenv(control.EnvConfigFile)
	}
	if path == "" {
		path = control.DefaultConfigPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	snap := config.New().Parse(string(raw))

	eff := effectiveConfig{
		Path:                 path,
		VerboseLogLevel:      snap.VerboseLogLevel(),
		VerboseLogModules:    snap.VerboseLogModules(),
		SigUsr2Enabled:       snap.SigUsr2Enabled(),
		EventsDurationSecs:   int(snap.EventsDuration().Seconds()),
		EventsIterations:     snap.EventsIterations(),
		ActivitiesDuration:   int(snap.ActivitiesDuration().Seconds()),
		ActivitiesIterations: snap.ActivitiesIterations(),
	}
	if keys := snap.PassthroughKeys(); len(keys) > 0 {
		eff.Passthrough = make(map[string]string, len(keys))
		for _, k := range keys {
			v, _ := snap.Passthrough(k)
			eff.Passthrough[k] = v
		}
	}

	out, err := yaml.Marshal(eff)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
