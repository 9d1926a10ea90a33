package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ramcherukuri/kineto/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "kineto",
	Short: "Dynamic profiling configuration control plane",
	Long: `kineto watches base and on-demand profiling configuration, reacts to
SIGUSR2 triggers and daemon requests, and serves the daemon endpoints a
profiling library polls against.

Run 'kineto watch' to start a controller, 'kineto request' to trigger an
on-demand profile, or 'kineto daemon' to run the sample daemon.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		initEnv()
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"base config file (default: $KINETO_CONFIG or /etc/kineto.conf)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")

	// Bind flags to viper (errors are nil when flag exists)
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initEnv() {
	viper.SetEnvPrefix("KINETO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// newLogger builds the CLI logger from the persistent flags.
func newLogger() *logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Level = viper.GetString("log.level")
	cfg.Format = viper.GetString("log.format")
	return logging.New(cfg)
}
