package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/ramcherukuri/kineto/internal/control"
	"github.com/ramcherukuri/kineto/internal/daemon"
	"github.com/ramcherukuri/kineto/internal/events"
	"github.com/ramcherukuri/kineto/internal/logging"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a configuration controller in the foreground",
	Long: `Start a controller that reloads the base configuration, listens for
SIGUSR2 on-demand triggers and optionally polls a daemon, logging every
configuration event until interrupted.`,
	RunE: runWatch,
}

var (
	watchOnDemandPath    string
	watchBaseInterval    time.Duration
	watchPollInterval    time.Duration
	watchVerboseDuration time.Duration
	watchDaemonURL       string
	watchFileWatch       bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchOnDemandPath, "on-demand-path", "",
		"on-demand config file read when SIGUSR2 fires (default: /tmp/kineto.conf)")
	watchCmd.Flags().DurationVar(&watchBaseInterval, "base-interval", control.DefaultBaseInterval,
		"base config reload interval")
	watchCmd.Flags().DurationVar(&watchPollInterval, "poll-interval", control.DefaultDaemonPollInterval,
		"daemon poll interval")
	watchCmd.Flags().DurationVar(&watchVerboseDuration, "verbose-duration", control.DefaultVerboseOverrideDuration,
		"how long an on-demand verbose override stays in effect")
	watchCmd.Flags().StringVar(&watchDaemonURL, "daemon-url", "",
		"daemon base URL to poll for on-demand configs (empty disables polling)")
	watchCmd.Flags().BoolVar(&watchFileWatch, "file-watch", false,
		"reload the base config on file change instead of waiting for the interval")
}

func runWatch(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	bus := events.NewBus(64)
	defer bus.Close()

	opts := []control.Option{
		control.WithBaseInterval(watchBaseInterval),
		control.WithDaemonPollInterval(watchPollInterval),
		control.WithVerboseOverrideDuration(watchVerboseDuration),
		control.WithLogger(logger),
		control.WithEventBus(bus),
	}
	if cfg := viper.GetString("config"); cfg != "" {
		opts = append(opts, control.WithConfigPath(cfg))
	}
	if watchOnDemandPath != "" {
		opts = append(opts, control.WithOnDemandPath(watchOnDemandPath))
	}
	if watchDaemonURL != "" {
		opts = append(opts, control.WithDaemonClient(daemon.NewHTTPClient(watchDaemonURL)))
	}
	if watchFileWatch {
		opts = append(opts, control.WithFileWatch())
	}

	ctl := control.New(opts...)
	logger.Info("controller started",
		"config_path", ctl.ConfigPath(),
		"base_interval", watchBaseInterval,
		"poll_interval", watchPollInterval,
	)

	sub := bus.Subscribe()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-sub:
				if !ok {
					return nil
				}
				logEvent(logger, ev)
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		return ctl.Close()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("stopping controller: %w", err)
	}
	logger.Info("controller stopped")
	return nil
}

func logEvent(logger *logging.Logger, ev events.Event) {
	switch e := ev.(type) {
	case events.BaseConfigUpdated:
		logger.Info("base config updated", "path", e.Path)
	case events.OnDemandAccepted:
		logger.Info("on-demand config accepted",
			"kind", e.Kind, "source", e.Source, "session_id", e.SessionID)
	case events.OnDemandDropped:
		logger.Info("on-demand config dropped",
			"kind", e.Kind, "source", e.Source, "reason", e.Reason)
	case events.VerboseOverride:
		logger.Info("verbose override applied", "level", e.Level)
	case events.VerboseReset:
		logger.Info("verbose override reverted", "level", e.Level)
	default:
		logger.Info("config event", "type", ev.EventType())
	}
}
