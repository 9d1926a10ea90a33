package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ramcherukuri/kineto/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sample profiling daemon",
	Long: `Serve the daemon HTTP API: queued on-demand configs for polling
processes, per-device GPU context counts, and a health endpoint.`,
	RunE: runDaemon,
}

var (
	daemonHost   string
	daemonPort   int
	daemonDBPath string
	daemonCORS   []string
)

func init() {
	rootCmd.AddCommand(daemonCmd)

	defaults := daemon.DefaultServerConfig()
	daemonCmd.Flags().StringVar(&daemonHost, "host", defaults.Host, "listen host")
	daemonCmd.Flags().IntVar(&daemonPort, "port", defaults.Port, "listen port")
	daemonCmd.Flags().StringVar(&daemonDBPath, "db", "kineto-daemon.db",
		"sqlite database for queued configs and context counts")
	daemonCmd.Flags().StringSliceVar(&daemonCORS, "cors-origin", nil,
		"allowed CORS origins (empty disables CORS)")
}

func runDaemon(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	store, err := daemon.NewStore(daemonDBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = store.Close() }()

	cfg := daemon.DefaultServerConfig()
	cfg.Host = daemonHost
	cfg.Port = daemonPort
	if len(daemonCORS) > 0 {
		cfg.EnableCORS = true
		cfg.CORSOrigins = daemonCORS
	}

	srv := daemon.NewServer(cfg, store, logger)
	logger.Info("daemon starting", "host", cfg.Host, "port", cfg.Port, "db", daemonDBPath)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	logger.Info("daemon stopped")
	return nil
}
