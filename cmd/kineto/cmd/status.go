package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ramcherukuri/kineto/internal/diagnostics"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show host, GPU and daemon status",
	Long: `Print a host resource snapshot and detected GPUs. With --daemon-url the
daemon's health endpoint is queried as well.`,
	RunE: runStatus,
}

var (
	statusDaemonURL string
	statusJSON      bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusDaemonURL, "daemon-url", "",
		"daemon base URL to query for health")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit machine-readable JSON")
}

type statusReport struct {
	Host   diagnostics.HostSnapshot `json:"host"`
	GPUs   []diagnostics.GPUDevice  `json:"gpus"`
	Daemon json.RawMessage          `json:"daemon,omitempty"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report := statusReport{
		Host: diagnostics.CollectHost(ctx),
		GPUs: diagnostics.GPUs(),
	}

	if statusDaemonURL != "" {
		health, err := fetchDaemonHealth(ctx, statusDaemonURL)
		if err != nil {
			return fmt.Errorf("querying daemon health: %w", err)
		}
		report.Daemon = health
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Host\n")
	fmt.Printf("  cpu:    %.1f%% of %d cores\n", report.Host.CPUPercent, report.Host.CPUCount)
	fmt.Printf("  memory: %.0f/%.0f MB (%.1f%%)\n",
		report.Host.MemUsedMB, report.Host.MemTotalMB, report.Host.MemPercent)
	fmt.Printf("  load:   %.2f %.2f %.2f\n",
		report.Host.LoadAvg1, report.Host.LoadAvg5, report.Host.LoadAvg15)

	fmt.Printf("GPUs\n")
	if len(report.GPUs) == 0 {
		fmt.Println("  none detected")
	}
	for _, gpu := range report.GPUs {
		fmt.Printf("  [%d] %s (%s)\n", gpu.Index, gpu.Name, gpu.Vendor)
	}

	if report.Daemon != nil {
		fmt.Printf("Daemon\n  %s\n", report.Daemon)
	}
	return nil
}

func fetchDaemonHealth(ctx context.Context, baseURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/healthz", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}
