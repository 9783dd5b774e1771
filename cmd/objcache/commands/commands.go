// Package commands implements the objcache CLI subcommands. These are thin
// glue over the exported client interfaces; fatal configuration and
// connection errors surface as hard failures with a non-zero exit status.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/objcache/objcache/cache"
	"github.com/objcache/objcache/config"
	"github.com/objcache/objcache/connection"
	"github.com/objcache/objcache/logging/logger"
	"github.com/objcache/objcache/metrics"
	"github.com/objcache/objcache/version"
)

func connect(ctx context.Context, configFile string) (*connection.Connection, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	conn, err := connection.Connect(ctx, cfg, logger.StandardLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return conn, nil
}

// NewStatusCommand reports the backend store's current metrics.
func NewStatusCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend store metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), configFile)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Client().Close() }()

			sm, err := metrics.MeasureStore(cmd.Context(), conn)
			if err != nil {
				return err
			}

			fmt.Printf("Hit ratio:     %.2f%% (%d hits, %d misses)\n", sm.HitRatio, sm.Hits, sm.Misses)
			fmt.Printf("Ops/sec:       %d\n", sm.OpsPerSec)
			fmt.Printf("Evictions:     %d\n", sm.Evictions)
			fmt.Printf("Memory:        %d bytes (rss %d, fragmentation %.2f)\n",
				sm.UsedMemory, sm.UsedMemoryRSS, sm.MemoryFragmentation)
			if sm.MaxMemory > 0 {
				fmt.Printf("Memory ratio:  %.2f%% of %d bytes\n", sm.MemoryRatio, sm.MaxMemory)
			}
			fmt.Printf("Clients:       %d connected, %d tracking, %d rejected\n",
				sm.ConnectedClients, sm.TrackingClients, sm.RejectedConnections)
			fmt.Printf("Keys:          %d\n", sm.Keys)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	return cmd
}

// NewMeasurementsCommand lists recorded measurements in a score range.
func NewMeasurementsCommand() *cobra.Command {
	var configFile string
	var min, max, path string
	var count int

	cmd := &cobra.Command{
		Use:   "measurements",
		Short: "List recorded measurements, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), configFile)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Client().Close() }()

			storage := metrics.NewStorage(conn, cache.New(0), logger.StandardLogger())
			var results metrics.Measurements
			if count > 0 {
				results = storage.Query(cmd.Context(), min, max, 0, count)
			} else {
				results = storage.Query(cmd.Context(), min, max)
			}

			for _, m := range results {
				line := fmt.Sprintf("%s  %s  host=%s", m.FormatRFC3339(), m.ID, m.Host)
				if v, ok := m.Get(path); ok {
					line += fmt.Sprintf("  %s=%.2f", path, v)
				}
				fmt.Println(line)
			}
			fmt.Printf("%d measurements\n", results.Count())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	cmd.Flags().StringVar(&min, "min", "-inf", "minimum timestamp score")
	cmd.Flags().StringVar(&max, "max", "+inf", "maximum timestamp score")
	cmd.Flags().StringVar(&path, "path", "runtime->cache_ms", "metric path to display")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "limit the number of results")
	return cmd
}

// NewFlushCommand empties the active database.
func NewFlushCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Flush the active database",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), configFile)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Client().Close() }()

			if err := conn.Flush(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	return cmd
}

// NewVersionCommand prints version information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetVersionInfo()
			fmt.Println("Version:", info.Version)
			fmt.Println("Go:", info.GoVersion)
		},
	}
}
