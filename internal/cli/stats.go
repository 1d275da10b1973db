package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Long: `Show in-memory server statistics: job counters and operation timings.
Statistics reset when the server restarts.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	stats, err := apiClient.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Println("Server statistics:")
	if uptime, ok := stats["uptime_seconds"].(float64); ok {
		fmt.Printf("  Uptime: %.0fs\n", uptime)
	}
	for _, key := range []string{"jobs_submitted", "jobs_completed", "jobs_failed"} {
		if v, ok := stats[key].(float64); ok {
			fmt.Printf("  %-16s %d\n", key+":", int64(v))
		}
	}

	// Operation timing blocks come back as nested objects
	var ops []string
	for key, v := range stats {
		if _, ok := v.(map[string]any); ok {
			ops = append(ops, key)
		}
	}
	sort.Strings(ops)

	for _, op := range ops {
		timing := stats[op].(map[string]any)
		fmt.Printf("\n  %s:\n", op)
		for _, field := range []string{"count", "avg_time_ms", "min_time_ms", "max_time_ms"} {
			if v, ok := timing[field].(float64); ok {
				fmt.Printf("    %-12s %.0f\n", field+":", v)
			}
		}
	}

	return nil
}
