package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/genvault-go/internal/config"
	"github.com/raphaelgruber/genvault-go/internal/store"
	"github.com/spf13/cobra"
)

var migrateDataDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Fold legacy timestamped artifact files into version histories",
	Long: `Scan the artifact data directory for legacy timestamp-suffixed files
(for example report_20240101_093000.json) and fold each group into a
single versioned history, ordered by creation time. Running it again is
safe; already-migrated artifacts are left untouched.

This operates directly on the data directory, not through the server.
Run it while the server is stopped, or let the server do it at startup
with GENVAULT_MIGRATE_ON_START=true.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDataDir, "data-dir", "", "artifact data directory (default GENVAULT_DATA_DIR or ./data/artifacts)")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dataDir := migrateDataDir
	if dataDir == "" {
		dataDir = config.Load().DataDir
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	s, err := store.Open(dataDir, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	result, err := s.Reconcile()
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	fmt.Printf("Migrated %d artifact group(s) from %d legacy file(s)\n", result.GroupsMigrated, result.FilesConsumed)
	for _, skipped := range result.GroupsSkipped {
		fmt.Printf("Skipped %s: a version history already exists\n", skipped)
	}
	if result.GroupsMigrated == 0 && len(result.GroupsSkipped) == 0 {
		fmt.Println("No legacy files found.")
	}
	return nil
}
