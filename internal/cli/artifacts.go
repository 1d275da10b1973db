package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/genvault-go/internal/client"
	"github.com/spf13/cobra"
)

var (
	artifactVersion int
	artifactHistory bool
	artifactContent bool
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts [artifact-id]",
	Short: "List artifacts or show an artifact's versions",
	Long: `List all stored artifacts, or show one artifact.

Without flags the current version is shown. Use --history for the full
version chain and --version to address an older version; old versions
stay readable forever.

Examples:
  genvault artifacts
  genvault artifacts meeting_summary
  genvault artifacts meeting_summary --history
  genvault artifacts meeting_summary --version 2
  genvault artifacts meeting_summary --content`,
	Args: cobra.MaximumNArgs(1),
	RunE: runArtifacts,
}

func init() {
	artifactsCmd.Flags().IntVar(&artifactVersion, "version", 0, "show a specific version instead of the current one")
	artifactsCmd.Flags().BoolVar(&artifactHistory, "history", false, "show the full version history")
	artifactsCmd.Flags().BoolVarP(&artifactContent, "content", "c", false, "print only the raw content")

	rootCmd.AddCommand(artifactsCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 0 {
		return listArtifacts(ctx)
	}

	artifactID := args[0]
	if artifactHistory {
		return showHistory(ctx, artifactID)
	}
	return showArtifact(ctx, artifactID)
}

func listArtifacts(ctx context.Context) error {
	ids, err := apiClient.ListArtifacts(ctx)
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}

	if len(ids) == 0 {
		fmt.Println("No artifacts found.")
		return nil
	}

	fmt.Printf("Artifacts (%d):\n\n", len(ids))
	for _, id := range ids {
		fmt.Printf("- %s\n", id)
	}
	return nil
}

func showArtifact(ctx context.Context, artifactID string) error {
	var v *client.ArtifactVersion
	var err error
	if artifactVersion > 0 {
		v, err = apiClient.GetArtifactVersion(ctx, artifactID, artifactVersion)
	} else {
		v, err = apiClient.GetArtifact(ctx, artifactID)
	}
	if err != nil {
		return fmt.Errorf("get artifact: %w", err)
	}

	if artifactContent {
		fmt.Println(v.Content)
		return nil
	}

	currentMark := ""
	if v.IsCurrent {
		currentMark = " (current)"
	}
	fmt.Printf("Artifact: %s\n", v.ArtifactID)
	fmt.Printf("  Version: %d%s\n", v.Version, currentMark)
	fmt.Printf("  Created: %s\n", v.CreatedAt.Format(time.RFC3339))
	if verbose && len(v.Metadata) > 0 {
		fmt.Printf("  Metadata: %v\n", v.Metadata)
	}
	fmt.Printf("\n%s\n", v.Content)
	return nil
}

func showHistory(ctx context.Context, artifactID string) error {
	history, err := apiClient.ListArtifactVersions(ctx, artifactID)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}

	fmt.Printf("Artifact %s (%d versions):\n\n", history.ArtifactID, len(history.Versions))
	for _, v := range history.Versions {
		currentMark := ""
		if v.IsCurrent {
			currentMark = " *current"
		}
		fmt.Printf("  v%-4d %s%s\n", v.Version, v.CreatedAt.Format(time.RFC3339), currentMark)
		if verbose {
			if migrated, ok := v.Metadata["migrated_from"]; ok {
				fmt.Printf("        migrated from %v\n", migrated)
			}
			if jobID, ok := v.Metadata["job_id"]; ok {
				fmt.Printf("        produced by job %v\n", jobID)
			}
		}
	}
	return nil
}
