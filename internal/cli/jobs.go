package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect generation jobs",
	Long: `List all generation jobs or inspect a specific job by ID.

Examples:
  genvault jobs           # List all jobs
  genvault jobs abc123    # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// If job ID provided, show that specific job
	if len(args) == 1 {
		return showJob(ctx, args[0])
	}

	// List all jobs
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	jobs, err := apiClient.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-10s %-18s %-12s %-10s %s\n", "ID", "ARTIFACT TYPE", "STATUS", "VERSION", "CREATED")
	fmt.Println("------------------------------------------------------------------------")

	for _, job := range jobs {
		version := ""
		if job.ResultVersion > 0 {
			version = fmt.Sprintf("v%d", job.ResultVersion)
		}
		created := job.CreatedAt.Local().Format("15:04:05")
		fmt.Printf("%-10s %-18s %-12s %-10s %s\n", job.JobID, job.ArtifactType, job.Status, version, created)
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := apiClient.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	fmt.Printf("Job: %s\n", job.JobID)
	fmt.Printf("  Artifact type: %s\n", job.ArtifactType)
	fmt.Printf("  Status: %s\n", job.Status)
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Updated: %s\n", job.UpdatedAt.Format(time.RFC3339))
	if job.Terminal() {
		fmt.Printf("  Duration: %s\n", job.UpdatedAt.Sub(job.CreatedAt).Round(time.Millisecond))
	}
	if verbose {
		fmt.Printf("  Request: %s\n", job.RequestText)
		if len(job.Options) > 0 {
			fmt.Printf("  Options: %v\n", job.Options)
		}
	}

	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}

	if job.ResultArtifactID != "" {
		fmt.Println("\nResult:")
		fmt.Printf("  Artifact: %s\n", job.ResultArtifactID)
		fmt.Printf("  Version: %d\n", job.ResultVersion)
		fmt.Printf("\nFetch it with: genvault artifacts %s\n", job.ResultArtifactID)
	}

	return nil
}
