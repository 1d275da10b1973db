package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/genvault-go/internal/client"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [job-id]",
	Short: "Stream live job events from the server",
	Long: `Stream job lifecycle events over a websocket as they happen.

Without arguments every job event on the server is shown; with a job ID
only that job's channel is followed and the stream ends when the job
reaches a terminal state. Only events published while watching are
shown; there is no replay of earlier events.

Examples:
  genvault watch           # follow all jobs until interrupted
  genvault watch abc123    # follow one job to completion`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(args) == 1 {
		return apiClient.WatchJob(ctx, args[0], printEvent)
	}

	err := apiClient.Subscribe(ctx, "", printEvent)
	if ctx.Err() != nil {
		// Interrupted by the user, not a failure
		return nil
	}
	return err
}

func printEvent(event client.Event) error {
	ts := event.Timestamp.Local().Format("15:04:05")
	switch event.Type {
	case "connection.established":
		fmt.Printf("%s connected\n", ts)
	case "job.completed":
		fmt.Printf("%s %-10s job %s -> %s v%d\n", ts, event.Type, event.JobID, event.ArtifactID, event.Version)
	case "job.failed":
		fmt.Printf("%s %-10s job %s: %s\n", ts, event.Type, event.JobID, event.Error)
	default:
		fmt.Printf("%s %-10s job %s\n", ts, event.Type, event.JobID)
	}
	return nil
}
