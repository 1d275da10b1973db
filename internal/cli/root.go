// Package cli provides the command-line interface for genvault.
package cli

import (
	"github.com/raphaelgruber/genvault-go/internal/client"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// API client shared by all server-backed commands
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "genvault",
	Short: "Versioned artifact generation pipeline",
	Long: `Genvault turns free-form requests into generated artifacts and keeps
every run as an immutable, numbered version.

Submit a generation job, poll or watch it to completion, and browse the
full version history of every artifact the server has produced.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Version and help never need a server
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		apiClient = client.New(serverURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server URL (default GENVAULT_SERVER_URL or http://localhost:8585)")
}
