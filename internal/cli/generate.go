package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	generateOptions     []string
	generateOptionsFile string
	generateDetach      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <artifact-type> <request-text>",
	Short: "Submit a generation job",
	Long: `Submit a generation job for an artifact type and follow it to completion.

Each completed job appends a new version to the artifact's history; the
newest version becomes current. Use --detach to return immediately after
submission and check on the job later with 'genvault jobs'.

Examples:
  genvault generate meeting_summary "summarize the Q3 planning meeting"
  genvault generate flow_diagram "login flow" -o style=sequence
  genvault generate action_items "notes from standup" --options-file opts.yaml
  genvault generate decision_log "today's decisions" --detach`,
	Args: cobra.ExactArgs(2),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringSliceVarP(&generateOptions, "option", "o", nil, "generation option as key=value (repeatable)")
	generateCmd.Flags().StringVar(&generateOptionsFile, "options-file", "", "YAML file with generation options")
	generateCmd.Flags().BoolVarP(&generateDetach, "detach", "d", false, "submit and return without waiting")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	artifactType, requestText := args[0], args[1]

	options, err := collectOptions()
	if err != nil {
		return err
	}

	jobID, err := apiClient.Generate(ctx, artifactType, requestText, options)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	fmt.Printf("Job %s queued for artifact %q\n", jobID, artifactType)

	if generateDetach {
		fmt.Printf("Check progress with: genvault jobs %s\n", jobID)
		return nil
	}

	return RunJobProgress(apiClient, jobID)
}

// collectOptions merges --options-file values with --option overrides.
// Flag values win over file values.
func collectOptions() (map[string]any, error) {
	options := map[string]any{}

	if generateOptionsFile != "" {
		raw, err := os.ReadFile(generateOptionsFile)
		if err != nil {
			return nil, fmt.Errorf("read options file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &options); err != nil {
			return nil, fmt.Errorf("parse options file: %w", err)
		}
	}

	for _, opt := range generateOptions {
		key, value, ok := strings.Cut(opt, "=")
		if !ok {
			return nil, fmt.Errorf("invalid option %q, expected key=value", opt)
		}
		options[key] = value
	}

	if len(options) == 0 {
		return nil, nil
	}
	return options, nil
}
