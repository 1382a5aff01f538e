package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/archivecast/podgen/internal/infrastructure/storage"
	"github.com/archivecast/podgen/internal/workflow"
)

// newWorkflowCommand groups read-only workflow inspection subcommands.
func newWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect workflows in the catalog store",
	}
	cmd.AddCommand(newWorkflowShowCommand())
	return cmd
}

// newWorkflowShowCommand resolves a workflow and its referenced speeches and
// prints the result as JSON. GetWorkflow only touches the store, so the
// orchestrator/tts/feed dependencies workflow.New otherwise requires are left
// nil.
func newWorkflowShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a workflow and its resolved speeches as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			dsn := strings.TrimSuffix(cfg.Storage.Root, "/") + "/archive.db"

			store, err := storage.Open(cmd.Context(), dsn)
			if err != nil {
				return fmt.Errorf("open catalog store: %w", err)
			}
			defer store.Close()

			engine := workflow.New(store, nil, nil, nil, cfg.Storage.Root)
			wf, err := engine.GetWorkflow(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get workflow: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(wf)
		},
	}
}
