package main

import (
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"digital-twin-search/internal/queue"
)

var enqueueClient *asynq.Client

type enqueueOutput struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id,omitempty"`
	// Duplicate is set when an identical task is already pending.
	Duplicate bool `json:"duplicate,omitempty"`
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Hand work to the search worker through Redis",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		opt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			return err
		}
		enqueueClient = asynq.NewClient(opt)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if enqueueClient != nil {
			enqueueClient.Close()
		}
	},
}

var enqueueIndexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Queue chapter extractions for indexing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slices, err := readExtractionFiles(args)
		if err != nil {
			return err
		}
		task, err := queue.NewIndexChapterTask(queue.IndexChapterPayload{Slices: slices})
		if err != nil {
			return err
		}
		return submit(cmd, task)
	},
}

var enqueueDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Queue deletion of a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := queue.NewDeleteDocumentTask(tenantID, fileName)
		if err != nil {
			return err
		}
		return submit(cmd, task)
	},
}

var enqueueReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Queue an index schema reconciliation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(cmd, queue.NewReconcileIndexTask())
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
	enqueueCmd.AddCommand(enqueueIndexCmd, enqueueDeleteCmd, enqueueReconcileCmd)

	enqueueDeleteCmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "Tenant (digital twin) id")
	enqueueDeleteCmd.Flags().StringVarP(&fileName, "file", "f", "", "File name to delete")
	enqueueDeleteCmd.MarkFlagRequired("tenant")
	enqueueDeleteCmd.MarkFlagRequired("file")
}

func submit(cmd *cobra.Command, task *asynq.Task) error {
	id, err := queue.Enqueue(cmd.Context(), enqueueClient, task)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), enqueueOutput{Type: task.Type(), TaskID: id, Duplicate: id == ""})
}
