package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewHistoryCmd создаёт группу команд для управления историей обработки.
func NewHistoryCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage file processing history",
	}

	cmd.AddCommand(
		newHistoryClearCmd(depsFn, outputFn),
		newHistoryIntervalCmd(depsFn, outputFn),
	)

	return cmd
}

func newHistoryClearCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "clear WORKFLOW_ID",
		Short: "Delete all processing history for a workflow",
		Long: `Delete all file processing history for a workflow.

After clearing, every file of the workflow will be processed again
on the next run regardless of previous results.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid workflow id %q: %w", args[0], err)
			}

			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			deleted, err := deps.History.ClearForWorkflow(cmd.Context(), workflowID)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Deleted %d history entries for workflow %s", deleted, workflowID))
			return nil
		},
	}
}

func newHistoryIntervalCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	var noExpiry bool

	cmd := &cobra.Command{
		Use:   "interval WORKFLOW_ID [DAYS]",
		Short: "Set the reprocessing interval for workflow history",
		Long: `Set the reprocessing interval (in days) on all history entries
of a workflow. Entries older than the interval stop suppressing
reprocessing. With --no-expiry entries never expire.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid workflow id %q: %w", args[0], err)
			}

			var intervalDays *int
			switch {
			case noExpiry:
				// nil — записи не истекают
			case len(args) == 2:
				days, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid interval %q: expected an integer", args[1])
				}
				intervalDays = &days
			default:
				return fmt.Errorf("either DAYS or --no-expiry is required")
			}

			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			updated, err := deps.History.SyncInterval(cmd.Context(), workflowID, intervalDays)
			if err != nil {
				return err
			}

			if intervalDays != nil {
				out.Success(fmt.Sprintf("Set %d-day reprocessing interval on %d entries", *intervalDays, updated))
			} else {
				out.Success(fmt.Sprintf("Disabled expiry on %d entries", updated))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noExpiry, "no-expiry", false, "Entries never expire")

	return cmd
}
