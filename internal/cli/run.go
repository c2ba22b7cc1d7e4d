package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/domain"
)

// NewRunCmd создаёт группу команд для просмотра runs.
func NewRunCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect workflow runs",
	}

	cmd.AddCommand(
		newRunListCmd(depsFn, outputFn),
		newRunShowCmd(depsFn, outputFn),
	)

	return cmd
}

func newRunListCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			runs, err := deps.Executions.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "WORKFLOW_ID", "STATUS", "MODE", "FILES", "CREATED"}
			rows := make([][]string, len(runs))
			for i, e := range runs {
				rows[i] = []string{
					e.ID.String(),
					e.WorkflowID.String(),
					string(e.Status),
					string(e.Mode),
					fmt.Sprintf("%d/%d", e.ProcessedFiles, e.TotalFiles),
					e.CreatedAt.Format(time.RFC3339),
				}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of results")

	return cmd
}

func newRunShowCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show EXECUTION_ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid execution id %q: %w", args[0], err)
			}

			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			e, err := deps.Executions.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			out.Details(runFields(e), e)
			return nil
		},
	}
}

// runFields собирает пары поле/значение для вывода run.
func runFields(e *domain.Execution) [][2]string {
	fields := [][2]string{
		{"ID", e.ID.String()},
		{"WORKFLOW_ID", e.WorkflowID.String()},
		{"ORGANIZATION", e.OrganizationID},
		{"STATUS", string(e.Status)},
		{"MODE", string(e.Mode)},
		{"METHOD", string(e.Method)},
		{"FILES", fmt.Sprintf("%d/%d", e.ProcessedFiles, e.TotalFiles)},
		{"ATTEMPTS", fmt.Sprintf("%d", e.Attempts)},
		{"CREATED", e.CreatedAt.Format(time.RFC3339)},
	}

	if e.PipelineID != nil {
		fields = append(fields, [2]string{"PIPELINE_ID", e.PipelineID.String()})
	}
	if e.StartedAt != nil {
		fields = append(fields, [2]string{"STARTED", e.StartedAt.Format(time.RFC3339)})
	}
	if e.FinishedAt != nil {
		fields = append(fields, [2]string{"FINISHED", e.FinishedAt.Format(time.RFC3339)})
	}
	if e.ErrorMessage != "" {
		fields = append(fields, [2]string{"ERROR", e.ErrorMessage})
	}

	return fields
}
