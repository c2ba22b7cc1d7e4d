package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRateLimitCmd создаёт группу команд для управления лимитами организаций.
func NewRateLimitCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage organization concurrency limits",
	}

	cmd.AddCommand(
		newRateLimitShowCmd(depsFn, outputFn),
		newRateLimitSetCmd(depsFn, outputFn),
	)

	return cmd
}

func newRateLimitShowCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ORGANIZATION_ID",
		Short: "Show current usage and limit for an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			lim, err := deps.requireLimiter()
			if err != nil {
				return err
			}

			usage, err := lim.GetCurrentUsage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Details([][2]string{
				{"ORGANIZATION", args[0]},
				{"IN_FLIGHT", strconv.Itoa(usage.Count)},
				{"LIMIT", strconv.Itoa(usage.Limit)},
			}, usage)
			return nil
		},
	}
}

func newRateLimitSetCmd(depsFn func() (*Deps, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "set ORGANIZATION_ID LIMIT",
		Short: "Set the concurrency limit for an organization",
		Long: `Set the maximum number of concurrent runs for an organization.

The limit must be positive. Runs already in flight are not affected:
the new limit applies to admission of new runs only.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid limit %q: expected an integer", args[1])
			}

			deps, err := depsFn()
			if err != nil {
				return err
			}
			defer deps.Close()
			out := outputFn()

			lim, err := deps.requireLimiter()
			if err != nil {
				return err
			}

			if err := lim.SetLimit(cmd.Context(), args[0], limit); err != nil {
				return err
			}

			usage, err := lim.GetCurrentUsage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Limit for %s set to %d", args[0], limit))
			out.Details([][2]string{
				{"ORGANIZATION", args[0]},
				{"IN_FLIGHT", strconv.Itoa(usage.Count)},
				{"LIMIT", strconv.Itoa(usage.Limit)},
			}, usage)
			return nil
		},
	}
}
