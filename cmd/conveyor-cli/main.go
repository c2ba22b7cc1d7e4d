// Conveyor CLI — операторский инструмент командной строки.
//
// Использование:
//
//	conveyor [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	ratelimit  Лимиты одновременных запусков организаций
//	history    История обработки файлов
//	run        Просмотр runs
//
// CLI работает напрямую с Postgres (DB_URL) и Redis (REDIS_URL).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor CLI — document workflow operations tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	depsFn := func() (*cli.Deps, error) { return cli.Connect(context.Background()) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRateLimitCmd(depsFn, outputFn),
		cli.NewHistoryCmd(depsFn, outputFn),
		cli.NewRunCmd(depsFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
