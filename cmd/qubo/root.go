package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/aristath/portfolio-qubo/pkg/logger"
)

// app carries state shared by all subcommands.
type app struct {
	out      io.Writer
	errOut   io.Writer
	logLevel string
	workers  int
	log      zerolog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "qubo",
		Short: "Exact brute-force QUBO portfolio selection",
		Long: `Score every binary selection of a small asset universe against the
penalized mean-variance objective and report the best one.

Examples:
  qubo generate --assets AAPL,MSFT,XOM --start 2024-01-01 --end 2024-12-31 -o problem.yaml
  qubo evaluate -f problem.yaml --top 10
  qubo minimize -f problem.yaml
  qubo formulate -f problem.yaml`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = logger.New(logger.Config{Level: a.logLevel, Pretty: true, Output: a.errOut})
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().IntVar(&a.workers, "workers", 0, "evaluator goroutines (0 = number of CPUs)")

	root.AddCommand(evaluateCmd(a))
	root.AddCommand(minimizeCmd(a))
	root.AddCommand(formulateCmd(a))
	root.AddCommand(generateCmd(a))

	return root
}

// evaluator builds an evaluator honouring --workers.
// The evaluator itself caps table output at qubo.DefaultMaxAssets.
func (a *app) evaluator(maxAssets int) *qubo.Evaluator {
	return qubo.NewEvaluator(qubo.Options{Workers: a.workers, MaxAssets: maxAssets}, a.log)
}

// addProblemFlag registers the -f/--file flag shared by the solving commands.
func addProblemFlag(fs *pflag.FlagSet, target *string) {
	fs.StringVarP(target, "file", "f", "", "problem file (YAML)")
}
