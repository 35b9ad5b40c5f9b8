package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
)

// defaultMinimizeAssets matches the server's default QUBO_MAX_ASSETS.
const defaultMinimizeAssets = 25

func evaluateCmd(a *app) *cobra.Command {
	var (
		file string
		top  int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score every selection and print the ranked table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := LoadProblem(file)
			if err != nil {
				return err
			}
			params := p.Params(a.log)

			table, err := a.evaluator(defaultMinimizeAssets).EvaluateAll(p.Mu, p.Sigma, params)
			if err != nil {
				return err
			}

			names := p.AssetNames()
			printParams(a.out, params, len(p.Mu))
			printBest(a.out, names, table[0])
			fmt.Fprintln(a.out)

			if top > 0 && top < len(table) {
				table = table[:top]
			}
			return printTable(a.out, names, table)
		},
	}

	addProblemFlag(cmd.Flags(), &file)
	cmd.Flags().IntVar(&top, "top", 0, "rows to print (0 = all)")
	return cmd
}

func minimizeCmd(a *app) *cobra.Command {
	var (
		file      string
		maxAssets int
	)

	cmd := &cobra.Command{
		Use:   "minimize",
		Short: "Find the best selection without keeping the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := LoadProblem(file)
			if err != nil {
				return err
			}
			params := p.Params(a.log)

			started := time.Now()
			best, err := a.evaluator(maxAssets).Minimize(p.Mu, p.Sigma, params)
			if err != nil {
				return err
			}

			printParams(a.out, params, len(p.Mu))
			printBest(a.out, p.AssetNames(), best)
			a.log.Info().Dur("elapsed", time.Since(started)).Msg("Minimize completed")
			return nil
		},
	}

	addProblemFlag(cmd.Flags(), &file)
	cmd.Flags().IntVar(&maxAssets, "max-assets", defaultMinimizeAssets, "largest universe to accept")
	return cmd
}

func formulateCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "formulate",
		Short: "Print the QUBO matrix Q and offset such that objective(x) = xᵀQx + offset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := LoadProblem(file)
			if err != nil {
				return err
			}
			params := p.Params(a.log)

			f, err := qubo.Formulate(p.Mu, p.Sigma, params)
			if err != nil {
				return err
			}

			printParams(a.out, params, len(p.Mu))
			fmt.Fprintf(a.out, "offset=%g sufficient_penalty_scale=%g\n\n",
				f.Offset, qubo.SufficientPenaltyScale(p.Mu, p.Sigma, params.RiskFactor))
			return printMatrix(a.out, p.AssetNames(), f.Quadratic)
		},
	}

	addProblemFlag(cmd.Flags(), &file)
	return cmd
}

func generateCmd(a *app) *cobra.Command {
	var (
		assets     []string
		seed       int64
		start, end string
		riskFactor float64
		budget     int
		output     string
		opts       marketdata.EstimatorOptions
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a problem file estimated from synthetic prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := time.Parse(marketdata.DateLayout, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			to, err := time.Parse(marketdata.DateLayout, end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			series, err := marketdata.NewRandomProvider(seed).Load(cmd.Context(), assets, from, to)
			if err != nil {
				return err
			}
			est, err := marketdata.EstimateFromSeries(series, opts)
			if err != nil {
				return err
			}

			if budget < 0 {
				budget = len(assets) / 2
			}
			p := &Problem{
				Assets:     est.Assets,
				Mu:         est.Mu,
				Sigma:      est.Sigma,
				RiskFactor: riskFactor,
				Budget:     budget,
			}

			if output == "" || output == "-" {
				return WriteProblem(a.out, p)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := WriteProblem(f, p); err != nil {
				_ = f.Close()
				return err
			}
			a.log.Info().Str("file", output).Int("observations", est.Observations).Msg("Problem written")
			return f.Close()
		},
	}

	cmd.Flags().StringSliceVar(&assets, "assets", nil, "asset identifiers (comma-separated)")
	cmd.Flags().Int64Var(&seed, "seed", 123, "random walk seed")
	cmd.Flags().StringVar(&start, "start", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&riskFactor, "risk-factor", 0.5, "risk aversion q")
	cmd.Flags().IntVar(&budget, "budget", -1, "assets to select (-1 = half the universe)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.Method, "method", marketdata.MethodMean, "expected-return estimator (mean, ema)")
	cmd.Flags().IntVar(&opts.EMAPeriod, "ema-period", 0, "EMA period for --method ema")
	cmd.Flags().BoolVar(&opts.Shrinkage, "shrinkage", false, "apply Ledoit-Wolf covariance shrinkage")
	_ = cmd.MarkFlagRequired("assets")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
