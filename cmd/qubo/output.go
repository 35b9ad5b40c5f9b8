package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// selected lists the names of the held assets.
func selected(names []string, x qubo.Selection) string {
	var held []string
	for i, v := range x {
		if v == 1 {
			held = append(held, names[i])
		}
	}
	if len(held) == 0 {
		return "-"
	}
	return strings.Join(held, ",")
}

func bits(x qubo.Selection) string {
	var b strings.Builder
	for _, v := range x {
		fmt.Fprint(&b, v)
	}
	return b.String()
}

func printParams(w io.Writer, params qubo.Params, n int) {
	fmt.Fprintf(w, "assets=%d candidates=%d risk_factor=%g budget=%d penalty_scale=%g\n",
		n, 1<<uint(n), params.RiskFactor, params.Budget, params.PenaltyScale)
}

func printBest(w io.Writer, names []string, best qubo.ScoredSelection) {
	fmt.Fprintf(w, "best: index=%d selection=%s objective=%.6f selected=%s",
		best.Index, bits(best.Selection), best.Objective, selected(names, best.Selection))
	if !best.Feasible {
		fmt.Fprint(w, " (INFEASIBLE: budget not met, raise penalty_scale)")
	}
	fmt.Fprintln(w)
}

func printTable(w io.Writer, names []string, table []qubo.ScoredSelection) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "RANK\tINDEX\tSELECTION\tOBJECTIVE\tCOUNT\tFEASIBLE\tASSETS")
	for _, row := range table {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.6f\t%d\t%t\t%s\n",
			row.Rank, row.Index, bits(row.Selection), row.Objective, row.Count, row.Feasible, selected(names, row.Selection))
	}
	return tw.Flush()
}

func printMatrix(w io.Writer, names []string, m [][]float64) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "\t%s\n", strings.Join(names, "\t"))
	for i, row := range m {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%.6f", v)
		}
		fmt.Fprintf(tw, "%s\t%s\n", names[i], strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
