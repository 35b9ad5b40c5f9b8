// Package qubo provides the exact brute-force solver for cardinality-constrained
// mean-variance asset selection expressed as a binary quadratic program.
//
// For a selection vector x in {0,1}^n the penalized objective is
//
//	objective(x) = q·xᵀΣx − μᵀx + P·(1ᵀx − B)²
//
// where q is the risk factor, B the budget (number of assets to hold) and P the
// penalty scale folding the budget equality into the minimization. Every one of the
// 2^n candidates is scored, so the solver is a reference for small universes only.
package qubo

// Params holds the scalar problem parameters.
type Params struct {
	RiskFactor   float64 `json:"risk_factor" yaml:"risk_factor"`
	Budget       int     `json:"budget" yaml:"budget"`
	PenaltyScale float64 `json:"penalty_scale" yaml:"penalty_scale"`
}

// Selection is a binary vector; Selection[i] == 1 means asset i is held.
type Selection []int

// Count returns the number of selected assets (1ᵀx).
func (s Selection) Count() int {
	count := 0
	for _, v := range s {
		if v == 1 {
			count++
		}
	}
	return count
}

// ScoredSelection is one row of the ranked score table.
type ScoredSelection struct {
	// Index is the integer encoding k of the selection: bit i of k is Selection[i].
	Index     int       `json:"index" msgpack:"index"`
	Selection Selection `json:"selection" msgpack:"selection"`
	Objective float64   `json:"objective" msgpack:"objective"`
	// Rank is the 1-based position after ordering by objective, then by Index.
	Rank     int  `json:"rank" msgpack:"rank"`
	Count    int  `json:"count" msgpack:"count"`
	Feasible bool `json:"feasible" msgpack:"feasible"`
}

// Formulation is the objective rewritten as xᵀQx + Offset, valid for binary x.
// It is the form handed to external annealing or variational solvers.
type Formulation struct {
	Quadratic [][]float64 `json:"quadratic"`
	Offset    float64     `json:"offset"`
}

// Evaluate scores a binary selection against the formulation.
func (f *Formulation) Evaluate(x Selection) float64 {
	value := f.Offset
	for i := range f.Quadratic {
		if x[i] == 0 {
			continue
		}
		for j := range f.Quadratic[i] {
			if x[j] == 1 {
				value += f.Quadratic[i][j]
			}
		}
	}
	return value
}

// ProgressFunc receives the number of candidates scored so far and the total.
type ProgressFunc func(done, total int)
