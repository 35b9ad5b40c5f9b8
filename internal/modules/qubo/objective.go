package qubo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// symmetryTolerance is the relative tolerance for sigma[i][j] == sigma[j][i].
const symmetryTolerance = 1e-12

// problem is a validated instance ready for scoring.
type problem struct {
	n      int
	mu     *mat.VecDense
	sigma  *mat.SymDense
	params Params
}

// newProblem validates the inputs and converts them to gonum types.
// All checks run before any candidate is scored.
func newProblem(mu []float64, sigma [][]float64, params Params) (*problem, error) {
	n := len(mu)
	if n == 0 {
		return nil, &DimensionError{Field: "mu", Got: 0, Want: 1}
	}
	if len(sigma) != n {
		return nil, &DimensionError{Field: "sigma", Got: len(sigma), Want: n}
	}
	for i, row := range sigma {
		if len(row) != n {
			return nil, &DimensionError{Field: fmt.Sprintf("sigma[%d]", i), Got: len(row), Want: n}
		}
	}

	if params.Budget < 0 || params.Budget > n {
		return nil, &BudgetError{Budget: params.Budget, Assets: n}
	}
	if !(params.RiskFactor > 0) || math.IsInf(params.RiskFactor, 0) {
		return nil, &ParameterError{Name: "risk_factor", Value: params.RiskFactor, Reason: "must be a finite value > 0"}
	}
	if !(params.PenaltyScale > 0) || math.IsInf(params.PenaltyScale, 0) {
		return nil, &ParameterError{Name: "penalty_scale", Value: params.PenaltyScale, Reason: "must be a finite value > 0"}
	}

	for i, v := range mu {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ParameterError{Name: fmt.Sprintf("mu[%d]", i), Value: v, Reason: "must be finite"}
		}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := sigma[i][j], sigma[j][i]
			if math.IsNaN(a) || math.IsInf(a, 0) || math.IsNaN(b) || math.IsInf(b, 0) {
				return nil, &ParameterError{Name: fmt.Sprintf("sigma[%d][%d]", i, j), Value: a, Reason: "must be finite"}
			}
			if i == j && a < 0 {
				return nil, &ParameterError{Name: fmt.Sprintf("sigma[%d][%d]", i, i), Value: a, Reason: "variance must be non-negative"}
			}
			scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
			if math.Abs(a-b) > symmetryTolerance*scale {
				return nil, &ParameterError{
					Name:   fmt.Sprintf("sigma[%d][%d]", i, j),
					Value:  a,
					Reason: fmt.Sprintf("matrix is not symmetric (sigma[%d][%d]=%g)", j, i, b),
				}
			}
			sym.SetSym(i, j, a)
		}
	}

	return &problem{
		n:      n,
		mu:     mat.NewVecDense(n, append([]float64(nil), mu...)),
		sigma:  sym,
		params: params,
	}, nil
}

// load writes the bits of k into x and returns the number of selected assets.
func (p *problem) load(x *mat.VecDense, k int) int {
	count := 0
	for i := 0; i < p.n; i++ {
		if k>>uint(i)&1 == 1 {
			x.SetVec(i, 1)
			count++
		} else {
			x.SetVec(i, 0)
		}
	}
	return count
}

// score evaluates the penalized objective for the selection currently loaded in x.
func (p *problem) score(x *mat.VecDense, count int) float64 {
	risk := p.params.RiskFactor * mat.Inner(x, p.sigma, x)
	expected := mat.Dot(p.mu, x)
	deviation := float64(count - p.params.Budget)
	return risk - expected + p.params.PenaltyScale*deviation*deviation
}

// Objective scores a single selection without enumerating the search space.
func Objective(mu []float64, sigma [][]float64, params Params, x Selection) (float64, error) {
	p, err := newProblem(mu, sigma, params)
	if err != nil {
		return 0, err
	}
	if len(x) != p.n {
		return 0, &DimensionError{Field: "selection", Got: len(x), Want: p.n}
	}

	v := mat.NewVecDense(p.n, nil)
	for i, bit := range x {
		if bit != 0 && bit != 1 {
			return 0, &ParameterError{Name: fmt.Sprintf("selection[%d]", i), Value: float64(bit), Reason: "must be 0 or 1"}
		}
		v.SetVec(i, float64(bit))
	}
	return p.score(v, x.Count()), nil
}

// Formulate rewrites the penalized objective as xᵀQx + c using x_i² = x_i:
//
//	Q_ii = q·Σ_ii − μ_i + P·(1 − 2B)
//	Q_ij = q·Σ_ij + P            (i ≠ j)
//	c    = P·B²
func Formulate(mu []float64, sigma [][]float64, params Params) (*Formulation, error) {
	p, err := newProblem(mu, sigma, params)
	if err != nil {
		return nil, err
	}

	q := params.RiskFactor
	pen := params.PenaltyScale
	b := float64(params.Budget)

	quadratic := make([][]float64, p.n)
	for i := range quadratic {
		quadratic[i] = make([]float64, p.n)
		for j := range quadratic[i] {
			if i == j {
				quadratic[i][j] = q*p.sigma.At(i, i) - p.mu.AtVec(i) + pen*(1-2*b)
			} else {
				quadratic[i][j] = q*p.sigma.At(i, j) + pen
			}
		}
	}

	return &Formulation{Quadratic: quadratic, Offset: pen * b * b}, nil
}

// DefaultPenaltyScale returns n, the customary starting point for the penalty scale.
// It is a heuristic: nothing guarantees that infeasible selections lose with it when
// covariances or returns are large. Use SufficientPenaltyScale when that matters.
func DefaultPenaltyScale(n int) float64 {
	return float64(n)
}

// SufficientPenaltyScale returns a bound M such that any penalty scale strictly
// greater than M makes every infeasible selection score worse than every feasible one.
// With f(x) = q·xᵀΣx − μᵀx, |f(x)| ≤ q·Σ|σ_ij| + Σ|μ_i| for binary x, and an
// infeasible selection pays at least one unit of penalty.
func SufficientPenaltyScale(mu []float64, sigma [][]float64, riskFactor float64) float64 {
	var bound float64
	for _, v := range mu {
		bound += math.Abs(v)
	}
	for _, row := range sigma {
		for _, v := range row {
			bound += riskFactor * math.Abs(v)
		}
	}
	return 2 * bound
}

// Decode returns the selection encoded by k for a universe of n assets.
func Decode(k, n int) Selection {
	x := make(Selection, n)
	for i := 0; i < n; i++ {
		x[i] = k >> uint(i) & 1
	}
	return x
}

// Encode is the inverse of Decode.
func Encode(x Selection) int {
	k := 0
	for i, bit := range x {
		if bit == 1 {
			k |= 1 << uint(i)
		}
	}
	return k
}
