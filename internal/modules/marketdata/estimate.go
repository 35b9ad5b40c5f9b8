package marketdata

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Expected-return estimators.
const (
	MethodMean = "mean"
	MethodEMA  = "ema"
)

const defaultEMAPeriod = 20

// EstimatorOptions selects how mu and sigma are derived from a price series.
type EstimatorOptions struct {
	Method    string `json:"method" yaml:"method" msgpack:"method"` // "mean" (default) or "ema"
	EMAPeriod int    `json:"ema_period,omitempty" yaml:"ema_period,omitempty" msgpack:"ema_period"`
	Shrinkage bool   `json:"shrinkage,omitempty" yaml:"shrinkage,omitempty" msgpack:"shrinkage"` // Ledoit-Wolf towards constant covariance
}

func (o EstimatorOptions) normalized() (EstimatorOptions, error) {
	switch o.Method {
	case "":
		o.Method = MethodMean
	case MethodMean, MethodEMA:
	default:
		return o, fmt.Errorf("%w: unknown estimation method %q", ErrInvalidRequest, o.Method)
	}
	if o.EMAPeriod <= 0 {
		o.EMAPeriod = defaultEMAPeriod
	}
	return o, nil
}

// Estimate is the return vector and covariance matrix of a universe.
type Estimate struct {
	Assets       []string    `json:"assets" msgpack:"assets"`
	Mu           []float64   `json:"mu" msgpack:"mu"`
	Sigma        [][]float64 `json:"sigma" msgpack:"sigma"`
	Observations int         `json:"observations" msgpack:"observations"`
	Method       string      `json:"method" msgpack:"method"`
}

// EstimateFromSeries computes daily simple returns, their expected value and their
// sample covariance.
func EstimateFromSeries(series *Series, opts EstimatorOptions) (*Estimate, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}

	n := len(series.Assets)
	if n == 0 {
		return nil, ErrNoAssets
	}
	if series.Len() < 3 {
		return nil, fmt.Errorf("%w: need at least 3 closes, got %d", ErrInsufficientData, series.Len())
	}

	returns := make([][]float64, n)
	for i, prices := range series.Prices {
		r, err := simpleReturns(prices)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", series.Assets[i], err)
		}
		returns[i] = r
	}
	observations := len(returns[0])

	mu := make([]float64, n)
	for i, r := range returns {
		if opts.Method == MethodEMA {
			mu[i] = emaOfReturns(r, opts.EMAPeriod)
		} else {
			mu[i] = stat.Mean(r, nil)
		}
	}

	// Rows are observations, columns are assets
	data := mat.NewDense(observations, n, nil)
	for j, r := range returns {
		for t, v := range r {
			data.Set(t, j, v)
		}
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	sigma := make([][]float64, n)
	for i := range sigma {
		sigma[i] = make([]float64, n)
		for j := range sigma[i] {
			sigma[i][j] = cov.At(i, j)
		}
	}

	if opts.Shrinkage {
		sigma = applyLedoitWolfShrinkage(sigma)
	}

	return &Estimate{
		Assets:       append([]string(nil), series.Assets...),
		Mu:           mu,
		Sigma:        sigma,
		Observations: observations,
		Method:       opts.Method,
	}, nil
}

func simpleReturns(prices []float64) ([]float64, error) {
	returns := make([]float64, len(prices)-1)
	for t := 1; t < len(prices); t++ {
		prev := prices[t-1]
		if prev <= 0 || math.IsNaN(prev) || math.IsNaN(prices[t]) {
			return nil, fmt.Errorf("invalid close %g at observation %d", prev, t-1)
		}
		returns[t-1] = prices[t]/prev - 1
	}
	return returns, nil
}

// emaOfReturns returns the last EMA value, or the plain mean when there is not
// enough data for the period.
func emaOfReturns(returns []float64, period int) float64 {
	if len(returns) < period || period < 2 {
		return stat.Mean(returns, nil)
	}
	ema := talib.Ema(returns, period)
	if last := ema[len(ema)-1]; !math.IsNaN(last) {
		return last
	}
	return stat.Mean(returns[len(returns)-period:], nil)
}

// applyLedoitWolfShrinkage shrinks the sample covariance towards a constant-covariance
// target (average variance on the diagonal, average covariance off it). The result
// stays symmetric because the target and the input are.
func applyLedoitWolfShrinkage(sample [][]float64) [][]float64 {
	n := len(sample)
	if n < 2 {
		return sample
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample[i][i]
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample[i][j]
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))

	target := func(i, j int) float64 {
		if i == j {
			return avgVar
		}
		return avgCov
	}

	shrinkage := 0.2
	if n > 2 && avgVar > 0 {
		var sumSqDiff, sum, sumSq float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				diff := sample[i][j] - target(i, j)
				sumSqDiff += diff * diff
				sum += sample[i][j]
				sumSq += sample[i][j] * sample[i][j]
			}
		}
		count := float64(n * n)
		meanSqDiff := sumSqDiff / count
		mean := sum / count
		variance := sumSq/count - mean*mean

		if variance > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0, variance/(variance+meanSqDiff)))
		}
	}

	shrunk := make([][]float64, n)
	for i := range shrunk {
		shrunk[i] = make([]float64, n)
		for j := range shrunk[i] {
			shrunk[i][j] = (1-shrinkage)*sample[i][j] + shrinkage*target(i, j)
		}
	}
	return shrunk
}
