package marketdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// RandomProvider generates synthetic geometric random walks.
// Each asset's path depends only on Seed and the asset identifier, so adding an
// asset to the universe never changes the prices of the others.
type RandomProvider struct {
	Seed int64
}

// NewRandomProvider creates a provider for the given seed.
func NewRandomProvider(seed int64) *RandomProvider {
	return &RandomProvider{Seed: seed}
}

// Load implements Provider.
func (p *RandomProvider) Load(ctx context.Context, assets []string, start, end time.Time) (*Series, error) {
	if err := validateRequest(assets, start, end); err != nil {
		return nil, err
	}

	days := tradingDays(start, end)
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: no trading days between %s and %s",
			ErrInsufficientData, start.Format(DateLayout), end.Format(DateLayout))
	}

	series := &Series{
		Assets: append([]string(nil), assets...),
		Dates:  days,
		Prices: make([][]float64, len(assets)),
	}

	for i, asset := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series.Prices[i] = p.walk(asset, len(days))
	}

	return series, nil
}

func (p *RandomProvider) walk(asset string, days int) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(asset))
	src := rand.NewPCG(uint64(p.Seed), h.Sum64())

	initial := distuv.Uniform{Min: 20, Max: 200, Src: src}.Rand()
	drift := distuv.Normal{Mu: 0, Sigma: 0.001, Src: src}.Rand()
	volatility := distuv.Uniform{Min: 0.005, Max: 0.03, Src: src}.Rand()
	step := distuv.Normal{Mu: drift, Sigma: volatility, Src: src}

	prices := make([]float64, days)
	price := initial
	for t := range prices {
		if t > 0 {
			price *= math.Exp(step.Rand())
		}
		prices[t] = price
	}
	return prices
}
