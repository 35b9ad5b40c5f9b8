package marketdata

import (
	"context"
	"testing"
	"time"

	testingpkg "github.com/aristath/portfolio-qubo/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomProvider_Deterministic(t *testing.T) {
	start, end := testingpkg.NewDateRangeFixture()
	assets := testingpkg.NewUniverseFixture()

	a, err := NewRandomProvider(123).Load(context.Background(), assets, start, end)
	require.NoError(t, err)
	b, err := NewRandomProvider(123).Load(context.Background(), assets, start, end)
	require.NoError(t, err)

	assert.Equal(t, a.Prices, b.Prices)
	assert.Equal(t, a.Dates, b.Dates)

	c, err := NewRandomProvider(124).Load(context.Background(), assets, start, end)
	require.NoError(t, err)
	assert.NotEqual(t, a.Prices, c.Prices)
}

func TestRandomProvider_AssetPathIndependentOfUniverse(t *testing.T) {
	start, end := testingpkg.NewDateRangeFixture()
	p := NewRandomProvider(7)

	alone, err := p.Load(context.Background(), []string{"MSFT"}, start, end)
	require.NoError(t, err)
	together, err := p.Load(context.Background(), []string{"AAPL", "MSFT", "XOM"}, start, end)
	require.NoError(t, err)

	assert.Equal(t, alone.Prices[0], together.Prices[1])
}

func TestRandomProvider_WeekdaysOnly(t *testing.T) {
	start, end := testingpkg.NewDateRangeFixture()

	series, err := NewRandomProvider(1).Load(context.Background(), []string{"A"}, start, end)
	require.NoError(t, err)

	require.Equal(t, 10, series.Len())
	for _, d := range series.Dates {
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
	}
	for _, p := range series.Prices[0] {
		assert.Greater(t, p, 0.0)
	}
}

func TestRandomProvider_Validation(t *testing.T) {
	start, end := testingpkg.NewDateRangeFixture()
	p := NewRandomProvider(1)
	ctx := context.Background()

	_, err := p.Load(ctx, nil, start, end)
	assert.ErrorIs(t, err, ErrNoAssets)

	_, err = p.Load(ctx, []string{"A", ""}, start, end)
	assert.ErrorIs(t, err, ErrNoAssets)

	_, err = p.Load(ctx, []string{"A", "A"}, start, end)
	assert.ErrorContains(t, err, "duplicate")

	_, err = p.Load(ctx, []string{"A"}, end, start)
	assert.ErrorIs(t, err, ErrInvalidRange)

	// Saturday to Sunday
	sat := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	_, err = p.Load(ctx, []string{"A"}, sat, sat.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrInsufficientData)
}
