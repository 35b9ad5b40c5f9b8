// Package marketdata supplies expected returns and covariance matrices for a named
// universe over a date range, from seeded synthetic walks or stored daily closes.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the on-disk and wire format for trading dates.
const DateLayout = "2006-01-02"

var (
	ErrNoAssets         = errors.New("no assets requested")
	ErrInvalidRange     = errors.New("invalid date range")
	ErrInsufficientData = errors.New("insufficient price history")
	ErrInvalidRequest   = errors.New("invalid market data request")
)

// Provider loads daily close prices for a universe.
// Implementations must be deterministic for the same inputs.
type Provider interface {
	Load(ctx context.Context, assets []string, start, end time.Time) (*Series, error)
}

// Series holds aligned daily closes: Prices[i][t] is the close of Assets[i] on Dates[t].
type Series struct {
	Assets []string
	Dates  []time.Time
	Prices [][]float64
}

// Len returns the number of observations per asset.
func (s *Series) Len() int {
	return len(s.Dates)
}

func validateRequest(assets []string, start, end time.Time) error {
	if len(assets) == 0 {
		return ErrNoAssets
	}
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		if a == "" {
			return fmt.Errorf("%w: empty asset identifier", ErrNoAssets)
		}
		if seen[a] {
			return fmt.Errorf("%w: duplicate asset %q", ErrInvalidRequest, a)
		}
		seen[a] = true
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, end.Format(DateLayout), start.Format(DateLayout))
	}
	return nil
}

// tradingDays returns every weekday in [start, end], truncated to UTC dates.
func tradingDays(start, end time.Time) []time.Time {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for !day.After(last) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}
