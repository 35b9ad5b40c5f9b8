package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/portfolio-qubo/internal/database"
	"github.com/rs/zerolog"
)

// HistoryProvider reads daily closes from the history database (daily_prices table).
type HistoryProvider struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryProvider creates a new history-backed provider.
func NewHistoryProvider(db *sql.DB, log zerolog.Logger) *HistoryProvider {
	return &HistoryProvider{
		db:  db,
		log: log.With().Str("component", "history_provider").Logger(),
	}
}

// Store upserts a single daily close.
func (h *HistoryProvider) Store(ctx context.Context, asset string, date time.Time, close float64) error {
	if close <= 0 {
		return fmt.Errorf("close for %s on %s must be positive, got %g", asset, date.Format(DateLayout), close)
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO daily_prices (asset, date, close) VALUES (?, ?, ?)
		ON CONFLICT(asset, date) DO UPDATE SET close = excluded.close
	`, asset, date.UTC().Format(DateLayout), close)
	if err != nil {
		return fmt.Errorf("failed to store price for %s: %w", asset, err)
	}
	return nil
}

// StoreSeries upserts every close of a series in one transaction.
func (h *HistoryProvider) StoreSeries(ctx context.Context, series *Series) error {
	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_prices (asset, date, close) VALUES (?, ?, ?)
			ON CONFLICT(asset, date) DO UPDATE SET close = excluded.close
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, asset := range series.Assets {
			for t, date := range series.Dates {
				if _, err := stmt.ExecContext(ctx, asset, date.UTC().Format(DateLayout), series.Prices[i][t]); err != nil {
					return fmt.Errorf("failed to store %s on %s: %w", asset, date.Format(DateLayout), err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Info().
		Int("assets", len(series.Assets)).
		Int("days", series.Len()).
		Msg("Stored price series")
	return nil
}

// Load implements Provider. Only dates present for every asset are kept.
func (h *HistoryProvider) Load(ctx context.Context, assets []string, start, end time.Time) (*Series, error) {
	if err := validateRequest(assets, start, end); err != nil {
		return nil, err
	}

	perAsset := make([]map[string]float64, len(assets))
	for i, asset := range assets {
		closes, err := h.fetch(ctx, asset, start, end)
		if err != nil {
			return nil, err
		}
		if len(closes) == 0 {
			return nil, fmt.Errorf("%w: no prices for %s between %s and %s",
				ErrInsufficientData, asset, start.Format(DateLayout), end.Format(DateLayout))
		}
		perAsset[i] = closes
	}

	// Align to the dates every asset has
	var dates []time.Time
	for _, day := range calendarDays(start, end) {
		key := day.Format(DateLayout)
		complete := true
		for _, closes := range perAsset {
			if _, ok := closes[key]; !ok {
				complete = false
				break
			}
		}
		if complete {
			dates = append(dates, day)
		}
	}

	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: assets share no common trading dates", ErrInsufficientData)
	}

	series := &Series{
		Assets: append([]string(nil), assets...),
		Dates:  dates,
		Prices: make([][]float64, len(assets)),
	}
	for i := range assets {
		series.Prices[i] = make([]float64, len(dates))
		for t, day := range dates {
			series.Prices[i][t] = perAsset[i][day.Format(DateLayout)]
		}
	}

	h.log.Debug().
		Int("assets", len(assets)).
		Int("aligned_days", len(dates)).
		Msg("Loaded price history")

	return series, nil
}

func (h *HistoryProvider) fetch(ctx context.Context, asset string, start, end time.Time) (map[string]float64, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT date, close FROM daily_prices
		WHERE asset = ? AND date >= ? AND date <= ?
		ORDER BY date
	`, asset, start.UTC().Format(DateLayout), end.UTC().Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", asset, err)
	}
	defer rows.Close()

	closes := make(map[string]float64)
	for rows.Next() {
		var date string
		var close float64
		if err := rows.Scan(&date, &close); err != nil {
			return nil, fmt.Errorf("failed to scan price for %s: %w", asset, err)
		}
		closes[date] = close
	}
	return closes, rows.Err()
}

// calendarDays returns every calendar day in [start, end]; stored history
// may include weekend sessions for assets that trade then.
func calendarDays(start, end time.Time) []time.Time {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for !day.After(last) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}
