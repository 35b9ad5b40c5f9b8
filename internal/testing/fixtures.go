package testing

import "time"

// NewUniverseFixture returns a small asset universe used across tests.
func NewUniverseFixture() []string {
	return []string{"AAPL", "MSFT", "NVDA", "XOM", "JNJ"}
}

// NewMuFixture returns expected daily returns for NewUniverseFixture.
func NewMuFixture() []float64 {
	return []float64{0.05, 0.01, 0.02, 0.015, 0.04}
}

// NewSigmaFixture returns a covariance matrix for NewUniverseFixture: distinct
// variances on the diagonal and a constant 0.001 covariance elsewhere.
func NewSigmaFixture() [][]float64 {
	diag := []float64{0.01, 0.02, 0.015, 0.02, 0.012}
	sigma := make([][]float64, len(diag))
	for i := range sigma {
		sigma[i] = make([]float64, len(diag))
		for j := range sigma[i] {
			if i == j {
				sigma[i][j] = diag[i]
			} else {
				sigma[i][j] = 0.001
			}
		}
	}
	return sigma
}

// NewDateRangeFixture returns a two-week window: Monday 2024-01-01 to Friday
// 2024-01-12, which holds 10 weekdays.
func NewDateRangeFixture() (time.Time, time.Time) {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
}
