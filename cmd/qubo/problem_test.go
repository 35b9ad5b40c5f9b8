package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/aristath/portfolio-qubo/internal/testing"
)

const sampleProblem = `assets: [AAPL, MSFT]
mu: [0.1, 0.2]
sigma:
  - [0.04, 0.01]
  - [0.01, 0.09]
risk_factor: 0.5
budget: 1
`

func TestDecodeProblem(t *testing.T) {
	p, err := DecodeProblem(strings.NewReader(sampleProblem))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, p.Assets)
	assert.Equal(t, []float64{0.1, 0.2}, p.Mu)
	assert.Equal(t, [][]float64{{0.04, 0.01}, {0.01, 0.09}}, p.Sigma)
	assert.Equal(t, 0.5, p.RiskFactor)
	assert.Equal(t, 1, p.Budget)
	assert.Nil(t, p.PenaltyScale)
}

func TestDecodeProblem_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"unknown key", sampleProblem + "lambda: 3\n", "field lambda not found"},
		{"asset count mismatch", "assets: [A]\nmu: [0.1, 0.2]\n", "1 assets but 2 expected returns"},
		{"not yaml", "mu: [0.1,\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeProblem(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadProblem_RequiresPath(t *testing.T) {
	_, err := LoadProblem("")
	assert.ErrorContains(t, err, "-f")
}

func TestProblemParams(t *testing.T) {
	p := &Problem{
		Mu:         testingpkg.NewMuFixture(),
		Sigma:      testingpkg.NewSigmaFixture(),
		RiskFactor: 0.5,
		Budget:     2,
	}

	params := p.Params(zerolog.Nop())
	assert.Equal(t, 5.0, params.PenaltyScale, "defaults to the heuristic scale")

	p.PenaltyScale = scale(1.5)
	assert.Equal(t, 1.5, p.Params(zerolog.Nop()).PenaltyScale)

	p.PenaltyScale = scale(0)
	assert.Zero(t, p.Params(zerolog.Nop()).PenaltyScale, "an explicit zero is kept for validation")
}

func TestDecodeProblem_ExplicitZeroPenalty(t *testing.T) {
	p, err := DecodeProblem(strings.NewReader(sampleProblem + "penalty_scale: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, p.PenaltyScale)
	assert.Zero(t, *p.PenaltyScale)
}

func scale(v float64) *float64 { return &v }

func TestProblemAssetNames(t *testing.T) {
	p := &Problem{Mu: []float64{0.1, 0.2, 0.3}}
	assert.Equal(t, []string{"asset_0", "asset_1", "asset_2"}, p.AssetNames())

	p.Assets = []string{"A", "B", "C"}
	assert.Equal(t, []string{"A", "B", "C"}, p.AssetNames())
}

func TestWriteProblem_OmitsDefaultPenalty(t *testing.T) {
	p := &Problem{
		Assets:     testingpkg.NewUniverseFixture(),
		Mu:         testingpkg.NewMuFixture(),
		Sigma:      testingpkg.NewSigmaFixture(),
		RiskFactor: 0.5,
		Budget:     2,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteProblem(&buf, p))
	assert.NotContains(t, buf.String(), "penalty_scale")

	decoded, err := DecodeProblem(&buf)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}
