package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
)

// Problem is the on-disk problem description.
type Problem struct {
	Assets       []string    `yaml:"assets,omitempty"`
	Mu           []float64   `yaml:"mu"`
	Sigma        [][]float64 `yaml:"sigma"`
	RiskFactor   float64     `yaml:"risk_factor"`
	Budget       int         `yaml:"budget"`
	PenaltyScale *float64    `yaml:"penalty_scale,omitempty"` // nil = DefaultPenaltyScale(n)
}

// LoadProblem reads and decodes a problem file. Unknown keys are rejected.
func LoadProblem(path string) (*Problem, error) {
	if path == "" {
		return nil, fmt.Errorf("no problem file given (use -f)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file: %w", err)
	}
	return DecodeProblem(bytes.NewReader(data))
}

// DecodeProblem decodes a YAML problem and checks that asset names match mu.
func DecodeProblem(r io.Reader) (*Problem, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Problem
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse problem file: %w", err)
	}
	if len(p.Assets) > 0 && len(p.Assets) != len(p.Mu) {
		return nil, fmt.Errorf("problem lists %d assets but %d expected returns", len(p.Assets), len(p.Mu))
	}
	return &p, nil
}

// WriteProblem encodes a problem as YAML.
func WriteProblem(w io.Writer, p *Problem) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode problem: %w", err)
	}
	return enc.Close()
}

// Params returns the solver parameters, substituting the heuristic penalty
// scale when the file leaves it out. An explicit value is left for the solver
// to validate.
func (p *Problem) Params(log zerolog.Logger) qubo.Params {
	params := qubo.Params{RiskFactor: p.RiskFactor, Budget: p.Budget}
	if p.PenaltyScale != nil {
		params.PenaltyScale = *p.PenaltyScale
	} else {
		params.PenaltyScale = qubo.DefaultPenaltyScale(len(p.Mu))
		log.Warn().
			Float64("penalty_scale", params.PenaltyScale).
			Float64("sufficient_penalty_scale", qubo.SufficientPenaltyScale(p.Mu, p.Sigma, p.RiskFactor)).
			Msg("No penalty scale given, using heuristic default")
	}
	return params
}

// AssetNames returns the asset labels, numbering them when the file has none.
func (p *Problem) AssetNames() []string {
	if len(p.Assets) > 0 {
		return p.Assets
	}
	names := make([]string, len(p.Mu))
	for i := range names {
		names[i] = fmt.Sprintf("asset_%d", i)
	}
	return names
}
