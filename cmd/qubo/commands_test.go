package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/aristath/portfolio-qubo/internal/testing"
)

// writeFixtureProblem stores the five-asset fixture. Its optimum holds AAPL and
// JNJ: index 17, objective 0.5·(0.01+0.012+0.002) − 0.09 = −0.078.
func writeFixtureProblem(t *testing.T, penalty *float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "problem.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, WriteProblem(f, &Problem{
		Assets:       testingpkg.NewUniverseFixture(),
		Mu:           testingpkg.NewMuFixture(),
		Sigma:        testingpkg.NewSigmaFixture(),
		RiskFactor:   0.5,
		Budget:       2,
		PenaltyScale: penalty,
	}))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvaluateCommand(t *testing.T) {
	path := writeFixtureProblem(t, scale(5))

	out, err := run(t, "evaluate", "-f", path, "--top", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "assets=5 candidates=32 risk_factor=0.5 budget=2 penalty_scale=5")
	assert.Contains(t, out, "best: index=17 selection=10001 objective=-0.078000 selected=AAPL,JNJ")
	assert.NotContains(t, out, "INFEASIBLE")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2+1+1+3, "params, best, blank, header, three rows")
	assert.True(t, strings.HasPrefix(lines[3], "RANK"))
	assert.True(t, strings.HasPrefix(lines[4], "1 "))
}

func TestEvaluateCommand_DefaultPenalty(t *testing.T) {
	path := writeFixtureProblem(t, nil)

	out, err := run(t, "evaluate", "-f", path, "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "penalty_scale=5")
	assert.Contains(t, out, "index=17")
}

func TestCommands_RejectExplicitZeroPenalty(t *testing.T) {
	path := writeFixtureProblem(t, scale(0))

	for _, command := range []string{"evaluate", "minimize", "formulate"} {
		_, err := run(t, command, "-f", path)
		assert.ErrorContains(t, err, "invalid parameter penalty_scale", command)
	}
}

func TestEvaluateCommand_TooLarge(t *testing.T) {
	n := 21
	p := &Problem{Mu: make([]float64, n), Sigma: make([][]float64, n), RiskFactor: 1, Budget: 1, PenaltyScale: scale(1)}
	for i := range p.Sigma {
		p.Sigma[i] = make([]float64, n)
		p.Sigma[i][i] = 0.01
	}
	path := filepath.Join(t.TempDir(), "large.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteProblem(f, p))
	require.NoError(t, f.Close())

	_, err = run(t, "evaluate", "-f", path)
	assert.ErrorContains(t, err, "problem too large")
}

func TestMinimizeCommand(t *testing.T) {
	path := writeFixtureProblem(t, scale(5))

	out, err := run(t, "minimize", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "best: index=17 selection=10001 objective=-0.078000 selected=AAPL,JNJ")
	assert.NotContains(t, out, "RANK")
}

func TestMinimizeCommand_Infeasible(t *testing.T) {
	path := writeFixtureProblem(t, scale(1e-6))

	out, err := run(t, "minimize", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "INFEASIBLE")
}

func TestFormulateCommand(t *testing.T) {
	path := writeFixtureProblem(t, scale(5))

	out, err := run(t, "formulate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "offset=20 ")
	assert.Contains(t, out, "AAPL")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 2+1+1+5, "params, offset, blank, header, five rows")
}

func TestGenerateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")

	_, err := run(t, "generate",
		"--assets", "AAA,BBB,CCC",
		"--start", "2024-01-01", "--end", "2024-03-29",
		"--seed", "7", "-o", path)
	require.NoError(t, err)

	p, err := LoadProblem(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, p.Assets)
	assert.Len(t, p.Mu, 3)
	require.Len(t, p.Sigma, 3)
	assert.Equal(t, 1, p.Budget)
	assert.Equal(t, 0.5, p.RiskFactor)
	assert.Equal(t, p.Sigma[0][1], p.Sigma[1][0])

	// Same seed, same problem
	out, err := run(t, "generate",
		"--assets", "AAA,BBB,CCC",
		"--start", "2024-01-01", "--end", "2024-03-29",
		"--seed", "7")
	require.NoError(t, err)
	fromStdout, err := DecodeProblem(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, p, fromStdout)

	_, err = run(t, "minimize", "-f", path)
	assert.NoError(t, err)
}

func TestGenerateCommand_BadDate(t *testing.T) {
	_, err := run(t, "generate", "--assets", "AAA", "--start", "yesterday", "--end", "2024-03-29")
	assert.ErrorContains(t, err, "invalid --start")
}

func TestCommands_RequireFile(t *testing.T) {
	for _, name := range []string{"evaluate", "minimize", "formulate"} {
		_, err := run(t, name)
		assert.ErrorContains(t, err, "no problem file", name)
	}
}
