package qubo

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultMaxAssets bounds n so that a full 2^n score table stays in memory.
	DefaultMaxAssets = 20
	// chunksPerWorker controls how finely the search space is split.
	chunksPerWorker = 4
)

// Options configures an Evaluator.
type Options struct {
	// Workers is the number of goroutines scoring candidates; <= 0 means runtime.NumCPU().
	Workers int
	// MaxAssets rejects universes larger than this; <= 0 means DefaultMaxAssets.
	MaxAssets int
	// TableMaxAssets bounds EvaluateAll, which materializes all 2^n rows.
	// <= 0 means DefaultMaxAssets; it never exceeds MaxAssets.
	TableMaxAssets int
}

// Evaluator scores every binary selection of a universe.
// It holds no per-problem state and is safe for concurrent use.
type Evaluator struct {
	workers        int
	maxAssets      int
	tableMaxAssets int
	log            zerolog.Logger
}

// NewEvaluator creates a new brute-force evaluator.
func NewEvaluator(opts Options, log zerolog.Logger) *Evaluator {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxAssets := opts.MaxAssets
	if maxAssets <= 0 {
		maxAssets = DefaultMaxAssets
	}
	tableMaxAssets := opts.TableMaxAssets
	if tableMaxAssets <= 0 {
		tableMaxAssets = DefaultMaxAssets
	}
	tableMaxAssets = min(tableMaxAssets, maxAssets)
	return &Evaluator{
		workers:        workers,
		maxAssets:      maxAssets,
		tableMaxAssets: tableMaxAssets,
		log:            log.With().Str("component", "qubo_evaluator").Logger(),
	}
}

// Workers returns the configured worker count.
func (e *Evaluator) Workers() int { return e.workers }

// MaxAssets returns the largest universe the evaluator accepts.
func (e *Evaluator) MaxAssets() int { return e.maxAssets }

// TableMaxAssets returns the largest universe EvaluateAll accepts.
func (e *Evaluator) TableMaxAssets() int { return e.tableMaxAssets }

// EvaluateAll scores all 2^n selections and returns them ranked by objective,
// ties broken by the smaller integer encoding.
func (e *Evaluator) EvaluateAll(mu []float64, sigma [][]float64, params Params) ([]ScoredSelection, error) {
	return e.EvaluateAllWithProgress(mu, sigma, params, nil)
}

// EvaluateAllWithProgress is EvaluateAll with a progress callback.
// The callback is invoked from the calling goroutine only.
func (e *Evaluator) EvaluateAllWithProgress(
	mu []float64,
	sigma [][]float64,
	params Params,
	progress ProgressFunc,
) ([]ScoredSelection, error) {
	if len(mu) > e.tableMaxAssets {
		return nil, fmt.Errorf("%w: the full table supports at most %d assets, got %d; use Minimize",
			ErrProblemTooLarge, e.tableMaxAssets, len(mu))
	}
	p, err := e.prepare(mu, sigma, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	total := 1 << uint(p.n)
	table := make([]ScoredSelection, total)

	e.run(p, progress, func(x *mat.VecDense, lo, hi int) {
		for k := lo; k < hi; k++ {
			count := p.load(x, k)
			table[k] = ScoredSelection{
				Index:     k,
				Selection: Decode(k, p.n),
				Objective: p.score(x, count),
				Count:     count,
				Feasible:  count == params.Budget,
			}
		}
	})

	sort.Slice(table, func(i, j int) bool {
		return less(table[i], table[j])
	})
	for i := range table {
		table[i].Rank = i + 1
	}

	e.log.Debug().
		Int("assets", p.n).
		Int("candidates", total).
		Int("workers", e.workers).
		Dur("elapsed", time.Since(start)).
		Msg("Evaluated all selections")

	return table, nil
}

// Minimize returns the selection with the lowest objective, ties broken by the
// smaller integer encoding. Feasibility (1ᵀx == B) is only guaranteed when the
// penalty scale is large enough; check ScoredSelection.Feasible.
//
// Unlike EvaluateAll it keeps one candidate per chunk, so memory stays O(workers).
func (e *Evaluator) Minimize(mu []float64, sigma [][]float64, params Params) (ScoredSelection, error) {
	return e.MinimizeWithProgress(mu, sigma, params, nil)
}

// MinimizeWithProgress is Minimize with a progress callback.
func (e *Evaluator) MinimizeWithProgress(
	mu []float64,
	sigma [][]float64,
	params Params,
	progress ProgressFunc,
) (ScoredSelection, error) {
	p, err := e.prepare(mu, sigma, params)
	if err != nil {
		return ScoredSelection{}, err
	}

	start := time.Now()
	var (
		bestMu sync.Mutex
		best   *ScoredSelection
	)

	e.run(p, progress, func(x *mat.VecDense, lo, hi int) {
		local := ScoredSelection{Index: -1}
		for k := lo; k < hi; k++ {
			count := p.load(x, k)
			candidate := ScoredSelection{Index: k, Objective: p.score(x, count), Count: count}
			if local.Index < 0 || less(candidate, local) {
				local = candidate
			}
		}

		bestMu.Lock()
		if best == nil || less(local, *best) {
			chosen := local
			best = &chosen
		}
		bestMu.Unlock()
	})

	result := *best
	result.Selection = Decode(result.Index, p.n)
	result.Feasible = result.Count == params.Budget
	result.Rank = 1

	e.log.Debug().
		Int("assets", p.n).
		Int("index", result.Index).
		Float64("objective", result.Objective).
		Bool("feasible", result.Feasible).
		Dur("elapsed", time.Since(start)).
		Msg("Minimized selection")

	return result, nil
}

func (e *Evaluator) prepare(mu []float64, sigma [][]float64, params Params) (*problem, error) {
	if len(mu) > e.maxAssets {
		return nil, fmt.Errorf("%w: %d assets exceeds the limit of %d", ErrProblemTooLarge, len(mu), e.maxAssets)
	}
	return newProblem(mu, sigma, params)
}

// less orders candidates by objective, then by integer encoding.
func less(a, b ScoredSelection) bool {
	if a.Objective != b.Objective {
		return a.Objective < b.Objective
	}
	return a.Index < b.Index
}

// chunk is a half-open range [lo, hi) of integer encodings.
type chunk struct {
	lo, hi int
}

// run splits [0, 2^n) into chunks and hands them to the worker pool.
// Each worker owns its scratch vector; visit must only touch state for its own range
// or synchronize itself.
func (e *Evaluator) run(p *problem, progress ProgressFunc, visit func(x *mat.VecDense, lo, hi int)) {
	total := 1 << uint(p.n)

	numChunks := e.workers * chunksPerWorker
	if numChunks > total {
		numChunks = total
	}
	size := (total + numChunks - 1) / numChunks

	jobs := make(chan chunk, numChunks)
	done := make(chan int, numChunks)

	numWorkers := e.workers
	if numWorkers > numChunks {
		numWorkers = numChunks
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x := mat.NewVecDense(p.n, nil)
			for c := range jobs {
				visit(x, c.lo, c.hi)
				done <- c.hi - c.lo
			}
		}()
	}

	for lo := 0; lo < total; lo += size {
		hi := lo + size
		if hi > total {
			hi = total
		}
		jobs <- chunk{lo: lo, hi: hi}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(done)
	}()

	scored := 0
	for n := range done {
		scored += n
		if progress != nil {
			progress(scored, total)
		}
	}
}
