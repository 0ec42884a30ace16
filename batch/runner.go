package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-tempo/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tempo/logging"
	"github.com/RyanBlaney/sonido-tempo/transcode"
)

// Loader produces decoded mono audio for a path. *transcode.Decoder
// satisfies it.
type Loader interface {
	DecodeFile(ctx context.Context, path string) (*transcode.AudioData, error)
}

// Config holds batch runner configuration
type Config struct {
	// Workers bounds the number of files analyzed at once; <= 0 uses NumCPU
	Workers int `yaml:"workers" json:"workers"`
}

// DefaultConfig returns default batch configuration
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU()}
}

// Input identifies one file to analyze
type Input struct {
	ID   string
	Path string
}

// Result is the outcome for a single Input. Exactly one of Tempo and Err is set.
type Result struct {
	ID    string                `json:"id"`
	Path  string                `json:"path"`
	BPM   float64               `json:"bpm"`
	Tempo *temporal.TempoResult `json:"tempo,omitempty"`
	Err   error                 `json:"-"`
}

// ProgressFunc is called after each file finishes, serially, with done
// counting up to total.
type ProgressFunc func(done, total int)

// Runner analyzes many files concurrently, one independent pipeline per file
type Runner struct {
	loader    Loader
	estimator *temporal.TempoEstimation
	workers   int

	onProgress ProgressFunc
	logger     logging.Logger

	mu     sync.Mutex
	paused bool
	gate   chan struct{} // closed while running
}

// NewRunner creates a runner. A nil estimator uses the default configuration.
func NewRunner(loader Loader, estimator *temporal.TempoEstimation, cfg Config) *Runner {
	if estimator == nil {
		estimator = temporal.NewTempoEstimation()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	gate := make(chan struct{})
	close(gate)

	return &Runner{
		loader:    loader,
		estimator: estimator,
		workers:   workers,
		gate:      gate,
	}
}

// SetProgress registers a progress callback
func (r *Runner) SetProgress(fn ProgressFunc) {
	r.onProgress = fn
}

// SetLogger overrides the global logger for this runner
func (r *Runner) SetLogger(logger logging.Logger) {
	r.logger = logger
}

// Workers returns the concurrency limit
func (r *Runner) Workers() int {
	return r.workers
}

// Pause stops workers from starting new files. Files already being
// analyzed run to completion.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused {
		return
	}
	r.paused = true
	r.gate = make(chan struct{})
}

// Resume releases workers blocked by Pause
func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.paused {
		return
	}
	r.paused = false
	close(r.gate)
}

// Paused reports whether the runner is paused
func (r *Runner) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

func (r *Runner) log() logging.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logging.GetGlobalLogger()
}

// wait blocks while the runner is paused
func (r *Runner) wait(ctx context.Context) error {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()

	select {
	case <-gate:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run analyzes inputs and returns one Result per input, in input order.
// Per-file failures are reported in Result.Err and do not stop the batch.
// The returned error is non-nil only when ctx ended before every file was
// analyzed; files that never started carry the context error.
func (r *Runner) Run(ctx context.Context, inputs []Input) ([]Result, error) {
	results := make([]Result, len(inputs))
	total := len(inputs)

	var (
		progressMu sync.Mutex
		done       int
	)
	finish := func() {
		progressMu.Lock()
		defer progressMu.Unlock()
		done++
		if r.onProgress != nil {
			r.onProgress(done, total)
		}
	}

	var g errgroup.Group
	g.SetLimit(r.workers)

	for i, in := range inputs {
		g.Go(func() error {
			results[i] = r.analyze(ctx, in)
			finish()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for _, res := range results {
			if errors.Is(res.Err, err) {
				return results, err
			}
		}
	}
	return results, nil
}

func (r *Runner) analyze(ctx context.Context, in Input) Result {
	res := Result{ID: in.ID, Path: in.Path}
	if res.ID == "" {
		res.ID = in.Path
	}

	if err := r.wait(ctx); err != nil {
		res.Err = err
		return res
	}

	logger := r.log().WithFields(logging.Fields{
		"component": "batch_runner",
		"id":        res.ID,
		"path":      in.Path,
	})

	audio, err := r.loader.DecodeFile(ctx, in.Path)
	if err != nil {
		res.Err = err
		logger.Warn("failed to load audio", logging.Fields{"error": err.Error()})
		return res
	}

	tempo, err := r.estimator.Estimate(audio.PCM, audio.SampleRate)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", in.Path, err)
		logger.Warn("failed to estimate tempo", logging.Fields{"error": err.Error()})
		return res
	}

	res.Tempo = tempo
	res.BPM = tempo.Rounded(0)

	logger.Debug("file analyzed", logging.Fields{
		"bpm":    res.BPM,
		"method": string(tempo.Method),
	})

	return res
}
