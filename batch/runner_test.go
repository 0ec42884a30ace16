package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-tempo/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tempo/logging"
	"github.com/RyanBlaney/sonido-tempo/transcode"
)

var errNotFound = errors.New("not found")

func clickTrack(sampleRate int, bpm, seconds float64) []float64 {
	samples := make([]float64, int(seconds*float64(sampleRate)))
	period := int(math.Round(60 * float64(sampleRate) / bpm))
	for t := period; t < len(samples); t += period {
		samples[t] = 0.8
	}
	return samples
}

// fakeLoader serves in-memory audio keyed by path
type fakeLoader struct {
	audio map[string]*transcode.AudioData
	delay time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{audio: make(map[string]*transcode.AudioData)}
}

func (f *fakeLoader) add(path string, pcm []float64, sampleRate int) {
	f.audio[path] = &transcode.AudioData{PCM: pcm, SampleRate: sampleRate, Channels: 1}
}

func (f *fakeLoader) DecodeFile(ctx context.Context, path string) (*transcode.AudioData, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	data, ok := f.audio[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, errNotFound)
	}
	return data, nil
}

func newTestRunner(loader Loader, workers int) *Runner {
	r := NewRunner(loader, nil, Config{Workers: workers})
	r.SetLogger(&logging.NoOpLogger{})
	return r
}

func inputsFor(paths ...string) []Input {
	inputs := make([]Input, len(paths))
	for i, p := range paths {
		inputs[i] = Input{ID: fmt.Sprintf("track-%d", i), Path: p}
	}
	return inputs
}

func TestRunPreservesInputOrder(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("a", clickTrack(44100, 120, 10), 44100)
	loader.add("b", clickTrack(44100, 90, 10), 44100)
	loader.add("c", clickTrack(44100, 140, 10), 44100)
	loader.add("short", make([]float64, 100), 44100)

	inputs := inputsFor("a", "b", "missing", "c", "short")
	results, err := newTestRunner(loader, 2).Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(results))
	}

	for i, res := range results {
		if res.ID != inputs[i].ID || res.Path != inputs[i].Path {
			t.Errorf("result %d is for %s/%s, want %s/%s", i, res.ID, res.Path, inputs[i].ID, inputs[i].Path)
		}
	}

	want := map[int]float64{0: 120, 1: 90, 3: 140}
	for i, bpm := range want {
		res := results[i]
		if res.Err != nil {
			t.Errorf("%s: unexpected error %v", res.Path, res.Err)
			continue
		}
		if res.Tempo == nil {
			t.Errorf("%s: missing tempo result", res.Path)
			continue
		}
		if math.Abs(res.BPM-bpm) > 2 {
			t.Errorf("%s: expected ~%.0f BPM, got %.2f", res.Path, bpm, res.BPM)
		}
		if res.BPM != math.Round(res.BPM) {
			t.Errorf("%s: expected integer BPM, got %v", res.Path, res.BPM)
		}
	}

	if !errors.Is(results[2].Err, errNotFound) || results[2].Tempo != nil {
		t.Errorf("missing: expected not found error, got %+v", results[2])
	}
	if !errors.Is(results[4].Err, temporal.ErrInsufficientSamples) {
		t.Errorf("short: expected ErrInsufficientSamples, got %v", results[4].Err)
	}
}

func TestRunDefaultsIDToPath(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("x.wav", clickTrack(44100, 120, 5), 44100)

	results, err := newTestRunner(loader, 1).Run(context.Background(), []Input{{Path: "x.wav"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].ID != "x.wav" {
		t.Errorf("expected ID to default to path, got %q", results[0].ID)
	}
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()

	results, err := newTestRunner(newFakeLoader(), 4).Run(context.Background(), nil)
	if err != nil || len(results) != 0 {
		t.Errorf("expected no results and no error, got %v, %v", results, err)
	}
}

func TestRunProgress(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	paths := make([]string, 6)
	for i := range paths {
		paths[i] = fmt.Sprintf("f%d", i)
		loader.add(paths[i], clickTrack(44100, 120, 3), 44100)
	}

	var (
		mu   sync.Mutex
		seen []int
	)
	r := newTestRunner(loader, 3)
	r.SetProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != len(paths) {
			t.Errorf("expected total %d, got %d", len(paths), total)
		}
		seen = append(seen, done)
	})

	if _, err := r.Run(context.Background(), inputsFor(paths...)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != len(paths) {
		t.Fatalf("expected %d progress calls, got %d", len(paths), len(seen))
	}
	for i, done := range seen {
		if done != i+1 {
			t.Errorf("progress call %d reported %d", i, done)
		}
	}
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.delay = 20 * time.Millisecond
	paths := make([]string, 8)
	for i := range paths {
		paths[i] = fmt.Sprintf("f%d", i)
		loader.add(paths[i], clickTrack(22050, 120, 2), 22050)
	}

	r := newTestRunner(loader, 2)
	if r.Workers() != 2 {
		t.Fatalf("expected 2 workers, got %d", r.Workers())
	}
	if _, err := r.Run(context.Background(), inputsFor(paths...)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := loader.maxSeen.Load(); got > 2 {
		t.Errorf("expected at most 2 concurrent loads, saw %d", got)
	}
	if got := loader.calls.Load(); got != int32(len(paths)) {
		t.Errorf("expected %d loads, got %d", len(paths), got)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("a", clickTrack(44100, 120, 3), 44100)
	loader.add("b", clickTrack(44100, 120, 3), 44100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newTestRunner(loader, 2).Run(ctx, inputsFor("a", "b"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", res.Path, res.Err)
		}
	}
	if got := loader.calls.Load(); got != 0 {
		t.Errorf("expected no loads after cancellation, got %d", got)
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("a", clickTrack(44100, 120, 3), 44100)
	loader.add("b", clickTrack(44100, 120, 3), 44100)

	r := newTestRunner(loader, 2)
	r.Pause()
	r.Pause()
	if !r.Paused() {
		t.Fatal("expected runner to be paused")
	}

	type outcome struct {
		results []Result
		err     error
	}
	out := make(chan outcome, 1)
	go func() {
		results, err := r.Run(context.Background(), inputsFor("a", "b"))
		out <- outcome{results, err}
	}()

	select {
	case <-out:
		t.Fatal("run finished while paused")
	case <-time.After(50 * time.Millisecond):
	}
	if got := loader.calls.Load(); got != 0 {
		t.Fatalf("expected no loads while paused, got %d", got)
	}

	r.Resume()
	r.Resume()
	if r.Paused() {
		t.Fatal("expected runner to be running")
	}

	select {
	case o := <-out:
		if o.err != nil {
			t.Fatalf("unexpected error: %v", o.err)
		}
		for _, res := range o.results {
			if res.Err != nil {
				t.Errorf("%s: unexpected error %v", res.Path, res.Err)
			}
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish after resume")
	}
}

func TestCancelWhilePaused(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("a", clickTrack(44100, 120, 3), 44100)

	r := newTestRunner(loader, 1)
	r.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan error, 1)
	var results []Result
	go func() {
		var err error
		results, err = r.Run(ctx, inputsFor("a"))
		out <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-out:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !errors.Is(results[0].Err, context.Canceled) {
			t.Errorf("expected result to carry context.Canceled, got %v", results[0].Err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not observe cancellation while paused")
	}
	if got := loader.calls.Load(); got != 0 {
		t.Errorf("expected no loads, got %d", got)
	}
}

func TestRunWithDecoder(t *testing.T) {
	t.Parallel()

	const sampleRate = 44100
	pcm := clickTrack(sampleRate, 120, 10)
	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(v * 32767)
	}

	path := filepath.Join(t.TempDir(), "click.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalize fixture: %v", err)
	}
	f.Close()

	r := newTestRunner(transcode.NewDecoder(nil), 1)
	results, err := r.Run(context.Background(), []Input{{Path: path}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected analysis error: %v", results[0].Err)
	}
	if math.Abs(results[0].BPM-120) > 2 {
		t.Errorf("expected ~120 BPM, got %.2f", results[0].BPM)
	}
}
