package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
	queuemem "github.com/JakeFAU/guide-quotes/internal/queue/memory"
	"github.com/JakeFAU/guide-quotes/internal/storage/memory"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	summary harvest.Summary
	err     error
}

func (r *fakeRunner) Run(context.Context) (harvest.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.summary, r.err
}

func newRun(t *testing.T, runs *memory.RunStore, id string) {
	t.Helper()
	require.NoError(t, runs.CreateRun(context.Background(), harvest.Run{
		ID:        id,
		Status:    harvest.RunStatusQueued,
		Submitted: time.Now().UTC(),
	}))
}

func TestWorker_ProcessSuccessRecordsSummary(t *testing.T) {
	t.Parallel()

	runs := memory.NewRunStore(nil)
	newRun(t, runs, "run-ok")
	runner := &fakeRunner{summary: harvest.Summary{Links: 3, Stored: 2, Skipped: 1}}
	w := New(queuemem.NewQueue(1), runs, runner, zap.NewNop())

	w.Process(context.Background(), harvest.Task{RunID: "run-ok"})

	run, err := runs.GetRun(context.Background(), "run-ok")
	require.NoError(t, err)
	require.Equal(t, harvest.RunStatusSucceeded, run.Status)
	require.Equal(t, runner.summary, run.Summary)
	require.Empty(t, run.ErrorText)
	require.NotNil(t, run.Started)
	require.NotNil(t, run.Finished)
}

func TestWorker_ProcessFailureRecordsError(t *testing.T) {
	t.Parallel()

	runs := memory.NewRunStore(nil)
	newRun(t, runs, "run-bad")
	runner := &fakeRunner{
		summary: harvest.Summary{Links: 2, Stored: 1, Retries: 4},
		err:     errors.New("store chapter b: store busy"),
	}
	w := New(queuemem.NewQueue(1), runs, runner, zap.NewNop())

	w.Process(context.Background(), harvest.Task{RunID: "run-bad"})

	run, err := runs.GetRun(context.Background(), "run-bad")
	require.NoError(t, err)
	require.Equal(t, harvest.RunStatusFailed, run.Status)
	require.Equal(t, "store chapter b: store busy", run.ErrorText)
	require.Equal(t, 1, run.Summary.Stored)
}

type staticCollector []harvest.ChapterLink

func (c staticCollector) Collect(context.Context) ([]harvest.ChapterLink, error) {
	return c, nil
}

// deadFetchExtractor behaves like a chapter fetch on a canceled context.
type deadFetchExtractor struct{}

func (deadFetchExtractor) Extract(context.Context, string) (string, bool) {
	return "", false
}

func TestWorker_CanceledHarvestIsRecordedAsFailed(t *testing.T) {
	t.Parallel()

	runs := memory.NewRunStore(nil)
	newRun(t, runs, "run-shutdown")
	pipeline := harvest.NewPipeline(
		staticCollector{{Title: "Prologue", URL: "https://guide.example/prologue/"}},
		deadFetchExtractor{},
		memory.NewChapterStore(), nil, harvest.PipelineConfig{}, zap.NewNop(),
	)
	w := New(queuemem.NewQueue(1), runs, pipeline, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Process(ctx, harvest.Task{RunID: "run-shutdown"})

	run, err := runs.GetRun(context.Background(), "run-shutdown")
	require.NoError(t, err)
	require.Equal(t, harvest.RunStatusFailed, run.Status)
	require.Contains(t, run.ErrorText, "harvest canceled")
}

func TestWorker_NilRunnerFailsRun(t *testing.T) {
	t.Parallel()

	runs := memory.NewRunStore(nil)
	newRun(t, runs, "run-nil")
	w := New(queuemem.NewQueue(1), runs, nil, nil)

	w.Process(context.Background(), harvest.Task{RunID: "run-nil"})

	run, err := runs.GetRun(context.Background(), "run-nil")
	require.NoError(t, err)
	require.Equal(t, harvest.RunStatusFailed, run.Status)
}

func TestWorker_RunConsumesQueueUntilCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queuemem.NewQueue(2)
	runs := memory.NewRunStore(nil)
	newRun(t, runs, "a")
	newRun(t, runs, "b")
	runner := &fakeRunner{}
	w := New(q, runs, runner, zap.NewNop())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.Enqueue(ctx, harvest.Task{RunID: "a"}))
	require.NoError(t, q.Enqueue(ctx, harvest.Task{RunID: "b"}))
	require.Eventually(t, func() bool {
		run, err := runs.GetRun(context.Background(), "b")
		return err == nil && run.Status == harvest.RunStatusSucceeded
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	require.Equal(t, 2, runner.calls)
}

func TestWorker_RunStopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	q := queuemem.NewQueue(1)
	w := New(q, nil, &fakeRunner{}, zap.NewNop())
	q.Close()

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}
