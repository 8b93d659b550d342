// Package worker executes queued harvest runs.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
	"github.com/JakeFAU/guide-quotes/internal/metrics"
)

// Runner performs a single harvest.
type Runner interface {
	Run(ctx context.Context) (harvest.Summary, error)
}

// Worker consumes queued tasks and runs the harvest pipeline for each.
type Worker struct {
	queue  harvest.Queue
	runs   harvest.RunStore
	runner Runner
	logger *zap.Logger
}

// New constructs a Worker.
func New(queue harvest.Queue, runs harvest.RunStore, runner Runner, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:  queue,
		runs:   runs,
		runner: runner,
		logger: logger,
	}
}

// Run blocks, consuming tasks until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, harvest.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued harvest", zap.String("run_id", task.RunID))
		w.Process(ctx, task)
	}
}

// Process runs one task to completion and records the outcome.
func (w *Worker) Process(ctx context.Context, task harvest.Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.String("run_id", task.RunID))
	w.update(ctx, logger, task.RunID, harvest.RunStatusRunning, "", harvest.Summary{})
	logger.Info("harvest started")

	if w.runner == nil {
		w.finish(ctx, logger, task.RunID, harvest.Summary{}, errors.New("no harvest pipeline configured"))
		return
	}
	summary, err := w.runner.Run(ctx)
	w.finish(ctx, logger, task.RunID, summary, err)
}

func (w *Worker) finish(ctx context.Context, logger *zap.Logger, runID string, summary harvest.Summary, runErr error) {
	status := harvest.RunStatusSucceeded
	errText := ""
	if runErr != nil {
		status = harvest.RunStatusFailed
		errText = runErr.Error()
	}
	// The run record must still be written when ctx was canceled mid-harvest.
	w.update(context.WithoutCancel(ctx), logger, runID, status, errText, summary)
	metrics.ObserveHarvest(string(status))

	fields := []zap.Field{
		zap.String("status", string(status)),
		zap.Int("links", summary.Links),
		zap.Int("stored", summary.Stored),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("skipped", summary.Skipped),
		zap.Int("retries", summary.Retries),
	}
	if runErr != nil {
		logger.Error("harvest failed", append(fields, zap.Error(runErr))...)
		return
	}
	logger.Info("harvest finished", fields...)
}

func (w *Worker) update(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	status harvest.RunStatus,
	errText string,
	summary harvest.Summary,
) {
	if w.runs == nil || runID == "" {
		return
	}
	if err := w.runs.UpdateRun(ctx, runID, status, errText, summary); err != nil {
		logger.Error("update run status failed", zap.String("status", string(status)), zap.Error(err))
	}
}
