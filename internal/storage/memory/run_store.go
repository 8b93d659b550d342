package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
)

// RunStore keeps harvest run metadata in memory.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]harvest.Run
	clock harvest.Clock
}

// NewRunStore constructs a RunStore. A nil clock uses the wall clock.
func NewRunStore(clock harvest.Clock) *RunStore {
	return &RunStore{
		runs:  make(map[string]harvest.Run),
		clock: clock,
	}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run harvest.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	s.runs[run.ID] = run
	return nil
}

// UpdateRun sets the status, error text and summary of a run. Started is set
// on the first transition to running and Finished on any terminal status.
func (s *RunStore) UpdateRun(
	_ context.Context,
	runID string,
	status harvest.RunStatus,
	errText string,
	summary harvest.Summary,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("update %s: %w", runID, harvest.ErrRunNotFound)
	}
	run.Status = status
	run.ErrorText = errText
	run.Summary = summary
	now := s.now()
	if status == harvest.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(now)
	}
	if isTerminal(status) {
		run.Finished = pointerTime(now)
	}
	s.runs[runID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (harvest.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return harvest.Run{}, fmt.Errorf("get %s: %w", runID, harvest.ErrRunNotFound)
	}
	return run, nil
}

// ListRuns returns every run, most recently submitted first.
func (s *RunStore) ListRuns(_ context.Context) ([]harvest.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]harvest.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Submitted.Equal(out[j].Submitted) {
			return out[i].ID > out[j].ID
		}
		return out[i].Submitted.After(out[j].Submitted)
	})
	return out, nil
}

func (s *RunStore) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status harvest.RunStatus) bool {
	switch status {
	case harvest.RunStatusSucceeded, harvest.RunStatusFailed:
		return true
	default:
		return false
	}
}
