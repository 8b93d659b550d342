// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
)

// ChapterStore keeps chapter records in memory, keyed by URL.
type ChapterStore struct {
	mu      sync.RWMutex
	records []harvest.ChapterRecord
	byURL   map[string]struct{}
	nextID  int64
}

// NewChapterStore constructs an empty ChapterStore.
func NewChapterStore() *ChapterStore {
	return &ChapterStore{byURL: make(map[string]struct{})}
}

// InsertIfAbsent appends record unless its URL is already present.
func (s *ChapterStore) InsertIfAbsent(_ context.Context, record harvest.ChapterRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byURL[record.URL]; exists {
		return false, nil
	}
	s.nextID++
	record.SequenceID = s.nextID
	s.records = append(s.records, record)
	s.byURL[record.URL] = struct{}{}
	return true, nil
}

// ListAll returns a copy of every record in insertion order.
func (s *ChapterStore) ListAll(_ context.Context) ([]harvest.ChapterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]harvest.ChapterRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Close is a no-op.
func (s *ChapterStore) Close() error {
	return nil
}
