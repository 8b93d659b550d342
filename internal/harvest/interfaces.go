package harvest

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the document. Non-success statuses are
// reported as a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// LinkCollector returns the ordered chapter links of the table of contents.
type LinkCollector interface {
	Collect(ctx context.Context) ([]ChapterLink, error)
}

// ExcerptExtractor returns the leading excerpt of a chapter page, or false
// when the page has none.
type ExcerptExtractor interface {
	Extract(ctx context.Context, url string) (string, bool)
}

// Store persists chapter records keyed by URL.
//
// InsertIfAbsent makes a single attempt. It reports whether a new row was
// created; a duplicate URL is (false, nil). A transient busy condition must be
// returned wrapping ErrContention so callers can retry it.
type Store interface {
	InsertIfAbsent(ctx context.Context, record ChapterRecord) (bool, error)
	ListAll(ctx context.Context) ([]ChapterRecord, error)
	Close() error
}

// Pinger is implemented by stores that can cheaply check connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunStore tracks harvest run lifecycle.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRun(ctx context.Context, runID string, status RunStatus, errText string, summary Summary) error
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context) ([]Run, error)
}

// Publisher pushes new-record notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for harvest tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
