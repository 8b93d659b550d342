// Package harvest defines the chapter harvesting domain: the records persisted
// per chapter, the collaborators the pipeline depends on, and the pipeline
// itself.
package harvest

import "time"

// ChapterLink is one entry of the table of contents.
type ChapterLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ChapterRecord is the persisted (chapter, excerpt) pair. URL is the identity.
type ChapterRecord struct {
	SequenceID int64  `json:"-"`
	Title      string `json:"chapter"`
	URL        string `json:"url"`
	Excerpt    string `json:"quote"`
}

// RunStatus represents the lifecycle state of a harvest run.
type RunStatus string

// Run status values tracked by the run store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Summary tallies what a single harvest run did.
type Summary struct {
	Links      int `json:"links"`
	Stored     int `json:"stored"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Retries    int `json:"retries"`
}

// Run is the metadata tracked for each triggered harvest.
type Run struct {
	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	Submitted time.Time  `json:"submitted_at"`
	Started   *time.Time `json:"started_at,omitempty"`
	Finished  *time.Time `json:"finished_at,omitempty"`
	ErrorText string     `json:"error_text,omitempty"`
	Summary   Summary    `json:"summary"`
}

// Task wraps a harvest run ready to execute.
type Task struct {
	RunID     string
	Submitted int64
}

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}
