package summary

import (
	"context"
	"time"
)

// Store persists summary records. Each call is atomic on its own; callers
// must not assume any transaction spans more than one call.
//
// Writes are field-scoped. UpdateContent never touches status, and SetStatus
// and SetOutcome never touch url. The status writes only apply when the
// stored status is one of Predecessors(to); otherwise they return
// ErrInvalidTransition and leave the record unchanged.
type Store interface {
	Create(ctx context.Context, url string) (Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	UpdateContent(ctx context.Context, id int64, url, text string) (Record, error)
	SetStatus(ctx context.Context, id int64, to Status) (Record, error)
	SetOutcome(ctx context.Context, id int64, to Status, text string) (Record, error)
	Delete(ctx context.Context, id int64) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// Fetcher downloads a page and returns its readable text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Provider turns article text into a summary of at most maxWords words.
type Provider interface {
	Name() string
	Summarize(ctx context.Context, text string, maxWords int) (string, error)
}

// Queue buffers scheduled summarization work.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Runner executes one summarization task. It never returns an error;
// every outcome is recorded on the record itself.
type Runner interface {
	Run(ctx context.Context, recordID int64, url string)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces opaque identifiers such as request ids.
type IDGenerator interface {
	NewID() (string, error)
}
