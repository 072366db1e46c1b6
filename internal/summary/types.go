package summary

import (
	"fmt"
	"strings"
	"time"
)

// Status enumerates the lifecycle states of a summary record.
type Status string

const (
	// StatusPending marks a record that was accepted but not yet picked up.
	StatusPending Status = "pending"
	// StatusProcessing marks a record whose task is fetching or summarizing.
	StatusProcessing Status = "processing"
	// StatusCompleted marks a record that carries a generated summary.
	StatusCompleted Status = "completed"
	// StatusFailed marks a record whose summary field holds an error description.
	StatusFailed Status = "failed"
)

// ParseStatus converts a stored string into a Status.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown summary status %q", raw)
	}
}

// Terminal reports whether no further automatic transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the lifecycle permits moving from one status to another.
// Every transition is strictly forward, so a status can only be claimed once.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// Predecessors lists the statuses a record may be in for a write of to to be
// allowed. Stores use it to guard status writes in the same statement.
func Predecessors(to Status) []Status {
	var out []Status
	for _, from := range allStatuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Record is a single summarization request and its outcome.
type Record struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// QueueItem is the unit of background work handed to the worker pool.
type QueueItem struct {
	RecordID  int64
	URL       string
	Submitted int64
}
