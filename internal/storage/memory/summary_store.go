// Package memory provides an in-process summary store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/page-summarizer/internal/summary"
)

// SummaryStore keeps records in a map guarded by a RWMutex. Ids are assigned sequentially from 1.
type SummaryStore struct {
	mu      sync.RWMutex
	records map[int64]summary.Record
	nextID  int64
	clock   summary.Clock
}

// NewSummaryStore constructs a SummaryStore stamping creation times from clock.
func NewSummaryStore(clock summary.Clock) *SummaryStore {
	return &SummaryStore{
		records: make(map[int64]summary.Record),
		nextID:  1,
		clock:   clock,
	}
}

// Create stores a new pending record for url.
func (s *SummaryStore) Create(_ context.Context, url string) (summary.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := summary.Record{
		ID:        s.nextID,
		URL:       url,
		Status:    summary.StatusPending,
		CreatedAt: s.clock.Now(),
	}
	s.records[rec.ID] = rec
	s.nextID++
	return rec, nil
}

// Get fetches a record by id.
func (s *SummaryStore) Get(_ context.Context, id int64) (summary.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return summary.Record{}, summary.ErrNotFound
	}
	return rec, nil
}

// UpdateContent replaces url and summary text. Status is left as stored.
func (s *SummaryStore) UpdateContent(_ context.Context, id int64, url, text string) (summary.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return summary.Record{}, summary.ErrNotFound
	}
	rec.URL = url
	rec.Summary = text
	s.records[id] = rec
	return rec, nil
}

// SetStatus moves a record to status to, leaving its text alone.
func (s *SummaryStore) SetStatus(_ context.Context, id int64, to summary.Status) (summary.Record, error) {
	return s.transition(id, to, nil)
}

// SetOutcome moves a record to status to and replaces its summary text.
func (s *SummaryStore) SetOutcome(_ context.Context, id int64, to summary.Status, text string) (summary.Record, error) {
	return s.transition(id, to, &text)
}

func (s *SummaryStore) transition(id int64, to summary.Status, text *string) (summary.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return summary.Record{}, summary.ErrNotFound
	}
	if !summary.CanTransition(rec.Status, to) {
		return summary.Record{}, summary.ErrInvalidTransition
	}
	rec.Status = to
	if text != nil {
		rec.Summary = *text
	}
	s.records[id] = rec
	return rec, nil
}

// Delete removes a record and returns what was removed.
func (s *SummaryStore) Delete(_ context.Context, id int64) (summary.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return summary.Record{}, summary.ErrNotFound
	}
	delete(s.records, id)
	return rec, nil
}

// List returns every record ordered by id.
func (s *SummaryStore) List(_ context.Context) ([]summary.Record, error) {
	return s.collect(func(summary.Record) bool { return true }), nil
}

// ListByStatus returns the records currently in status, ordered by id.
func (s *SummaryStore) ListByStatus(_ context.Context, status summary.Status) ([]summary.Record, error) {
	return s.collect(func(r summary.Record) bool { return r.Status == status }), nil
}

// Ping always succeeds.
func (s *SummaryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *SummaryStore) Close() error { return nil }

func (s *SummaryStore) collect(keep func(summary.Record) bool) []summary.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]summary.Record, 0, len(s.records))
	for _, rec := range s.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
