package worker

import "sync"

// Tracker is the set of record ids whose task is running in this process.
// It is shared by every worker and read by the orphan sweep.
type Tracker struct {
	mu     sync.Mutex
	active map[int64]int
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[int64]int)}
}

// Begin marks id as in flight.
func (t *Tracker) Begin(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[id]++
}

// Done clears one in-flight mark for id.
func (t *Tracker) Done(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[id] <= 1 {
		delete(t.active, id)
		return
	}
	t.active[id]--
}

// Active reports whether a task for id is running.
func (t *Tracker) Active(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[id] > 0
}

// Len reports how many distinct ids are in flight.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
