package service

import (
	"sync"

	"github.com/arturoeanton/docgraph/internal/domain"
)

// Progress is the latest in-memory state of a running import.
type Progress struct {
	ImportID string              `json:"id"`
	Status   domain.ImportStatus `json:"status"`
	Progress int                 `json:"progress"`
	Message  string              `json:"message"`
}

// ProgressTracker holds progress for running imports between database
// writes and fans it out to subscribers.
type ProgressTracker struct {
	mu      sync.RWMutex
	entries map[string]Progress
	subs    map[string][]chan Progress
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		entries: make(map[string]Progress),
		subs:    make(map[string][]chan Progress),
	}
}

// Set records p and notifies subscribers of its import.
func (t *ProgressTracker) Set(p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[p.ImportID] = p

	// Sends never block, and holding the lock keeps Unsubscribe from
	// closing a channel mid-send.
	for _, ch := range t.subs[p.ImportID] {
		select {
		case ch <- p:
		default:
		}
	}
}

// Get returns the tracked progress for id.
func (t *ProgressTracker) Get(id string) (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.entries[id]
	return p, ok
}

// Forget drops the in-memory entry once the database holds the final state.
func (t *ProgressTracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Subscribe returns a channel that receives progress updates for id.
func (t *ProgressTracker) Subscribe(id string) chan Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Progress, 10)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes a channel from subscribers and closes it.
func (t *ProgressTracker) Unsubscribe(id string, ch chan Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(t.subs[id]) == 0 {
		delete(t.subs, id)
	}
	close(ch)
}
