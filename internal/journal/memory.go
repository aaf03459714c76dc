package journal

import (
	"context"
	"fmt"
	"sync"
)

// MemoryJournal is an in-memory, thread-safe Journal for tests and for
// single-process deployments without durable storage. Entries handed out
// are copies; only Append changes the chain.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []*Entry
}

// New creates a MemoryJournal holding only the genesis entry.
func New() *MemoryJournal {
	return &MemoryJournal{entries: []*Entry{genesisEntry()}}
}

// Append implements Journal.
func (j *MemoryJournal) Append(_ context.Context, participant, kind string, payload any) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, err := newEntry(j.entries[len(j.entries)-1], participant, kind, payload)
	if err != nil {
		return nil, err
	}
	j.entries = append(j.entries, e)
	return e.clone(), nil
}

// Get implements Journal.
func (j *MemoryJournal) Get(_ context.Context, index int) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if index < 0 || index >= len(j.entries) {
		return nil, fmt.Errorf("%w: index %d", ErrNotFound, index)
	}
	return j.entries[index].clone(), nil
}

// Len implements Journal.
func (j *MemoryJournal) Len(_ context.Context) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries), nil
}

// Verify implements Journal.
func (j *MemoryJournal) Verify(_ context.Context) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var prev *Entry
	for _, curr := range j.entries {
		if err := verifyLink(prev, curr); err != nil {
			return err
		}
		prev = curr
	}
	return nil
}

// Root implements Journal.
func (j *MemoryJournal) Root(_ context.Context) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.entries[len(j.entries)-1].Hash, nil
}

// List implements Journal.
func (j *MemoryJournal) List(_ context.Context, participant string, limit int) ([]*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []*Entry
	for i := len(j.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		e := j.entries[i]
		if participant != "" && e.Participant != participant {
			continue
		}
		out = append(out, e.clone())
	}
	return out, nil
}
