package pool

import "context"

// Sequencer runs top-level pool calls one at a time, giving concurrent
// callers the single-threaded execution model the guard assumes. Nested
// calls made from inside fn (by asset receivers) do not pass through it.
type Sequencer struct {
	slot chan struct{}
}

// NewSequencer creates an idle Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{slot: make(chan struct{}, 1)}
}

// Do waits for the sequencer to be idle, then runs fn. It returns ctx.Err()
// if ctx is done before fn could start.
func (s *Sequencer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.slot }()
	return fn(ctx)
}
