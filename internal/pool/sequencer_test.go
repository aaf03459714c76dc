package pool_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmerrifield20/minipool/internal/pool"
)

func TestSequencer_serializesConcurrentCalls(t *testing.T) {
	p, tok := newPool(t, pool.Safe)
	seq := pool.NewSequencer()

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- seq.Do(ctx, func(ctx context.Context) error {
				_, err := p.Deposit(ctx, alice, 2)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	// Without the sequencer overlapping calls would trip the guard.
	for err := range errs {
		if err != nil {
			t.Errorf("sequenced Deposit: %v", err)
		}
	}
	if got := p.BalanceOf(alice); got != 2*workers {
		t.Errorf("balance: got %d, want %d", got, 2*workers)
	}
	assertConserved(t, p, tok)
}

func TestSequencer_contextCancelledWhileWaiting(t *testing.T) {
	seq := pool.NewSequencer()

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = seq.Do(ctx, func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started
	defer close(hold)

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	ran := false
	err := seq.Do(cctx, func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if ran {
		t.Error("fn ran despite cancelled context")
	}
}

func TestSequencer_propagatesError(t *testing.T) {
	seq := pool.NewSequencer()
	boom := errors.New("boom")

	if err := seq.Do(ctx, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	// The slot is free again.
	if err := seq.Do(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
}
