// Package journal is an append-only, hash-chained audit log of pool
// operations. Each entry commits to its payload and to the hash of the entry
// before it, so any edit to history breaks Verify.
package journal

import (
	"context"
	"errors"

	"github.com/jmerrifield20/minipool/internal/pool"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by Get for an index outside the chain.
	ErrNotFound = errors.New("journal entry not found")

	// ErrChainBroken is returned by Verify when a link does not hold.
	ErrChainBroken = errors.New("journal chain broken")
)

// Journal is implemented by MemoryJournal and PostgresJournal.
type Journal interface {
	// Append adds a new entry chained to the tail. payload is JSON-marshalled
	// and its SHA-256 is stored as DataHash.
	Append(ctx context.Context, participant, kind string, payload any) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the number of entries, genesis included.
	Len(ctx context.Context) (int, error)

	// Verify walks the whole chain. It returns nil if the chain is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the tail entry.
	Root(ctx context.Context) (string, error)

	// List returns up to limit of the most recent entries, newest first.
	// An empty participant matches every entry; limit <= 0 means no limit.
	List(ctx context.Context, participant string, limit int) ([]*Entry, error)
}

// Recorder adapts j to pool.Recorder, appending one entry per committed
// deposit or withdrawal.
func Recorder(j Journal, logger *zap.Logger) pool.Recorder {
	return pool.RecorderFunc(func(ctx context.Context, rec pool.Record) error {
		e, err := j.Append(ctx, rec.Participant.Hex(), string(rec.Kind), rec)
		if err != nil {
			return err
		}
		logger.Debug("journal entry appended",
			zap.Int("idx", e.Index),
			zap.String("kind", e.Kind),
			zap.String("participant", e.Participant),
		)
		return nil
	})
}
