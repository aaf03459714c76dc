package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey serialises Append across every poold instance sharing a
// database. The value is arbitrary but must never change.
const advisoryLockKey = int64(2_024_061_901)

const entryColumns = `idx, id, ts, participant, kind, payload, data_hash, prev_hash, hash`

// PostgresJournal persists the journal to the pool_journal table created by
// migrations/001_pool_journal.up.sql.
type PostgresJournal struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresJournal creates a PostgresJournal backed by db.
func NewPostgresJournal(db *pgxpool.Pool, logger *zap.Logger) *PostgresJournal {
	return &PostgresJournal{db: db, logger: logger}
}

// Append implements Journal. The tail read and the insert run in one
// transaction holding a transaction-scoped advisory lock.
func (j *PostgresJournal) Append(ctx context.Context, participant, kind string, payload any) (*Entry, error) {
	tx, err := j.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	tail, err := scanEntry(tx.QueryRow(ctx,
		"SELECT "+entryColumns+" FROM pool_journal ORDER BY idx DESC LIMIT 1"))
	if err != nil {
		return nil, fmt.Errorf("read journal tail: %w", err)
	}

	e, err := newEntry(tail, participant, kind, payload)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO pool_journal (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.Index, e.ID, e.Timestamp, e.Participant, e.Kind,
		string(e.Payload), e.DataHash, e.PrevHash, e.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit journal tx: %w", err)
	}
	return e, nil
}

// Get implements Journal.
func (j *PostgresJournal) Get(ctx context.Context, index int) (*Entry, error) {
	e, err := scanEntry(j.db.QueryRow(ctx,
		"SELECT "+entryColumns+" FROM pool_journal WHERE idx = $1", index))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: index %d", ErrNotFound, index)
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry %d: %w", index, err)
	}
	return e, nil
}

// Len implements Journal.
func (j *PostgresJournal) Len(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRow(ctx, "SELECT COUNT(*) FROM pool_journal").Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return n, nil
}

// Verify implements Journal. It streams every row in index order.
func (j *PostgresJournal) Verify(ctx context.Context) error {
	rows, err := j.db.Query(ctx, "SELECT "+entryColumns+" FROM pool_journal ORDER BY idx ASC")
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var prev *Entry
	n := 0
	for rows.Next() {
		curr, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scan journal row: %w", err)
		}
		if err := verifyLink(prev, curr); err != nil {
			return err
		}
		prev = curr
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	j.logger.Debug("journal verified", zap.Int("entries", n))
	return nil
}

// Root implements Journal.
func (j *PostgresJournal) Root(ctx context.Context) (string, error) {
	var hash string
	if err := j.db.QueryRow(ctx,
		"SELECT hash FROM pool_journal ORDER BY idx DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("read journal root: %w", err)
	}
	return hash, nil
}

// List implements Journal.
func (j *PostgresJournal) List(ctx context.Context, participant string, limit int) ([]*Entry, error) {
	q := "SELECT " + entryColumns + " FROM pool_journal"
	var args []any
	if participant != "" {
		args = append(args, participant)
		q += fmt.Sprintf(" WHERE participant = $%d", len(args))
	}
	q += " ORDER BY idx DESC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := j.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e       Entry
		payload *string
	)
	if err := row.Scan(
		&e.Index, &e.ID, &e.Timestamp, &e.Participant, &e.Kind,
		&payload, &e.DataHash, &e.PrevHash, &e.Hash,
	); err != nil {
		return nil, err
	}
	if payload != nil {
		e.Payload = []byte(*payload)
	}
	e.Timestamp = e.Timestamp.UTC()
	return &e, nil
}
