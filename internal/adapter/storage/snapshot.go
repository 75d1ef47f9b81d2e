package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

var ErrNotFound = errors.New("not found")

// SnapshotRepository keeps the last known-good ledger state so the service
// can start without the remote store.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Load returns the stored snapshot, or ErrNotFound on a fresh database.
func (r *SnapshotRepository) Load(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var state []byte
	err := r.db.QueryRow(ctx, `SELECT state FROM ledger_snapshots WHERE id = 1`).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if err := json.Unmarshal(state, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Save replaces the stored snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, snap domain.Snapshot) error {
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_snapshots (id, state, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`, state)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return tx.Commit(ctx)
}
