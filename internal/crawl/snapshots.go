package crawl

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/e-roy/find-a-flight-school-sub001/internal/db"
	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

// SnapshotStore persists immutable crawl captures. Rows are insert-only.
type SnapshotStore interface {
	Insert(ctx context.Context, snap *model.Snapshot) (int64, error)
	LatestForSchool(ctx context.Context, schoolID string) (*model.Snapshot, error)
}

// PostgresSnapshotStore implements SnapshotStore using pgx.
type PostgresSnapshotStore struct {
	pool db.Pool
}

// NewPostgresSnapshotStore creates a snapshot store over the given pool.
func NewPostgresSnapshotStore(pool db.Pool) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{pool: pool}
}

// Insert appends a snapshot and returns its id.
func (s *PostgresSnapshotStore) Insert(ctx context.Context, snap *model.Snapshot) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO snapshots (school_id, domain, as_of, raw_payload, extract_confidence)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		snap.SchoolID, snap.Domain, snap.AsOf, snap.RawPayload, snap.ExtractConfidence,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "crawl: insert snapshot for school %s", snap.SchoolID)
	}
	return id, nil
}

// LatestForSchool returns the most recent snapshot, or (nil, nil) when the
// school has never been crawled.
func (s *PostgresSnapshotStore) LatestForSchool(ctx context.Context, schoolID string) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, school_id, domain, as_of, raw_payload, extract_confidence
		FROM snapshots
		WHERE school_id = $1
		ORDER BY as_of DESC
		LIMIT 1`,
		schoolID,
	).Scan(&snap.ID, &snap.SchoolID, &snap.Domain, &snap.AsOf,
		&snap.RawPayload, &snap.ExtractConfidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "crawl: latest snapshot")
	}
	return &snap, nil
}
