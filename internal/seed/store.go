// Package seed persists seed candidates and runs batch domain resolution.
package seed

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/e-roy/find-a-flight-school-sub001/internal/db"
	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resilience"
)

// Store defines persistence operations for seed candidates.
type Store interface {
	BulkImport(ctx context.Context, seeds []model.SeedCandidate) (int64, error)
	ListUnresolved(ctx context.Context, limit int) ([]model.SeedCandidate, error)
	UpdateResolution(ctx context.Context, id int64, upd ResolutionUpdate) error
	TouchLastSeen(ctx context.Context, id int64, at time.Time) error
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// ResolutionUpdate is the write-back of one resolver pass. Website is applied
// only when non-empty; Confidence only when it improves on (or initializes)
// the stored value. LastSeenAt always advances.
type ResolutionUpdate struct {
	Website    string
	Method     string
	Confidence *float64
	Evidence   map[string]any
	LastSeenAt time.Time
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a seed store over the given pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const seedMigration = `
CREATE TABLE IF NOT EXISTS seeds (
	id                BIGSERIAL PRIMARY KEY,
	name              TEXT NOT NULL,
	city              TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	country           TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	website           TEXT NOT NULL DEFAULT '',
	resolution_method TEXT NOT NULL DEFAULT '',
	confidence        DOUBLE PRECISION,
	evidence          JSONB,
	first_seen_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen_at      TIMESTAMPTZ,
	UNIQUE (name, city, state)
);

CREATE INDEX IF NOT EXISTS idx_seeds_unresolved
	ON seeds(last_seen_at ASC NULLS FIRST)
	WHERE confidence IS NULL OR confidence < 0.7;
CREATE INDEX IF NOT EXISTS idx_seeds_first_seen_at ON seeds(first_seen_at);
`

// Migrate creates the seeds table and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, seedMigration)
	return eris.Wrap(err, "seed: migrate")
}

// BulkImport inserts seed candidates, ignoring rows already present under the
// (name, city, state) identity.
func (s *PostgresStore) BulkImport(ctx context.Context, seeds []model.SeedCandidate) (int64, error) {
	if len(seeds) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(seeds))
	for i, sd := range seeds {
		rows[i] = []any{sd.Name, sd.City, sd.State, sd.Country, sd.Phone}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "seeds",
		Columns:      []string{"name", "city", "state", "country", "phone"},
		ConflictKeys: []string{"name", "city", "state"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "seed: bulk import")
	}
	return n, nil
}

const seedColumns = `id, name, city, state, country, phone, website,
	resolution_method, confidence, evidence, first_seen_at, last_seen_at`

// ListUnresolved returns unresolved-or-low-confidence seeds in FIFO order:
// never-attempted seeds (NULL last_seen_at) first, then oldest attempts.
func (s *PostgresStore) ListUnresolved(ctx context.Context, limit int) ([]model.SeedCandidate, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+seedColumns+`
		FROM seeds
		WHERE confidence IS NULL OR confidence < $1
		ORDER BY last_seen_at ASC NULLS FIRST, first_seen_at ASC
		LIMIT $2`,
		model.ResolvedThreshold, limit)
	if err != nil {
		return nil, eris.Wrap(err, "seed: list unresolved")
	}
	defer rows.Close()

	return scanSeeds(rows)
}

// UpdateResolution writes back one resolver pass. Confidence never regresses:
// the stored value only changes when the new one improves on or initializes it.
func (s *PostgresStore) UpdateResolution(ctx context.Context, id int64, upd ResolutionUpdate) error {
	var evidenceJSON []byte
	if upd.Evidence != nil {
		var err error
		evidenceJSON, err = json.Marshal(upd.Evidence)
		if err != nil {
			return eris.Wrap(err, "seed: marshal evidence")
		}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE seeds SET
			website = CASE WHEN $2 <> '' THEN $2 ELSE website END,
			resolution_method = CASE WHEN $3 <> '' THEN $3 ELSE resolution_method END,
			confidence = CASE
				WHEN $4::DOUBLE PRECISION IS NULL THEN confidence
				WHEN confidence IS NULL OR $4 > confidence THEN $4
				ELSE confidence
			END,
			evidence = COALESCE($5, evidence),
			last_seen_at = $6
		WHERE id = $1`,
		id, upd.Website, upd.Method, upd.Confidence, evidenceJSON, upd.LastSeenAt,
	)
	if err != nil {
		return eris.Wrapf(err, "seed: update resolution %d", id)
	}
	if tag.RowsAffected() == 0 {
		return resilience.NewNotFoundError("seed", strconv.FormatInt(id, 10))
	}
	return nil
}

// TouchLastSeen advances last_seen_at so a failing seed falls to the back of
// the FIFO queue instead of being retried within the same pass.
func (s *PostgresStore) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE seeds SET last_seen_at = $2 WHERE id = $1`,
		id, at,
	)
	return eris.Wrapf(err, "seed: touch last seen %d", id)
}

// CountCreatedSince counts seeds created at or after the given instant. The
// quota guard uses this as its approximate activity counter.
func (s *PostgresStore) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM seeds WHERE first_seen_at >= $1`,
		since,
	).Scan(&count)
	return count, eris.Wrap(err, "seed: count created since")
}

func scanSeeds(rows pgx.Rows) ([]model.SeedCandidate, error) {
	var seeds []model.SeedCandidate
	for rows.Next() {
		var sd model.SeedCandidate
		var evidenceJSON []byte
		if err := rows.Scan(
			&sd.ID, &sd.Name, &sd.City, &sd.State, &sd.Country, &sd.Phone,
			&sd.Website, &sd.ResolutionMethod, &sd.Confidence, &evidenceJSON,
			&sd.FirstSeenAt, &sd.LastSeenAt,
		); err != nil {
			return nil, eris.Wrap(err, "seed: scan seed")
		}
		if len(evidenceJSON) > 0 {
			if err := json.Unmarshal(evidenceJSON, &sd.Evidence); err != nil {
				return nil, eris.Wrap(err, "seed: unmarshal evidence")
			}
		}
		seeds = append(seeds, sd)
	}
	return seeds, rows.Err()
}
