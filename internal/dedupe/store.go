package dedupe

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/db"
	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

// CandidatePair is two active schools whose names are similar enough to be
// worth scoring in full.
type CandidatePair struct {
	A model.School
	B model.School
}

// Store defines the dedupe engine's persistence operations.
type Store interface {
	CandidatePairs(ctx context.Context, minNameSim float64) ([]CandidatePair, error)
	Merge(ctx context.Context, winnerID, loserID string) error
	RecordReview(ctx context.Context, aID, bID string, score float64) error
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a dedupe store over the given pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const dedupeMigration = `
CREATE TABLE IF NOT EXISTS dedupe_reviews (
	school_a   UUID NOT NULL REFERENCES schools(id),
	school_b   UUID NOT NULL REFERENCES schools(id),
	score      DOUBLE PRECISION NOT NULL,
	status     TEXT NOT NULL DEFAULT 'OPEN'
		CHECK (status IN ('OPEN', 'MERGED', 'DISMISSED')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (school_a, school_b)
);
`

// Migrate creates the dedupe review table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, dedupeMigration)
	return eris.Wrap(err, "dedupe: migrate")
}

// CandidatePairs returns active school pairs whose trigram name similarity
// clears the candidate floor, or that share a phone number. Tombstoned
// records never pair, and a pair already recorded in dedupe_reviews is never
// re-flagged; together they make a second pass a no-op.
func (s *PostgresStore) CandidatePairs(ctx context.Context, minNameSim float64) ([]CandidatePair, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			a.id, a.canonical_name, a.domain, a.phone, a.city, a.state, a.created_at,
			b.id, b.canonical_name, b.domain, b.phone, b.city, b.state, b.created_at
		FROM schools a
		JOIN schools b ON a.id < b.id
		WHERE a.merged_into IS NULL AND b.merged_into IS NULL
		AND NOT EXISTS (
			SELECT 1 FROM dedupe_reviews r
			WHERE r.school_a = LEAST(a.id, b.id) AND r.school_b = GREATEST(a.id, b.id)
		)
		AND (
			similarity(a.canonical_name, b.canonical_name) >= $1
			OR (a.phone <> '' AND a.phone = b.phone)
		)`,
		minNameSim)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: candidate pairs")
	}
	defer rows.Close()

	var pairs []CandidatePair
	for rows.Next() {
		var p CandidatePair
		if err := rows.Scan(
			&p.A.ID, &p.A.CanonicalName, &p.A.Domain, &p.A.Phone, &p.A.City, &p.A.State, &p.A.CreatedAt,
			&p.B.ID, &p.B.CanonicalName, &p.B.Domain, &p.B.Phone, &p.B.City, &p.B.State, &p.B.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "dedupe: scan candidate pair")
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Merge folds loser into winner in one transaction: facts move to the winner
// except where the winner already holds that (fact_key, as_of) version, the
// loser's snapshots move over, its unfinished crawl work is dropped, and the
// loser is tombstoned via merged_into. Merging an already-merged loser is a
// no-op.
func (s *PostgresStore) Merge(ctx context.Context, winnerID, loserID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "dedupe: begin merge")
	}
	defer tx.Rollback(ctx)

	// Tombstone first; zero rows means another pass already merged it.
	tag, err := tx.Exec(ctx, `
		UPDATE schools SET merged_into = $1, updated_at = now()
		WHERE id = $2 AND merged_into IS NULL`,
		winnerID, loserID)
	if err != nil {
		return eris.Wrapf(err, "dedupe: tombstone %s", loserID)
	}
	if tag.RowsAffected() == 0 {
		zap.L().Debug("dedupe: loser already merged", zap.String("loser", loserID))
		return nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE facts SET school_id = $1
		WHERE school_id = $2
		AND NOT EXISTS (
			SELECT 1 FROM facts w
			WHERE w.school_id = $1
			AND w.fact_key = facts.fact_key
			AND w.as_of = facts.as_of
		)`,
		winnerID, loserID); err != nil {
		return eris.Wrap(err, "dedupe: re-point facts")
	}

	// Colliding versions: the winner already holds that exact version slot.
	if _, err := tx.Exec(ctx,
		`DELETE FROM facts WHERE school_id = $1`, loserID); err != nil {
		return eris.Wrap(err, "dedupe: drop colliding facts")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE snapshots SET school_id = $1 WHERE school_id = $2`,
		winnerID, loserID); err != nil {
		return eris.Wrap(err, "dedupe: re-point snapshots")
	}

	// Completed entries stay as crawl history; everything else would re-pend
	// work for a tombstone.
	if _, err := tx.Exec(ctx,
		`DELETE FROM crawl_queue WHERE school_id = $1 AND status <> 'completed'`,
		loserID); err != nil {
		return eris.Wrap(err, "dedupe: drop crawl work")
	}

	// Backfill blank winner contact fields from the loser.
	if _, err := tx.Exec(ctx, `
		UPDATE schools w SET
			phone = CASE WHEN w.phone = '' THEN l.phone ELSE w.phone END,
			city  = CASE WHEN w.city  = '' THEN l.city  ELSE w.city END,
			state = CASE WHEN w.state = '' THEN l.state ELSE w.state END,
			updated_at = now()
		FROM schools l
		WHERE w.id = $1 AND l.id = $2`,
		winnerID, loserID); err != nil {
		return eris.Wrap(err, "dedupe: backfill winner")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "dedupe: commit merge")
	}

	zap.L().Info("dedupe: merged school",
		zap.String("winner", winnerID),
		zap.String("loser", loserID))
	return nil
}

// RecordReview persists a below-threshold pair for human review. The pair is
// stored in canonical (least, greatest) order; re-recording is a no-op.
func (s *PostgresStore) RecordReview(ctx context.Context, aID, bID string, score float64) error {
	if bID < aID {
		aID, bID = bID, aID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dedupe_reviews (school_a, school_b, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (school_a, school_b) DO NOTHING`,
		aID, bID, score)
	return eris.Wrap(err, "dedupe: record review")
}
