package facts

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/e-roy/find-a-flight-school-sub001/internal/db"
	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resilience"
)

// Store defines persistence operations for the append-only fact store.
type Store interface {
	Append(ctx context.Context, facts []model.Fact) (int, error)
	Moderate(ctx context.Context, schoolID, factKey string, asOf time.Time, decision model.ModerationStatus) error
	Current(ctx context.Context, schoolID string) ([]model.Fact, error)
	History(ctx context.Context, schoolID, factKey string) ([]model.Fact, error)
	CountApproved(ctx context.Context, schoolID string) (int, error)
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a fact store over the given pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const factMigration = `
CREATE TABLE IF NOT EXISTS facts (
	school_id         UUID NOT NULL REFERENCES schools(id),
	fact_key          TEXT NOT NULL,
	fact_value        JSONB NOT NULL,
	provenance        TEXT NOT NULL
		CHECK (provenance IN ('CRAWL', 'CLAIM', 'GOOGLE', 'ADMIN')),
	moderation_status TEXT NOT NULL DEFAULT 'PENDING'
		CHECK (moderation_status IN ('PENDING', 'APPROVED', 'REJECTED')),
	as_of             TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (school_id, fact_key, as_of)
);

CREATE INDEX IF NOT EXISTS idx_facts_current
	ON facts(school_id, fact_key, as_of DESC)
	WHERE moderation_status = 'APPROVED';
`

// Migrate creates the facts table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, factMigration)
	return eris.Wrap(err, "facts: migrate")
}

// Append inserts fact versions, skipping rows whose natural key
// (school_id, fact_key, as_of) already exists. Re-ingesting the same snapshot
// is therefore a no-op. Returns the number of rows actually written.
func (s *PostgresStore) Append(ctx context.Context, facts []model.Fact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(facts))
	for i, f := range facts {
		value, err := f.FactValue.MarshalValue()
		if err != nil {
			return 0, err
		}
		rows[i] = []any{f.SchoolID, f.FactKey, value, string(f.Provenance),
			string(f.ModerationStatus), f.AsOf}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "facts",
		Columns: []string{"school_id", "fact_key", "fact_value", "provenance",
			"moderation_status", "as_of"},
		ConflictKeys: []string{"school_id", "fact_key", "as_of"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "facts: append")
	}
	return int(n), nil
}

// Moderate applies a one-time PENDING -> {APPROVED, REJECTED} transition.
// A version already moderated returns a conflict; a missing version, not
// found. Approved and rejected are terminal.
func (s *PostgresStore) Moderate(ctx context.Context, schoolID, factKey string, asOf time.Time, decision model.ModerationStatus) error {
	if decision != model.ModerationApproved && decision != model.ModerationRejected {
		return resilience.NewValidationError("invalid moderation decision %q", decision)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE facts SET moderation_status = $4
		WHERE school_id = $1 AND fact_key = $2 AND as_of = $3
		AND moderation_status = 'PENDING'`,
		schoolID, factKey, asOf, string(decision))
	if err != nil {
		return eris.Wrapf(err, "facts: moderate %s/%s", schoolID, factKey)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing version from a terminal one.
	var status string
	err = s.pool.QueryRow(ctx, `
		SELECT moderation_status FROM facts
		WHERE school_id = $1 AND fact_key = $2 AND as_of = $3`,
		schoolID, factKey, asOf).Scan(&status)
	if err != nil {
		return resilience.NewNotFoundError("fact version", schoolID+"/"+factKey)
	}
	return resilience.NewConflictError("fact version %s/%s already moderated to %s", schoolID, factKey, status)
}

const factColumns = `school_id, fact_key, fact_value, provenance, moderation_status, as_of, created_at`

// Current returns the newest APPROVED version of each fact key for the
// school. Pending and rejected versions are invisible here.
func (s *PostgresStore) Current(ctx context.Context, schoolID string) ([]model.Fact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (fact_key) `+factColumns+`
		FROM facts
		WHERE school_id = $1 AND moderation_status = 'APPROVED'
		ORDER BY fact_key, as_of DESC`,
		schoolID)
	if err != nil {
		return nil, eris.Wrap(err, "facts: current facts")
	}
	defer rows.Close()
	return scanFacts(rows)
}

// History returns every version of one fact key, newest first, regardless of
// moderation state.
func (s *PostgresStore) History(ctx context.Context, schoolID, factKey string) ([]model.Fact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+factColumns+`
		FROM facts
		WHERE school_id = $1 AND fact_key = $2
		ORDER BY as_of DESC`,
		schoolID, factKey)
	if err != nil {
		return nil, eris.Wrap(err, "facts: fact history")
	}
	defer rows.Close()
	return scanFacts(rows)
}

// CountApproved counts distinct approved fact keys for the school. Duplicate
// clustering uses this as the richness measure when electing a canonical.
func (s *PostgresStore) CountApproved(ctx context.Context, schoolID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT fact_key) FROM facts
		WHERE school_id = $1 AND moderation_status = 'APPROVED'`,
		schoolID).Scan(&count)
	return count, eris.Wrap(err, "facts: count approved")
}

type factRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanFacts(rows factRows) ([]model.Fact, error) {
	var facts []model.Fact
	for rows.Next() {
		var f model.Fact
		var value []byte
		var prov, status string
		if err := rows.Scan(&f.SchoolID, &f.FactKey, &value, &prov, &status,
			&f.AsOf, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "facts: scan fact")
		}
		fv, err := model.UnmarshalValue(value)
		if err != nil {
			return nil, err
		}
		f.FactValue = fv
		f.Provenance = model.Provenance(prov)
		f.ModerationStatus = model.ModerationStatus(status)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
