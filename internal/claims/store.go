// Package claims implements owner verification and owner-submitted edits.
package claims

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/e-roy/find-a-flight-school-sub001/internal/db"
	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

// Store defines persistence operations for ownership claims.
type Store interface {
	Upsert(ctx context.Context, schoolID, email, token string, at time.Time) error
	Get(ctx context.Context, schoolID string) (*model.Claim, error)
	MarkVerified(ctx context.Context, schoolID, token string) (bool, error)
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a claim store over the given pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const claimMigration = `
CREATE TABLE IF NOT EXISTS claims (
	school_id  UUID PRIMARY KEY REFERENCES schools(id),
	email      TEXT NOT NULL,
	token      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'PENDING'
		CHECK (status IN ('PENDING', 'VERIFIED')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the claims table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, claimMigration)
	return eris.Wrap(err, "claims: migrate")
}

// Upsert writes the school's single claim row: a repeat request overwrites in
// place, rotating the token and resetting status to PENDING.
func (s *PostgresStore) Upsert(ctx context.Context, schoolID, email, token string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO claims (school_id, email, token, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'PENDING', $4, $4)
		ON CONFLICT (school_id) DO UPDATE SET
			email = EXCLUDED.email,
			token = EXCLUDED.token,
			status = 'PENDING',
			updated_at = EXCLUDED.updated_at`,
		schoolID, email, token, at)
	return eris.Wrapf(err, "claims: upsert claim for %s", schoolID)
}

// Get returns the school's claim, or (nil, nil) when none exists.
func (s *PostgresStore) Get(ctx context.Context, schoolID string) (*model.Claim, error) {
	var c model.Claim
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT school_id, email, token, status, created_at, updated_at
		FROM claims WHERE school_id = $1`,
		schoolID,
	).Scan(&c.SchoolID, &c.Email, &c.Token, &status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "claims: get claim")
	}
	c.Status = model.ClaimStatus(status)
	return &c, nil
}

// MarkVerified applies the one-time PENDING -> VERIFIED transition for a
// matching token. Returns false when no pending row with that token exists.
func (s *PostgresStore) MarkVerified(ctx context.Context, schoolID, token string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE claims SET status = 'VERIFIED', updated_at = now()
		WHERE school_id = $1 AND token = $2 AND status = 'PENDING'`,
		schoolID, token)
	if err != nil {
		return false, eris.Wrapf(err, "claims: verify claim for %s", schoolID)
	}
	return tag.RowsAffected() > 0, nil
}
