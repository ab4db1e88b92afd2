// Package school persists canonical school records.
package school

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/e-roy/find-a-flight-school-sub001/internal/db"
	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

// Store defines persistence operations for canonical school records.
type Store interface {
	Create(ctx context.Context, sc *model.School) (string, error)
	GetByID(ctx context.Context, id string) (*model.School, error)
	GetByDomain(ctx context.Context, domain string) (*model.School, error)
	ListActive(ctx context.Context) ([]model.School, error)
	PromoteSeed(ctx context.Context, sd model.SeedCandidate, domain string, confidence float64) error
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a school store over the given pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schoolMigration = `
CREATE TABLE IF NOT EXISTS schools (
	id             UUID PRIMARY KEY,
	canonical_name TEXT NOT NULL,
	domain         TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	merged_into    UUID REFERENCES schools(id),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_schools_domain
	ON schools(domain)
	WHERE domain <> '' AND merged_into IS NULL;
CREATE INDEX IF NOT EXISTS idx_schools_merged_into ON schools(merged_into)
	WHERE merged_into IS NOT NULL;

CREATE EXTENSION IF NOT EXISTS pg_trgm;
CREATE INDEX IF NOT EXISTS idx_schools_name_trgm
	ON schools USING gin (canonical_name gin_trgm_ops);
`

// Migrate creates the schools table, the partial domain uniqueness index, and
// the trigram index used for duplicate candidate generation.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schoolMigration)
	return eris.Wrap(err, "school: migrate")
}

const schoolColumns = `id, canonical_name, domain, phone, city, state,
	merged_into, created_at, updated_at`

// Create inserts a new school record, minting its id.
func (s *PostgresStore) Create(ctx context.Context, sc *model.School) (string, error) {
	id := sc.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO schools (id, canonical_name, domain, phone, city, state)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sc.CanonicalName, normalizeDomain(sc.Domain), sc.Phone, sc.City, sc.State,
	)
	if err != nil {
		return "", eris.Wrapf(err, "school: create %q", sc.CanonicalName)
	}
	return id, nil
}

// GetByID returns the school or (nil, nil) when no row matches.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*model.School, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id)
	return scanSchool(row)
}

// GetByDomain returns the active school owning the domain, or (nil, nil).
// Tombstoned records never match.
func (s *PostgresStore) GetByDomain(ctx context.Context, domain string) (*model.School, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+schoolColumns+`
		FROM schools
		WHERE domain = $1 AND merged_into IS NULL`,
		normalizeDomain(domain))
	return scanSchool(row)
}

// ListActive returns all non-tombstoned schools.
func (s *PostgresStore) ListActive(ctx context.Context) ([]model.School, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+schoolColumns+`
		FROM schools
		WHERE merged_into IS NULL
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "school: list active")
	}
	defer rows.Close()

	var schools []model.School
	for rows.Next() {
		var sc model.School
		if err := rows.Scan(
			&sc.ID, &sc.CanonicalName, &sc.Domain, &sc.Phone, &sc.City,
			&sc.State, &sc.MergedInto, &sc.CreatedAt, &sc.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "school: scan school")
		}
		schools = append(schools, sc)
	}
	return schools, rows.Err()
}

// PromoteSeed materializes a resolved seed as a school record. A school that
// already owns the domain keeps its identity; blank contact fields are filled
// in from the seed.
func (s *PostgresStore) PromoteSeed(ctx context.Context, sd model.SeedCandidate, domain string, confidence float64) error {
	domain = normalizeDomain(domain)

	existing, err := s.GetByDomain(ctx, domain)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err := s.Create(ctx, &model.School{
			CanonicalName: sd.Name,
			Domain:        domain,
			Phone:         sd.Phone,
			City:          sd.City,
			State:         sd.State,
		})
		return err
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE schools SET
			phone = CASE WHEN phone = '' THEN $2 ELSE phone END,
			city  = CASE WHEN city = ''  THEN $3 ELSE city END,
			state = CASE WHEN state = '' THEN $4 ELSE state END,
			updated_at = now()
		WHERE id = $1`,
		existing.ID, sd.Phone, sd.City, sd.State,
	)
	return eris.Wrapf(err, "school: backfill %s", existing.ID)
}

func scanSchool(row pgx.Row) (*model.School, error) {
	var sc model.School
	err := row.Scan(
		&sc.ID, &sc.CanonicalName, &sc.Domain, &sc.Phone, &sc.City,
		&sc.State, &sc.MergedInto, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "school: scan school")
	}
	return &sc, nil
}

// normalizeDomain lowercases and strips scheme, www, path, and port so the
// uniqueness index compares bare hostnames.
func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/:?"); i >= 0 {
		d = d[:i]
	}
	return d
}
