package refresh

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/e-roy/find-a-flight-school-sub001/internal/db"
)

// Store finds schools whose approved fact data has gone stale.
type Store interface {
	StaleSchoolIDs(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a refresh store over the given pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// StaleSchoolIDs returns active schools with a resolved domain whose newest
// APPROVED fact predates olderThan, plus schools with a domain but no
// approved facts at all. Never-crawled schools sort first.
func (s *PostgresStore) StaleSchoolIDs(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT sc.id
		FROM schools sc
		LEFT JOIN LATERAL (
			SELECT max(as_of) AS latest FROM facts f
			WHERE f.school_id = sc.id AND f.moderation_status = 'APPROVED'
		) fr ON true
		WHERE sc.merged_into IS NULL
		  AND sc.domain <> ''
		  AND (fr.latest IS NULL OR fr.latest < $1)
		ORDER BY fr.latest ASC NULLS FIRST
		LIMIT $2`,
		olderThan, limit)
	if err != nil {
		return nil, eris.Wrap(err, "refresh: list stale schools")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "refresh: scan stale school id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
