// Package crawl implements the crawl queue, page snapshots, and the worker
// that turns claimed queue entries into snapshots and extracted facts.
package crawl

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/e-roy/find-a-flight-school-sub001/internal/db"
	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resilience"
)

// QueueStore defines persistence operations for the crawl queue.
type QueueStore interface {
	Enqueue(ctx context.Context, schoolID, domain string, scheduledAt time.Time) (*model.CrawlQueueEntry, bool, error)
	Claim(ctx context.Context, limit int) ([]model.CrawlQueueEntry, error)
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, reason string) error
	Retry(ctx context.Context, id int64) (*model.CrawlQueueEntry, error)
	RetryFailed(ctx context.Context, limit int) (int64, error)
	ReapStale(ctx context.Context, cutoff time.Time) (int64, error)
	HasActive(ctx context.Context, schoolID string) (bool, error)
}

// PostgresQueueStore implements QueueStore using pgx.
type PostgresQueueStore struct {
	pool db.Pool
}

// NewPostgresQueueStore creates a queue store over the given pool.
func NewPostgresQueueStore(pool db.Pool) *PostgresQueueStore {
	return &PostgresQueueStore{pool: pool}
}

const queueMigration = `
CREATE TABLE IF NOT EXISTS crawl_queue (
	id           BIGSERIAL PRIMARY KEY,
	school_id    UUID NOT NULL REFERENCES schools(id),
	domain       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	attempts     INT NOT NULL DEFAULT 0,
	scheduled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_crawl_queue_active_school
	ON crawl_queue(school_id)
	WHERE status IN ('pending', 'processing');
CREATE INDEX IF NOT EXISTS idx_crawl_queue_claimable
	ON crawl_queue(scheduled_at)
	WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS snapshots (
	id                  BIGSERIAL PRIMARY KEY,
	school_id           UUID NOT NULL REFERENCES schools(id),
	domain              TEXT NOT NULL,
	as_of               TIMESTAMPTZ NOT NULL DEFAULT now(),
	raw_payload         JSONB NOT NULL,
	extract_confidence  DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_snapshots_school_as_of
	ON snapshots(school_id, as_of DESC);
`

// Migrate creates the crawl queue and snapshot tables.
func (s *PostgresQueueStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, queueMigration)
	return eris.Wrap(err, "crawl: migrate")
}

const queueColumns = `id, school_id, domain, status, attempts, scheduled_at, last_error`

// Enqueue adds a pending entry for the school. When the school already has a
// pending or processing entry it is returned unchanged with created=false;
// the partial uniqueness index makes the no-duplicate guarantee hold under
// concurrent enqueues.
func (s *PostgresQueueStore) Enqueue(ctx context.Context, schoolID, domain string, scheduledAt time.Time) (*model.CrawlQueueEntry, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO crawl_queue (school_id, domain, scheduled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (school_id) WHERE status IN ('pending', 'processing') DO NOTHING
		RETURNING `+queueColumns,
		schoolID, domain, scheduledAt)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, false, err
	}
	if entry != nil {
		return entry, true, nil
	}

	// Lost the conflict: surface the existing active entry.
	row = s.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM crawl_queue
		WHERE school_id = $1 AND status IN ('pending', 'processing')`,
		schoolID)
	entry, err = scanEntry(row)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, eris.Errorf("crawl: active entry for school %s vanished during enqueue", schoolID)
	}
	return entry, false, nil
}

// Claim atomically moves up to limit due pending entries to processing and
// returns them. SKIP LOCKED keeps concurrent workers from claiming the same
// entry; each entry is observed by exactly one worker.
func (s *PostgresQueueStore) Claim(ctx context.Context, limit int) ([]model.CrawlQueueEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, `
		UPDATE crawl_queue SET status = 'processing', updated_at = now()
		FROM (
			SELECT id FROM crawl_queue
			WHERE status = 'pending' AND scheduled_at <= now()
			ORDER BY scheduled_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		) due
		WHERE crawl_queue.id = due.id
		RETURNING crawl_queue.id, crawl_queue.school_id, crawl_queue.domain,
			crawl_queue.status, crawl_queue.attempts, crawl_queue.scheduled_at,
			crawl_queue.last_error`,
		limit)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: claim batch")
	}
	defer rows.Close()

	var entries []model.CrawlQueueEntry
	for rows.Next() {
		var e model.CrawlQueueEntry
		if err := rows.Scan(&e.ID, &e.SchoolID, &e.Domain, &e.Status,
			&e.Attempts, &e.ScheduledAt, &e.LastError); err != nil {
			return nil, eris.Wrap(err, "crawl: scan claimed entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Complete marks a processing entry completed.
func (s *PostgresQueueStore) Complete(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.CrawlCompleted, `
		UPDATE crawl_queue SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'processing'`)
}

// Fail marks a processing entry failed, bumping attempts and recording the
// reason. Failed entries stay put until retried.
func (s *PostgresQueueStore) Fail(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_queue SET
			status = 'failed',
			attempts = attempts + 1,
			last_error = $2,
			updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		id, reason)
	if err != nil {
		return eris.Wrapf(err, "crawl: fail entry %d", id)
	}
	if tag.RowsAffected() == 0 {
		return resilience.NewConflictError("queue entry %d is not processing", id)
	}
	return nil
}

// Retry moves a single failed entry back to pending, preserving its attempts
// count so repeated retries stay observable. Returns a conflict when the
// entry is not currently failed or its school has been merged away.
func (s *PostgresQueueStore) Retry(ctx context.Context, id int64) (*model.CrawlQueueEntry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE crawl_queue SET status = 'pending', scheduled_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'failed'
		AND EXISTS (
			SELECT 1 FROM schools s
			WHERE s.id = crawl_queue.school_id AND s.merged_into IS NULL
		)
		RETURNING `+queueColumns,
		id)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	var status string
	var merged bool
	err = s.pool.QueryRow(ctx, `
		SELECT q.status, s.merged_into IS NOT NULL
		FROM crawl_queue q
		JOIN schools s ON s.id = q.school_id
		WHERE q.id = $1`,
		id).Scan(&status, &merged)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, resilience.NewNotFoundError("queue entry", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "crawl: look up entry %d", id)
	}
	if merged {
		return nil, resilience.NewConflictError("queue entry %d belongs to a merged school", id)
	}
	return nil, resilience.NewConflictError("queue entry %d is %s, not failed", id, status)
}

// RetryFailed re-enqueues up to limit failed entries, preserving their
// attempts counts. A failed entry whose school already has an active entry is
// skipped to keep the one-active-per-school guarantee, and entries pointing
// at merged-away schools are never re-pended.
func (s *PostgresQueueStore) RetryFailed(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_queue SET status = 'pending', scheduled_at = now(), updated_at = now()
		WHERE id IN (
			SELECT f.id FROM crawl_queue f
			JOIN schools s ON s.id = f.school_id AND s.merged_into IS NULL
			WHERE f.status = 'failed'
			AND NOT EXISTS (
				SELECT 1 FROM crawl_queue p
				WHERE p.school_id = f.school_id AND p.status IN ('pending', 'processing')
			)
			ORDER BY f.updated_at ASC
			LIMIT $1
		)`,
		limit)
	if err != nil {
		return 0, eris.Wrap(err, "crawl: retry failed entries")
	}
	return tag.RowsAffected(), nil
}

// ReapStale fails processing entries not touched since cutoff. A worker that
// died mid-pass leaves its claims in processing; without this they would hold
// the per-school active slot forever. Reaped entries count as an attempt and
// go back through the normal failed -> retry path.
func (s *PostgresQueueStore) ReapStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_queue SET
			status = 'failed',
			attempts = attempts + 1,
			last_error = 'processing lease expired',
			updated_at = now()
		WHERE status = 'processing' AND updated_at < $1`,
		cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "crawl: reap stale entries")
	}
	return tag.RowsAffected(), nil
}

// HasActive reports whether the school has a pending or processing entry.
func (s *PostgresQueueStore) HasActive(ctx context.Context, schoolID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM crawl_queue
			WHERE school_id = $1 AND status IN ('pending', 'processing')
		)`,
		schoolID).Scan(&exists)
	return exists, eris.Wrap(err, "crawl: check active entry")
}

func (s *PostgresQueueStore) transition(ctx context.Context, id int64, to model.CrawlStatus, query string) error {
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return eris.Wrapf(err, "crawl: transition entry %d to %s", id, to)
	}
	if tag.RowsAffected() == 0 {
		return resilience.NewConflictError("queue entry %d is not processing", id)
	}
	return nil
}

func scanEntry(row pgx.Row) (*model.CrawlQueueEntry, error) {
	var e model.CrawlQueueEntry
	err := row.Scan(&e.ID, &e.SchoolID, &e.Domain, &e.Status,
		&e.Attempts, &e.ScheduledAt, &e.LastError)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "crawl: scan queue entry")
	}
	return &e, nil
}
