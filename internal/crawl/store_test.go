package crawl

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resilience"
)

func queueRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "school_id", "domain", "status", "attempts", "scheduled_at", "last_error",
	})
}

func TestPostgresQueueStore_Enqueue_Creates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)
	at := time.Now()

	mock.ExpectQuery(`INSERT INTO crawl_queue`).
		WithArgs("sch-1", "sunriseaviation.com", at).
		WillReturnRows(queueRows().AddRow(
			int64(10), "sch-1", "sunriseaviation.com", "pending", 0, at, ""))

	entry, created, err := store.Enqueue(context.Background(), "sch-1", "sunriseaviation.com", at)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(10), entry.ID)
	assert.Equal(t, model.CrawlPending, entry.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_Enqueue_ReturnsExistingPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)
	at := time.Now()

	mock.ExpectQuery(`INSERT INTO crawl_queue`).
		WithArgs("sch-1", "sunriseaviation.com", at).
		WillReturnRows(queueRows())
	mock.ExpectQuery(`SELECT (.+) FROM crawl_queue`).
		WithArgs("sch-1").
		WillReturnRows(queueRows().AddRow(
			int64(7), "sch-1", "sunriseaviation.com", "pending", 2, at.Add(-time.Hour), ""))

	entry, created, err := store.Enqueue(context.Background(), "sch-1", "sunriseaviation.com", at)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(7), entry.ID)
	assert.Equal(t, 2, entry.Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_Claim(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)
	at := time.Now()

	mock.ExpectQuery(`UPDATE crawl_queue SET status = 'processing'`).
		WithArgs(2).
		WillReturnRows(queueRows().
			AddRow(int64(1), "sch-1", "a.com", "processing", 0, at, "").
			AddRow(int64(2), "sch-2", "b.com", "processing", 1, at, "timeout"))

	entries, err := store.Claim(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.CrawlProcessing, entries[0].Status)
	assert.Equal(t, 1, entries[1].Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_Fail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)

	mock.ExpectExec(`UPDATE crawl_queue SET`).
		WithArgs(int64(3), "extract: 502 from upstream").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.Fail(context.Background(), 3, "extract: 502 from upstream")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_Complete_NotProcessing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)

	mock.ExpectExec(`UPDATE crawl_queue SET status = 'completed'`).
		WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.Complete(context.Background(), 4)

	assert.True(t, resilience.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_Retry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)
	at := time.Now()

	mock.ExpectQuery(`UPDATE crawl_queue SET status = 'pending'`).
		WithArgs(int64(9)).
		WillReturnRows(queueRows().AddRow(
			int64(9), "sch-1", "a.com", "pending", 2, at, "extract: 502 from upstream"))

	entry, err := store.Retry(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, model.CrawlPending, entry.Status)
	assert.Equal(t, 2, entry.Attempts, "attempts survive the retry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_Retry_NotFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)

	mock.ExpectQuery(`UPDATE crawl_queue SET status = 'pending'`).
		WithArgs(int64(9)).
		WillReturnRows(queueRows())
	mock.ExpectQuery(`SELECT q.status, s.merged_into IS NOT NULL`).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "merged"}).AddRow("completed", false))

	_, err = store.Retry(context.Background(), 9)

	assert.True(t, resilience.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_Retry_MergedSchool(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)

	// The failed entry exists but its school was folded into another record;
	// re-pending it would crawl for a tombstone.
	mock.ExpectQuery(`UPDATE crawl_queue SET status = 'pending'`).
		WithArgs(int64(9)).
		WillReturnRows(queueRows())
	mock.ExpectQuery(`SELECT q.status, s.merged_into IS NOT NULL`).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "merged"}).AddRow("failed", true))

	_, err = store.Retry(context.Background(), 9)

	assert.True(t, resilience.IsConflict(err))
	assert.ErrorContains(t, err, "merged school")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_Retry_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)

	mock.ExpectQuery(`UPDATE crawl_queue SET status = 'pending'`).
		WithArgs(int64(404)).
		WillReturnRows(queueRows())
	mock.ExpectQuery(`SELECT q.status, s.merged_into IS NOT NULL`).
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "merged"}))

	_, err = store.Retry(context.Background(), 404)

	assert.True(t, resilience.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_RetryFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)

	// Re-pending is restricted to entries whose school is still live.
	mock.ExpectExec(`(?s)UPDATE crawl_queue SET status = 'pending'.+JOIN schools s ON s.id = f.school_id AND s.merged_into IS NULL`).
		WithArgs(50).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.RetryFailed(context.Background(), 50)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueueStore_ReapStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresQueueStore(mock)
	cutoff := time.Now().Add(-15 * time.Minute)

	mock.ExpectExec(`UPDATE crawl_queue SET\s+status = 'failed'`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := store.ReapStale(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
