package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_CandidatePairs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// The query itself carries the idempotency guarantees: tombstoned
	// schools and already-reviewed pairs are filtered server-side.
	mock.ExpectQuery(`(?s)FROM schools a.+a.merged_into IS NULL AND b.merged_into IS NULL.+NOT EXISTS.+FROM dedupe_reviews`).
		WithArgs(0.4).
		WillReturnRows(pgxmock.NewRows([]string{
			"a_id", "a_name", "a_domain", "a_phone", "a_city", "a_state", "a_created",
			"b_id", "b_name", "b_domain", "b_phone", "b_city", "b_state", "b_created",
		}).AddRow(
			"sch-a", "Sunrise Aviation", "sunriseaviation.com", "(386) 555-0199", "Ormond Beach", "FL", created,
			"sch-b", "Sunrise Aviation Inc", "", "(386) 555-0199", "Ormond Beach", "FL", created.Add(time.Hour),
		))

	pairs, err := store.CandidatePairs(context.Background(), 0.4)

	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "sch-a", pairs[0].A.ID)
	assert.Equal(t, "Sunrise Aviation Inc", pairs[0].B.CanonicalName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Merge(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE schools SET merged_into`).
		WithArgs("sch-win", "sch-lose").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE facts SET school_id`).
		WithArgs("sch-win", "sch-lose").
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))
	mock.ExpectExec(`DELETE FROM facts WHERE school_id`).
		WithArgs("sch-lose").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE snapshots SET school_id`).
		WithArgs("sch-win", "sch-lose").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	// Failed and processing entries go too; only completed history survives.
	mock.ExpectExec(`DELETE FROM crawl_queue WHERE school_id = \$1 AND status <> 'completed'`).
		WithArgs("sch-lose").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE schools w SET`).
		WithArgs("sch-win", "sch-lose").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = store.Merge(context.Background(), "sch-win", "sch-lose")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Merge_AlreadyMerged(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE schools SET merged_into`).
		WithArgs("sch-win", "sch-lose").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = store.Merge(context.Background(), "sch-win", "sch-lose")

	require.NoError(t, err, "re-merging a tombstone is a no-op")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordReview(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	// Canonical order regardless of argument order.
	mock.ExpectExec(`INSERT INTO dedupe_reviews`).
		WithArgs("sch-a", "sch-b", 0.55).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.RecordReview(context.Background(), "sch-b", "sch-a", 0.55)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
