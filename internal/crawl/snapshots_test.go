package crawl

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSnapshotStore_LatestForSchool(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresSnapshotStore(mock)
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	confidence := 0.9

	mock.ExpectQuery(`SELECT id, school_id, domain, as_of, raw_payload, extract_confidence`).
		WithArgs("sch-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "school_id", "domain", "as_of", "raw_payload", "extract_confidence",
		}).AddRow(int64(3), "sch-1", "sunriseaviation.com", asOf, []byte(`{"fleet_size":12}`), &confidence))

	snap, err := store.LatestForSchool(context.Background(), "sch-1")

	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(3), snap.ID)
	assert.Equal(t, asOf, snap.AsOf)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotStore_LatestForSchool_NeverCrawled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresSnapshotStore(mock)

	mock.ExpectQuery(`SELECT id, school_id, domain, as_of, raw_payload, extract_confidence`).
		WithArgs("sch-9").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "school_id", "domain", "as_of", "raw_payload", "extract_confidence",
		}))

	snap, err := store.LatestForSchool(context.Background(), "sch-9")

	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}
