package school

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

func schoolRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "canonical_name", "domain", "phone", "city", "state",
		"merged_into", "created_at", "updated_at",
	})
}

func TestPostgresStore_GetByDomain(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM schools`).
		WithArgs("sunriseaviation.com").
		WillReturnRows(schoolRows().AddRow(
			"sch-1", "Sunrise Aviation", "sunriseaviation.com",
			"+13865550199", "Ormond Beach", "FL", nil, now, now))

	sc, err := store.GetByDomain(context.Background(), "https://www.sunriseaviation.com/contact")

	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, "sch-1", sc.ID)
	assert.False(t, sc.Tombstoned())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByDomain_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectQuery(`SELECT (.+) FROM schools`).
		WithArgs("ghost.com").
		WillReturnRows(schoolRows())

	sc, err := store.GetByDomain(context.Background(), "ghost.com")

	require.NoError(t, err)
	assert.Nil(t, sc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PromoteSeed_CreatesWhenNew(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectQuery(`SELECT (.+) FROM schools`).
		WithArgs("skylineflight.com").
		WillReturnRows(schoolRows())
	mock.ExpectExec(`INSERT INTO schools`).
		WithArgs(pgxmock.AnyArg(), "Skyline Flight Academy", "skylineflight.com", "", "Boulder", "CO").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.PromoteSeed(context.Background(), model.SeedCandidate{
		Name:  "Skyline Flight Academy",
		City:  "Boulder",
		State: "CO",
	}, "skylineflight.com", 0.85)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PromoteSeed_BackfillsExisting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM schools`).
		WithArgs("skylineflight.com").
		WillReturnRows(schoolRows().AddRow(
			"sch-2", "Skyline Flight Academy", "skylineflight.com",
			"", "", "", nil, now, now))
	mock.ExpectExec(`UPDATE schools SET`).
		WithArgs("sch-2", "+13035550123", "Boulder", "CO").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.PromoteSeed(context.Background(), model.SeedCandidate{
		Name:  "Skyline Flight Academy",
		Phone: "+13035550123",
		City:  "Boulder",
		State: "CO",
	}, "skylineflight.com", 0.9)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.sunriseaviation.com/training": "sunriseaviation.com",
		"HTTP://FLY.EXAMPLE.COM:8080":              "fly.example.com",
		"  skylineflight.com  ":                    "skylineflight.com",
		"www.acme.aero?ref=x":                      "acme.aero",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeDomain(in), in)
	}
}
