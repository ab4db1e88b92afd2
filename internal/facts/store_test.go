package facts

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

func TestPostgresStore_Moderate_Approves(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE facts SET moderation_status`).
		WithArgs("sch-1", "phone", asOf, "APPROVED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.Moderate(context.Background(), "sch-1", "phone", asOf, model.ModerationApproved)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Moderate_TerminalIsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE facts SET moderation_status`).
		WithArgs("sch-1", "phone", asOf, "REJECTED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT moderation_status FROM facts`).
		WithArgs("sch-1", "phone", asOf).
		WillReturnRows(pgxmock.NewRows([]string{"moderation_status"}).AddRow("APPROVED"))

	err = store.Moderate(context.Background(), "sch-1", "phone", asOf, model.ModerationRejected)

	assert.True(t, resilience.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Moderate_MissingIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	asOf := time.Now()

	mock.ExpectExec(`UPDATE facts SET moderation_status`).
		WithArgs("sch-1", "email", asOf, "APPROVED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT moderation_status FROM facts`).
		WithArgs("sch-1", "email", asOf).
		WillReturnRows(pgxmock.NewRows([]string{"moderation_status"}))

	err = store.Moderate(context.Background(), "sch-1", "email", asOf, model.ModerationApproved)

	assert.True(t, resilience.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Moderate_InvalidDecision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	err = store.Moderate(context.Background(), "sch-1", "phone", time.Now(), model.ModerationPending)

	assert.True(t, resilience.IsValidation(err))
}

func TestPostgresStore_Current(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	value, err := model.StringValue("+13865550199").MarshalValue()
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT DISTINCT ON \(fact_key\)`).
		WithArgs("sch-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"school_id", "fact_key", "fact_value", "provenance",
			"moderation_status", "as_of", "created_at",
		}).AddRow("sch-1", "phone", value, "CRAWL", "APPROVED", asOf, asOf))

	facts, err := store.Current(context.Background(), "sch-1")

	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "phone", facts[0].FactKey)
	assert.Equal(t, "+13865550199", facts[0].FactValue.Str)
	assert.Equal(t, model.ProvenanceCrawl, facts[0].Provenance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_History(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	oldValue, err := model.StringValue("+13865550100").MarshalValue()
	require.NoError(t, err)
	newValue, err := model.StringValue("+13865550199").MarshalValue()
	require.NoError(t, err)

	// Every version comes back, rejected ones included.
	mock.ExpectQuery(`WHERE school_id = \$1 AND fact_key = \$2`).
		WithArgs("sch-1", "phone").
		WillReturnRows(pgxmock.NewRows([]string{
			"school_id", "fact_key", "fact_value", "provenance",
			"moderation_status", "as_of", "created_at",
		}).
			AddRow("sch-1", "phone", newValue, "CRAWL", "APPROVED", asOf, asOf).
			AddRow("sch-1", "phone", oldValue, "CLAIM", "REJECTED", asOf.Add(-time.Hour), asOf.Add(-time.Hour)))

	history, err := store.History(context.Background(), "sch-1", "phone")

	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ModerationApproved, history[0].ModerationStatus)
	assert.Equal(t, model.ModerationRejected, history[1].ModerationStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
