package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func recordRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "customer_name", "customer_email", "customer_phone",
		"business_name", "business_type", "state_of_formation", "estimated_revenue",
		"registered_agent", "business_address", "status",
		"call1_completed_at", "call2_completed_at", "call3_completed_at", "call4_completed_at",
		"created_at", "updated_at",
	})
}

func TestPostgresStore_GetFormationRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	done := now.Add(-time.Hour)
	mock.ExpectQuery(`SELECT .+ FROM formation_records WHERE id = \$1`).
		WithArgs("rec-1").
		WillReturnRows(recordRows().AddRow(
			"rec-1", "Jane Doe", "jane@example.com", "+15551234567",
			"Blue Sky Bakery", "LLC", "Delaware", "250000",
			"", "", "call_1_complete",
			&done, nil, nil, nil,
			now, now,
		))

	rec, err := s.GetFormationRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Blue Sky Bakery", rec.BusinessName)
	assert.True(t, rec.StageComplete(1))
	assert.False(t, rec.StageComplete(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetFormationRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM formation_records WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetFormationRecord(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetFormationRecordByPhone_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM formation_records WHERE customer_phone = \$1`).
		WithArgs("(555) 000-0000").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetFormationRecordByPhone(context.Background(), "(555) 000-0000")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateFormationRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO formation_records`).
		WithArgs(pgxmock.AnyArg(), "Jane Doe", "jane@example.com", "+15551234567",
			"", "", "", "", "", "", model.StatusInProgress,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &model.FormationRecord{
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		CustomerPhone: "+15551234567",
	}
	err := s.CreateFormationRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.StatusInProgress, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// FillRecordFields must only write columns that are currently empty. The
// generated SQL guards every column with COALESCE(NULLIF(col, ''), $n) so a
// populated value is never replaced by a later call.
func TestPostgresStore_FillRecordFields_NeverOverwrites(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE formation_records SET `+
		`business_name = COALESCE\(NULLIF\(business_name, ''\), \$1\), `+
		`estimated_revenue = COALESCE\(NULLIF\(estimated_revenue, ''\), \$2\), `+
		`updated_at = \$3 WHERE id = \$4`).
		WithArgs("Blue Sky Bakery", "250000", pgxmock.AnyArg(), "rec-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FillRecordFields(context.Background(), "rec-1", map[string]string{
		"business_name":     "Blue Sky Bakery",
		"estimated_revenue": "250000",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FillRecordFields_IgnoresUnknownKeys(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// No whitelisted columns means no UPDATE at all.
	err := s.FillRecordFields(context.Background(), "rec-1", map[string]string{
		"favorite_color": "blue",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FillRecordFields_MissingRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE formation_records SET`).
		WithArgs("Blue Sky Bakery", pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FillRecordFields(context.Background(), "ghost", map[string]string{
		"business_name": "Blue Sky Bakery",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkStageComplete(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// The status write is guarded: filed stays filed, and a later stage's
	// status is never rolled back by a late earlier-stage report.
	done := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE formation_records SET call2_completed_at = COALESCE\(call2_completed_at, \$1\), `+
		`status = CASE WHEN status = 'filed' THEN status WHEN status LIKE 'call_%' AND status > \$2 THEN status ELSE \$2 END`).
		WithArgs(done, "call_2_complete", pgxmock.AnyArg(), "rec-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkStageComplete(context.Background(), "rec-1", 2, done)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkStageComplete_InvalidStage(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.MarkStageComplete(context.Background(), "rec-1", 5, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid stage")
}

func TestPostgresStore_InsertCallTranscript(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO call_transcripts`).
		WithArgs(pgxmock.AnyArg(), "call-abc", 1, "rec-1", "AI: Hi\nUser: Hello",
			pgxmock.AnyArg(), pgxmock.AnyArg(), 0.75, 0.5, 120.0, "customer-ended-call",
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertCallTranscript(context.Background(), &model.CallTranscript{
		CallID:            "call-abc",
		Stage:             1,
		FormationRecordID: "rec-1",
		Transcript:        "AI: Hi\nUser: Hello",
		Extracted:         model.ExtractionResult{"business_name": {Value: "Blue Sky Bakery", Provenance: model.ProvenanceContext}},
		Confidence:        0.75,
		Sentiment:         0.5,
		DurationSeconds:   120,
		EndedReason:       "customer-ended-call",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCallTranscript_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM call_transcripts WHERE call_id = \$1`).
		WithArgs("call-missing").
		WillReturnError(pgx.ErrNoRows)

	tr, err := s.GetCallTranscript(context.Background(), "call-missing")
	require.NoError(t, err)
	assert.Nil(t, tr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// On conflict the stored JSONB wins key collisions: EXCLUDED.data || existing
// keeps earlier values and only adds keys not yet present.
func TestPostgresStore_UpsertExtractedData_ExistingKeysWin(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(formation_record_id, stage\)\s+DO UPDATE SET data = EXCLUDED\.data \|\| extracted_business_data\.data`).
		WithArgs(pgxmock.AnyArg(), "rec-1", 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertExtractedData(context.Background(), "rec-1", 2, map[string]string{
		"registered_agent": "Northwest Registered Agent",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BumpDailyMetrics(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	day := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO intake_metrics .+ ON CONFLICT \(day, stage\)`).
		WithArgs(day.Truncate(24*time.Hour), 1, 1, 1, 0.8, 0.25).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.BumpDailyMetrics(context.Background(), day, 1, model.MetricsDelta{
		Calls: 1, Completed: 1, Confidence: 0.8, Sentiment: 0.25,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDailyMetrics(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT day, stage, calls, completed, sum_confidence, sum_sentiment\s+FROM intake_metrics WHERE day >= \$1`).
		WithArgs(day).
		WillReturnRows(pgxmock.NewRows([]string{"day", "stage", "calls", "completed", "sum_confidence", "sum_sentiment"}).
			AddRow(day, 1, 4, 3, 3.2, 0.9))

	metrics, err := s.ListDailyMetrics(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 4, metrics[0].Calls)
	assert.InDelta(t, 0.8, metrics[0].AvgConfidence(), 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
