package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development; production runs the Postgres driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS formation_records (
	id                 TEXT PRIMARY KEY,
	customer_name      TEXT NOT NULL DEFAULT '',
	customer_email     TEXT NOT NULL DEFAULT '',
	customer_phone     TEXT NOT NULL DEFAULT '',
	business_name      TEXT NOT NULL DEFAULT '',
	business_type      TEXT NOT NULL DEFAULT '',
	state_of_formation TEXT NOT NULL DEFAULT '',
	estimated_revenue  TEXT NOT NULL DEFAULT '',
	registered_agent   TEXT NOT NULL DEFAULT '',
	business_address   TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'in_progress',
	call1_completed_at DATETIME,
	call2_completed_at DATETIME,
	call3_completed_at DATETIME,
	call4_completed_at DATETIME,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_formation_records_phone ON formation_records(customer_phone);
CREATE INDEX IF NOT EXISTS idx_formation_records_email ON formation_records(customer_email);

CREATE TABLE IF NOT EXISTS call_transcripts (
	id                  TEXT PRIMARY KEY,
	call_id             TEXT NOT NULL UNIQUE,
	stage               INTEGER NOT NULL,
	formation_record_id TEXT NOT NULL,
	transcript          TEXT NOT NULL,
	utterances          TEXT NOT NULL,
	extracted           TEXT NOT NULL,
	confidence          REAL NOT NULL DEFAULT 0,
	sentiment           REAL NOT NULL DEFAULT 0,
	duration_seconds    REAL NOT NULL DEFAULT 0,
	ended_reason        TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_call_transcripts_record ON call_transcripts(formation_record_id);

CREATE TABLE IF NOT EXISTS extracted_business_data (
	id                  TEXT PRIMARY KEY,
	formation_record_id TEXT NOT NULL,
	stage               INTEGER NOT NULL,
	data                TEXT NOT NULL,
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (formation_record_id, stage)
);

CREATE TABLE IF NOT EXISTS intake_metrics (
	day            TEXT NOT NULL,
	stage          INTEGER NOT NULL,
	calls          INTEGER NOT NULL DEFAULT 0,
	completed      INTEGER NOT NULL DEFAULT 0,
	sum_confidence REAL NOT NULL DEFAULT 0,
	sum_sentiment  REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (day, stage)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateFormationRecord(ctx context.Context, rec *model.FormationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = model.StatusInProgress
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO formation_records
		(id, customer_name, customer_email, customer_phone, business_name, business_type,
		 state_of_formation, estimated_revenue, registered_agent, business_address,
		 status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CustomerName, rec.CustomerEmail, rec.CustomerPhone,
		rec.BusinessName, rec.BusinessType, rec.StateOfFormation, rec.EstimatedRevenue,
		rec.RegisteredAgent, rec.BusinessAddress, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert formation record")
}

const sqliteRecordCols = `id, customer_name, customer_email, customer_phone,
	business_name, business_type, state_of_formation, estimated_revenue,
	registered_agent, business_address, status,
	call1_completed_at, call2_completed_at, call3_completed_at, call4_completed_at,
	created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.FormationRecord, error) {
	var r model.FormationRecord
	err := row.Scan(
		&r.ID, &r.CustomerName, &r.CustomerEmail, &r.CustomerPhone,
		&r.BusinessName, &r.BusinessType, &r.StateOfFormation, &r.EstimatedRevenue,
		&r.RegisteredAgent, &r.BusinessAddress, &r.Status,
		&r.StageCompletedAt[1], &r.StageCompletedAt[2], &r.StageCompletedAt[3], &r.StageCompletedAt[4],
		&r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan formation record")
	}
	return &r, nil
}

func (s *SQLiteStore) GetFormationRecord(ctx context.Context, id string) (*model.FormationRecord, error) {
	return scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRecordCols+` FROM formation_records WHERE id = ?`, id))
}

func (s *SQLiteStore) GetFormationRecordByEmail(ctx context.Context, email string) (*model.FormationRecord, error) {
	return scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRecordCols+` FROM formation_records WHERE customer_email = ? LIMIT 1`, email))
}

func (s *SQLiteStore) GetFormationRecordByPhone(ctx context.Context, phone string) (*model.FormationRecord, error) {
	return scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRecordCols+` FROM formation_records WHERE customer_phone = ? LIMIT 1`, phone))
}

func (s *SQLiteStore) ListFormationRecords(ctx context.Context, filter RecordFilter) ([]model.FormationRecord, error) {
	query := `SELECT ` + sqliteRecordCols + ` FROM formation_records WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list formation records")
	}
	defer rows.Close()

	var out []model.FormationRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list formation records iterate")
}

func (s *SQLiteStore) FillRecordFields(ctx context.Context, id string, fields map[string]string) error {
	type colValue struct {
		col   string
		value string
	}
	var cols []colValue
	for key, value := range fields {
		if col, ok := RecordColumn(key); ok {
			cols = append(cols, colValue{col: col, value: value})
		}
	}
	if len(cols) == 0 {
		return nil
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].col < cols[j].col })

	var sets []string
	var args []any
	for _, cv := range cols {
		sets = append(sets, fmt.Sprintf("%s = COALESCE(NULLIF(%s, ''), ?)", cv.col, cv.col))
		args = append(args, cv.value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE formation_records SET %s WHERE id = ?`, strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fill record fields %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("formation record not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) MarkStageComplete(ctx context.Context, id string, stage int, completedAt time.Time) error {
	if stage < 1 || stage > model.StageCount {
		return eris.Errorf("sqlite: invalid stage %d", stage)
	}

	// Same status CASE as the Postgres driver: filed is terminal, and a late
	// stage-N report never rolls a later stage's status back.
	col := fmt.Sprintf("call%d_completed_at", stage)
	status := model.StageCompleteStatus(stage)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE formation_records SET %s = COALESCE(%s, ?), status = CASE WHEN status = 'filed' THEN status WHEN status LIKE 'call_%%' AND status > ? THEN status ELSE ? END, updated_at = ? WHERE id = ?`, col, col),
		completedAt.UTC(), status, status, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark stage %d complete for %s", stage, id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("formation record not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) InsertCallTranscript(ctx context.Context, t *model.CallTranscript) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	utterancesJSON, err := json.Marshal(t.Utterances)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal utterances")
	}
	extractedJSON, err := json.Marshal(t.Extracted)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extracted")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO call_transcripts
		(id, call_id, stage, formation_record_id, transcript, utterances, extracted,
		 confidence, sentiment, duration_seconds, ended_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CallID, t.Stage, t.FormationRecordID, t.Transcript,
		string(utterancesJSON), string(extractedJSON), t.Confidence, t.Sentiment,
		t.DurationSeconds, t.EndedReason, t.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert transcript for call %s", t.CallID)
}

func (s *SQLiteStore) GetCallTranscript(ctx context.Context, callID string) (*model.CallTranscript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, call_id, stage, formation_record_id, transcript, utterances, extracted,
		 confidence, sentiment, duration_seconds, ended_reason, created_at
		 FROM call_transcripts WHERE call_id = ?`, callID)

	t, err := scanTranscript(row)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanTranscript(row scannable) (*model.CallTranscript, error) {
	var t model.CallTranscript
	var utterancesJSON, extractedJSON string

	err := row.Scan(
		&t.ID, &t.CallID, &t.Stage, &t.FormationRecordID, &t.Transcript,
		&utterancesJSON, &extractedJSON, &t.Confidence, &t.Sentiment,
		&t.DurationSeconds, &t.EndedReason, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan transcript")
	}

	if err := json.Unmarshal([]byte(utterancesJSON), &t.Utterances); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal utterances")
	}
	if err := json.Unmarshal([]byte(extractedJSON), &t.Extracted); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal extracted")
	}
	return &t, nil
}

func (s *SQLiteStore) ListCallTranscripts(ctx context.Context, filter TranscriptFilter) ([]model.CallTranscript, error) {
	query := `SELECT id, call_id, stage, formation_record_id, transcript, utterances, extracted,
		confidence, sentiment, duration_seconds, ended_reason, created_at
		FROM call_transcripts WHERE 1=1`
	var args []any

	if filter.Stage > 0 {
		query += ` AND stage = ?`
		args = append(args, filter.Stage)
	}
	if filter.RecordID != "" {
		query += ` AND formation_record_id = ?`
		args = append(args, filter.RecordID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list transcripts")
	}
	defer rows.Close()

	var out []model.CallTranscript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list transcripts iterate")
}

func (s *SQLiteStore) UpsertExtractedData(ctx context.Context, recordID string, stage int, data map[string]string) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extracted data")
	}

	// json_patch(new, existing): existing keys win, preserving the
	// fill-gaps-only discipline.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extracted_business_data (id, formation_record_id, stage, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (formation_record_id, stage)
		DO UPDATE SET data = json_patch(excluded.data, extracted_business_data.data), updated_at = excluded.updated_at`,
		uuid.New().String(), recordID, stage, string(dataJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert extracted data for record %s stage %d", recordID, stage)
}

func (s *SQLiteStore) BumpDailyMetrics(ctx context.Context, day time.Time, stage int, delta model.MetricsDelta) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO intake_metrics (day, stage, calls, completed, sum_confidence, sum_sentiment)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (day, stage)
		DO UPDATE SET
			calls = intake_metrics.calls + excluded.calls,
			completed = intake_metrics.completed + excluded.completed,
			sum_confidence = intake_metrics.sum_confidence + excluded.sum_confidence,
			sum_sentiment = intake_metrics.sum_sentiment + excluded.sum_sentiment`,
		day.UTC().Format("2006-01-02"), stage,
		delta.Calls, delta.Completed, delta.Confidence, delta.Sentiment,
	)
	return eris.Wrapf(err, "sqlite: bump metrics for stage %d", stage)
}

func (s *SQLiteStore) ListDailyMetrics(ctx context.Context, since time.Time) ([]model.DailyMetrics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, stage, calls, completed, sum_confidence, sum_sentiment
		FROM intake_metrics WHERE day >= ? ORDER BY day DESC, stage ASC`,
		since.UTC().Format("2006-01-02"),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metrics")
	}
	defer rows.Close()

	var out []model.DailyMetrics
	for rows.Next() {
		var m model.DailyMetrics
		var day string
		if err := rows.Scan(&day, &m.Stage, &m.Calls, &m.Completed, &m.SumConfidence, &m.SumSentiment); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metrics")
		}
		m.Day, err = time.Parse("2006-01-02", day)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: parse metrics day")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list metrics iterate")
}
