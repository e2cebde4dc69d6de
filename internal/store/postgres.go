package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/dreamseed2025/formation-intake/internal/db"
	"github.com/dreamseed2025/formation-intake/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists the hot-path queries prepared on each new
// connection: every webhook performs at least one record lookup and one
// transcript insert.
var preparedStatements = map[string]string{
	"get_record_by_phone": `SELECT ` + recordCols + ` FROM formation_records WHERE customer_phone = $1 LIMIT 1`,
	"get_record_by_email": `SELECT ` + recordCols + ` FROM formation_records WHERE customer_email = $1 LIMIT 1`,
	"insert_transcript":   insertTranscriptSQL,
	"get_transcript":      `SELECT ` + transcriptCols + ` FROM call_transcripts WHERE call_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const recordCols = `id, customer_name, customer_email, customer_phone,
	business_name, business_type, state_of_formation, estimated_revenue,
	registered_agent, business_address, status,
	call1_completed_at, call2_completed_at, call3_completed_at, call4_completed_at,
	created_at, updated_at`

const transcriptCols = `id, call_id, stage, formation_record_id, transcript,
	utterances, extracted, confidence, sentiment, duration_seconds, ended_reason, created_at`

const insertTranscriptSQL = `INSERT INTO call_transcripts
	(id, call_id, stage, formation_record_id, transcript, utterances, extracted,
	 confidence, sentiment, duration_seconds, ended_reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const postgresMigration = `
CREATE TABLE IF NOT EXISTS formation_records (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	call1_completed_at TIMESTAMPTZ,
	call2_completed_at TIMESTAMPTZ,
	call3_completed_at TIMESTAMPTZ,
	call4_completed_at TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_formation_records_phone ON formation_records(customer_phone);
CREATE INDEX IF NOT EXISTS idx_formation_records_email ON formation_records(customer_email);
CREATE INDEX IF NOT EXISTS idx_formation_records_status ON formation_records(status);

CREATE TABLE IF NOT EXISTS call_transcripts (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	call_id             TEXT NOT NULL UNIQUE,
	stage               INTEGER NOT NULL,
	formation_record_id TEXT NOT NULL REFERENCES formation_records(id),
	transcript          TEXT NOT NULL,
	utterances          JSONB NOT NULL,
	extracted           JSONB NOT NULL,
	confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment           DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_seconds    DOUBLE PRECISION NOT NULL DEFAULT 0,
	ended_reason        TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_call_transcripts_record ON call_transcripts(formation_record_id);
CREATE INDEX IF NOT EXISTS idx_call_transcripts_stage ON call_transcripts(stage);

CREATE TABLE IF NOT EXISTS extracted_business_data (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	formation_record_id TEXT NOT NULL REFERENCES formation_records(id),
	stage               INTEGER NOT NULL,
	data                JSONB NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (formation_record_id, stage)
);

CREATE TABLE IF NOT EXISTS intake_metrics (
	day            DATE NOT NULL,
	stage          INTEGER NOT NULL,
	calls          INTEGER NOT NULL DEFAULT 0,
	completed      INTEGER NOT NULL DEFAULT 0,
	sum_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	sum_sentiment  DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (day, stage)
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateFormationRecord(ctx context.Context, rec *model.FormationRecord) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO formation_records
		(id, customer_name, customer_email, customer_phone, business_name, business_type,
		 state_of_formation, estimated_revenue, registered_agent, business_address,
		 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.CustomerName, rec.CustomerEmail, rec.CustomerPhone,
		rec.BusinessName, rec.BusinessType, rec.StateOfFormation, rec.EstimatedRevenue,
		rec.RegisteredAgent, rec.BusinessAddress, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert formation record")
}

func (s *PostgresStore) GetFormationRecord(ctx context.Context, id string) (*model.FormationRecord, error) {
	return s.getRecord(ctx, `SELECT `+recordCols+` FROM formation_records WHERE id = $1`, id)
}

func (s *PostgresStore) GetFormationRecordByEmail(ctx context.Context, email string) (*model.FormationRecord, error) {
	return s.getRecord(ctx, `SELECT `+recordCols+` FROM formation_records WHERE customer_email = $1 LIMIT 1`, email)
}

func (s *PostgresStore) GetFormationRecordByPhone(ctx context.Context, phone string) (*model.FormationRecord, error) {
	return s.getRecord(ctx, `SELECT `+recordCols+` FROM formation_records WHERE customer_phone = $1 LIMIT 1`, phone)
}

func (s *PostgresStore) getRecord(ctx context.Context, query string, arg any) (*model.FormationRecord, error) {
	var r model.FormationRecord
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&r.ID, &r.CustomerName, &r.CustomerEmail, &r.CustomerPhone,
		&r.BusinessName, &r.BusinessType, &r.StateOfFormation, &r.EstimatedRevenue,
		&r.RegisteredAgent, &r.BusinessAddress, &r.Status,
		&r.StageCompletedAt[1], &r.StageCompletedAt[2], &r.StageCompletedAt[3], &r.StageCompletedAt[4],
		&r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get formation record")
	}
	return &r, nil
}

func (s *PostgresStore) ListFormationRecords(ctx context.Context, filter RecordFilter) ([]model.FormationRecord, error) {
	query := `SELECT ` + recordCols + ` FROM formation_records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list formation records")
	}
	defer rows.Close()

	var out []model.FormationRecord
	for rows.Next() {
		var r model.FormationRecord
		if err := rows.Scan(
			&r.ID, &r.CustomerName, &r.CustomerEmail, &r.CustomerPhone,
			&r.BusinessName, &r.BusinessType, &r.StateOfFormation, &r.EstimatedRevenue,
			&r.RegisteredAgent, &r.BusinessAddress, &r.Status,
			&r.StageCompletedAt[1], &r.StageCompletedAt[2], &r.StageCompletedAt[3], &r.StageCompletedAt[4],
			&r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan formation record")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list formation records iterate")
}

// FillRecordFields merges newly extracted values into a record. Each column
// is written only when currently empty: COALESCE(NULLIF(col, ''), $new)
// keeps every populated value, making a later webhook unable to clobber an
// earlier one. Unknown field keys are ignored.
func (s *PostgresStore) FillRecordFields(ctx context.Context, id string, fields map[string]string) error {
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
	args := []any{}
	argIdx := 1
	for _, cv := range cols {
		sets = append(sets, fmt.Sprintf("%s = COALESCE(NULLIF(%s, ''), $%d)", cv.col, cv.col, argIdx))
		args = append(args, cv.value)
		argIdx++
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", argIdx))
	args = append(args, time.Now().UTC())
	argIdx++

	query := fmt.Sprintf(`UPDATE formation_records SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), argIdx)
	args = append(args, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: fill record fields %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("formation record not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkStageComplete(ctx context.Context, id string, stage int, completedAt time.Time) error {
	if stage < 1 || stage > model.StageCount {
		return eris.Errorf("postgres: invalid stage %d", stage)
	}

	// The status CASE never moves a record backward: filed is terminal, and a
	// late stage-N report must not roll a later stage's status back. Stage
	// statuses compare correctly as strings because they share the
	// call_N_complete shape.
	col := fmt.Sprintf("call%d_completed_at", stage)
	query := fmt.Sprintf(
		`UPDATE formation_records SET %s = COALESCE(%s, $1), status = CASE WHEN status = 'filed' THEN status WHEN status LIKE 'call_%%' AND status > $2 THEN status ELSE $2 END, updated_at = $3 WHERE id = $4`,
		col, col)

	tag, err := s.pool.Exec(ctx, query,
		completedAt.UTC(), model.StageCompleteStatus(stage), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark stage %d complete for %s", stage, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("formation record not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) InsertCallTranscript(ctx context.Context, t *model.CallTranscript) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	utterancesJSON, err := json.Marshal(t.Utterances)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal utterances")
	}
	extractedJSON, err := json.Marshal(t.Extracted)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extracted")
	}

	_, err = s.pool.Exec(ctx, insertTranscriptSQL,
		t.ID, t.CallID, t.Stage, t.FormationRecordID, t.Transcript,
		utterancesJSON, extractedJSON, t.Confidence, t.Sentiment,
		t.DurationSeconds, t.EndedReason, t.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert transcript for call %s", t.CallID)
}

func (s *PostgresStore) GetCallTranscript(ctx context.Context, callID string) (*model.CallTranscript, error) {
	var t model.CallTranscript
	var utterancesJSON, extractedJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT `+transcriptCols+` FROM call_transcripts WHERE call_id = $1`, callID,
	).Scan(
		&t.ID, &t.CallID, &t.Stage, &t.FormationRecordID, &t.Transcript,
		&utterancesJSON, &extractedJSON, &t.Confidence, &t.Sentiment,
		&t.DurationSeconds, &t.EndedReason, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get transcript for call %s", callID)
	}

	if err := json.Unmarshal(utterancesJSON, &t.Utterances); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal utterances")
	}
	if err := json.Unmarshal(extractedJSON, &t.Extracted); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal extracted")
	}
	return &t, nil
}

func (s *PostgresStore) ListCallTranscripts(ctx context.Context, filter TranscriptFilter) ([]model.CallTranscript, error) {
	query := `SELECT ` + transcriptCols + ` FROM call_transcripts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Stage > 0 {
		query += fmt.Sprintf(` AND stage = $%d`, argIdx)
		args = append(args, filter.Stage)
		argIdx++
	}
	if filter.RecordID != "" {
		query += fmt.Sprintf(` AND formation_record_id = $%d`, argIdx)
		args = append(args, filter.RecordID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list transcripts")
	}
	defer rows.Close()

	var out []model.CallTranscript
	for rows.Next() {
		var t model.CallTranscript
		var utterancesJSON, extractedJSON []byte
		if err := rows.Scan(
			&t.ID, &t.CallID, &t.Stage, &t.FormationRecordID, &t.Transcript,
			&utterancesJSON, &extractedJSON, &t.Confidence, &t.Sentiment,
			&t.DurationSeconds, &t.EndedReason, &t.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan transcript")
		}
		if err := json.Unmarshal(utterancesJSON, &t.Utterances); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal utterances")
		}
		if err := json.Unmarshal(extractedJSON, &t.Extracted); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal extracted")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list transcripts iterate")
}

// UpsertExtractedData merges a stage's extracted key/values into the side
// table. On conflict the existing JSONB wins key collisions, preserving the
// fill-gaps-only discipline.
func (s *PostgresStore) UpsertExtractedData(ctx context.Context, recordID string, stage int, data map[string]string) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extracted data")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extracted_business_data (id, formation_record_id, stage, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (formation_record_id, stage)
		DO UPDATE SET data = EXCLUDED.data || extracted_business_data.data, updated_at = EXCLUDED.updated_at`,
		uuid.New().String(), recordID, stage, dataJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert extracted data for record %s stage %d", recordID, stage)
}

func (s *PostgresStore) BumpDailyMetrics(ctx context.Context, day time.Time, stage int, delta model.MetricsDelta) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO intake_metrics (day, stage, calls, completed, sum_confidence, sum_sentiment)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (day, stage)
		DO UPDATE SET
			calls = intake_metrics.calls + EXCLUDED.calls,
			completed = intake_metrics.completed + EXCLUDED.completed,
			sum_confidence = intake_metrics.sum_confidence + EXCLUDED.sum_confidence,
			sum_sentiment = intake_metrics.sum_sentiment + EXCLUDED.sum_sentiment`,
		day.UTC().Truncate(24*time.Hour), stage,
		delta.Calls, delta.Completed, delta.Confidence, delta.Sentiment,
	)
	return eris.Wrapf(err, "postgres: bump metrics for stage %d", stage)
}

func (s *PostgresStore) ListDailyMetrics(ctx context.Context, since time.Time) ([]model.DailyMetrics, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT day, stage, calls, completed, sum_confidence, sum_sentiment
		FROM intake_metrics WHERE day >= $1 ORDER BY day DESC, stage ASC`,
		since.UTC().Truncate(24*time.Hour),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metrics")
	}
	defer rows.Close()

	var out []model.DailyMetrics
	for rows.Next() {
		var m model.DailyMetrics
		if err := rows.Scan(&m.Day, &m.Stage, &m.Calls, &m.Completed, &m.SumConfidence, &m.SumSentiment); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metrics")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list metrics iterate")
}
