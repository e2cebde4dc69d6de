// Package store is the persistence gateway for the intake pipeline.
package store

import (
	"context"
	"time"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// TranscriptFilter specifies criteria for listing call transcripts.
type TranscriptFilter struct {
	Stage    int    `json:"stage,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// RecordFilter specifies criteria for listing formation records.
type RecordFilter struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Store defines the persistence operations of the intake pipeline. Point
// lookups return (nil, nil) on a clean miss so callers can distinguish
// absence from failure.
//
// No operation spans multiple entities transactionally: each webhook only
// creates or updates rows it owns for its own call stage. FillRecordFields
// is merge-only and never replaces a populated value.
type Store interface {
	// Formation records
	CreateFormationRecord(ctx context.Context, rec *model.FormationRecord) error
	GetFormationRecord(ctx context.Context, id string) (*model.FormationRecord, error)
	GetFormationRecordByEmail(ctx context.Context, email string) (*model.FormationRecord, error)
	GetFormationRecordByPhone(ctx context.Context, phone string) (*model.FormationRecord, error)
	ListFormationRecords(ctx context.Context, filter RecordFilter) ([]model.FormationRecord, error)
	FillRecordFields(ctx context.Context, id string, fields map[string]string) error
	MarkStageComplete(ctx context.Context, id string, stage int, completedAt time.Time) error

	// Call transcripts (append-only)
	InsertCallTranscript(ctx context.Context, t *model.CallTranscript) error
	GetCallTranscript(ctx context.Context, callID string) (*model.CallTranscript, error)
	ListCallTranscripts(ctx context.Context, filter TranscriptFilter) ([]model.CallTranscript, error)

	// Stage-scoped extracted data side table, upserted per (record, stage)
	UpsertExtractedData(ctx context.Context, recordID string, stage int, data map[string]string) error

	// Rolling per-day/per-stage analytics counters
	BumpDailyMetrics(ctx context.Context, day time.Time, stage int, delta model.MetricsDelta) error
	ListDailyMetrics(ctx context.Context, since time.Time) ([]model.DailyMetrics, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// recordColumns whitelists the formation-record columns extraction may fill.
// Field keys outside this set are persisted only in the transcript row and
// the extracted-data side table.
var recordColumns = map[string]string{
	"customer_name":      "customer_name",
	"customer_email":     "customer_email",
	"business_name":      "business_name",
	"business_type":      "business_type",
	"state_of_formation": "state_of_formation",
	"estimated_revenue":  "estimated_revenue",
	"registered_agent":   "registered_agent",
	"business_address":   "business_address",
}

// RecordColumn maps a field key to its formation-record column, if any.
func RecordColumn(fieldKey string) (string, bool) {
	col, ok := recordColumns[fieldKey]
	return col, ok
}
