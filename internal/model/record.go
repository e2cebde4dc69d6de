package model

import (
	"fmt"
	"time"
)

// StageCount is the number of call stages in the formation flow.
const StageCount = 4

// Formation record statuses. Each completed stage advances the status; the
// record stays "in progress" for attribution purposes until filing.
const (
	StatusInProgress = "in_progress"
	StatusFiled      = "filed"
)

// StageCompleteStatus returns the status value recorded after stage N's
// webhook has been fully processed, e.g. "call_1_complete".
func StageCompleteStatus(stage int) string {
	return fmt.Sprintf("call_%d_complete", stage)
}

// FormationRecord is the mutable row tracking a customer's progress through
// the multi-stage formation flow. Created by first contact, updated by every
// subsequent call stage, never deleted by this pipeline.
type FormationRecord struct {
	ID            string `json:"id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`

	BusinessName     string `json:"business_name"`
	BusinessType     string `json:"business_type"`
	StateOfFormation string `json:"state_of_formation"`
	EstimatedRevenue string `json:"estimated_revenue"`
	RegisteredAgent  string `json:"registered_agent"`
	BusinessAddress  string `json:"business_address"`

	Status string `json:"status"`

	// Per-stage completion timestamps, indexed 1..StageCount. Nil = not done.
	StageCompletedAt [StageCount + 1]*time.Time `json:"stage_completed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageComplete reports whether stage n's call has been processed.
func (r *FormationRecord) StageComplete(n int) bool {
	if n < 1 || n > StageCount {
		return false
	}
	return r.StageCompletedAt[n] != nil
}

// CallTranscript is the append-only record of one processed call. Created
// once per call id, never mutated afterward.
type CallTranscript struct {
	ID                string           `json:"id"`
	CallID            string           `json:"call_id"`
	Stage             int              `json:"stage"`
	FormationRecordID string           `json:"formation_record_id"`
	Transcript        string           `json:"transcript"`
	Utterances        []Utterance      `json:"utterances"`
	Extracted         ExtractionResult `json:"extracted"`
	Confidence        float64          `json:"confidence"`
	Sentiment         float64          `json:"sentiment"`
	DurationSeconds   float64          `json:"duration_seconds"`
	EndedReason       string           `json:"ended_reason"`
	CreatedAt         time.Time        `json:"created_at"`
}
