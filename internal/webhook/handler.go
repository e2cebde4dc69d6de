package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dreamseed2025/formation-intake/internal/extract"
	"github.com/dreamseed2025/formation-intake/internal/model"
	"github.com/dreamseed2025/formation-intake/internal/registry"
	"github.com/dreamseed2025/formation-intake/internal/resolve"
)

// Store is the persistence surface the handler writes through.
type Store interface {
	InsertCallTranscript(ctx context.Context, t *model.CallTranscript) error
	FillRecordFields(ctx context.Context, id string, fields map[string]string) error
	MarkStageComplete(ctx context.Context, id string, stage int, completedAt time.Time) error
	UpsertExtractedData(ctx context.Context, recordID string, stage int, data map[string]string) error
	BumpDailyMetrics(ctx context.Context, day time.Time, stage int, delta model.MetricsDelta) error
}

// Resolver maps a caller identity to its formation record.
type Resolver interface {
	Resolve(ctx context.Context, id resolve.Identity, createIfMissing bool) (*model.FormationRecord, error)
}

// Handler processes provider webhooks for every configured call stage.
type Handler struct {
	registry *registry.Registry
	resolver Resolver
	runner   *extract.Runner
	store    Store

	// assistants maps stage number to the provider assistant id expected to
	// deliver that stage's events. An empty id disables the check for that
	// stage (local development).
	assistants map[int]string
}

// NewHandler wires the ingestion pipeline for all stages.
func NewHandler(reg *registry.Registry, res Resolver, runner *extract.Runner, st Store, assistants map[int]string) *Handler {
	return &Handler{
		registry:   reg,
		resolver:   res,
		runner:     runner,
		store:      st,
		assistants: assistants,
	}
}

// Result is the success acknowledgement body.
type Result struct {
	Success         bool   `json:"success"`
	Acknowledged    bool   `json:"acknowledged,omitempty"`
	EventType       string `json:"event_type,omitempty"`
	Stage           int    `json:"stage,omitempty"`
	CallID          string `json:"call_id,omitempty"`
	RecordID        string `json:"record_id,omitempty"`
	FieldsExtracted int    `json:"fields_extracted,omitempty"`
}

// HandleStage returns the POST handler for one call stage's webhook.
//
// The event moves through validate, extract+persist, acknowledge. Shape and
// assistant mismatches are 400s with no writes; event kinds other than the
// end-of-call report are acknowledged with no writes; a persistence failure
// is a 500 carrying the underlying message, with redelivery left to the
// provider's retry policy.
func (h *Handler) HandleStage(stage int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if expected := h.assistants[stage]; expected != "" && env.Call.AssistantID != expected {
			zap.L().Warn("webhook: assistant mismatch",
				zap.Int("stage", stage),
				zap.String("call_id", env.Call.ID),
				zap.String("assistant_id", env.Call.AssistantID),
			)
			writeError(w, http.StatusBadRequest, "assistant id does not match this stage")
			return
		}

		kind := ParseEventKind(env.Type)
		if kind != KindEndOfCallReport {
			// Intermediate events are expected chatter. Acknowledging them
			// keeps the provider from retrying events we will never process.
			writeJSON(w, http.StatusOK, Result{
				Success:      true,
				Acknowledged: true,
				EventType:    kind.String(),
			})
			return
		}

		resp, err := h.ProcessCall(r.Context(), stage, env.Call)
		if err != nil {
			zap.L().Error("webhook: processing failed",
				zap.Int("stage", stage),
				zap.String("call_id", env.Call.ID),
				zap.String("phone", env.Call.Customer.Number),
				zap.Error(err),
			)
			if eris.Is(err, errNoIdentity) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

var errNoIdentity = eris.New("webhook: call has no customer identity")

// ProcessCall runs the extract+persist phase for an end-of-call report. The
// backfill command drives it directly with historical calls fetched from the
// provider API.
func (h *Handler) ProcessCall(ctx context.Context, stage int, call Call) (*Result, error) {
	spec, ok := h.registry.Stage(stage)
	if !ok {
		return nil, eris.Errorf("webhook: no field spec configured for stage %d", stage)
	}

	if call.Customer.Number == "" && call.Customer.Email == "" {
		return nil, errNoIdentity
	}

	// Only the first call may create the record; later stages must attach to
	// the record the earlier stages built.
	rec, err := h.resolver.Resolve(ctx, resolve.Identity{
		Email: call.Customer.Email,
		Phone: call.Customer.Number,
	}, stage == 1)
	if err != nil {
		return nil, eris.Wrapf(err, "webhook: stage %d resolve", stage)
	}

	t := call.AsTranscript()
	result, err := h.runner.ExtractAll(ctx, spec, t)
	if err != nil {
		return nil, eris.Wrapf(err, "webhook: stage %d extract", stage)
	}
	scores := extract.Score(result, spec, t.Raw)

	now := time.Now().UTC()
	transcript := &model.CallTranscript{
		CallID:            call.ID,
		Stage:             stage,
		FormationRecordID: rec.ID,
		Transcript:        t.Raw,
		Utterances:        t.Utterances,
		Extracted:         result,
		Confidence:        scores.Confidence,
		Sentiment:         scores.Sentiment,
		DurationSeconds:   call.DurationSeconds,
		EndedReason:       call.EndedReason,
	}
	if err := h.store.InsertCallTranscript(ctx, transcript); err != nil {
		return nil, eris.Wrap(err, "webhook: insert transcript")
	}

	values := result.Values()
	if err := h.store.FillRecordFields(ctx, rec.ID, values); err != nil {
		return nil, eris.Wrap(err, "webhook: fill record fields")
	}
	if err := h.store.MarkStageComplete(ctx, rec.ID, stage, now); err != nil {
		return nil, eris.Wrap(err, "webhook: mark stage complete")
	}
	if err := h.store.UpsertExtractedData(ctx, rec.ID, stage, values); err != nil {
		return nil, eris.Wrap(err, "webhook: upsert extracted data")
	}
	if err := h.store.BumpDailyMetrics(ctx, now, stage, model.MetricsDelta{
		Calls:      1,
		Completed:  1,
		Confidence: scores.Confidence,
		Sentiment:  scores.Sentiment,
	}); err != nil {
		return nil, eris.Wrap(err, "webhook: bump metrics")
	}

	zap.L().Info("webhook: call processed",
		zap.Int("stage", stage),
		zap.String("call_id", call.ID),
		zap.String("record_id", rec.ID),
		zap.Int("fields_extracted", len(result)),
		zap.Float64("confidence", scores.Confidence),
		zap.Float64("sentiment", scores.Sentiment),
	)

	return &Result{
		Success:         true,
		Stage:           stage,
		CallID:          call.ID,
		RecordID:        rec.ID,
		FieldsExtracted: len(result),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
