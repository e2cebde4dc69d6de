// Package resolve maps an inbound call's caller identity to the formation
// record that owns it.
package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// ErrNotFound is returned when no record matches the identity and creation
// was not requested.
var ErrNotFound = eris.New("resolve: formation record not found")

// Store is the subset of the persistence gateway the resolver needs.
// Lookups return (nil, nil) on a clean miss.
type Store interface {
	GetFormationRecord(ctx context.Context, id string) (*model.FormationRecord, error)
	GetFormationRecordByEmail(ctx context.Context, email string) (*model.FormationRecord, error)
	GetFormationRecordByPhone(ctx context.Context, phone string) (*model.FormationRecord, error)
	CreateFormationRecord(ctx context.Context, rec *model.FormationRecord) error
}

// Identity carries whatever the webhook knew about the caller.
type Identity struct {
	RecordID string
	Email    string
	Phone    string
}

func (id Identity) empty() bool {
	return id.RecordID == "" && id.Email == "" && id.Phone == ""
}

// Resolver resolves caller identities against the store.
type Resolver struct {
	store Store
}

// New creates a Resolver.
func New(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up the owning formation record: explicit id first, then
// email exact match, then phone through each format variant, stopping at the
// first hit. Records already filed are treated as misses: the filing is
// finished, and a new call from the same customer starts a new record.
// When nothing matches and createIfMissing is set, a minimal record is
// synthesized and persisted; otherwise ErrNotFound is returned.
//
// The synthesized record's customer name is left empty so the extracted name
// can fill it; the store's partial update never replaces a populated column.
// PlaceholderName derives a display label when no name was ever extracted.
func (r *Resolver) Resolve(ctx context.Context, id Identity, createIfMissing bool) (*model.FormationRecord, error) {
	if id.empty() {
		return nil, eris.New("resolve: no identity provided")
	}

	if id.RecordID != "" {
		rec, err := r.store.GetFormationRecord(ctx, id.RecordID)
		if err != nil {
			return nil, err
		}
		if rec = active(rec); rec != nil {
			return rec, nil
		}
	}

	if id.Email != "" {
		rec, err := r.store.GetFormationRecordByEmail(ctx, strings.ToLower(strings.TrimSpace(id.Email)))
		if err != nil {
			return nil, err
		}
		if rec = active(rec); rec != nil {
			return rec, nil
		}
	}

	for _, variant := range PhoneVariants(id.Phone) {
		rec, err := r.store.GetFormationRecordByPhone(ctx, variant)
		if err != nil {
			return nil, err
		}
		if rec = active(rec); rec != nil {
			return rec, nil
		}
	}

	if !createIfMissing {
		return nil, ErrNotFound
	}

	rec := &model.FormationRecord{
		CustomerEmail: strings.ToLower(strings.TrimSpace(id.Email)),
		CustomerPhone: strings.TrimSpace(id.Phone),
		Status:        model.StatusInProgress,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := r.store.CreateFormationRecord(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "resolve: create record")
	}

	zap.L().Info("resolve: created formation record",
		zap.String("record_id", rec.ID),
		zap.String("phone", rec.CustomerPhone),
	)
	return rec, nil
}

// active filters out records in a terminal status; only one in-progress
// record per customer is ever attached to.
func active(rec *model.FormationRecord) *model.FormationRecord {
	if rec == nil || rec.Status == model.StatusFiled {
		return nil
	}
	return rec
}

var titleCaser = cases.Title(language.AmericanEnglish)

// PlaceholderName derives a display name from the email local part
// ("jane.doe@x.com" -> "Jane Doe"), falling back to a generic label. It is
// a render-time fallback only and is never persisted, so an extracted name
// always has an empty column to land in.
func PlaceholderName(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "New Customer"
	}
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)
	local = strings.TrimSpace(local)
	if local == "" {
		return "New Customer"
	}
	return titleCaser.String(local)
}
