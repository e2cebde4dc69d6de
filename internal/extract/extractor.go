// Package extract derives structured field values from call transcripts.
//
// The default strategy is heuristic: trigger-phrase context matching first,
// then ordered regex patterns, then a configured default. The Strategy
// interface exists so a model-backed extractor can be swapped in without
// touching the ingestion handler.
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// Strategy derives one field's value from a transcript. The boolean reports
// whether a value was found; callers must treat absent as absent, never as
// an empty string.
type Strategy interface {
	ExtractField(ctx context.Context, spec model.CompiledFieldSpec, t model.Transcript) (model.FieldValue, bool, error)
}

// Heuristic is the regex/trigger-phrase Strategy. It is pure and performs
// no I/O; all patterns are pre-compiled by the registry.
type Heuristic struct{}

// NewHeuristic returns the default extraction strategy.
func NewHeuristic() Heuristic {
	return Heuristic{}
}

// ExtractField applies, in priority order: context match, pattern match,
// configured default.
func (Heuristic) ExtractField(_ context.Context, spec model.CompiledFieldSpec, t model.Transcript) (model.FieldValue, bool, error) {
	if v, ok := contextMatch(spec, t.Utterances); ok {
		return model.FieldValue{Value: v, Provenance: model.ProvenanceContext}, true, nil
	}
	if v, ok := patternMatch(spec, t); ok {
		return model.FieldValue{Value: v, Provenance: model.ProvenancePattern}, true, nil
	}
	if spec.Default != "" {
		return model.FieldValue{Value: spec.Default, Provenance: model.ProvenanceDefault}, true, nil
	}
	return model.FieldValue{}, false, nil
}

// contextMatch scans utterances in order. A user utterance is the answer when
// the immediately preceding assistant utterance contains any trigger phrase.
// First match wins.
func contextMatch(spec model.CompiledFieldSpec, utterances []model.Utterance) (string, bool) {
	triggers := spec.Triggers()
	if len(triggers) == 0 {
		return "", false
	}
	for i := 1; i < len(utterances); i++ {
		if utterances[i].Speaker != model.SpeakerUser {
			continue
		}
		prev := utterances[i-1]
		if prev.Speaker != model.SpeakerAssistant {
			continue
		}
		prevText := strings.ToLower(prev.Text)
		for _, trigger := range triggers {
			if strings.Contains(prevText, trigger) {
				answer := strings.TrimSpace(utterances[i].Text)
				if answer != "" {
					return answer, true
				}
			}
		}
	}
	return "", false
}

// patternMatch tries each pattern in order, first against every user
// utterance, then against the full transcript. The first pattern that matches
// anywhere wins; its first capture group is returned, or the whole match for
// patterns without groups.
func patternMatch(spec model.CompiledFieldSpec, t model.Transcript) (string, bool) {
	for _, re := range spec.Regexps {
		for _, u := range t.Utterances {
			if u.Speaker != model.SpeakerUser {
				continue
			}
			if v, ok := firstGroup(re.FindStringSubmatch(u.Text)); ok {
				return v, true
			}
		}
		if v, ok := firstGroup(re.FindStringSubmatch(t.Raw)); ok {
			return v, true
		}
	}
	return "", false
}

func firstGroup(m []string) (string, bool) {
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return strings.TrimSpace(m[1]), true
	}
	return strings.TrimSpace(m[0]), true
}

// Runner applies a strategy to every field of a stage spec.
type Runner struct {
	strategy Strategy
}

// NewRunner creates a Runner with the given strategy.
func NewRunner(s Strategy) *Runner {
	return &Runner{strategy: s}
}

// ExtractAll runs the strategy over each configured field. Unmatched fields
// are omitted from the result, not errors; a strategy error aborts the run.
func (r *Runner) ExtractAll(ctx context.Context, stage model.CompiledStageSpec, t model.Transcript) (model.ExtractionResult, error) {
	result := make(model.ExtractionResult, len(stage.Fields))
	for _, field := range stage.Fields {
		v, ok, err := r.strategy.ExtractField(ctx, field, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			zap.L().Debug("extract: field unmatched",
				zap.Int("stage", stage.Stage),
				zap.String("field", field.Key),
			)
			continue
		}
		result[field.Key] = v
	}
	return result, nil
}
