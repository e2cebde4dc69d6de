package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

func mustCompile(t *testing.T, f model.FieldSpec) model.CompiledFieldSpec {
	t.Helper()
	c, err := model.CompileField(f)
	require.NoError(t, err)
	return c
}

func transcriptOf(turns ...model.Utterance) model.Transcript {
	var raw []byte
	for _, u := range turns {
		raw = append(raw, []byte(u.Text+"\n")...)
	}
	return model.Transcript{Raw: string(raw), Utterances: turns}
}

func TestHeuristic_ContextMatchWinsOverPatterns(t *testing.T) {
	spec := mustCompile(t, model.FieldSpec{
		Key:       "business_name",
		Questions: []string{"name your business"},
		// Pattern that would also match, to prove context takes priority.
		Patterns: []string{`(Red Rock Cafe)`},
	})
	tr := transcriptOf(
		model.Utterance{Speaker: model.SpeakerAssistant, Text: "What would you like to name your business?"},
		model.Utterance{Speaker: model.SpeakerUser, Text: "  Blue Sky Bakery  "},
		model.Utterance{Speaker: model.SpeakerUser, Text: "Red Rock Cafe"},
	)

	v, ok, err := NewHeuristic().ExtractField(context.Background(), spec, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Blue Sky Bakery", v.Value)
	assert.Equal(t, model.ProvenanceContext, v.Provenance)
}

func TestHeuristic_ContextMatchFirstWins(t *testing.T) {
	spec := mustCompile(t, model.FieldSpec{
		Key:       "business_name",
		Questions: []string{"name your business"},
	})
	tr := transcriptOf(
		model.Utterance{Speaker: model.SpeakerAssistant, Text: "Let's name your business."},
		model.Utterance{Speaker: model.SpeakerUser, Text: "First Answer"},
		model.Utterance{Speaker: model.SpeakerAssistant, Text: "Want to name your business differently?"},
		model.Utterance{Speaker: model.SpeakerUser, Text: "Second Answer"},
	)

	v, ok, err := NewHeuristic().ExtractField(context.Background(), spec, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "First Answer", v.Value)
}

func TestHeuristic_ContextRequiresAssistantPredecessor(t *testing.T) {
	spec := mustCompile(t, model.FieldSpec{
		Key:       "business_name",
		Questions: []string{"name your business"},
	})
	// Trigger phrase appears in a USER utterance, so no context match.
	tr := transcriptOf(
		model.Utterance{Speaker: model.SpeakerUser, Text: "Should I name your business now?"},
		model.Utterance{Speaker: model.SpeakerUser, Text: "Blue Sky Bakery"},
	)

	_, ok, err := NewHeuristic().ExtractField(context.Background(), spec, tr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHeuristic_PatternOrderSensitive(t *testing.T) {
	spec := mustCompile(t, model.FieldSpec{
		Key: "state_of_formation",
		Patterns: []string{
			`form(?:ing)? in (\w+)`,
			`(\w+) is where`,
		},
	})
	tr := transcriptOf(
		model.Utterance{Speaker: model.SpeakerUser, Text: "Texas is where I live but I am forming in Delaware"},
	)

	v, ok, err := NewHeuristic().ExtractField(context.Background(), spec, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Delaware", v.Value)
	assert.Equal(t, model.ProvenancePattern, v.Provenance)
}

func TestHeuristic_PatternChecksUserUtterancesBeforeFullTranscript(t *testing.T) {
	spec := mustCompile(t, model.FieldSpec{
		Key:      "customer_name",
		Patterns: []string{`my name is\s+([A-Z][a-z]+ [A-Z][a-z]+)`},
	})
	// The name only appears in the raw transcript (e.g. a summary line), not
	// in any user utterance. Full-transcript fallback should still find it.
	tr := model.Transcript{
		Raw: "Summary: my name is Jane Doe",
		Utterances: []model.Utterance{
			{Speaker: model.SpeakerUser, Text: "hello"},
		},
	}

	v, ok, err := NewHeuristic().ExtractField(context.Background(), spec, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", v.Value)
}

func TestHeuristic_PatternWithoutGroupReturnsWholeMatch(t *testing.T) {
	spec := mustCompile(t, model.FieldSpec{
		Key:      "business_type",
		Patterns: []string{`LLC|corporation|partnership`},
	})
	tr := transcriptOf(
		model.Utterance{Speaker: model.SpeakerUser, Text: "I think an LLC makes sense"},
	)

	v, ok, err := NewHeuristic().ExtractField(context.Background(), spec, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "LLC", v.Value)
}

func TestHeuristic_DefaultOnlyWhenNothingMatches(t *testing.T) {
	spec := mustCompile(t, model.FieldSpec{
		Key:       "business_type",
		Questions: []string{"what kind of business"},
		Patterns:  []string{`\b(LLC|corporation)\b`},
		Default:   "LLC",
	})
	tr := transcriptOf(
		model.Utterance{Speaker: model.SpeakerUser, Text: "Nothing relevant here"},
	)

	v, ok, err := NewHeuristic().ExtractField(context.Background(), spec, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "LLC", v.Value)
	assert.Equal(t, model.ProvenanceDefault, v.Provenance)
}

func TestHeuristic_AbsentWithoutDefault(t *testing.T) {
	spec := mustCompile(t, model.FieldSpec{
		Key:      "estimated_revenue",
		Patterns: []string{`\$([\d,]+)`},
	})
	tr := transcriptOf(
		model.Utterance{Speaker: model.SpeakerUser, Text: "Not sure yet"},
	)

	v, ok, err := NewHeuristic().ExtractField(context.Background(), spec, tr)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v.Value)
}

func TestRunner_ExtractAllOmitsUnmatched(t *testing.T) {
	stage, err := model.CompileStage(model.StageSpec{
		Stage: 1,
		Fields: []model.FieldSpec{
			{Key: "customer_name", Patterns: []string{`my name is\s+([A-Z][a-z]+ [A-Z][a-z]+)`}},
			{Key: "estimated_revenue", Patterns: []string{`\$([\d,]+)`}},
		},
	})
	require.NoError(t, err)

	tr := transcriptOf(
		model.Utterance{Speaker: model.SpeakerUser, Text: "Hi, my name is Jane Doe"},
	)

	result, err := NewRunner(NewHeuristic()).ExtractAll(context.Background(), stage, tr)
	require.NoError(t, err)

	assert.Len(t, result, 1)
	assert.Equal(t, "Jane Doe", result["customer_name"].Value)
	_, present := result["estimated_revenue"]
	assert.False(t, present)
}
