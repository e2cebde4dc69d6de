package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileField_CaseInsensitivePatterns(t *testing.T) {
	c, err := CompileField(FieldSpec{
		Key:      "business_name",
		Patterns: []string{`call it\s+([A-Za-z ]+)`},
	})
	require.NoError(t, err)
	require.Len(t, c.Regexps, 1)

	assert.True(t, c.Regexps[0].MatchString("I want to CALL IT Blue Sky"))
}

func TestCompileField_MalformedPatternFailsFast(t *testing.T) {
	_, err := CompileField(FieldSpec{
		Key:      "bad",
		Patterns: []string{`(unclosed`},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile pattern")
}

func TestCompileField_MissingKey(t *testing.T) {
	_, err := CompileField(FieldSpec{})
	require.Error(t, err)
}

func TestCompileField_TriggersLowercasedAndTrimmed(t *testing.T) {
	c, err := CompileField(FieldSpec{
		Key:       "business_name",
		Questions: []string{"  Name your BUSINESS ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name your business"}, c.Triggers())
}

func TestCompileStage_PropagatesFieldErrors(t *testing.T) {
	_, err := CompileStage(StageSpec{
		Stage:  2,
		Fields: []FieldSpec{{Key: "x", Patterns: []string{`[`}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage 2")
}

func TestCompileStage_RejectsInvalidStage(t *testing.T) {
	_, err := CompileStage(StageSpec{Stage: 0})
	require.Error(t, err)
}

func TestStageCompleteStatus(t *testing.T) {
	assert.Equal(t, "call_1_complete", StageCompleteStatus(1))
	assert.Equal(t, "call_4_complete", StageCompleteStatus(4))
}

func TestExtractionResult_Derived(t *testing.T) {
	r := ExtractionResult{
		"a": {Value: "1", Provenance: ProvenancePattern},
		"b": {Value: "2", Provenance: ProvenanceContext},
		"c": {Value: "3", Provenance: ProvenanceDefault},
	}
	assert.Equal(t, 2, r.Derived())
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, r.Values())
}
