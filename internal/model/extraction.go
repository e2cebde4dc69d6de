package model

// Provenance records how a field value was derived.
type Provenance string

const (
	// ProvenanceContext means the value came from the user utterance that
	// followed an assistant utterance containing a trigger phrase.
	ProvenanceContext Provenance = "context"
	// ProvenancePattern means a configured regex matched.
	ProvenancePattern Provenance = "pattern"
	// ProvenanceDefault means the configured fallback value was used.
	ProvenanceDefault Provenance = "default"
)

// FieldValue is one extracted value with its provenance.
type FieldValue struct {
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
}

// ExtractionResult maps field keys to derived values. Absent fields are
// absent from the map, never empty strings.
type ExtractionResult map[string]FieldValue

// Values flattens the result to plain key/value pairs for persistence.
func (r ExtractionResult) Values() map[string]string {
	out := make(map[string]string, len(r))
	for k, v := range r {
		out[k] = v.Value
	}
	return out
}

// Derived counts values that were actually found in the transcript,
// excluding configured defaults.
func (r ExtractionResult) Derived() int {
	n := 0
	for _, v := range r {
		if v.Provenance != ProvenanceDefault {
			n++
		}
	}
	return n
}

// Scores holds the per-call derived scores.
type Scores struct {
	// Confidence is the fraction of configured fields populated, in [0,1].
	Confidence float64 `json:"confidence"`
	// Sentiment is keyword polarity over the transcript, in [-1,1].
	Sentiment float64 `json:"sentiment"`
}
