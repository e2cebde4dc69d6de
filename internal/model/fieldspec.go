package model

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// FieldSpec is the declarative rule set for deriving one structured field
// from conversational text. Patterns and Questions are ordered; earlier
// entries win.
type FieldSpec struct {
	Key       string   `json:"key" yaml:"key"`
	Patterns  []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Questions []string `json:"questions,omitempty" yaml:"questions,omitempty"`
	Default   string   `json:"default,omitempty" yaml:"default,omitempty"`
}

// StageSpec is the full field specification for one call stage.
type StageSpec struct {
	Stage  int         `json:"stage" yaml:"stage"`
	Fields []FieldSpec `json:"fields" yaml:"fields"`
}

// CompiledFieldSpec is a FieldSpec with its regex patterns compiled once at
// load time. Extraction never compiles per call.
type CompiledFieldSpec struct {
	FieldSpec
	Regexps   []*regexp.Regexp
	questions []string // lowercased trigger phrases
}

// CompiledStageSpec is an immutable, ready-to-run stage specification.
type CompiledStageSpec struct {
	Stage  int
	Fields []CompiledFieldSpec
}

// CompileField pre-compiles a field spec's patterns case-insensitively.
// A malformed pattern fails the whole field so configuration errors surface
// at load, not per webhook.
func CompileField(f FieldSpec) (CompiledFieldSpec, error) {
	if f.Key == "" {
		return CompiledFieldSpec{}, eris.New("fieldspec: missing key")
	}

	c := CompiledFieldSpec{FieldSpec: f}
	for _, src := range f.Patterns {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return CompiledFieldSpec{}, eris.Wrapf(err, "fieldspec: %s: compile pattern %q", f.Key, src)
		}
		c.Regexps = append(c.Regexps, re)
	}
	for _, q := range f.Questions {
		q = strings.ToLower(strings.TrimSpace(q))
		if q != "" {
			c.questions = append(c.questions, q)
		}
	}
	return c, nil
}

// Triggers returns the field's lowercased trigger phrases in order.
func (c CompiledFieldSpec) Triggers() []string {
	return c.questions
}

// CompileStage compiles every field of a stage spec.
func CompileStage(s StageSpec) (CompiledStageSpec, error) {
	if s.Stage < 1 {
		return CompiledStageSpec{}, eris.Errorf("fieldspec: invalid stage %d", s.Stage)
	}
	out := CompiledStageSpec{Stage: s.Stage}
	for _, f := range s.Fields {
		cf, err := CompileField(f)
		if err != nil {
			return CompiledStageSpec{}, eris.Wrapf(err, "fieldspec: stage %d", s.Stage)
		}
		out.Fields = append(out.Fields, cf)
	}
	return out, nil
}
