// Package registry loads and compiles the per-stage field specifications
// that drive extraction. A Registry is built once at process start and
// passed explicitly to the webhook handlers; it is never mutated afterward.
package registry

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// Registry is an immutable set of compiled stage specifications keyed by
// stage number.
type Registry struct {
	stages map[int]model.CompiledStageSpec
}

// New compiles every stage spec. A single malformed pattern rejects its
// whole stage spec, so configuration errors surface at load rather than
// per webhook.
func New(specs []model.StageSpec) (*Registry, error) {
	stages := make(map[int]model.CompiledStageSpec, len(specs))
	for _, s := range specs {
		if _, dup := stages[s.Stage]; dup {
			return nil, eris.Errorf("registry: duplicate stage %d", s.Stage)
		}
		compiled, err := model.CompileStage(s)
		if err != nil {
			return nil, eris.Wrap(err, "registry: compile")
		}
		stages[s.Stage] = compiled
	}
	return &Registry{stages: stages}, nil
}

// Stage returns the compiled spec for a stage, if configured.
func (r *Registry) Stage(n int) (model.CompiledStageSpec, bool) {
	s, ok := r.stages[n]
	return s, ok
}

// Stages returns the configured stage numbers in ascending order.
func (r *Registry) Stages() []int {
	out := make([]int, 0, len(r.stages))
	for n := range r.stages {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Defaults returns the built-in four-stage intake specification. It is the
// fallback when neither a fixture file nor a Notion database is configured.
func Defaults() []model.StageSpec {
	return []model.StageSpec{
		{
			Stage: 1,
			Fields: []model.FieldSpec{
				{
					Key: "customer_name",
					Patterns: []string{
						`(?:my name is)\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`,
						`(?:this is)\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`,
					},
					Questions: []string{"your name", "who am i speaking with"},
				},
				{
					Key: "customer_email",
					Patterns: []string{
						`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`,
					},
					Questions: []string{"email address", "best email"},
				},
				{
					Key: "business_name",
					Patterns: []string{
						`(?:call it|called|business name is)\s+([A-Z][\w']*(?:\s+[A-Z][\w']*)*)`,
					},
					Questions: []string{"name your business", "name of your business"},
				},
				{
					Key: "business_type",
					Patterns: []string{
						`\b(LLC|S[- ]?Corp|C[- ]?Corp|sole proprietorship|partnership|nonprofit)\b`,
					},
					Questions: []string{"type of business entity", "llc or a corporation"},
					Default:   "LLC",
				},
				{
					Key: "state_of_formation",
					Patterns: []string{
						`(?:form|register|incorporate)[\w\s]*\bin\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`,
					},
					Questions: []string{"which state", "state would you like to form"},
				},
			},
		},
		{
			Stage: 2,
			Fields: []model.FieldSpec{
				{
					Key: "estimated_revenue",
					Patterns: []string{
						`\$?([\d,]+(?:\.\d+)?)\s*(?:thousand|k|million|m)?\s*(?:in revenue|per year|annually|a year)`,
						`(?:revenue|make|earn)[\w\s]*\$\s?([\d,]+)`,
					},
					Questions: []string{"expected revenue", "how much revenue"},
				},
				{
					Key: "business_address",
					Patterns: []string{
						`(\d+\s+[\w\s]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Suite|Ste)[\w\s,#.]*)`,
					},
					Questions: []string{"business address", "address for the business"},
				},
				{
					Key:       "employee_count",
					Patterns:  []string{`(\d+)\s+employees`},
					Questions: []string{"how many employees"},
					Default:   "0",
				},
			},
		},
		{
			Stage: 3,
			Fields: []model.FieldSpec{
				{
					Key:       "registered_agent",
					Questions: []string{"registered agent", "act as your agent"},
					Default:   "DreamSeed Registered Agent Services",
				},
				{
					Key:       "ein_needed",
					Patterns:  []string{`\b(yes|no)\b[\w\s,]*\bEIN\b`, `\bEIN\b[\w\s,]*\b(yes|no)\b`},
					Questions: []string{"employer identification number", "need an ein"},
					Default:   "yes",
				},
				{
					Key:       "operating_agreement",
					Questions: []string{"operating agreement"},
					Default:   "standard",
				},
			},
		},
		{
			Stage: 4,
			Fields: []model.FieldSpec{
				{
					Key:       "filing_confirmed",
					Patterns:  []string{`\b(yes|confirm|go ahead|proceed|let's do it)\b`},
					Questions: []string{"ready to file", "confirm the filing"},
				},
				{
					Key:       "payment_method",
					Patterns:  []string{`\b(credit card|debit card|ach|bank transfer|invoice)\b`},
					Questions: []string{"how would you like to pay", "payment method"},
				},
			},
		},
	}
}
