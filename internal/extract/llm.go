package extract

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// absentSentinel is what the model is instructed to answer when the
// transcript does not contain the field.
const absentSentinel = "NOT_FOUND"

// Claude is a model-backed Strategy. It answers one field per request using
// the field's trigger questions as hints and falls back to the configured
// default exactly like the heuristic strategy.
type Claude struct {
	client sdk.Client
	model  string
}

// NewClaude creates a Claude extraction strategy.
func NewClaude(apiKey, modelID string) *Claude {
	return &Claude{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  modelID,
	}
}

// ExtractField asks the model for the field's value. Absent answers and
// errors never coerce to empty strings.
func (c *Claude) ExtractField(ctx context.Context, spec model.CompiledFieldSpec, t model.Transcript) (model.FieldValue, bool, error) {
	prompt := buildFieldPrompt(spec, t.Raw)

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 128,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return model.FieldValue{}, false, eris.Wrapf(err, "extract: claude: field %s", spec.Key)
	}

	var answer string
	for _, block := range msg.Content {
		answer += block.Text
	}
	answer = strings.TrimSpace(answer)

	if answer == "" || strings.EqualFold(answer, absentSentinel) {
		if spec.Default != "" {
			return model.FieldValue{Value: spec.Default, Provenance: model.ProvenanceDefault}, true, nil
		}
		zap.L().Debug("extract: claude found no value", zap.String("field", spec.Key))
		return model.FieldValue{}, false, nil
	}

	return model.FieldValue{Value: answer, Provenance: model.ProvenanceContext}, true, nil
}

func buildFieldPrompt(spec model.CompiledFieldSpec, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the value of the field %q from this call transcript.\n", spec.Key)
	if len(spec.Questions) > 0 {
		fmt.Fprintf(&b, "The assistant asked for it with questions like: %s\n", strings.Join(spec.Questions, "; "))
	}
	fmt.Fprintf(&b, "Answer with the value only, no explanation. If the transcript does not contain it, answer exactly %s.\n\n", absentSentinel)
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	return b.String()
}
