package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dreamseed2025/formation-intake/internal/model"
	"github.com/dreamseed2025/formation-intake/pkg/notion"
)

// LoadStagesFromNotion queries the field-spec Notion database for all active
// field pages and groups them into per-stage specs. Pages it cannot parse are
// skipped with a warning so one malformed row does not block the rest; a
// malformed regex still rejects its stage at compile time.
func LoadStagesFromNotion(ctx context.Context, client notion.Client, dbID string) ([]model.StageSpec, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: "Active",
			},
		},
	}

	pages, err := notion.QueryAll(ctx, client, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load field specs")
	}

	byStage := map[int][]model.FieldSpec{}
	for _, p := range pages {
		stage, f, err := parseFieldPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed field page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		byStage[stage] = append(byStage[stage], f)
	}
	if len(byStage) == 0 {
		return nil, eris.Errorf("registry: notion database %s has no usable field pages", dbID)
	}

	stages := make([]int, 0, len(byStage))
	for n := range byStage {
		stages = append(stages, n)
	}
	sort.Ints(stages)

	out := make([]model.StageSpec, 0, len(stages))
	for _, n := range stages {
		out = append(out, model.StageSpec{Stage: n, Fields: byStage[n]})
	}
	return out, nil
}

func parseFieldPage(p notionapi.Page) (int, model.FieldSpec, error) {
	var f model.FieldSpec
	var stage int

	// Key (title)
	if prop, ok := p.Properties["Key"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			f.Key = plainText(tp.Title)
		}
	}

	// Stage (number)
	if prop, ok := p.Properties["Stage"]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok {
			stage = int(np.Number)
		}
	}

	// Patterns (rich_text, one regex per line)
	if prop, ok := p.Properties["Patterns"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			f.Patterns = splitLines(plainText(rtp.RichText))
		}
	}

	// Questions (rich_text, one trigger phrase per line)
	if prop, ok := p.Properties["Questions"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			f.Questions = splitLines(plainText(rtp.RichText))
		}
	}

	// Default (rich_text)
	if prop, ok := p.Properties["Default"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			f.Default = plainText(rtp.RichText)
		}
	}

	if f.Key == "" {
		return 0, f, eris.New("missing Key property")
	}
	if stage < 1 {
		return 0, f, eris.New("missing or invalid Stage property")
	}
	return stage, f, nil
}

func plainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return strings.TrimSpace(b.String())
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
