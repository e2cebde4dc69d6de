package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/dreamseed2025/formation-intake/internal/extract"
	"github.com/dreamseed2025/formation-intake/internal/model"
	"github.com/dreamseed2025/formation-intake/internal/registry"
	"github.com/dreamseed2025/formation-intake/internal/resilience"
	"github.com/dreamseed2025/formation-intake/internal/resolve"
	"github.com/dreamseed2025/formation-intake/internal/store"
	"github.com/dreamseed2025/formation-intake/internal/webhook"
	"github.com/dreamseed2025/formation-intake/pkg/notion"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "intake.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		// A deploy can race the database coming up; retry the connect.
		retry := resilience.DefaultRetryConfig()
		retry.ShouldRetry = func(error) bool { return true }
		retry.OnRetry = resilience.RetryLogger("postgres", "connect")
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadStageSpecs(ctx context.Context) ([]model.StageSpec, error) {
	switch cfg.Specs.Source {
	case "", "builtin":
		return registry.Defaults(), nil
	case "file":
		return registry.LoadStagesFromFile(cfg.Specs.Path)
	case "notion":
		client := notion.NewClient(cfg.Notion.Token)
		return registry.LoadStagesFromNotion(ctx, client, cfg.Notion.FieldDB)
	default:
		return nil, eris.Errorf("unsupported specs source: %s", cfg.Specs.Source)
	}
}

func initRegistry(ctx context.Context) (*registry.Registry, error) {
	specs, err := loadStageSpecs(ctx)
	if err != nil {
		return nil, err
	}
	return registry.New(specs)
}

// initStrategy picks the extraction strategy. The heuristic is the default;
// the model-backed extractor is opt-in via the anthropic key.
func initStrategy() extract.Strategy {
	if cfg.Anthropic.Key != "" {
		return extract.NewClaude(cfg.Anthropic.Key, cfg.Anthropic.Model)
	}
	return extract.NewHeuristic()
}

func initHandler(ctx context.Context, st store.Store) (*webhook.Handler, error) {
	reg, err := initRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return webhook.NewHandler(
		reg,
		resolve.New(st),
		extract.NewRunner(initStrategy()),
		st,
		cfg.VAPI.Assistants,
	), nil
}
