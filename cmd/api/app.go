package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sparkforge/spark-os/backend/internal/config"
	"github.com/sparkforge/spark-os/backend/internal/model/persona"
	"github.com/sparkforge/spark-os/backend/internal/service/ai"
	"github.com/sparkforge/spark-os/backend/internal/service/chat"
	"github.com/sparkforge/spark-os/backend/internal/service/orchestrator"
)

type app struct {
	personas *persona.MemoryStore
	orch     *orchestrator.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	seed := persona.Seed()
	if cfg.Personas.CatalogPath != "" {
		items, err := persona.LoadCatalog(cfg.Personas.CatalogPath)
		if err != nil {
			return nil, err
		}
		seed = items
		logger.Info("persona catalog loaded", zap.String("path", cfg.Personas.CatalogPath), zap.Int("personas", len(items)))
	}
	personas := persona.NewMemoryStore(seed)

	completer, err := newCompleter(ctx, cfg.AI, logger)
	if err != nil {
		return nil, err
	}

	gateway := ai.NewGateway(completer, ai.GatewayOptions{
		HistoryLimit: cfg.AI.HistoryLimit,
		Timeout:      cfg.AI.Timeout,
		MaxRetries:   cfg.AI.MaxRetries,
	}, logger.Named("gateway"))

	sessions := chat.NewService(personas, logger.Named("sessions"))
	orch := orchestrator.New(personas, sessions, gateway, logger.Named("orchestrator"))

	return &app{personas: personas, orch: orch}, nil
}

// newCompleter returns nil when credentials are missing; the gateway then
// answers every turn with the persona fallback.
func newCompleter(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (ai.Completer, error) {
	if !cfg.Enabled() {
		logger.Warn("completion credentials not configured, replies will use persona fallbacks", zap.String("provider", cfg.Provider))
		return nil, nil
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		completer, err := ai.NewOpenAICompleter(cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("completion backend ready", zap.String("provider", cfg.Provider), zap.String("model", cfg.OpenAIModel))
		return completer, nil
	default:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		completer, err := ai.NewArkCompleter(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		logger.Info("completion backend ready", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
		return completer, nil
	}
}
