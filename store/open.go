package store

import (
	"context"
	"fmt"

	"nutriplan/config"
	"nutriplan/logger"
	"nutriplan/types"
)

// Open connects the configured vector backend. The returned close func is never nil.
func Open(ctx context.Context, cfg config.Config, log *logger.Logger) (VectorStorer, func() error, error) {
	noop := func() error { return nil }
	switch cfg.VectorBackend {
	case "pgvector":
		pg, err := NewPostgresStore(ctx, cfg.PostgresDSN(), log)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Init(ctx); err != nil {
			pg.Close()
			return nil, noop, fmt.Errorf("init postgres: %w", err)
		}
		return pg, pg.Close, nil
	case "pinecone":
		pc, err := NewPineconeStore(PineconeConfig{APIKey: cfg.PineconeAPIKey}, log)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		if cfg.PineconeHost != "" {
			pc.PinHost(cfg.Collection, cfg.PineconeHost)
		}
		return pc, noop, nil
	case "memory":
		return NewMemoryStore(), noop, nil
	}
	return nil, noop, fmt.Errorf("%w: unknown vector backend %q", types.ErrConfiguration, cfg.VectorBackend)
}
