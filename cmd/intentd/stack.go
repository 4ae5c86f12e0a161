package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"intentd/internal/catalog"
	"intentd/internal/config"
	"intentd/internal/embedding"
	"intentd/internal/index"
	"intentd/internal/ledger"
	"intentd/internal/matrix"
	"intentd/internal/normalize"
	"intentd/internal/pipeline"
	"intentd/internal/store"

	"go.uber.org/zap"
)

// stack holds the assembled resolution components for a single command
// invocation. Close releases the backing store.
type stack struct {
	cfg      *config.Config
	st       *store.Store
	cat      *catalog.Catalog
	idx      *index.Index
	resolver *pipeline.Resolver
	ledger   *ledger.Ledger
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	ws := workspace
	if ws == "" {
		ws, _ = os.Getwd()
	}
	return filepath.Join(ws, ".intentd", "config.yaml")
}

// buildStack loads config and wires catalog, embedding engine, index,
// matrix, pipeline and feedback ledger together.
func buildStack(ctx context.Context) (*stack, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", cfgPath, err)
	}
	logger.Debug("Config loaded",
		zap.String("path", cfgPath),
		zap.String("catalog", cfg.Catalog.Path),
		zap.Float64("threshold", cfg.Pipeline.ConfidenceThreshold))

	cat, err := catalog.Load(catalog.FileLoader{Path: cfg.Catalog.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to load intent catalog: %w", err)
	}
	logger.Debug("Catalog loaded", zap.Int("intents", cat.Len()))

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding engine: %w", err)
	}

	st, err := store.Open(cfg.Ledger.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %w", err)
	}

	idx, err := index.Build(ctx, cat, engine, st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to build semantic index: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithThreshold(cfg.Pipeline.ConfidenceThreshold),
		pipeline.WithTopK(cfg.Pipeline.TopK),
		pipeline.WithLedgerStore(st),
	}
	if !cfg.Pipeline.NormalizeInput {
		opts = append(opts, pipeline.WithNormalizer(normalize.Passthrough{}))
	}
	resolver := pipeline.New(cat, idx, matrix.NewDefault(), opts...)

	return &stack{
		cfg:      cfg,
		st:       st,
		cat:      cat,
		idx:      idx,
		resolver: resolver,
		ledger:   ledger.New(st, cat, cfg.Ledger.RetentionDuration()),
	}, nil
}

func (s *stack) Close() {
	if s.st != nil {
		if err := s.st.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}
}
