package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"opdscore/internal/adapters/source"
	"opdscore/internal/adapters/tracker"
	"opdscore/internal/adapters/util"
	"opdscore/internal/config"
	"opdscore/internal/core/domain/ports"
	"opdscore/internal/core/opds"
)

func CreateFeedSource(cfg *config.Config, logger *zap.Logger) ports.FeedSource {
	return source.NewOPDSAdapter(
		cfg.CatalogURL,
		util.Credentials{Username: cfg.Username, Password: cfg.Password},
		source.Limits{MaxDepth: cfg.MaxDepth, MaxPages: cfg.MaxPages},
		util.NewHTTPClient(cfg.HTTPTimeout, cfg.HTTPRetries, logger),
		opds.NewFeedParser(cfg.Strict, cfg.ParseConcurrency, logger),
		logger,
	)
}

func CreateStatusStore(ctx context.Context, cfg *config.Config) (ports.StatusStore, error) {
	switch cfg.StateBackend {
	case "sqlite":
		return tracker.OpenSQLStatusStore(ctx, cfg.DatabaseDSN)
	case "file", "":
		return tracker.NewFileStatusStore(cfg.StatePath)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}
