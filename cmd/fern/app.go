package main

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/organization"
	"github.com/Ramsey-B/fern/internal/repositories/recordlink"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/registry"
	"github.com/Ramsey-B/fern/pkg/resolution"
)

// app holds what every command needs: a migrated store, the registry
// hydrated from it and a resolver built from the matching config.
type app struct {
	cfg      *config.Config
	logger   ectologger.Logger
	db       database.DB
	registry *registry.Registry
	engine   *matching.Engine
	resolver *resolution.Resolver
	links    *recordlink.Repository
}

func loadConfig(envFile string) (*config.Config, ectologger.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openStore connects and migrates the registry store.
func openStore(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (database.DB, error) {
	db, err := database.Open(ctx, cfg.DatabaseConfig(), logger)
	if err != nil {
		return nil, err
	}
	if err := database.NewMigrationService(logger, cfg.MigrationConfig()).Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newApp builds the resolution stack on top of an already open store.
func newApp(ctx context.Context, cfg *config.Config, logger ectologger.Logger, db database.DB) (*app, error) {
	engine, err := matching.NewEngine(logger, cfg.MatchingConfig())
	if err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}

	reg, err := registry.Load(ctx, organization.NewRepository(db, logger))
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx).WithField("organizations", reg.Len()).Info("Registry loaded")

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		registry: reg,
		engine:   engine,
		resolver: resolution.NewResolver(engine, logger),
		links:    recordlink.NewRepository(db, logger),
	}, nil
}
