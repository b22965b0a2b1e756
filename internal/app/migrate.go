package app

import (
	"context"
	"errors"
	"io/fs"

	"github.com/traillog/traillog/backend/go-services/internal/config"
	"github.com/traillog/traillog/backend/go-services/internal/migration"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
)

// Migrate applies the directive file of cfg to every registered entity.
// A missing file is not an error: defaults are still filled. Reports are
// recorded when cfg.RecordRuns is set.
func Migrate(ctx context.Context, stores *Stores, cfg config.MigrationConfig) ([]*migration.Report, error) {
	var directives []migration.Directive
	if cfg.DirectivesFile != "" {
		loaded, err := migration.LoadDirectives(cfg.DirectivesFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Warnf("migration directives %q not found, filling defaults only", cfg.DirectivesFile)
		case err != nil:
			return nil, err
		default:
			directives = loaded
		}
	}

	var opts []migration.Option
	if cfg.RecordRuns {
		opts = append(opts, migration.WithReportSink(migration.NewReportStore(stores.Reports)))
	}
	registry := stores.Registry()
	reports, err := migration.New(opts...).RunAll(ctx, registry, registry.Complete(directives))

	var modified int64
	for _, r := range reports {
		modified += r.Modified(migration.StepRename) + r.Modified(migration.StepDefault) + r.Modified(migration.StepRemove)
	}
	logger.Infof("migration finished: %d collections, %d document updates", len(reports), modified)
	return reports, err
}
