// Package cli implements the traillog-migrate command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/traillog/traillog/backend/go-services/internal/app"
	"github.com/traillog/traillog/backend/go-services/internal/config"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"

	// openStores connects the stores used by run and history.
	openStores func(ctx context.Context) (*app.Stores, func(), error)
}

var validFormats = []string{"text", "json"}

// NewRootCommand creates the root command. Commands that need the database
// connect using the service environment configuration.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{openStores: openMongoStores})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traillog-migrate",
		Short: "Schema auto-migration for traillog collections",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	return cmd
}

func openMongoStores(ctx context.Context) (*app.Stores, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)
	backend, err := persistence.Open(ctx, persistence.Settings{
		URI:              cfg.MongoDB.URI,
		Database:         cfg.MongoDB.Database,
		CollectionSuffix: cfg.MongoDB.CollectionSuffix,
		Timeout:          cfg.MongoDB.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	stores, err := app.OpenMongoStores(ctx, backend)
	if err != nil {
		_ = backend.Close(context.Background())
		return nil, nil, err
	}
	return stores, func() { _ = backend.Close(context.Background()) }, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
