package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/traillog/traillog/backend/go-services/internal/app"
	"github.com/traillog/traillog/backend/go-services/internal/config"
	"github.com/traillog/traillog/backend/go-services/internal/migration"
)

type planField struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Required bool   `json:"required,omitempty"`
}

type planOutput struct {
	Entity string      `json:"entity"`
	Fields []planField `json:"fields"`
}

// newPlanCommand prints the declared fields of every registered entity.
func newPlanCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [entity]",
		Short: "Show the declared fields of the migrated entities",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := app.NewMemoryStores("").Registry()
			names := registry.Names()
			if len(args) == 1 {
				if _, ok := registry.Lookup(args[0]); !ok {
					return fmt.Errorf("unknown entity %q, known: %v", args[0], names)
				}
				names = args
			}
			var out []planOutput
			for _, name := range names {
				t, _ := registry.Lookup(name)
				p := planOutput{Entity: name}
				for _, f := range t.Plan.Fields {
					p.Fields = append(p.Fields, planField{Name: f.Name, Kind: f.Kind.String(), Required: f.Required})
				}
				out = append(out, p)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, p := range out {
				fmt.Fprintf(tw, "%s\n", p.Entity)
				for _, f := range p.Fields {
					req := ""
					if f.Required {
						req = "required"
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, f.Kind, req)
				}
			}
			return tw.Flush()
		},
	}
}

// newValidateCommand checks a directive file without touching the database.
func newValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <directives-file>",
		Short: "Validate a directive file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directives, err := migration.LoadDirectives(args[0])
			if err != nil {
				return err
			}
			registry := app.NewMemoryStores("").Registry()
			var errs []error
			for _, d := range directives {
				if _, ok := registry.Lookup(d.Entity); !ok {
					errs = append(errs, fmt.Errorf("unknown entity %q", d.Entity))
				}
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"valid": true, "directives": len(directives)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d directives valid\n", len(directives))
			return nil
		},
	}
}

func newRunCommand(opts *RootOptions) *cobra.Command {
	var (
		file   string
		record bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply the directives and fill missing defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := migration.LoadDirectives(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			stores, closeFn, err := opts.openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			reports, runErr := app.Migrate(cmd.Context(), stores, config.MigrationConfig{DirectivesFile: file, RecordRuns: record})
			if err := printReports(cmd, opts, reports); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&file, "directives", "d", "migrations.yaml", "directive file")
	cmd.Flags().BoolVar(&record, "record", true, "record run reports in the MigrationRun collection")
	return cmd
}

func newHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <collection>",
		Short: "List recorded runs against one collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, closeFn, err := opts.openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			reports, err := migration.NewReportStore(stores.Reports).History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printReports(cmd, opts, reports)
		},
	}
}

func printReports(cmd *cobra.Command, opts *RootOptions, reports []*migration.Report) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), reports)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tSTARTED\tRENAMED\tDEFAULTED\tREMOVED\tFAILED\tHELD")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n", r.Collection, r.StartedAt.Format("2006-01-02T15:04:05Z"),
			r.Modified(migration.StepRename), r.Modified(migration.StepDefault), r.Modified(migration.StepRemove), len(r.Failed()), len(r.Skipped()))
	}
	return tw.Flush()
}
