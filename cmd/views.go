package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cdc-pump/internal/analytics"
	"cdc-pump/internal/artifact"
	"cdc-pump/internal/warehouse"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	viewDatabases []string
	viewsApply    bool
	viewsPreview  int
)

var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "Generate analytics views with derived date columns over populated tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := a.runContext(cmd.Context())
		defer cancel()

		wh := warehouse.Open(a.settings.Warehouse)
		defer wh.Close()

		databases := viewDatabases
		if len(databases) == 0 {
			all, err := wh.Databases(ctx)
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			m := a.matcher()
			databases = lo.Filter(all, func(d string, _ int) bool {
				suffix := a.settings.Warehouse.AnalyticsSuffix
				return m.DatabaseMatches(d) && (suffix == "" || !strings.HasSuffix(d, suffix))
			})
		}

		gen := analytics.NewGenerator(wh, a.settings.Warehouse.AnalyticsSuffix, a.logger)
		writer := artifact.NewWriter(a.fs, a.out)
		failed := 0

		for _, db := range databases {
			if err := a.viewsFor(ctx, gen, wh, writer, db); err != nil {
				a.logger.Warn("views failed", zap.String("database", db), zap.Error(err))
				failed++
			}
		}
		if failed > 0 {
			return &exitError{code: 1, err: fmt.Errorf("%d of %d databases failed", failed, len(databases))}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(viewsCmd)
	viewsCmd.Flags().StringSliceVar(&viewDatabases, "database", []string{}, "Warehouse databases (default: those derived from connections)")
	viewsCmd.Flags().BoolVar(&viewsApply, "apply", false, "Execute the view DDL")
	viewsCmd.Flags().IntVar(&viewsPreview, "preview", 0, "Sample N rows per view and show the derived columns")
}

func (a *app) viewsFor(ctx context.Context, gen *analytics.Generator, wh *warehouse.Client, writer *artifact.Writer, db string) error {
	specs, genErr := gen.GenerateAll(ctx, db)
	if len(specs) == 0 {
		return genErr
	}

	path, err := writer.WriteViews(db, []byte(analytics.Script(specs)))
	if err != nil {
		return err
	}
	a.logger.Info("wrote views", zap.String("database", db), zap.Int("views", len(specs)), zap.String("path", path))

	if viewsApply {
		policy := a.settings.Validator.Policy()
		for _, spec := range specs {
			for _, stmt := range analytics.DDL(spec) {
				if _, err := policy.Do(ctx, func(ctx context.Context) error { return wh.Exec(ctx, stmt) }); err != nil {
					return fmt.Errorf("create view %s.%s: %w", spec.TargetDatabase, spec.TargetView, err)
				}
			}
		}
	}

	if viewsPreview > 0 {
		for _, spec := range specs {
			if len(spec.Projections) == 0 {
				continue
			}
			rows, err := gen.Preview(ctx, spec, viewsPreview)
			if err != nil {
				return err
			}
			printPreview(spec, rows)
		}
	}
	return genErr
}

func printPreview(spec *analytics.ViewSpec, rows []analytics.PreviewRow) {
	fmt.Printf("\n🔍 %s.%s\n", spec.TargetDatabase, spec.TargetView)
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	header := table.Row{}
	for _, p := range spec.Projections {
		header = append(header, p.Column, p.Alias)
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := table.Row{}
		for _, p := range spec.Projections {
			row = append(row, r.Source[p.Column].String(), r.Derived[p.Alias].String())
		}
		t.AppendRow(row)
	}
	t.Render()
}
