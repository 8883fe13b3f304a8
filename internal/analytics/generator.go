// Package analytics generates read-only views with derived <col>_date helpers over
// populated warehouse tables. Base columns are always projected unchanged.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cdc-pump/internal/value"
	"cdc-pump/internal/warehouse"

	"go.uber.org/zap"
)

// Catalog is the warehouse surface the generator reads.
type Catalog interface {
	PopulatedTables(ctx context.Context, database string) ([]warehouse.TableRows, error)
	Columns(ctx context.Context, database, table string) ([]warehouse.ColumnInfo, error)
	Sample(ctx context.Context, database, table string, limit int) ([]map[string]any, error)
}

type Projection struct {
	Column string
	// Type is the declared warehouse type of Column.
	Type  string
	Alias string
	Rule  Rule
}

type ViewSpec struct {
	SourceDatabase string
	SourceTable    string
	TargetDatabase string
	TargetView     string
	Columns        []string
	Projections    []Projection
	// Skipped holds aliases left out because a real column already has that name.
	Skipped []string
}

type Generator struct {
	catalog Catalog
	suffix  string
	logger  *zap.Logger
}

func NewGenerator(catalog Catalog, suffix string, logger *zap.Logger) *Generator {
	return &Generator{catalog: catalog, suffix: suffix, logger: logger}
}

// Generate builds the view for database.table. A nil spec means the table has no
// columns and is skipped.
func (g *Generator) Generate(ctx context.Context, database, table string) (*ViewSpec, error) {
	cols, err := g.catalog.Columns(ctx, database, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}

	spec := &ViewSpec{
		SourceDatabase: database,
		SourceTable:    table,
		TargetDatabase: database + g.suffix,
		TargetView:     table,
	}
	existing := make(map[string]bool, len(cols))
	for _, c := range cols {
		existing[c.Name] = true
		spec.Columns = append(spec.Columns, c.Name)
	}

	for _, c := range cols {
		rule := Classify(c.Name, c.Type)
		if rule == RuleNone {
			continue
		}
		alias := c.Name + "_date"
		if existing[alias] {
			spec.Skipped = append(spec.Skipped, alias)
			g.logger.Warn("derived column collides with an existing column, skipping",
				zap.String("table", database+"."+table),
				zap.String("column", c.Name),
				zap.String("alias", alias))
			continue
		}
		spec.Projections = append(spec.Projections, Projection{Column: c.Name, Type: c.Type, Alias: alias, Rule: rule})
	}
	return spec, nil
}

// GenerateAll builds views for every populated table of database. A failing table is
// logged and reported in the joined error; the others are still generated.
func (g *Generator) GenerateAll(ctx context.Context, database string) ([]*ViewSpec, error) {
	tables, err := g.catalog.PopulatedTables(ctx, database)
	if err != nil {
		return nil, err
	}

	var specs []*ViewSpec
	var errs []error
	for _, t := range tables {
		spec, err := g.Generate(ctx, database, t.Name)
		if err != nil {
			g.logger.Warn("skipping table", zap.String("table", database+"."+t.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s.%s: %w", database, t.Name, err))
			continue
		}
		if spec == nil {
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errors.Join(errs...)
}

// DDL returns the statements creating the view and its target database.
func DDL(spec *ViewSpec) []string {
	items := make([]string, 0, len(spec.Columns)+len(spec.Projections))
	for _, c := range spec.Columns {
		items = append(items, warehouse.QuoteIdentifier(c))
	}
	for _, p := range spec.Projections {
		items = append(items, Expression(p.Rule, warehouse.QuoteIdentifier(p.Column))+" AS "+warehouse.QuoteIdentifier(p.Alias))
	}

	return []string{
		"CREATE DATABASE IF NOT EXISTS " + warehouse.QuoteIdentifier(spec.TargetDatabase),
		fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT %s FROM %s",
			warehouse.Qualified(spec.TargetDatabase, spec.TargetView),
			strings.Join(items, ", "),
			warehouse.Qualified(spec.SourceDatabase, spec.SourceTable)),
	}
}

// Script renders the DDL of specs as one SQL file, creating each target database once.
func Script(specs []*ViewSpec) string {
	var sb strings.Builder
	seen := make(map[string]bool)
	for _, spec := range specs {
		stmts := DDL(spec)
		if !seen[spec.TargetDatabase] {
			seen[spec.TargetDatabase] = true
			sb.WriteString(stmts[0] + ";\n\n")
		}
		fmt.Fprintf(&sb, "-- %s.%s\n%s;\n\n", spec.SourceDatabase, spec.SourceTable, stmts[1])
	}
	return sb.String()
}

// PreviewRow is one sampled row: the source cell and derived value per projection.
type PreviewRow struct {
	Source  map[string]value.Value
	Derived map[string]value.Value
}

// Preview samples up to limit rows and evaluates the derived columns locally with
// the same rules the view uses.
func (g *Generator) Preview(ctx context.Context, spec *ViewSpec, limit int) ([]PreviewRow, error) {
	rows, err := g.catalog.Sample(ctx, spec.SourceDatabase, spec.SourceTable, limit)
	if err != nil {
		return nil, err
	}

	out := make([]PreviewRow, 0, len(rows))
	for _, row := range rows {
		pr := PreviewRow{Source: make(map[string]value.Value, len(spec.Projections)), Derived: make(map[string]value.Value, len(spec.Projections))}
		for _, p := range spec.Projections {
			pr.Source[p.Column] = sourceCell(p.Type, row[p.Column])
			pr.Derived[p.Alias] = DeriveDate(p.Rule, row[p.Column])
		}
		out = append(out, pr)
	}
	return out, nil
}

// sourceCell converts a sampled cell by its declared type. Cells the driver returns in
// an unexpected shape are shown as text.
func sourceCell(declared string, raw any) value.Value {
	v, err := value.Convert(value.KindOf(declared), raw)
	if err != nil {
		return value.Text(fmt.Sprint(raw))
	}
	return v
}
