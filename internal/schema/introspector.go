package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cdc-pump/internal/config"
	"cdc-pump/internal/dialect"
	"cdc-pump/internal/errs"
	"cdc-pump/internal/value"

	"go.uber.org/zap"
)

// Opener opens a database handle; sql.Open in production.
type Opener func(driverName, dsn string) (*sql.DB, error)

// Introspector reads source catalogs. It never writes to a source.
type Introspector struct {
	logger *zap.Logger
	open   Opener
}

func NewIntrospector(logger *zap.Logger, open Opener) *Introspector {
	if open == nil {
		open = sql.Open
	}
	return &Introspector{logger: logger, open: open}
}

// DiscoverAll introspects every connection in order. A failing connection is logged
// and recorded in its Discovery; the remaining connections are still processed.
func (i *Introspector) DiscoverAll(ctx context.Context, conns []config.SourceConnection) []Discovery {
	results := make([]Discovery, 0, len(conns))
	for _, conn := range conns {
		tables, err := i.Discover(ctx, conn)
		if err != nil {
			i.logger.Warn("skipping connection", zap.String("connection", conn.Name), zap.Error(err))
		}
		results = append(results, Discovery{Connection: conn.Name, Tables: tables, Err: err})
	}
	return results
}

// Discover lists the base tables of conn ordered by name, with their columns in
// ordinal order.
func (i *Introspector) Discover(ctx context.Context, conn config.SourceConnection) ([]Table, error) {
	d := dialect.GetDialect(conn.Driver)

	db, err := i.open(d.DriverName(), d.DSN(conn))
	if err != nil {
		return nil, &errs.ConnectivityError{Connection: conn.Name, Target: d.DriverName(), Cause: err}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, &errs.ConnectivityError{Connection: conn.Name, Target: fmt.Sprintf("%s:%d", conn.Host, conn.Port), Cause: err}
	}

	schemaName := d.GetSchemaName(conn)
	tables, err := Analyze(ctx, db, d, schemaName, conn.Tables)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", conn.Name, err)
	}

	i.logger.Info("discovered tables",
		zap.String("connection", conn.Name),
		zap.String("schema", schemaName),
		zap.Int("tables", len(tables)))
	return tables, nil
}

// Analyze reads tables then columns for schemaName through the dialect's catalog
// queries. A non-empty only list restricts the tables, case-insensitively.
func Analyze(ctx context.Context, db *sql.DB, d dialect.Dialect, schemaName string, only []string) ([]Table, error) {
	// --- Step 1: Fetch Tables ---
	rows, err := db.QueryContext(ctx, d.GetTablesQuery(), schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	rows.Close()

	names, err = filterTables(names, only)
	if err != nil {
		return nil, err
	}

	// --- Step 2: Fetch Columns per table ---
	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := analyzeColumns(ctx, db, d, schemaName, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Schema: schemaName, Name: name, Columns: cols})
	}
	return tables, nil
}

func analyzeColumns(ctx context.Context, db *sql.DB, d dialect.Dialect, schemaName, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, d.GetColumnsQuery(), schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns (table: %s): %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var cName, dType, cType, isNull, cDefault, extra sql.NullString
		if err := rows.Scan(&cName, &dType, &cType, &isNull, &cDefault, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", table, err)
		}
		if !cName.Valid {
			continue
		}

		col := Column{
			Name:       cName.String,
			SourceType: d.NormalizeType(dType.String),
			ColumnType: cType.String,
			Nullable:   isNull.String == "YES" || isNull.String == "Y",
		}
		if cDefault.Valid {
			def := cDefault.String
			col.Default = &def
		}

		extraLower := strings.ToLower(extra.String)
		col.AutoIncrement = strings.Contains(extraLower, "auto_increment") ||
			strings.Contains(extraLower, "identity") ||
			strings.HasPrefix(strings.ToLower(cDefault.String), "nextval(")

		col.Kind = value.KindOf(col.SourceType)
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns (table: %s): %w", table, err)
	}
	return cols, nil
}

// filterTables keeps the requested tables in discovery order. An empty filter keeps
// everything.
func filterTables(all []string, filter []string) ([]string, error) {
	if len(filter) == 0 {
		return all, nil
	}

	req := make(map[string]bool, len(filter))
	for _, t := range filter {
		req[strings.ToLower(strings.TrimSpace(t))] = true
	}

	var out []string
	for _, name := range all {
		if req[strings.ToLower(name)] {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no matching tables found for inputs: %v", filter)
	}
	return out, nil
}
