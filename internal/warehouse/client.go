// Package warehouse is the ClickHouse query path used by provisioning, analytics and
// validation.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	"cdc-pump/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// SystemDatabases are never treated as pipeline targets.
var SystemDatabases = []string{"system", "information_schema", "INFORMATION_SCHEMA"}

// QuoteIdentifier quotes one ClickHouse identifier.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

// Qualified is the quoted database.table form.
func Qualified(database, table string) string {
	return QuoteIdentifier(database) + "." + QuoteIdentifier(table)
}

// QuoteString renders s as a ClickHouse string literal.
func QuoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

type TableRows struct {
	Name      string `db:"name"`
	TotalRows uint64 `db:"total_rows"`
}

type ColumnInfo struct {
	Name string `db:"name"`
	Type string `db:"type"`
}

type Client struct {
	conn *sqlx.DB
}

// Options maps the warehouse settings onto the native protocol options.
func Options(s config.WarehouseSettings) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", s.Host, s.Port)},
		Auth: clickhouse.Auth{
			Database: s.Database,
			Username: s.User,
			Password: s.Password,
		},
		DialTimeout: s.DialTimeout,
	}
}

func Open(s config.WarehouseSettings) *Client {
	return NewClient(sqlx.NewDb(clickhouse.OpenDB(Options(s)), "clickhouse"))
}

func NewClient(conn *sqlx.DB) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.conn.PingContext(ctx); err != nil {
		return errors.Wrap(err, "failed to ping warehouse")
	}
	return nil
}

// Exec runs one statement without results.
func (c *Client) Exec(ctx context.Context, statement string) error {
	if _, err := c.conn.ExecContext(ctx, statement); err != nil {
		return errors.Wrap(err, "failed to execute statement")
	}
	return nil
}

func (c *Client) Databases(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.conn.SelectContext(ctx, &names, `SELECT name FROM system.databases ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "failed to list databases")
	}
	return names, nil
}

// PopulatedTables lists tables of database with a positive row count.
func (c *Client) PopulatedTables(ctx context.Context, database string) ([]TableRows, error) {
	var tables []TableRows
	err := c.conn.SelectContext(ctx, &tables,
		`SELECT name, total_rows FROM system.tables WHERE database = ? AND total_rows > 0 ORDER BY name`, database)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tables of %s", database)
	}
	return tables, nil
}

// Columns returns the columns of database.table in declaration order.
func (c *Client) Columns(ctx context.Context, database, table string) ([]ColumnInfo, error) {
	var cols []ColumnInfo
	err := c.conn.SelectContext(ctx, &cols,
		`SELECT name, type FROM system.columns WHERE database = ? AND table = ? ORDER BY position`, database, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read columns of %s.%s", database, table)
	}
	return cols, nil
}

// Sample returns up to limit rows of database.table keyed by column name.
func (c *Client) Sample(ctx context.Context, database, table string, limit int) ([]map[string]any, error) {
	q := fmt.Sprintf("SELECT * FROM %s LIMIT %d", Qualified(database, table), limit)
	rows, err := c.conn.QueryxContext(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sample %s.%s", database, table)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		out = append(out, row)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate rows")
}
