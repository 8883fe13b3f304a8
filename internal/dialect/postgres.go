package dialect

import (
	"fmt"
	"net/url"
	"strings"

	"cdc-pump/internal/config"

	_ "github.com/lib/pq"
)

type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string { return "postgres" }

func (d *PostgresDialect) DSN(conn config.SourceConnection) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(conn.User, conn.Secret),
		Host:     fmt.Sprintf("%s:%d", conn.Host, conn.Port),
		Path:     "/" + conn.Database,
		RawQuery: "sslmode=disable&connect_timeout=10",
	}
	return u.String()
}

func (d *PostgresDialect) GetTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`
}

func (d *PostgresDialect) GetColumnsQuery() string {
	// udt_name is more precise than data_type for arrays and user types.
	return `SELECT
    c.column_name,
    c.udt_name,
    c.data_type,
    c.is_nullable,
    c.column_default,
    CASE WHEN c.is_identity = 'YES' THEN 'identity' ELSE '' END AS extra
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int4", "int2":
		return "int"
	case "int8":
		return "bigint"
	case "float4":
		return "float"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	case "timestamptz":
		return "timestamp"
	case "jsonb":
		return "json"
	default:
		return t
	}
}

func (d *PostgresDialect) GetSchemaName(conn config.SourceConnection) string {
	return "public"
}

func (d *PostgresDialect) ConnectorClass() string {
	return "io.debezium.connector.postgresql.PostgresConnector"
}

func (d *PostgresDialect) ConnectorProperties(conn config.SourceConnection, serverID uint32, tables []string) map[string]string {
	slot := strings.ToLower("cdcpump_" + conn.Name)
	props := map[string]string{
		"database.dbname":     conn.Database,
		"plugin.name":         "pgoutput",
		"slot.name":           slot,
		"publication.name":    slot,
		"schema.include.list": d.GetSchemaName(conn),
	}
	if len(tables) > 0 {
		props["table.include.list"] = joinTables(tables)
		props["publication.autocreate.mode"] = "filtered"
	}
	return props
}

func (d *PostgresDialect) UsesSchemaHistory() bool { return false }
