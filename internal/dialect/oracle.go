package dialect

import (
	"strings"

	"cdc-pump/internal/config"

	go_ora "github.com/sijms/go-ora/v2"
)

type OracleDialect struct{}

func (d *OracleDialect) DriverName() string { return "oracle" }

// DSN treats the configured database as the service name.
func (d *OracleDialect) DSN(conn config.SourceConnection) string {
	return go_ora.BuildUrl(conn.Host, conn.Port, conn.Database, conn.User, conn.Secret, map[string]string{
		"CONNECTION TIMEOUT": "10",
	})
}

func (d *OracleDialect) GetTablesQuery() string {
	return `SELECT TABLE_NAME FROM ALL_TABLES WHERE OWNER = :1 ORDER BY TABLE_NAME`
}

func (d *OracleDialect) GetColumnsQuery() string {
	// NUMBER without scale is an integer for our purposes.
	return `
SELECT
    t.COLUMN_NAME,
    CASE
        WHEN t.DATA_TYPE = 'NUMBER' AND COALESCE(t.DATA_SCALE, 0) > 0 THEN 'DECIMAL'
        WHEN t.DATA_TYPE = 'NUMBER' THEN 'INTEGER'
        ELSE t.DATA_TYPE
    END,
    t.DATA_TYPE || CASE WHEN t.DATA_LENGTH IS NOT NULL THEN '(' || t.DATA_LENGTH || ')' ELSE '' END,
    t.NULLABLE,
    t.DATA_DEFAULT,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'auto_increment' ELSE '' END
FROM ALL_TAB_COLUMNS t
WHERE t.OWNER = :1 AND t.TABLE_NAME = :2
ORDER BY t.COLUMN_ID`
}

func (d *OracleDialect) NormalizeType(sqlType string) string {
	s := strings.ToLower(sqlType)
	switch {
	case strings.Contains(s, "clob"), strings.Contains(s, "char"):
		return "varchar"
	case strings.Contains(s, "blob"), strings.Contains(s, "raw"):
		return "blob"
	case strings.HasPrefix(s, "timestamp"):
		return "timestamp"
	default:
		return s
	}
}

func (d *OracleDialect) GetSchemaName(conn config.SourceConnection) string {
	return strings.ToUpper(conn.User)
}

func (d *OracleDialect) ConnectorClass() string {
	return "io.debezium.connector.oracle.OracleConnector"
}

func (d *OracleDialect) ConnectorProperties(conn config.SourceConnection, serverID uint32, tables []string) map[string]string {
	props := map[string]string{
		"database.dbname":     strings.ToUpper(conn.Database),
		"schema.include.list": d.GetSchemaName(conn),
	}
	if len(tables) > 0 {
		props["table.include.list"] = joinTables(tables)
	}
	return props
}

func (d *OracleDialect) UsesSchemaHistory() bool { return true }
