package dialect

import (
	"fmt"
	"net/url"
	"strings"

	"cdc-pump/internal/config"

	_ "github.com/microsoft/go-mssqldb" // SQL Server Driver
)

type MSSQLDialect struct{}

func (d *MSSQLDialect) DriverName() string { return "sqlserver" }

func (d *MSSQLDialect) DSN(conn config.SourceConnection) string {
	q := url.Values{}
	q.Set("database", conn.Database)
	q.Set("connection timeout", "10")
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(conn.User, conn.Secret),
		Host:     fmt.Sprintf("%s:%d", conn.Host, conn.Port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (d *MSSQLDialect) GetTablesQuery() string {
	// Use @p1 for schema binding
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MSSQLDialect) GetColumnsQuery() string {
	return `
		SELECT
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.DATA_TYPE,
			c.IS_NULLABLE,
			c.COLUMN_DEFAULT,
			CASE
				WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
				ELSE ''
			END AS EXTRA
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION
	`
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "nvarchar", "nchar", "ntext":
		return "varchar"
	case "money", "smallmoney":
		return "decimal"
	case "image", "varbinary":
		return "blob"
	case "uniqueidentifier":
		return "char"
	default:
		return t
	}
}

func (d *MSSQLDialect) GetSchemaName(conn config.SourceConnection) string {
	return "dbo"
}

func (d *MSSQLDialect) ConnectorClass() string {
	return "io.debezium.connector.sqlserver.SqlServerConnector"
}

func (d *MSSQLDialect) ConnectorProperties(conn config.SourceConnection, serverID uint32, tables []string) map[string]string {
	props := map[string]string{
		"database.names":   conn.Database,
		"database.encrypt": "false",
	}
	if len(tables) > 0 {
		props["table.include.list"] = joinTables(tables)
	}
	return props
}

func (d *MSSQLDialect) UsesSchemaHistory() bool { return true }
