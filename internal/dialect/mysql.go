package dialect

import (
	"fmt"
	"strconv"
	"time"

	"cdc-pump/internal/config"

	"github.com/go-sql-driver/mysql"
)

type MysqlDialect struct{}

func (d *MysqlDialect) DriverName() string { return "mysql" }

func (d *MysqlDialect) DSN(conn config.SourceConnection) string {
	cfg := mysql.NewConfig()
	cfg.User = conn.User
	cfg.Passwd = conn.Secret
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", conn.Host, conn.Port)
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN()
}

func (d *MysqlDialect) GetTablesQuery() string {
	return `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (d *MysqlDialect) GetColumnsQuery() string {
	return `SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, EXTRA FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

// GetSchemaName is the database itself: MySQL has no schema level below it.
func (d *MysqlDialect) GetSchemaName(conn config.SourceConnection) string {
	return conn.Database
}

func (d *MysqlDialect) ConnectorClass() string {
	return "io.debezium.connector.mysql.MySqlConnector"
}

func (d *MysqlDialect) ConnectorProperties(conn config.SourceConnection, serverID uint32, tables []string) map[string]string {
	props := map[string]string{
		"database.server.id":    strconv.FormatUint(uint64(serverID), 10),
		"database.include.list": conn.Database,
	}
	if len(tables) > 0 {
		props["table.include.list"] = joinTables(tables)
	}
	return props
}

func (d *MysqlDialect) UsesSchemaHistory() bool { return true }
