package dialect

import "cdc-pump/internal/config"

// Dialect abstracts source-specific catalog access and connector wiring.
type Dialect interface {
	// Connection
	DriverName() string
	DSN(conn config.SourceConnection) string

	// Metadata Queries (Schema Introspection)
	// GetTablesQuery takes the schema as its only argument.
	GetTablesQuery() string
	// GetColumnsQuery takes schema and table and returns, in ordinal order:
	// COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, EXTRA.
	GetColumnsQuery() string

	// Helpers
	NormalizeType(sqlType string) string
	GetSchemaName(conn config.SourceConnection) string

	// Connector wiring
	ConnectorClass() string
	// ConnectorProperties returns the source-specific connector keys. tables are
	// qualified as schema.table.
	ConnectorProperties(conn config.SourceConnection, serverID uint32, tables []string) map[string]string
	UsesSchemaHistory() bool
}
