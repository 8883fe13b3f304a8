// Package connector builds Kafka Connect source connector documents and talks to the
// Connect REST API.
package connector

import (
	"encoding/json"
	"hash/fnv"
	"strconv"

	"cdc-pump/internal/config"
	"cdc-pump/internal/dialect"
)

// Spec is the configuration document for one connector.
type Spec struct {
	Name     string            `json:"name"`
	Class    string            `json:"-"`
	ServerID uint32            `json:"-"`
	Config   map[string]string `json:"config"`
}

// JSON renders the document accepted by POST /connectors.
func (s Spec) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Builder turns a connection and its tables into a Spec. It makes no network calls.
type Builder struct {
	settings config.ConnectorSettings
}

func NewBuilder(settings config.ConnectorSettings) *Builder {
	return &Builder{settings: settings}
}

// Prefix is the server name prefix for conn: its topic prefix, else the configured one.
func (b *Builder) Prefix(conn config.SourceConnection) string {
	if conn.TopicPrefix != "" {
		return conn.TopicPrefix
	}
	return b.settings.ServerNamePrefix
}

// Name is {prefix}_{connectionName}. It is also the server name that prefixes topics.
func (b *Builder) Name(connectionName string, conn config.SourceConnection) string {
	return b.Prefix(conn) + "_" + connectionName
}

// ServerID is stable for a (host, database) pair.
func (b *Builder) ServerID(host, database string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(host + database))
	return b.settings.ServerIDBase + h.Sum32()%b.settings.ServerIDRange
}

// Build produces the connector document. tableIncludeList holds schema.table names.
func (b *Builder) Build(connectionName string, conn config.SourceConnection, tableIncludeList []string) Spec {
	d := dialect.GetDialect(conn.Driver)
	name := b.Name(connectionName, conn)
	serverID := b.ServerID(conn.Host, conn.Database)

	cfg := map[string]string{
		"connector.class":        d.ConnectorClass(),
		"tasks.max":              "1",
		"database.hostname":      conn.Host,
		"database.port":          strconv.Itoa(conn.Port),
		"database.user":          conn.User,
		"database.password":      conn.Secret,
		"topic.prefix":           name,
		"snapshot.mode":          b.settings.SnapshotMode,
		"decimal.handling.mode":  b.settings.DecimalHandlingMode,
		"binary.handling.mode":   b.settings.BinaryHandlingMode,
		"time.precision.mode":    b.settings.TimePrecisionMode,
		"include.schema.changes": strconv.FormatBool(b.settings.IncludeSchemaChanges),

		"key.converter":                  "org.apache.kafka.connect.json.JsonConverter",
		"key.converter.schemas.enable":   "false",
		"value.converter":                "org.apache.kafka.connect.json.JsonConverter",
		"value.converter.schemas.enable": "false",

		"cdcpump.offsets.topic": "connect-offsets." + name,
	}
	if d.UsesSchemaHistory() {
		cfg["schema.history.internal.kafka.topic"] = "schema-changes." + name
		cfg["schema.history.internal.kafka.bootstrap.servers"] = b.settings.HistoryBootstrap
	}
	for k, v := range d.ConnectorProperties(conn, serverID, tableIncludeList) {
		cfg[k] = v
	}

	return Spec{
		Name:     name,
		Class:    d.ConnectorClass(),
		ServerID: serverID,
		Config:   cfg,
	}
}

// Topic is the change topic for one source table.
func Topic(serverName, schema, table string) string {
	return serverName + "." + schema + "." + table
}
