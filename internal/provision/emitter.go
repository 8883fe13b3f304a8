// Package provision emits the ClickHouse objects that land one connection's change
// topics: a Kafka-engine staging table, a MergeTree raw table and the materialized
// view between them, per source table.
package provision

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cdc-pump/internal/config"
	"cdc-pump/internal/connector"
	"cdc-pump/internal/retry"
	"cdc-pump/internal/schema"
	"cdc-pump/internal/warehouse"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

type Kind string

const (
	KindDatabase Kind = "database"
	KindStaging  Kind = "staging"
	KindRaw      Kind = "raw"
	KindForward  Kind = "forward"
	KindRegistry Kind = "registry"
)

const registryTable = "connections"

// Statement is one DDL or registry statement. Target is the qualified object name.
type Statement struct {
	Kind   Kind
	Target string
	SQL    string
}

// Executor runs one statement against the warehouse.
type Executor interface {
	Exec(ctx context.Context, statement string) error
}

type Emitter struct {
	warehouse config.WarehouseSettings
	builder   *connector.Builder
	policy    retry.Policy
	logger    *zap.Logger
}

func NewEmitter(wh config.WarehouseSettings, builder *connector.Builder, policy retry.Policy, logger *zap.Logger) *Emitter {
	return &Emitter{warehouse: wh, builder: builder, policy: policy, logger: logger}
}

// TargetDatabase is the warehouse database that receives conn's tables.
func (e *Emitter) TargetDatabase(conn config.SourceConnection) string {
	return e.warehouse.DatabasePrefix + conn.Name
}

// Emit returns the ordered statements for conn: the target database, three objects
// per table, then the registry. Every object is created with IF NOT EXISTS.
func (e *Emitter) Emit(conn config.SourceConnection, tables []schema.Table) []Statement {
	db := e.TargetDatabase(conn)
	serverName := e.builder.Name(conn.Name, conn)

	stmts := []Statement{{
		Kind:   KindDatabase,
		Target: db,
		SQL:    "CREATE DATABASE IF NOT EXISTS " + warehouse.QuoteIdentifier(db),
	}}

	for _, t := range tables {
		queue := warehouse.Qualified(db, t.Name+"_queue")
		raw := warehouse.Qualified(db, t.Name+"_raw")
		mv := warehouse.Qualified(db, t.Name+"_mv")
		topic := connector.Topic(serverName, t.Schema, t.Name)
		group := fmt.Sprintf("%s_%s_%s", e.warehouse.ConsumerGroupPrefix, serverName, t.Name)

		stmts = append(stmts,
			Statement{
				Kind:   KindStaging,
				Target: db + "." + t.Name + "_queue",
				SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (payload String) ENGINE = Kafka SETTINGS "+
					"kafka_broker_list = %s, kafka_topic_list = %s, kafka_group_name = %s, "+
					"kafka_format = 'JSONAsString', kafka_num_consumers = 1",
					queue,
					warehouse.QuoteString(e.warehouse.KafkaBrokerList),
					warehouse.QuoteString(topic),
					warehouse.QuoteString(group)),
			},
			Statement{
				Kind:   KindRaw,
				Target: db + "." + t.Name + "_raw",
				SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (_ingested_at DateTime DEFAULT now(), payload String) "+
					"ENGINE = MergeTree ORDER BY _ingested_at", raw),
			},
			Statement{
				Kind:   KindForward,
				Target: db + "." + t.Name + "_mv",
				SQL: fmt.Sprintf("CREATE MATERIALIZED VIEW IF NOT EXISTS %s TO %s AS SELECT now() AS _ingested_at, payload FROM %s",
					mv, raw, queue),
			},
		)
	}

	return append(stmts, e.registry(conn, db, serverName, tables)...)
}

func (e *Emitter) registry(conn config.SourceConnection, db, serverName string, tables []schema.Table) []Statement {
	reg := e.warehouse.RegistryDatabase
	table := warehouse.Qualified(reg, registryTable)
	names := lo.Map(tables, func(t schema.Table, _ int) string { return warehouse.QuoteString(t.QualifiedName()) })

	return []Statement{
		{
			Kind:   KindRegistry,
			Target: reg,
			SQL:    "CREATE DATABASE IF NOT EXISTS " + warehouse.QuoteIdentifier(reg),
		},
		{
			Kind:   KindRegistry,
			Target: reg + "." + registryTable,
			SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (connection_name String, source_host String, "+
				"source_port UInt16, source_database String, target_database String, server_name String, "+
				"tables Array(String), registered_at DateTime DEFAULT now()) "+
				"ENGINE = ReplacingMergeTree(registered_at) ORDER BY connection_name", table),
		},
		{
			Kind:   KindRegistry,
			Target: reg + "." + registryTable,
			SQL:    registryInsert(table, conn, db, serverName, "["+strings.Join(names, ", ")+"]"),
		},
	}
}

// registryInsert adds the registry row unless an identical one is already stored, so
// re-applying an unchanged connection writes nothing. Changed metadata inserts a new
// version that ReplacingMergeTree keeps over the old one.
func registryInsert(table string, conn config.SourceConnection, db, serverName, tables string) string {
	cols := []string{"connection_name", "source_host", "source_port", "source_database", "target_database", "server_name", "tables"}
	vals := []string{
		warehouse.QuoteString(conn.Name),
		warehouse.QuoteString(conn.Host),
		strconv.Itoa(conn.Port),
		warehouse.QuoteString(conn.Database),
		warehouse.QuoteString(db),
		warehouse.QuoteString(serverName),
		tables,
	}
	match := make([]string, len(cols))
	for i := range cols {
		match[i] = cols[i] + " = " + vals[i]
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s WHERE (SELECT count() FROM %s WHERE %s) = 0",
		table, strings.Join(cols, ", "), strings.Join(vals, ", "), table, strings.Join(match, " AND "))
}

// Script renders statements as one SQL file.
func Script(stmts []Statement) string {
	var sb strings.Builder
	for i, s := range stmts {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "-- %s: %s\n%s;\n", s.Kind, s.Target, s.SQL)
	}
	return sb.String()
}

// Apply executes stmts in order, each under the retry policy. Later statements
// depend on earlier ones, so the first exhausted statement stops the run.
func (e *Emitter) Apply(ctx context.Context, exec Executor, stmts []Statement) error {
	for _, s := range stmts {
		outcome, err := e.policy.Do(ctx, func(ctx context.Context) error {
			return exec.Exec(ctx, s.SQL)
		})
		if err != nil {
			return fmt.Errorf("apply %s %s: %w", s.Kind, s.Target, err)
		}
		e.logger.Debug("applied statement",
			zap.String("kind", string(s.Kind)),
			zap.String("target", s.Target),
			zap.Int("attempts", outcome.Attempts))
	}
	return nil
}
