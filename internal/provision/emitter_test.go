package provision_test

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"cdc-pump/internal/config"
	"cdc-pump/internal/connector"
	"cdc-pump/internal/provision"
	"cdc-pump/internal/retry"
	"cdc-pump/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeWarehouse keeps the object set that CREATE statements would produce and the
// physical registry rows, honouring the insert guard.
type fakeWarehouse struct {
	objects  map[string]bool
	registry []string
	failures int
	calls    int
}

var (
	createRe = regexp.MustCompile("^CREATE (?:DATABASE|TABLE|MATERIALIZED VIEW) (IF NOT EXISTS )?(\\S+)")
	insertRe = regexp.MustCompile(`^INSERT INTO \S+ \([^)]+\) SELECT (.+) WHERE \(SELECT count\(\) FROM \S+ WHERE .+\) = 0$`)
)

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{objects: map[string]bool{}}
}

func (f *fakeWarehouse) Exec(_ context.Context, stmt string) error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("code: 210, connection refused")
	}
	if m := createRe.FindStringSubmatch(stmt); m != nil {
		if f.objects[m[2]] && m[1] == "" {
			return errors.New("object already exists: " + m[2])
		}
		f.objects[m[2]] = true
		return nil
	}
	if m := insertRe.FindStringSubmatch(stmt); m != nil {
		if !slices.Contains(f.registry, m[1]) {
			f.registry = append(f.registry, m[1])
		}
		return nil
	}
	return errors.New("unexpected statement: " + stmt)
}



func whSettings() config.WarehouseSettings {
	return config.WarehouseSettings{
		DatabasePrefix:      "fgeo_",
		RegistryDatabase:    "cdc_registry",
		KafkaBrokerList:     "kafka:9092",
		ConsumerGroupPrefix: "clickhouse",
	}
}

func newEmitter() *provision.Emitter {
	b := connector.NewBuilder(config.ConnectorSettings{ServerNamePrefix: "dbserver", ServerIDBase: 184000, ServerIDRange: 10000})
	policy := retry.DefaultPolicy()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	return provision.NewEmitter(whSettings(), b, policy, zap.NewNop())
}

func conn() config.SourceConnection {
	return config.SourceConnection{Name: "archivos", Host: "mysql-archivos", Port: 3306, Database: "archivos"}
}

func tables() []schema.Table {
	return []schema.Table{
		{Schema: "archivos", Name: "documentos"},
		{Schema: "archivos", Name: "expedientes"},
	}
}

func TestEmitter_Emit(t *testing.T) {
	t.Parallel()

	stmts := newEmitter().Emit(conn(), tables())
	require.Len(t, stmts, 1+3*2+3)

	kinds := make([]provision.Kind, len(stmts))
	for i, s := range stmts {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []provision.Kind{
		provision.KindDatabase,
		provision.KindStaging, provision.KindRaw, provision.KindForward,
		provision.KindStaging, provision.KindRaw, provision.KindForward,
		provision.KindRegistry, provision.KindRegistry, provision.KindRegistry,
	}, kinds)

	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS `fgeo_archivos`", stmts[0].SQL)

	staging := stmts[1].SQL
	assert.Contains(t, staging, "`fgeo_archivos`.`documentos_queue` (payload String) ENGINE = Kafka")
	assert.Contains(t, staging, "kafka_topic_list = 'dbserver_archivos.archivos.documentos'")
	assert.Contains(t, staging, "kafka_format = 'JSONAsString'")
	assert.Contains(t, staging, "kafka_group_name = 'clickhouse_dbserver_archivos_documentos'")

	assert.Contains(t, stmts[2].SQL, "(_ingested_at DateTime DEFAULT now(), payload String) ENGINE = MergeTree ORDER BY _ingested_at")
	assert.Equal(t, "CREATE MATERIALIZED VIEW IF NOT EXISTS `fgeo_archivos`.`documentos_mv` TO `fgeo_archivos`.`documentos_raw` "+
		"AS SELECT now() AS _ingested_at, payload FROM `fgeo_archivos`.`documentos_queue`", stmts[3].SQL)

	assert.Contains(t, stmts[8].SQL, "ENGINE = ReplacingMergeTree(registered_at) ORDER BY connection_name")
	assert.Equal(t, "INSERT INTO `cdc_registry`.`connections` (connection_name, source_host, source_port, source_database, "+
		"target_database, server_name, tables) SELECT 'archivos', 'mysql-archivos', 3306, 'archivos', 'fgeo_archivos', "+
		"'dbserver_archivos', ['archivos.documentos', 'archivos.expedientes'] WHERE (SELECT count() FROM `cdc_registry`.`connections` "+
		"WHERE connection_name = 'archivos' AND source_host = 'mysql-archivos' AND source_port = 3306 AND source_database = 'archivos' "+
		"AND target_database = 'fgeo_archivos' AND server_name = 'dbserver_archivos' "+
		"AND tables = ['archivos.documentos', 'archivos.expedientes']) = 0", stmts[9].SQL)

	for _, s := range stmts {
		if strings.HasPrefix(s.SQL, "CREATE") {
			assert.Contains(t, s.SQL, "IF NOT EXISTS", s.Target)
		}
	}
}

func TestEmitter_ApplyTwiceIsANoOp(t *testing.T) {
	t.Parallel()

	e := newEmitter()
	wh := newFakeWarehouse()
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, wh, e.Emit(conn(), tables())))
	first := make(map[string]bool, len(wh.objects))
	for k := range wh.objects {
		first[k] = true
	}

	require.NoError(t, e.Apply(ctx, wh, e.Emit(conn(), tables())))
	assert.Equal(t, first, wh.objects)
	assert.Len(t, wh.objects, 1+3*2+2)
	assert.Len(t, wh.registry, 1, "unchanged connection writes no second registry row")

	require.NoError(t, e.Apply(ctx, wh, e.Emit(conn(), tables()[:1])))
	assert.Len(t, wh.registry, 2, "changed table list is a new registry version")
}

func TestEmitter_ApplyRetriesThenFails(t *testing.T) {
	t.Parallel()

	e := newEmitter()
	stmts := e.Emit(conn(), tables())

	wh := newFakeWarehouse()
	wh.failures = 2
	require.NoError(t, e.Apply(context.Background(), wh, stmts))
	assert.Equal(t, len(stmts)+2, wh.calls)

	wh = newFakeWarehouse()
	wh.failures = 3
	err := e.Apply(context.Background(), wh, stmts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply database fgeo_archivos")
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Equal(t, 3, wh.calls, "later statements are not attempted")
}

func TestScript(t *testing.T) {
	t.Parallel()

	stmts := newEmitter().Emit(conn(), tables()[:1])
	script := provision.Script(stmts)

	assert.True(t, strings.HasPrefix(script, "-- database: fgeo_archivos\nCREATE DATABASE IF NOT EXISTS `fgeo_archivos`;\n"))
	assert.Equal(t, len(stmts), strings.Count(script, ";\n"))
	assert.Equal(t, script, provision.Script(newEmitter().Emit(conn(), tables()[:1])))
}
