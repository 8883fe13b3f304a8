package schema_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"cdc-pump/internal/config"
	"cdc-pump/internal/dialect"
	"cdc-pump/internal/errs"
	"cdc-pump/internal/schema"
	"cdc-pump/internal/value"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var mysqlDialect = dialect.GetDialect("mysql")

func columnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT", "EXTRA"})
}

func expectArchivos(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta(mysqlDialect.GetTablesQuery())).
		WithArgs("archivos").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("documentos").AddRow("expedientes"))

	mock.ExpectQuery(regexp.QuoteMeta(mysqlDialect.GetColumnsQuery())).
		WithArgs("archivos", "documentos").
		WillReturnRows(columnRows().
			AddRow("id", "int", "int(11)", "NO", nil, "auto_increment").
			AddRow("titulo", "varchar", "varchar(200)", "NO", nil, "").
			AddRow("fecha", "varchar", "varchar(10)", "YES", nil, "").
			AddRow("creado", "datetime", "datetime", "NO", "CURRENT_TIMESTAMP", "DEFAULT_GENERATED").
			AddRow("monto", "decimal", "decimal(12,2)", "NO", nil, "").
			AddRow("meta", "json", "json", "YES", nil, ""))

	mock.ExpectQuery(regexp.QuoteMeta(mysqlDialect.GetColumnsQuery())).
		WithArgs("archivos", "expedientes").
		WillReturnRows(columnRows().
			AddRow("id", "bigint", "bigint", "NO", nil, ""))
}

func archivosConn() config.SourceConnection {
	return config.SourceConnection{Name: "archivos", Driver: "mysql", Host: "db", Port: 3306, User: "cdc", Database: "archivos"}
}

func TestIntrospector_Discover(t *testing.T) {
	t.Parallel()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	expectArchivos(mock)
	mock.ExpectClose()

	var gotDriver string
	in := schema.NewIntrospector(zap.NewNop(), func(driverName, dsn string) (*sql.DB, error) {
		gotDriver = driverName
		return mockDB, nil
	})

	tables, err := in.Discover(context.Background(), archivosConn())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "mysql", gotDriver)

	require.Len(t, tables, 2)
	assert.Equal(t, "archivos.documentos", tables[0].QualifiedName())
	assert.Equal(t, "expedientes", tables[1].Name)

	cols := tables[0].Columns
	require.Len(t, cols, 6)
	assert.Equal(t, []string{"id", "titulo", "fecha", "creado", "monto", "meta"},
		[]string{cols[0].Name, cols[1].Name, cols[2].Name, cols[3].Name, cols[4].Name, cols[5].Name})

	assert.True(t, cols[0].AutoIncrement)
	assert.False(t, cols[0].Required(), "auto-increment is never required")
	assert.True(t, cols[1].Required())
	assert.False(t, cols[2].Required(), "nullable is never required")
	assert.False(t, cols[3].Required(), "defaulted is never required")
	assert.True(t, cols[4].Required())

	assert.Equal(t, value.KindInteger, cols[0].Kind)
	assert.Equal(t, value.KindText, cols[1].Kind)
	assert.Equal(t, value.KindTimestamp, cols[3].Kind)
	assert.Equal(t, value.KindFloat, cols[4].Kind)
}

func TestIntrospector_TableFilter(t *testing.T) {
	t.Parallel()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta(mysqlDialect.GetTablesQuery())).
		WithArgs("archivos").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("documentos").AddRow("expedientes"))
	mock.ExpectQuery(regexp.QuoteMeta(mysqlDialect.GetColumnsQuery())).
		WithArgs("archivos", "expedientes").
		WillReturnRows(columnRows().AddRow("id", "bigint", "bigint", "NO", nil, ""))

	in := schema.NewIntrospector(zap.NewNop(), func(string, string) (*sql.DB, error) { return mockDB, nil })
	conn := archivosConn()
	conn.Tables = []string{"EXPEDIENTES"}

	tables, err := in.Discover(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "expedientes", tables[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospector_DiscoverAllIsolatesFailures(t *testing.T) {
	t.Parallel()

	downDB, downMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	downMock.ExpectPing().WillReturnError(errors.New("dial tcp 10.0.0.9:3306: connect: connection refused"))

	upDB, upMock, err := sqlmock.New()
	require.NoError(t, err)
	expectArchivos(upMock)

	dbs := []*sql.DB{downDB, upDB}
	in := schema.NewIntrospector(zap.NewNop(), func(string, string) (*sql.DB, error) {
		db := dbs[0]
		dbs = dbs[1:]
		return db, nil
	})

	down := archivosConn()
	down.Name = "fiscalizacion"
	results := in.DiscoverAll(context.Background(), []config.SourceConnection{down, archivosConn()})

	require.Len(t, results, 2)
	assert.Equal(t, "fiscalizacion", results[0].Connection)
	assert.True(t, errs.IsConnectivity(results[0].Err))
	assert.Empty(t, results[0].Tables)

	assert.Equal(t, "archivos", results[1].Connection)
	require.NoError(t, results[1].Err)
	assert.Len(t, results[1].Tables, 2)
}

func TestIntrospector_OpenFailureIsConnectivity(t *testing.T) {
	t.Parallel()

	in := schema.NewIntrospector(zap.NewNop(), func(string, string) (*sql.DB, error) {
		return nil, errors.New("unknown driver")
	})
	_, err := in.Discover(context.Background(), archivosConn())
	require.Error(t, err)
	assert.True(t, errs.IsConnectivity(err))
}
