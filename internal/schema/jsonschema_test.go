package schema_test

import (
	"encoding/json"
	"testing"

	"cdc-pump/internal/schema"
	"cdc-pump/internal/value"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func documentos() schema.Table {
	return schema.Table{
		Schema: "archivos",
		Name:   "documentos",
		Columns: []schema.Column{
			{Name: "id", SourceType: "int", ColumnType: "int(11)", AutoIncrement: true, Kind: value.KindInteger},
			{Name: "titulo", SourceType: "varchar", ColumnType: "varchar(200)", Kind: value.KindText},
			{Name: "fecha", SourceType: "varchar", ColumnType: "varchar(10)", Nullable: true, Kind: value.KindText},
			{Name: "creado", SourceType: "datetime", ColumnType: "datetime", Default: strptr("CURRENT_TIMESTAMP"), Kind: value.KindTimestamp},
			{Name: "monto", SourceType: "decimal", ColumnType: "decimal(12,2)", Kind: value.KindFloat},
			{Name: "meta", SourceType: "json", ColumnType: "json", Nullable: true, Kind: value.KindText},
			{Name: "adjunto", SourceType: "blob", ColumnType: "blob", Nullable: true, Kind: value.KindText},
		},
	}
}

func TestJSONType(t *testing.T) {
	t.Parallel()

	tbl := documentos()
	want := []string{"integer", "string", "string", "string", "number", "object", "string"}
	for i, c := range tbl.Columns {
		assert.Equal(t, want[i], schema.JSONType(c), c.Name)
	}
}

func TestMarshalJSONSchema(t *testing.T) {
	t.Parallel()

	data, err := schema.MarshalJSONSchema(documentos())
	require.NoError(t, err)

	var doc struct {
		Schema     string                    `json:"$schema"`
		Title      string                    `json:"title"`
		Type       string                    `json:"type"`
		Required   []string                  `json:"required"`
		Properties map[string]map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "http://json-schema.org/draft-07/schema#", doc.Schema)
	assert.Equal(t, "archivos.documentos", doc.Title)
	assert.Equal(t, "object", doc.Type)
	assert.Equal(t, []string{"titulo", "monto"}, doc.Required)
	assert.Equal(t, "integer", doc.Properties["id"]["type"])
	assert.Equal(t, "datetime", doc.Properties["creado"]["x-source-type"])
	assert.Len(t, doc.Properties, 7)
}

func TestMarshalJSONSchema_IsDeterministic(t *testing.T) {
	t.Parallel()

	a, err := schema.MarshalJSONSchema(documentos())
	require.NoError(t, err)
	b, err := schema.MarshalJSONSchema(documentos())
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
