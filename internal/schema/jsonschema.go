package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"cdc-pump/internal/value"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// JSONType maps a column to its JSON-schema type. Temporal columns stay strings: they
// travel as ISO text and are not parsed here.
func JSONType(c Column) string {
	t := strings.ToLower(c.SourceType)
	if t == "json" || t == "jsonb" {
		return "object"
	}
	switch c.Kind {
	case value.KindInteger:
		return "integer"
	case value.KindFloat:
		return "number"
	default:
		return "string"
	}
}

// JSONSchema builds the draft-07 schema document for one table.
func JSONSchema(t Table) *jsonschema.Schema {
	doc := &jsonschema.Schema{
		Version:    draft07,
		Title:      t.QualifiedName(),
		Type:       "object",
		Properties: jsonschema.NewProperties(),
		Required:   []string{},
	}

	for _, c := range t.Columns {
		prop := &jsonschema.Schema{
			Type: JSONType(c),
			Extras: map[string]any{
				"x-source-type": c.ColumnType,
				"x-nullable":    c.Nullable,
			},
		}
		doc.Properties.Set(c.Name, prop)
		if c.Required() {
			doc.Required = append(doc.Required, c.Name)
		}
	}
	return doc
}

// MarshalJSONSchema renders the schema for t and checks that it compiles as draft-07.
func MarshalJSONSchema(t Table) ([]byte, error) {
	data, err := json.MarshalIndent(JSONSchema(t), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %s: %w", t.QualifiedName(), err)
	}

	loader := gojsonschema.NewSchemaLoader()
	loader.Draft = gojsonschema.Draft7
	loader.Validate = true
	if _, err := loader.Compile(gojsonschema.NewBytesLoader(data)); err != nil {
		return nil, fmt.Errorf("invalid schema for %s: %w", t.QualifiedName(), err)
	}
	return data, nil
}
