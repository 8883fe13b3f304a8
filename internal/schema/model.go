package schema

import (
	"cdc-pump/internal/value"
)

// Table is one discovered base table. Tables are rebuilt on every run.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// QualifiedName is schema.table, the form used by connector include lists and topics.
func (t Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// HasColumn reports whether the table has a column with exactly this name.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

type Column struct {
	Name          string
	SourceType    string // normalized DATA_TYPE
	ColumnType    string // full declared type, e.g. varchar(40)
	Nullable      bool
	Default       *string
	AutoIncrement bool
	Kind          value.Kind
}

// Required is true for NOT NULL columns the source cannot fill on its own.
func (c Column) Required() bool {
	return !c.Nullable && c.Default == nil && !c.AutoIncrement
}

// Discovery is the outcome of introspecting one connection.
type Discovery struct {
	Connection string
	Tables     []Table
	Err        error
}
