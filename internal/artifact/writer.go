// Package artifact lays generated documents out under the output directory.
package artifact

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Bundle is every file generated for one connection, keyed by path relative to the
// connection's directory. It is written only once complete.
type Bundle struct {
	Connection string
	Files      map[string][]byte
}

func NewBundle(connection string) *Bundle {
	return &Bundle{Connection: connection, Files: make(map[string][]byte)}
}

func (b *Bundle) Add(path string, data []byte) {
	b.Files[path] = data
}

// Paths returns the bundle's relative paths, sorted.
func (b *Bundle) Paths() []string {
	paths := make([]string, 0, len(b.Files))
	for p := range b.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Well-known artifact names inside a connection directory.
const (
	ConnectorFile = "connector.json"
	ProvisionFile = "provision.sql"
	SchemaDir     = "schemas"
	ViewsDir      = "views"
)

// SchemaFile is schemas/<schema>.<table>.json.
func SchemaFile(schemaName, table string) string {
	return filepath.Join(SchemaDir, schemaName+"."+table+".json")
}

type Writer struct {
	fs   afero.Fs
	root string
}

func NewWriter(fs afero.Fs, root string) *Writer {
	return &Writer{fs: fs, root: root}
}

// WriteBundle writes b under <root>/<connection>/ and returns the written paths.
func (w *Writer) WriteBundle(b *Bundle) ([]string, error) {
	dir := filepath.Join(w.root, b.Connection)
	written := make([]string, 0, len(b.Files))
	for _, rel := range b.Paths() {
		path := filepath.Join(dir, rel)
		if err := w.write(path, b.Files[rel]); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteViews writes views/<database>.sql.
func (w *Writer) WriteViews(database string, script []byte) (string, error) {
	path := filepath.Join(w.root, ViewsDir, database+".sql")
	return path, w.write(path, script)
}

func (w *Writer) write(path string, data []byte) error {
	if err := w.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
