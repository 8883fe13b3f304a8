package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"cdc-pump/internal/artifact"
	"cdc-pump/internal/config"
	"cdc-pump/internal/connector"
	"cdc-pump/internal/provision"
	"cdc-pump/internal/schema"

	"github.com/gosuri/uiprogress"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var only []string

// generated is one connection's output. Err is set when introspection or writing failed.
type generated struct {
	conn       config.SourceConnection
	tables     []schema.Table
	spec       connector.Spec
	statements []provision.Statement
	files      []string
	err        error
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Introspect sources and write connector, schema and provisioning artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		conns, err := a.selectConnections(only)
		if err != nil {
			return err
		}

		ctx, cancel := a.runContext(cmd.Context())
		defer cancel()

		results := a.generate(ctx, conns)
		printGenerateSummary(results)
		return failuresExit(results)
	},
}

func init() {
	RootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringSliceVar(&only, "only", []string{}, "Only these connections (comma-separated)")
}

// generate introspects each connection in order and writes its bundle. A failing
// connection is recorded and the rest still run.
func (a *app) generate(ctx context.Context, conns []config.SourceConnection) []generated {
	introspector := schema.NewIntrospector(a.logger, nil)
	builder := connector.NewBuilder(a.settings.Connector)
	emitter := provision.NewEmitter(a.settings.Warehouse, builder, a.settings.Validator.Policy(), a.logger)
	writer := artifact.NewWriter(a.fs, a.out)

	start := time.Now()
	uiprogress.Start()
	bar := uiprogress.AddBar(len(conns)).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return "Generating: "
	})

	results := make([]generated, 0, len(conns))
	for _, conn := range conns {
		res := generated{conn: conn}
		res.tables, res.err = introspector.Discover(ctx, conn)
		if res.err == nil {
			res.spec = builder.Build(conn.Name, conn, lo.Map(res.tables, func(t schema.Table, _ int) string { return t.QualifiedName() }))
			res.statements = emitter.Emit(conn, res.tables)
			res.files, res.err = writeBundle(writer, res)
		}
		if res.err != nil {
			a.logger.Warn("connection failed", zap.String("connection", conn.Name), zap.Error(res.err))
		}
		results = append(results, res)
		bar.Incr()
	}

	uiprogress.Stop()
	a.logger.Info("generation done", zap.Int("connections", len(conns)), zap.Duration("elapsed", time.Since(start)))
	return results
}

func writeBundle(w *artifact.Writer, res generated) ([]string, error) {
	b := artifact.NewBundle(res.conn.Name)

	doc, err := res.spec.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode connector: %w", err)
	}
	b.Add(artifact.ConnectorFile, doc)

	for _, t := range res.tables {
		data, err := schema.MarshalJSONSchema(t)
		if err != nil {
			return nil, err
		}
		b.Add(artifact.SchemaFile(t.Schema, t.Name), data)
	}
	b.Add(artifact.ProvisionFile, []byte(provision.Script(res.statements)))

	return w.WriteBundle(b)
}

func printGenerateSummary(results []generated) {
	fmt.Println("\n📊 Generation Summary:")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Connection", "Connector", "Server ID", "Tables", "Statements", "Files", "Status"})
	for _, r := range results {
		status := "OK"
		if r.err != nil {
			status = "FAILED: " + r.err.Error()
		}
		t.AppendRow(table.Row{r.conn.Name, r.spec.Name, r.spec.ServerID, len(r.tables), len(r.statements), len(r.files), status})
	}
	t.Render()
}

// failuresExit is exit 1 when any connection failed.
func failuresExit(results []generated) error {
	failed := lo.CountBy(results, func(r generated) bool { return r.err != nil })
	if failed == 0 {
		return nil
	}
	return &exitError{code: 1, err: fmt.Errorf("%d of %d connections failed", failed, len(results))}
}
