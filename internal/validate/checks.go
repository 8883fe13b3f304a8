package validate

import (
	"context"
	"fmt"

	"cdc-pump/internal/connector"
	"cdc-pump/internal/errs"
	"cdc-pump/internal/warehouse"

	"github.com/samber/lo"
)

// Finding is what a check observed. A failing attempt may return one alongside its
// error so the report keeps the evidence.
type Finding struct {
	Message  string
	Evidence map[string]any
}

// Check is one validation step. An error fails the attempt; the validator retries it.
type Check interface {
	Name() string
	Run(ctx context.Context) (Finding, error)
}

type TopicSource interface {
	Topics(ctx context.Context) ([]string, error)
}

type ConnectorSource interface {
	ListConnectors(ctx context.Context) ([]string, error)
	Status(ctx context.Context, name string) (*connector.Status, error)
}

type WarehouseSource interface {
	Databases(ctx context.Context) ([]string, error)
	PopulatedTables(ctx context.Context, database string) ([]warehouse.TableRows, error)
}

// TopicCheck passes when at least one change topic for the connections exists.
type TopicCheck struct {
	Source  TopicSource
	Matcher *Matcher
}

func (c *TopicCheck) Name() string { return "topics" }

func (c *TopicCheck) Run(ctx context.Context) (Finding, error) {
	topics, err := c.Source.Topics(ctx)
	if err != nil {
		return Finding{}, err
	}
	matched := lo.Filter(topics, func(t string, _ int) bool { return c.Matcher.TopicMatches(t) })
	if len(matched) == 0 {
		return Finding{Evidence: map[string]any{"total_topics": len(topics)}},
			&errs.SchemaDriftError{Object: "topics", Expected: c.Matcher.TopicPatterns()}
	}
	return Finding{
		Message: fmt.Sprintf("%d matching topics of %d", len(matched), len(topics)),
		Evidence: map[string]any{
			"total_topics":    len(topics),
			"matching_topics": matched,
		},
	}, nil
}

// ConnectorCheck passes when every registered connector and all of its tasks run.
type ConnectorCheck struct {
	Source ConnectorSource
}

func (c *ConnectorCheck) Name() string { return "connectors" }

func (c *ConnectorCheck) Run(ctx context.Context) (Finding, error) {
	names, err := c.Source.ListConnectors(ctx)
	if err != nil {
		return Finding{}, err
	}
	if len(names) == 0 {
		return Finding{}, &errs.SchemaDriftError{Object: "connectors", Expected: []string{"at least one registered connector"}}
	}

	states := make(map[string]string, len(names))
	healthy := 0
	for _, name := range names {
		st, err := c.Source.Status(ctx, name)
		switch {
		case err != nil:
			states[name] = "UNKNOWN: " + err.Error()
		case st.Healthy():
			states[name] = connector.StateRunning
			healthy++
		default:
			states[name] = describe(st)
		}
	}

	finding := Finding{
		Message:  fmt.Sprintf("%d/%d connectors healthy", healthy, len(names)),
		Evidence: map[string]any{"healthy": healthy, "total": len(names), "states": states},
	}
	if healthy < len(names) {
		return finding, fmt.Errorf("%s: %v", finding.Message, unhealthy(states))
	}
	return finding, nil
}

func describe(st *connector.Status) string {
	s := "connector " + st.Connector.State
	for _, t := range st.Tasks {
		if t.State != connector.StateRunning {
			s += fmt.Sprintf(", task %d %s", t.ID, t.State)
		}
	}
	return s
}

func unhealthy(states map[string]string) map[string]string {
	return lo.PickBy(states, func(_ string, v string) bool { return v != connector.StateRunning })
}

// WarehouseCheck passes when a matching database holds at least one populated table.
type WarehouseCheck struct {
	Source  WarehouseSource
	Matcher *Matcher
}

func (c *WarehouseCheck) Name() string { return "warehouse" }

func (c *WarehouseCheck) Run(ctx context.Context) (Finding, error) {
	all, err := c.Source.Databases(ctx)
	if err != nil {
		return Finding{}, err
	}
	databases := lo.Filter(all, func(d string, _ int) bool { return c.Matcher.DatabaseMatches(d) })

	var tables int
	var rows uint64
	perDatabase := make(map[string]uint64, len(databases))
	for _, db := range databases {
		populated, err := c.Source.PopulatedTables(ctx, db)
		if err != nil {
			return Finding{}, err
		}
		for _, t := range populated {
			tables++
			rows += t.TotalRows
			perDatabase[db] += t.TotalRows
		}
	}

	if tables == 0 {
		expected := c.Matcher.DatabaseNames()
		if len(expected) == 0 {
			expected = []string{"any non-system database"}
		}
		return Finding{Evidence: map[string]any{"databases": databases}},
			&errs.SchemaDriftError{Object: "populated warehouse tables", Expected: expected}
	}
	return Finding{
		Message: fmt.Sprintf("%d populated tables, %d rows across %d databases", tables, rows, len(databases)),
		Evidence: map[string]any{
			"databases":  perDatabase,
			"tables":     tables,
			"total_rows": rows,
		},
	}, nil
}
