package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/afero"
)

type Verdict string

const (
	VerdictHealthy  Verdict = "healthy"
	VerdictDegraded Verdict = "degraded"
)

// Exit codes of the validate command.
const (
	ExitHealthy       = 0
	ExitDegraded      = 1
	ExitConfiguration = 2
)

// Report is the one document a validation run persists.
type Report struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Result  `json:"checks"`
	Verdict   Verdict   `json:"verdict"`
}

func NewReport(at time.Time) *Report {
	return &Report{RunID: uuid.NewString(), Timestamp: at.UTC(), Checks: []Result{}}
}

func (r *Report) ExitCode() int {
	if r.Verdict == VerdictHealthy {
		return ExitHealthy
	}
	return ExitDegraded
}

// DefaultPath is reports/health-<timestamp>.json under dir.
func (r *Report) DefaultPath(dir string) string {
	return filepath.Join(dir, "reports", "health-"+r.Timestamp.Format("20060102T150405Z")+".json")
}

// Write persists the report as indented JSON at path.
func (r *Report) Write(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Render prints the per-check table and the verdict line.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Check", "Status", "Attempts", "Duration", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Attempts", Align: text.AlignRight},
		{Name: "Message", WidthMax: 80},
	})
	for _, c := range r.Checks {
		t.AppendRow(table.Row{c.Name, statusText(c.Status), strconv.Itoa(c.Attempts), c.Duration.Round(time.Millisecond).String(), c.Message})
	}
	t.Render()

	verdict := color.New(color.FgGreen, color.Bold)
	if r.Verdict != VerdictHealthy {
		verdict = color.New(color.FgRed, color.Bold)
	}
	fmt.Fprintf(w, "\nrun %s: ", r.RunID)
	verdict.Fprintln(w, string(r.Verdict))
}

func statusText(s Status) string {
	switch s {
	case StatusPass:
		return color.GreenString(string(s))
	case StatusFail:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}
