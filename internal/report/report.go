// Package report prints the end-of-run summary and failure table.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/elections-scraper/internal/election"
	"github.com/JakeFAU/elections-scraper/internal/writer"
)

const maxErrorWidth = 120

// Summary is everything the report shows about one run.
type Summary struct {
	RunID      uuid.UUID
	Discovered int
	Written    int
	Failures   []election.Failure
	Path       string
	State      writer.State
	SHA256     string
	Duration   time.Duration
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// Render writes the summary table and, when any precinct failed, a table of
// failures in discovery order.
func Render(out io.Writer, s Summary) {
	t := newTable(out)
	t.SetTitle("Run summary")
	t.AppendRow(table.Row{"Run ID", s.RunID.String()})
	t.AppendRow(table.Row{"Precincts discovered", s.Discovered})
	t.AppendRow(table.Row{"Precincts written", s.Written})
	t.AppendRow(table.Row{"Precincts failed", len(s.Failures)})
	t.AppendRow(table.Row{"Output", s.Path})
	t.AppendRow(table.Row{"Writer state", s.State.String()})
	if s.SHA256 != "" {
		t.AppendRow(table.Row{"SHA-256", s.SHA256})
	}
	t.AppendRow(table.Row{"Duration", s.Duration.Round(time.Millisecond).String()})
	t.Render()

	if len(s.Failures) == 0 {
		return
	}
	ft := newTable(out)
	ft.SetTitle(fmt.Sprintf("Failed precincts (%d)", len(s.Failures)))
	ft.AppendHeader(table.Row{"#", "URL", "Kind", "Error"})
	ft.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: maxErrorWidth}})
	for _, f := range s.Failures {
		ft.AppendRow(table.Row{f.Index, f.URL, election.KindOf(f.Err), f.Err.Error()})
	}
	ft.Render()
}
