package pipeline

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// renderSummary prints the per-stage outcome table after a run.
func (o *Orchestrator) renderSummary(results []StageResult) {
	writer := table.NewWriter()
	writer.SetOutputMirror(o.out)
	writer.AppendHeader(table.Row{"Stage", "Duration", "Result", "Notes"})

	for _, result := range results {
		status := "ok"
		notes := ""
		switch {
		case result.Err != nil:
			status = "failed"
			notes = result.Err.Error()
		case result.EmptyOutput:
			notes = "no output produced"
		}
		writer.AppendRow(table.Row{
			result.Stage,
			result.Duration.Round(time.Millisecond),
			status,
			notes,
		})
	}

	if file, ok := o.out.(*os.File); ok && isatty.IsTerminal(file.Fd()) {
		writer.SetStyle(table.StyleRounded)
		writer.Style().Color.Header = text.Colors{text.Bold}
	} else {
		writer.SetStyle(table.StyleLight)
	}
	writer.Render()
}
