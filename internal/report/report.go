// Package report renders a run report for the terminal.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/autoreel/autoreel/internal/pipeline"
)

// Render writes the reel table and any highlight failures to w.
func Render(w io.Writer, rep pipeline.Report) {
	fmt.Fprintf(w, "run %s: %s (%s)\n", rep.RunID, rep.State, rep.Elapsed.Round(time.Second))
	if rep.OutDir != "" {
		fmt.Fprintf(w, "output: %s\n", rep.OutDir)
	}

	if len(rep.Reels) == 0 {
		fmt.Fprintln(w, "no reels produced")
	} else {
		fmt.Fprintln(w, renderReelTable(rep, colorable(w)))
	}

	if len(rep.Failures) > 0 {
		fmt.Fprintf(w, "\n%d highlight(s) skipped:\n", len(rep.Failures))
		for _, f := range rep.Failures {
			fmt.Fprintf(w, "  %s-%s %q: %s failed: %s\n",
				f.Start.Round(time.Second), f.End.Round(time.Second), f.Title, f.Stage, f.Error)
		}
	}
}

func renderReelTable(rep pipeline.Report, colorize bool) string {
	tw := table.NewWriter()
	if colorize {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	tw.AppendHeader(table.Row{"#", "Score", "Duration", "Platform", "Title", "Path"})
	for _, r := range rep.Reels {
		tw.AppendRow(table.Row{
			r.Rank + 1,
			strconv.FormatFloat(r.ViralityScore, 'f', 1, 64),
			r.Duration.Round(time.Second).String(),
			string(r.Platform),
			r.Title,
			r.Path,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}

func colorable(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
