package activity

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// EmptyText fills the single placeholder row of an empty page.
const EmptyText = "No activities."

var columns = table.Row{"Time", "Actor", "Action", "Details", "IP", "User Agent"}

// Render writes res as a table. Empty and failed pages render one
// placeholder row spanning every column.
func Render(w io.Writer, res Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(columns)

	if res.Status != StatusOK || len(res.Entries) == 0 {
		row := make(table.Row, len(columns))
		for i := range row {
			row[i] = EmptyText
		}
		t.AppendRow(row, table.RowConfig{AutoMerge: true})
	} else {
		for _, e := range res.Entries {
			cells := e.Row()
			row := make(table.Row, len(cells))
			for i, c := range cells {
				row[i] = c
			}
			t.AppendRow(row)
		}
	}

	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	if res.Status == StatusOK && res.Total > 0 {
		t.AppendFooter(table.Row{fmt.Sprintf("%d-%d of %d", res.Offset+1, res.Offset+len(res.Entries), res.Total)})
	}
	t.Render()
}
