package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

const timeLayout = "Mon 2006-01-02 15:04 MST"

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func newTable(w io.Writer, header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	if len(header) > 0 {
		tw.AppendHeader(table.Row(header))
	}
	return tw
}

// printFields renders key/value pairs as a two-column table
func printFields(w io.Writer, rows ...table.Row) {
	tw := newTable(w, "Field", "Value")
	tw.AppendRows(rows)
	tw.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}
