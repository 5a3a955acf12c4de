package utils

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maxkimambo/tasklens/internal/dag"
	"github.com/maxkimambo/tasklens/internal/progress"
	"github.com/maxkimambo/tasklens/internal/taskstate"
)

// TableFormatter helps create formatted tables for CLI output
type TableFormatter struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTableFormatter creates a new table formatter with headers
func NewTableFormatter(headers ...string) *TableFormatter {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	return &TableFormatter{headers: headers, widths: widths}
}

// AddRow adds a row. Missing cells are left blank and extra cells dropped.
func (t *TableFormatter) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	for i, cell := range row {
		if n := utf8.RuneCountInString(cell); n > t.widths[i] {
			t.widths[i] = n
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of data rows.
func (t *TableFormatter) Len() int {
	return len(t.rows)
}

// String returns the formatted table
func (t *TableFormatter) String() string {
	var sb strings.Builder

	t.writeBorder(&sb, "┌", "┬", "┐")
	t.writeRow(&sb, t.headers)
	t.writeBorder(&sb, "├", "┼", "┤")
	for _, row := range t.rows {
		t.writeRow(&sb, row)
	}
	t.writeBorder(&sb, "└", "┴", "┘")

	return sb.String()
}

func (t *TableFormatter) writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("│")
	for i, cell := range cells {
		pad := t.widths[i] - utf8.RuneCountInString(cell)
		sb.WriteString(" " + cell + strings.Repeat(" ", pad) + " │")
	}
	sb.WriteString("\n")
}

func (t *TableFormatter) writeBorder(sb *strings.Builder, left, middle, right string) {
	sb.WriteString(left)
	for i, w := range t.widths {
		sb.WriteString(strings.Repeat("─", w+2))
		if i < len(t.widths)-1 {
			sb.WriteString(middle)
		}
	}
	sb.WriteString(right)
	sb.WriteString("\n")
}

// TaskTable lists every entry of a store snapshot in store order. derived may
// be nil when no catalog is known.
func TaskTable(snap taskstate.Store, derived *dag.Result, averages map[taskstate.TaskKey]time.Duration, now time.Time) *TableFormatter {
	t := NewTableFormatter("TASK", "STATE", "TREE", "ELAPSED", "PROGRESS", "PARENT")
	for _, e := range snap.Entries() {
		info := progress.Compute(e.Key, e.State, averages, now)

		tree := "-"
		if derived != nil {
			if _, ok := derived.States[e.Key]; ok {
				tree = string(derived.State(e.Key))
			}
		}

		pct := "-"
		if info.HasEstimate || e.State.IsTerminal() {
			pct = fmt.Sprintf("%.0f%%", info.Percent)
		}

		parent := string(e.State.ParentTask)
		if parent == "" {
			parent = "-"
		}

		t.AddRow(
			string(e.Key),
			taskStateLabel(e.State),
			tree,
			progress.FormatDuration(info.Elapsed),
			pct,
			parent,
		)
	}
	return t
}

func taskStateLabel(st taskstate.TaskRuntimeState) string {
	label := st.State.String()
	switch {
	case st.Failed && st.ExitCode != nil:
		label = fmt.Sprintf("%s (exit %d)", label, *st.ExitCode)
	case len(st.FailedSubtasks) > 0:
		label = fmt.Sprintf("%s (%d subtask failures)", label, len(st.FailedSubtasks))
	}
	return label
}
