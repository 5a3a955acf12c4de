package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/maxkimambo/tasklens/internal/history"
	"github.com/maxkimambo/tasklens/internal/progress"
)

// ReportBuilder provides a fluent interface for building plain-text reports.
// Key-value pairs within one section share a column.
type ReportBuilder struct {
	sections  []*reportSection
	separator string
	width     int
}

type reportSection struct {
	title string
	lines []reportLine
}

type reportLine struct {
	key   string
	value string
	kv    bool
}

// NewReportBuilder creates a new report builder
func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{separator: "=", width: 40}
}

// WithSeparator sets the separator character
func (rb *ReportBuilder) WithSeparator(sep string) *ReportBuilder {
	rb.separator = sep
	return rb
}

// WithWidth sets the separator width
func (rb *ReportBuilder) WithWidth(width int) *ReportBuilder {
	rb.width = width
	return rb
}

func (rb *ReportBuilder) current() *reportSection {
	if len(rb.sections) == 0 {
		rb.sections = append(rb.sections, &reportSection{})
	}
	return rb.sections[len(rb.sections)-1]
}

// Header adds a title underlined with the separator
func (rb *ReportBuilder) Header(text string) *ReportBuilder {
	s := rb.current()
	s.lines = append(s.lines,
		reportLine{value: text},
		reportLine{value: strings.Repeat(rb.separator, rb.width)})
	return rb
}

// Section starts a new section
func (rb *ReportBuilder) Section(title string) *ReportBuilder {
	rb.sections = append(rb.sections, &reportSection{title: title})
	return rb
}

// AddLine adds a single line
func (rb *ReportBuilder) AddLine(text string) *ReportBuilder {
	s := rb.current()
	s.lines = append(s.lines, reportLine{value: text})
	return rb
}

// AddBullet adds a bulleted line
func (rb *ReportBuilder) AddBullet(text string) *ReportBuilder {
	return rb.AddLine("• " + text)
}

// AddKeyValue adds a key-value pair
func (rb *ReportBuilder) AddKeyValue(key, value string) *ReportBuilder {
	s := rb.current()
	s.lines = append(s.lines, reportLine{key: key, value: value, kv: true})
	return rb
}

// AddIndented adds an indented line
func (rb *ReportBuilder) AddIndented(text string, level int) *ReportBuilder {
	return rb.AddLine(strings.Repeat("  ", level) + text)
}

// Build returns the built report as a string
func (rb *ReportBuilder) Build() string {
	return strings.Join(rb.BuildLines(), "\n")
}

// BuildLines returns the built report as a slice of lines
func (rb *ReportBuilder) BuildLines() []string {
	var out []string
	for i, s := range rb.sections {
		if s.title != "" {
			if i > 0 {
				out = append(out, "")
			}
			out = append(out, s.title)
		}

		keyWidth := 0
		for _, l := range s.lines {
			if n := utf8.RuneCountInString(l.key); l.kv && n > keyWidth {
				keyWidth = n
			}
		}
		for _, l := range s.lines {
			if !l.kv {
				out = append(out, l.value)
				continue
			}
			pad := keyWidth - utf8.RuneCountInString(l.key)
			out = append(out, fmt.Sprintf("  %s:%s %s", l.key, strings.Repeat(" ", pad), l.value))
		}
	}
	return out
}

// HistoryReport summarises an execution log: per-task statistics followed by
// the call tree of the recorded runs.
func HistoryReport(records []history.ExecutionRecord, window int) string {
	rb := NewReportBuilder().Header(fmt.Sprintf("Execution history (%d runs)", len(records)))

	averages := history.AggregateWindow(records, window)
	rb.Section("Durations")
	for _, s := range history.Stats(records) {
		value := fmt.Sprintf("%d ok, %d failed", s.Runs, s.Failures)
		if s.Runs > 0 {
			value += fmt.Sprintf(", avg %s, p50 %s, p90 %s, max %s",
				progress.FormatDuration(averages[s.Key]),
				progress.FormatDuration(s.P50),
				progress.FormatDuration(s.P90),
				progress.FormatDuration(s.Max))
		}
		rb.AddKeyValue(string(s.Key), value)
	}

	rb.Section("Call tree")
	history.Walk(history.BuildCallTree(records), func(n *history.CallNode, depth int) {
		line := string(n.Record.TaskKey)
		switch {
		case n.Record.Failed:
			line += " [failed]"
		case n.Record.Duration != nil:
			line += " [" + progress.FormatDuration(*n.Record.Duration) + "]"
		}
		rb.AddIndented(line, depth+1)
	})
	return rb.Build()
}
