package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnKind int

const (
	textColumn columnKind = iota
	// numberColumn right-aligns scores, deltas and counts.
	numberColumn
	// verdictColumn holds a status label; it is centered, colored on a
	// terminal, and tallied in the footer.
	verdictColumn
)

type column struct {
	title string
	kind  columnKind
}

func textCol(title string) column    { return column{title: title, kind: textColumn} }
func numberCol(title string) column  { return column{title: title, kind: numberColumn} }
func verdictCol(title string) column { return column{title: title, kind: verdictColumn} }

// verdictOrder fixes the footer tally order, best outcome first. Labels not
// listed follow alphabetically.
var verdictOrder = []string{
	"PASS", "IMPROVED", "DEGRADED", "UNSTABLE", "FAIL", "ERROR",
	"passed", "failed", "n/a",
}

// renderTable draws rows under columns. Rows shorter than the header are
// padded with empty cells. When a verdict column is present and there is
// more than one row, a footer counts the labels in it.
func renderTable(columns []column, rows [][]string, colorize bool) string {
	if len(columns) == 0 {
		return ""
	}

	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	tw := table.NewWriter()
	tw.SetStyle(style)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	hasVerdict := false
	for i, c := range columns {
		header[i] = c.title
		cfg := table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		switch c.kind {
		case numberColumn:
			cfg.Align, cfg.AlignHeader, cfg.AlignFooter = text.AlignRight, text.AlignRight, text.AlignRight
		case verdictColumn:
			hasVerdict = true
			cfg.Align, cfg.AlignHeader = text.AlignCenter, text.AlignCenter
			cfg.Transformer = func(v any) string {
				return colorStatus(fmt.Sprint(v), colorize)
			}
		}
		configs[i] = cfg
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	if hasVerdict && len(rows) > 1 {
		tw.AppendFooter(tallyFooter(columns, rows))
	}
	return tw.Render()
}

func tallyFooter(columns []column, rows [][]string) table.Row {
	footer := make(table.Row, len(columns))
	for i := range footer {
		footer[i] = ""
	}
	if columns[0].kind != verdictColumn {
		footer[0] = fmt.Sprintf("%d rows", len(rows))
	}
	for i, c := range columns {
		if c.kind != verdictColumn {
			continue
		}
		counts := make(map[string]int)
		for _, row := range rows {
			if i < len(row) && row[i] != "" {
				counts[row[i]]++
			}
		}
		footer[i] = formatTally(counts)
	}
	return footer
}

func formatTally(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, label := range verdictOrder {
		if n, ok := counts[label]; ok {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
			delete(counts, label)
		}
	}
	rest := make([]string, 0, len(counts))
	for label := range counts {
		rest = append(rest, label)
	}
	sort.Strings(rest)
	for _, label := range rest {
		parts = append(parts, fmt.Sprintf("%d %s", counts[label], label))
	}
	return strings.Join(parts, ", ")
}
