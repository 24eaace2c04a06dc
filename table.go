package main

import (
	"strconv"

	"phototagger/types"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(title string, headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle(title)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderRunSummary renders the end of run statistics
func renderRunSummary(s types.StatsSnapshot, simulate bool) string {
	title := "Run summary"
	if simulate {
		title += " (simulated)"
	}
	rows := [][]string{
		{"Photos scanned", strconv.FormatInt(s.Scanned, 10)},
		{"Photos matched", strconv.FormatInt(s.Matched, 10)},
		{"Photos tagged", strconv.FormatInt(s.Tagged, 10)},
		{"Tags applied", strconv.FormatInt(s.TagsApplied, 10)},
		{"Already tagged", strconv.FormatInt(s.AlreadyTagged, 10)},
		{"Sources deleted", strconv.FormatInt(s.Deleted, 10)},
		{"Failures", strconv.FormatInt(s.Failures, 10)},
	}
	return renderTable(title, []string{"Counter", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
