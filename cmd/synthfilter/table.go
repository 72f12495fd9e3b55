package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableView is one rounded table as printed by the CLI. rowColors, when
// set, tints whole rows (one entry per row, nil for none).
type tableView struct {
	headers   []string
	rows      [][]string
	aligns    []columnAlignment
	rowColors []text.Colors
	footer    string
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	return tableView{headers: headers, rows: rows, aligns: aligns}.render()
}

func (v tableView) render() string {
	columns := len(v.headers)
	if columns == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(padRow(v.headers, columns))
	for i, row := range v.rows {
		r := padRow(row, columns)
		if i < len(v.rowColors) && v.rowColors[i] != nil {
			for c := range r {
				r[c] = v.rowColors[i].Sprint(r[c])
			}
		}
		tw.AppendRow(r)
	}
	if v.footer != "" {
		footer := make(table.Row, columns)
		for i := range footer {
			footer[i] = v.footer
		}
		tw.AppendFooter(footer, table.RowConfig{AutoMerge: true, AutoMergeAlign: text.AlignLeft})
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(v.aligns) && v.aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render() + "\n"
}

func padRow(cells []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range columns {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
