package main

import (
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const previewWidth = 48

// tableSpec describes a rendered table. Columns listed in rightAligned are
// numbered from zero.
type tableSpec struct {
	headers      []string
	rows         [][]string
	rightAligned []int
}

func (s tableSpec) render() string {
	if len(s.headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(s.headers))
	for i, h := range s.headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range s.rows {
		r := make(table.Row, len(s.headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(s.rightAligned))
	for _, col := range s.rightAligned {
		configs = append(configs, table.ColumnConfig{
			Number:      col + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// preview flattens content onto one line and truncates it by rune count.
func preview(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(flat) <= previewWidth {
		return flat
	}
	runes := []rune(flat)
	return string(runes[:previewWidth-1]) + "…"
}
