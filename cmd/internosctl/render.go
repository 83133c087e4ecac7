package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/okian/internos/internal/domain/rubric"
)

// Mode controls the output format.
type Mode int

const (
	ModeTable Mode = iota
	ModeMarkdown
	ModeJSON
)

func parseMode(s string) (Mode, error) {
	switch s {
	case "table", "":
		return ModeTable, nil
	case "markdown", "md":
		return ModeMarkdown, nil
	case "json":
		return ModeJSON, nil
	default:
		return 0, fmt.Errorf("unknown output format %q", s)
	}
}

// printer renders one result either as JSON or as one or more tables.
type printer struct {
	w    io.Writer
	mode Mode
}

func newPrinter(w io.Writer, output string) printer {
	m, _ := parseMode(output)
	return printer{w: w, mode: m}
}

// json reports whether v was written as JSON and tables should be skipped.
func (p printer) json(v any) (bool, error) {
	if p.mode != ModeJSON {
		return false, nil
	}
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

func (p printer) table(title string, header table.Row, rows []table.Row, right ...int) {
	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(header)
	t.AppendRows(rows)
	cfgs := make([]table.ColumnConfig, 0, len(right))
	for _, n := range right {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	t.SetColumnConfigs(cfgs)

	switch p.mode {
	case ModeMarkdown:
		t.RenderMarkdown()
	default:
		t.SetStyle(table.StyleLight)
		t.Render()
	}
}

func (p printer) scores(title string, s rubric.Scores) {
	p.table(title, table.Row{"Category", "Score"}, []table.Row{
		{rubric.CategoryShip, fmtScore(s.Ship)},
		{rubric.CategoryQuality, fmtScore(s.Quality)},
		{rubric.CategoryComm, fmtScore(s.Comm)},
		{rubric.CategoryReliability, fmtScore(s.Reliability)},
		{rubric.CategoryOverall, fmtScore(s.Overall)},
	}, 2)
}

func (p printer) signals(title string, sig rubric.Signals) {
	keys := make([]string, 0, len(sig))
	for k := range sig {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]table.Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, table.Row{k, fmtValue(sig[k])})
	}
	p.table(title, table.Row{"Signal", "Value"}, rows, 2)
}

func fmtScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func fmtValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
