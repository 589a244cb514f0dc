package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/signalsfoundry/rfcascade/core"
	"github.com/signalsfoundry/rfcascade/model"
)

// Options controls which metrics a report shows and how.
type Options struct {
	// Metrics are the columns, in order. Empty selects the registry's
	// default metrics that are visible for the chain's direction.
	Metrics []core.Metric
	Power   PowerUnit
	// Registry supplies titles and units; nil means the built-in one.
	Registry *core.Registry
	// Plain disables colors and bold headers.
	Plain bool
}

// Column is one metric column of a table.
type Column struct {
	Key   core.Metric
	Title string
	Unit  core.Unit
}

// Header is the column title with its display unit.
func (c Column) Header(power PowerUnit) string {
	if u := UnitLabel(c.Unit, power); u != "" {
		return fmt.Sprintf("%s (%s)", c.Title, u)
	}
	return c.Title
}

// Row is one stage of a table. Disabled stages have no cells.
type Row struct {
	Index      int
	PartNumber string
	Kind       model.StageKind
	Enabled    bool
	Cells      []string
}

// Table is an evaluation result laid out for display.
type Table struct {
	Chain     string
	Direction model.Direction
	Power     PowerUnit
	Columns   []Column
	Rows      []Row
	Warnings  []string
	Errors    []string
	plain     bool
}

// ParseMetrics maps comma separated metric names onto keys.
func ParseMetrics(list string) ([]core.Metric, error) {
	var out []core.Metric
	var errs []error
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		m, err := core.ParseMetric(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	return out, errors.Join(errs...)
}

// Columns resolves the column set for opts in direction dir.
func Columns(opts Options, dir model.Direction) ([]Column, error) {
	reg := opts.Registry
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	var cols []Column
	if len(opts.Metrics) == 0 {
		for _, d := range reg.Catalog(dir) {
			if d.Default {
				cols = append(cols, Column{Key: d.Key, Title: d.Title, Unit: d.Unit})
			}
		}
		return cols, nil
	}
	for _, key := range opts.Metrics {
		d, ok := reg.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a registered metric", core.ErrUnknownMetricKey, key)
		}
		cols = append(cols, Column{Key: d.Key, Title: d.Title, Unit: d.Unit})
	}
	return cols, nil
}

// Build lays res out as a table. The trailing sink row is labelled Output.
func Build(res *core.Result, opts Options) (*Table, error) {
	doc, err := NewDocument(res, nil)
	if err != nil {
		return nil, err
	}
	return BuildDocument(doc, opts)
}

// BuildDocument lays out a document, e.g. one returned by a remote
// evaluation.
func BuildDocument(doc *Document, opts Options) (*Table, error) {
	if doc == nil {
		return nil, errors.New("report: nil document")
	}
	dir := model.Direction(doc.Direction)
	cols, err := Columns(opts, dir)
	if err != nil {
		return nil, err
	}
	power := opts.Power
	if power == "" {
		power = PowerDBm
	}
	t := &Table{
		Chain:     doc.Chain,
		Direction: dir,
		Power:     power,
		Columns:   cols,
		Warnings:  doc.Warnings,
		Errors:    doc.Errors,
		plain:     opts.Plain,
	}
	for _, sv := range doc.Stages {
		t.Rows = append(t.Rows, t.row(sv))
	}
	if doc.Output.Index > 0 {
		sink := t.row(doc.Output)
		sink.PartNumber = "Output"
		t.Rows = append(t.Rows, sink)
	}
	return t, nil
}

func (t *Table) row(sv StageValues) Row {
	r := Row{
		Index:      sv.Index,
		PartNumber: sv.PartNumber,
		Kind:       model.StageKind(sv.Kind),
		Enabled:    sv.Enabled,
	}
	if !r.Enabled {
		return r
	}
	r.Cells = make([]string, len(t.Columns))
	for i, c := range t.Columns {
		v, ok := sv.Values[c.Key.String()]
		if !ok {
			r.Cells[i] = "?"
			continue
		}
		r.Cells[i] = Format(Display(float64(v), c.Unit, t.Power), c.Unit, t.Power)
	}
	return r
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	disabledStyle = cellStyle.Foreground(lipgloss.Color("8"))
	outputStyle   = cellStyle.Bold(true)
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
)

// Render writes the table followed by any warnings and lookup errors.
func (t *Table) Render(w io.Writer) error {
	headers := []string{"#", "Part", "Kind"}
	for _, c := range t.Columns {
		headers = append(headers, c.Header(t.Power))
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		line := []string{strconv.Itoa(r.Index), r.PartNumber, r.Kind.Title()}
		if r.Enabled {
			line = append(line, r.Cells...)
		} else {
			for range t.Columns {
				line = append(line, "off")
			}
		}
		rows = append(rows, line)
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	if t.plain {
		tbl = tbl.StyleFunc(func(int, int) lipgloss.Style { return lipgloss.NewStyle().Padding(0, 1) })
	} else {
		last := len(rows) - 1
		tbl = tbl.StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == last:
				return outputStyle
			case row >= 0 && row < len(t.Rows) && !t.Rows[row].Enabled:
				return disabledStyle
			}
			return cellStyle
		})
	}

	var b strings.Builder
	if t.Chain != "" {
		fmt.Fprintf(&b, "%s (%s)\n", t.Chain, strings.ToUpper(string(t.Direction)))
	}
	b.WriteString(tbl.Render())
	b.WriteByte('\n')
	for _, msg := range t.Warnings {
		b.WriteString(t.style(warningStyle, "warning: "+msg))
		b.WriteByte('\n')
	}
	for _, msg := range t.Errors {
		b.WriteString(t.style(errorStyle, "error: "+msg))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Table) style(s lipgloss.Style, text string) string {
	if t.plain {
		return text
	}
	return s.Render(text)
}

// WriteCatalog lists the metrics of reg visible in dir, in evaluation
// order.
func WriteCatalog(w io.Writer, reg *core.Registry, dir model.Direction, power PowerUnit) error {
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	rows := make([][]string, 0, reg.Len())
	for _, d := range reg.Catalog(dir) {
		def := ""
		if d.Default {
			def = "yes"
		}
		rows = append(rows, []string{d.Key.String(), d.Title, UnitLabel(d.Unit, power), d.Phase.String(), def, d.Description})
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(int, int) lipgloss.Style { return cellStyle }).
		Headers("Key", "Title", "Unit", "Phase", "Default", "Description").
		Rows(rows...)
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
