// Package output renders command results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format selects how a Printer renders values.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json, yaml or yml. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("invalid output format %q (valid: table, json, yaml)", s)
}

func (f Format) String() string { return string(f) }

// Tabular is implemented by results that know their table layout.
type Tabular interface {
	Headers() []string
	Rows() [][]string
}

// Printer writes results to out in one format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter returns a printer. color only affects status lines.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{out: out, format: format, color: color}
}

func (p *Printer) Format() Format { return p.format }
func (p *Printer) Writer() io.Writer { return p.out }

// Print renders v. In table format v should be Tabular; anything else
// falls back to JSON.
func (p *Printer) Print(v any) error {
	switch p.format {
	case FormatTable:
		if t, ok := v.(Tabular); ok {
			return Table(p.out, t)
		}
		return JSON(p.out, v)
	case FormatJSON:
		return JSON(p.out, v)
	case FormatYAML:
		return YAML(p.out, v)
	}
	return fmt.Errorf("unknown format %q", p.format)
}

// Stream renders one item of an unbounded sequence. JSON becomes one
// compact object per line; tables print a single row without headers.
func (p *Printer) Stream(v any) error {
	switch p.format {
	case FormatJSON:
		return json.NewEncoder(p.out).Encode(v)
	case FormatYAML:
		if _, err := io.WriteString(p.out, "---\n"); err != nil {
			return err
		}
		return YAML(p.out, v)
	}
	if t, ok := v.(Tabular); ok {
		for _, row := range t.Rows() {
			if _, err := fmt.Fprintln(p.out, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	}
	return json.NewEncoder(p.out).Encode(v)
}

// Success, Warning and Error print a status line, colored when enabled.
func (p *Printer) Success(msg string) { p.status("32", msg) }
func (p *Printer) Warning(msg string) { p.status("33", msg) }
func (p *Printer) Error(msg string) { p.status("31", msg) }

func (p *Printer) status(code, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[%sm%s\033[0m\n", code, msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}

// Table writes t with borders and separators stripped.
func Table(w io.Writer, t Tabular) error {
	tw := newTable(w, "")
	tw.SetHeader(t.Headers())
	tw.SetAutoFormatHeaders(true)
	tw.AppendBulk(t.Rows())
	tw.Render()
	return nil
}

// KeyValue writes label: value pairs, one per line.
func KeyValue(w io.Writer, pairs [][2]string) error {
	tw := newTable(w, ":")
	for _, kv := range pairs {
		tw.Append([]string{kv[0], kv[1]})
	}
	tw.Render()
	return nil
}

func newTable(w io.Writer, colSep string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoWrapText(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator(colSep)
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetBorder(false)
	tw.SetTablePadding("  ")
	tw.SetNoWhiteSpace(true)
	return tw
}

// JSON writes v indented by two spaces.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v indented by two spaces.
func YAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Rows is an ad-hoc Tabular.
type Rows struct {
	headers []string
	rows    [][]string
}

func NewRows(headers ...string) *Rows { return &Rows{headers: headers} }

func (r *Rows) Add(cells ...string) { r.rows = append(r.rows, cells) }
func (r *Rows) Headers() []string { return r.headers }
func (r *Rows) Rows() [][]string { return r.rows }
