// Package output renders CLI results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q: want table, json or yaml", s)
}

// Printer handles formatted output
type Printer struct {
	format  Format
	writer  io.Writer
	noColor bool
}

// NewPrinter creates a printer writing to w.
func NewPrinter(format Format, w io.Writer) *Printer {
	return &Printer{
		format:  format,
		writer:  w,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// Print writes data as JSON or YAML. Table output goes through the typed
// Print* methods.
func (p *Printer) Print(data any) error {
	if p.format == FormatYAML {
		enc := yaml.NewEncoder(p.writer)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	}
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

const (
	reset = "\033[0m"
	bold  = "\033[1m"
	red   = "\033[31m"
	cyan  = "\033[36m"
)

func (p *Printer) colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + reset
}

func (p *Printer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// PurgeRow is the result of purging one prefix.
type PurgeRow struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	Keys   int    `json:"keys" yaml:"keys"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// PrintPurge prints purge results.
func (p *Printer) PrintPurge(rows []PurgeRow) error {
	if p.format != FormatTable {
		return p.Print(rows)
	}
	w := p.table()
	fmt.Fprintln(w, p.colorize(bold, "PREFIX\tKEYS\tERROR"))
	for _, r := range rows {
		errText := "-"
		if r.Error != "" {
			errText = p.colorize(red, r.Error)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.colorize(cyan, r.Prefix), r.Keys, errText)
	}
	return w.Flush()
}

// FamilyRow counts the cached keys of one family.
type FamilyRow struct {
	Family string `json:"family" yaml:"family"`
	Prefix string `json:"prefix" yaml:"prefix"`
	Keys   int    `json:"keys" yaml:"keys"`
}

// PrintFamilies prints per-family key counts.
func (p *Printer) PrintFamilies(rows []FamilyRow) error {
	if p.format != FormatTable {
		return p.Print(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(p.writer, "No cache families")
		return nil
	}
	w := p.table()
	fmt.Fprintln(w, p.colorize(bold, "FAMILY\tPREFIX\tKEYS"))
	total := 0
	for _, r := range rows {
		total += r.Keys
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.colorize(cyan, r.Family), r.Prefix, r.Keys)
	}
	fmt.Fprintf(w, "total\t\t%d\n", total)
	return w.Flush()
}
