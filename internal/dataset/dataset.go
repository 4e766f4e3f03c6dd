// Package dataset reads tabular incident exports (CSV, TSV, XLSX) into raw
// incident records.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/crashlens/internal/incident"
)

// ErrUnsupported indicates no loader accepts the file type.
var ErrUnsupported = errors.New("unsupported dataset format")

// Options selects the source columns and limits reading.
type Options struct {
	DateColumn    string
	TimeColumn    string
	BoroughColumn string
	// Delimiter overrides CSV delimiter detection when non-zero.
	Delimiter rune
	// MaxRows stops conversion after this many data rows. 0 means no limit.
	MaxRows int
	// SheetName or 1-based SheetIndex pick the XLSX sheet; the first sheet
	// is used when neither is set.
	SheetName  string
	SheetIndex int
}

// DefaultOptions matches the column names of the NYC collision export.
func DefaultOptions() Options {
	return Options{
		DateColumn:    "CRASH DATE",
		TimeColumn:    "CRASH TIME",
		BoroughColumn: "BOROUGH",
	}
}

// Table is the loaded dataset.
type Table struct {
	Name string
	// Rows counts non-blank data rows in the source; Processed counts the
	// rows converted to records (fewer when MaxRows applies).
	Rows      int
	Processed int
	Records   []incident.Record
	Warnings  []string
}

// Truncated reports whether MaxRows cut the dataset short.
func (t *Table) Truncated() bool { return t.Processed < t.Rows }

// Loader reads one family of file formats.
type Loader interface {
	CanLoad(path string) bool
	Load(path string, opt Options) (*Table, error)
}

var registry []Loader

// Register adds a loader. Later registrations do not override earlier ones.
func Register(l Loader) {
	registry = append(registry, l)
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}

// Supported reports whether some registered loader accepts path.
func Supported(path string) bool {
	for _, l := range registry {
		if l.CanLoad(path) {
			return true
		}
	}
	return false
}

// Load picks a loader by file name and reads the dataset.
func Load(path string, opt Options) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	for _, l := range registry {
		if l.CanLoad(path) {
			return l.Load(path, opt.withDefaults())
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if strings.TrimSpace(o.DateColumn) == "" {
		o.DateColumn = def.DateColumn
	}
	if strings.TrimSpace(o.TimeColumn) == "" {
		o.TimeColumn = def.TimeColumn
	}
	if strings.TrimSpace(o.BoroughColumn) == "" {
		o.BoroughColumn = def.BoroughColumn
	}
	return o
}

// builder maps header positions and converts data rows into records.
type builder struct {
	table   *Table
	opt     Options
	date    int
	time    int
	borough int
}

func newBuilder(name string, header []string, opt Options) (*builder, error) {
	idx := map[string]int{}
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	b := &builder{table: &Table{Name: name}, opt: opt, date: -1, time: -1, borough: -1}
	var ok bool
	if b.date, ok = idx[normalizeHeader(opt.DateColumn)]; !ok {
		return nil, fmt.Errorf("date column %q not found in %s.\nAvailable columns: %s",
			opt.DateColumn, name, strings.Join(trimAll(header), ", "))
	}
	if b.time, ok = idx[normalizeHeader(opt.TimeColumn)]; !ok {
		b.time = -1
		b.table.Warnings = append(b.table.Warnings, fmt.Sprintf("time column %q not found; time-keyed counts will be empty", opt.TimeColumn))
	}
	if b.borough, ok = idx[normalizeHeader(opt.BoroughColumn)]; !ok {
		b.borough = -1
		b.table.Warnings = append(b.table.Warnings, fmt.Sprintf("borough column %q not found; borough-keyed counts will be empty", opt.BoroughColumn))
	}
	return b, nil
}

// add converts one data row. line is the 1-based source line or sheet row.
func (b *builder) add(row []string, line int) {
	if blankRow(row) {
		return
	}
	b.table.Rows++
	if b.opt.MaxRows > 0 && b.table.Processed >= b.opt.MaxRows {
		return
	}
	b.table.Processed++
	b.table.Records = append(b.table.Records, incident.Record{
		Date:    cell(row, b.date),
		Time:    cell(row, b.time),
		Borough: cell(row, b.borough),
		Line:    line,
	})
}

func (b *builder) done() *Table {
	if b.table.Truncated() {
		b.table.Warnings = append(b.table.Warnings, fmt.Sprintf("processed %d of %d rows (max rows limit)", b.table.Processed, b.table.Rows))
	}
	return b.table
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	}
	return out
}
