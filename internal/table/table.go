package table

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Format names a supported source encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
	// FormatXLS is accepted at the boundary; only OOXML content decodes.
	FormatXLS Format = "xls"
)

// FormatFromName infers the format from a file name extension.
func FormatFromName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, true
	case ".tsv", ".tab":
		return FormatTSV, true
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	}
	return "", false
}

// ParseFormat validates a user-supplied format hint.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatTSV, FormatXLSX, FormatXLS:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q (use csv|tsv|xlsx|xls)", s)
}

// HeaderPolicy controls what happens to header cells that are empty after trimming.
type HeaderPolicy string

const (
	// HeaderDrop removes empty headers from the header list without touching
	// row cells, so later headers read the column to their left.
	HeaderDrop HeaderPolicy = "drop"
	// HeaderPlaceholder names empty headers __EMPTY, __EMPTY_1, ... and keeps
	// every header aligned with its column.
	HeaderPlaceholder HeaderPolicy = "placeholder"
)

// ParseHeaderPolicy validates a policy name; empty selects HeaderDrop.
func ParseHeaderPolicy(s string) (HeaderPolicy, error) {
	switch p := HeaderPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return HeaderDrop, nil
	case HeaderDrop, HeaderPlaceholder:
		return p, nil
	}
	return "", fmt.Errorf("unsupported header policy %q (use drop|placeholder)", s)
}

// Options controls decoding.
type Options struct {
	HeaderPolicy HeaderPolicy
	// Delimiter for delimited text. If 0, auto-detects among ',', ';', '\t'.
	Delimiter rune
}

// DefaultOptions returns the compatible decoding behavior.
func DefaultOptions() Options {
	return Options{HeaderPolicy: HeaderDrop}
}

// Table is a normalized grid: a header list plus the non-blank data rows.
type Table struct {
	Headers []string `json:"headers"`
	Rows    [][]Cell `json:"rows"`
}

// Record is one row keyed by header name.
type Record map[string]Cell

func (t *Table) RowCount() int    { return len(t.Rows) }
func (t *Table) ColumnCount() int { return len(t.Headers) }

// Cell returns the cell of row r at position i, or an empty cell when the
// row is shorter than i.
func (t *Table) Cell(r, i int) Cell {
	row := t.Rows[r]
	if i < 0 || i >= len(row) {
		return Cell{}
	}
	return row[i]
}

// Records keys every row by header. Empty cells are left out of the record.
// Duplicate headers resolve to the later position.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.Rows))
	for r := range t.Rows {
		rec := make(Record, len(t.Headers))
		for i, h := range t.Headers {
			if c := t.Cell(r, i); !c.IsNull() {
				rec[h] = c
			} else {
				delete(rec, h)
			}
		}
		out[r] = rec
	}
	return out
}

// Load decodes data in the given format and normalizes it into a Table.
func Load(data []byte, format Format, opt Options) (*Table, error) {
	var (
		grid [][]Cell
		err  error
	)
	switch format {
	case FormatCSV:
		grid, err = decodeDelimited(data, opt.Delimiter)
	case FormatTSV:
		d := opt.Delimiter
		if d == 0 {
			d = '\t'
		}
		grid, err = decodeDelimited(data, d)
	case FormatXLSX, FormatXLS:
		grid, err = decodeWorkbook(data)
	default:
		return nil, &DecodeError{Format: format, Err: fmt.Errorf("unknown format")}
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	if len(grid) == 0 {
		return nil, &EmptySourceError{Format: format}
	}
	return normalize(grid, opt.HeaderPolicy), nil
}

// LoadFile reads path and decodes it using the format implied by its extension.
func LoadFile(path string, opt Options) (*Table, error) {
	format, ok := FormatFromName(path)
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Base(path))
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return Load(b, format, opt)
}

func normalize(grid [][]Cell, policy HeaderPolicy) *Table {
	t := &Table{Headers: headerNames(grid[0], policy), Rows: [][]Cell{}}
	for _, row := range grid[1:] {
		if !blankRow(row) {
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

func headerNames(row []Cell, policy HeaderPolicy) []string {
	headers := make([]string, 0, len(row))
	placeholders := 0
	for _, c := range row {
		h := headerText(c)
		if h == "" {
			if policy != HeaderPlaceholder {
				continue
			}
			h = "__EMPTY"
			if placeholders > 0 {
				h += "_" + strconv.Itoa(placeholders)
			}
			placeholders++
		}
		headers = append(headers, h)
	}
	return headers
}

// headerText names a header cell. Falsy cells (0, NaN, false) name nothing,
// like an empty cell.
func headerText(c Cell) string {
	switch c.Kind() {
	case KindNumber:
		if c.n == 0 || math.IsNaN(c.n) {
			return ""
		}
	case KindBool:
		if !c.b {
			return ""
		}
	}
	return strings.TrimSpace(c.String())
}

func blankRow(row []Cell) bool {
	for _, c := range row {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}
