package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/sheetlens/internal/profile"
	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/gomarkdown/markdown"
)

// Options controls report building.
type Options struct {
	Table table.Options
	// PreviewLimit bounds Report.Preview; 0 means table.DefaultPreviewLimit.
	PreviewLimit int
	// SampleRows determines how many preview rows the Markdown report shows.
	SampleRows int
}

// DefaultOptions returns reasonable defaults for dataset reports.
func DefaultOptions() Options {
	return Options{
		Table:        table.DefaultOptions(),
		PreviewLimit: table.DefaultPreviewLimit,
		SampleRows:   5,
	}
}

// Report is the derived view of one table: shape, bounded preview and
// per-column profiles.
type Report struct {
	Name        string         `json:"name" yaml:"name"`
	Format      table.Format   `json:"format" yaml:"format"`
	Headers     []string       `json:"headers" yaml:"headers"`
	RowCount    int            `json:"rowCount" yaml:"rowCount"`
	ColumnCount int            `json:"columnCount" yaml:"columnCount"`
	Preview     [][]table.Cell `json:"data" yaml:"data"`
	Profiles    profile.Set    `json:"summary" yaml:"summary"`
	Warnings    []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	sampleRows int
}

// Build derives a Report from a normalized table.
func Build(name string, format table.Format, t *table.Table, opt Options) *Report {
	preview := table.ProjectPreview(t, opt.PreviewLimit)
	return &Report{
		Name:        name,
		Format:      format,
		Headers:     t.Headers,
		RowCount:    t.RowCount(),
		ColumnCount: t.ColumnCount(),
		Preview:     preview.Rows,
		Profiles:    profile.Columns(t),
		Warnings:    warnings(t),
		sampleRows:  opt.SampleRows,
	}
}

// AnalyzeBytes decodes data and builds its report. The normalized table is
// returned as well for callers that aggregate it afterwards.
func AnalyzeBytes(name string, data []byte, format table.Format, opt Options) (*Report, *table.Table, error) {
	t, err := table.Load(data, format, opt.Table)
	if err != nil {
		return nil, nil, err
	}
	return Build(name, format, t, opt), t, nil
}

// AnalyzeFile reads a CSV/TSV/XLSX file and builds its report.
func AnalyzeFile(path string, opt Options) (*Report, *table.Table, error) {
	format, ok := table.FormatFromName(path)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported file type: %s", filepath.Base(path))
	}
	t, err := table.LoadFile(path, opt.Table)
	if err != nil {
		return nil, nil, err
	}
	return Build(filepath.Base(path), format, t, opt), t, nil
}

// SetSampleRows overrides how many rows Markdown prints.
func (r *Report) SetSampleRows(n int) { r.sampleRows = n }

func warnings(t *table.Table) []string {
	var out []string
	seen := map[string]int{}
	for _, h := range t.Headers {
		seen[h]++
	}
	for _, h := range t.Headers {
		if seen[h] > 1 {
			out = append(out, fmt.Sprintf("header %q appears %d times; the last column wins", h, seen[h]))
			seen[h] = 0
		}
	}
	wide := 0
	for _, row := range t.Rows {
		if len(row) > len(t.Headers) {
			wide++
		}
	}
	if wide > 0 {
		out = append(out, fmt.Sprintf("%d rows have more cells than headers; extra cells are not profiled", wide))
	}
	return out
}

// Markdown renders a compact report suitable for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.RowCount))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", r.ColumnCount))

	b.WriteString("[SCHEMA]\n")
	for _, h := range r.Profiles.Headers() {
		p, _ := r.Profiles.Get(h)
		switch v := p.(type) {
		case *profile.NumericProfile:
			b.WriteString(fmt.Sprintf("- %s: numeric (count %d, null %d); min %.4g, max %.4g, mean %.4g\n",
				safeName(h), v.Count, v.NullCount, v.Min, v.Max, v.Mean))
		case *profile.CategoricalProfile:
			b.WriteString(fmt.Sprintf("- %s: categorical (count %d, unique %d, null %d)",
				safeName(h), v.Count, v.UniqueCount, v.NullCount))
			if len(v.TopValues) > 0 {
				b.WriteString("; first values: ")
				for i, c := range v.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(safeVal(c.String()))
				}
			}
			b.WriteString("\n")
		}
	}

	if n := min(r.sampleRows, len(r.Preview)); n > 0 && len(r.Headers) > 0 {
		b.WriteString("\n[SAMPLE ROWS]\n\n")
		b.WriteString("| ")
		for i, h := range r.Headers {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(h))
		}
		b.WriteString(" |\n|")
		for range r.Headers {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range r.Preview[:n] {
			b.WriteString("| ")
			for i := range r.Headers {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i].String()
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// HTML renders the Markdown report as an HTML fragment.
func (r *Report) HTML() []byte {
	return markdown.ToHTML([]byte(r.Markdown()), nil, nil)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
