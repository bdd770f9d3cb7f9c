package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/sheetlens/internal/aggregate"
	"github.com/KaramelBytes/sheetlens/internal/table"
)

var csvRows = []string{
	"Group,Score,Category,Note",
	"A,10,alpha,first",
	"A,11,alpha,second",
	",,,",
	"B,n/a,beta,third",
	"B,9.5,alpha,fourth",
}

func TestAnalyzeFileAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scores.csv")
	if err := os.WriteFile(path, []byte(strings.Join(csvRows, "\n")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rep, tbl, err := AnalyzeFile(path, DefaultOptions())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.RowCount != 4 || rep.ColumnCount != 4 || tbl.RowCount() != 4 {
		t.Fatalf("shape: rows=%d cols=%d", rep.RowCount, rep.ColumnCount)
	}
	if rep.Format != table.FormatCSV || rep.Name != "scores.csv" {
		t.Fatalf("meta: %s %s", rep.Name, rep.Format)
	}
	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: scores.csv",
		"Rows: 4",
		"- Score: numeric (count 3, null 1); min 9.5, max 11, mean 10.17",
		"- Category: categorical (count 4, unique 2, null 0); first values: alpha, beta",
		"[SAMPLE ROWS]",
		"| A | 10 | alpha | first |",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	html := string(rep.HTML())
	if !strings.Contains(html, "<table>") {
		t.Fatalf("expected rendered sample table, got:\n%s", html)
	}

	rep.SetSampleRows(0)
	if strings.Contains(rep.Markdown(), "[SAMPLE ROWS]") {
		t.Fatalf("sample rows should be suppressed")
	}
}

func TestBuildBoundsPreviewAndWarns(t *testing.T) {
	tbl := &table.Table{Headers: []string{"x", "x"}}
	for i := 0; i < 150; i++ {
		tbl.Rows = append(tbl.Rows, []table.Cell{table.NumberCell(float64(i)), table.StringCell("y"), table.StringCell("extra")})
	}
	rep := Build("wide", table.FormatCSV, tbl, DefaultOptions())
	if len(rep.Preview) != table.DefaultPreviewLimit {
		t.Fatalf("preview rows: %d", len(rep.Preview))
	}
	if rep.Profiles.Len() != 1 {
		t.Fatalf("profiles: %d", rep.Profiles.Len())
	}
	if len(rep.Warnings) != 2 {
		t.Fatalf("warnings: %v", rep.Warnings)
	}
	if !strings.Contains(rep.Markdown(), "[NOTES]") {
		t.Fatalf("warnings missing from markdown")
	}
}

func TestSeriesMarkdown(t *testing.T) {
	req := aggregate.Request{Key: "k", Value: "v"}
	rows := []table.Record{
		{"k": table.StringCell("A"), "v": table.NumberCell(1)},
		{"k": table.StringCell("B"), "v": table.NumberCell(3)},
	}
	s := aggregate.Aggregate(rows, req)
	md := SeriesMarkdown(req, s, aggregate.Summarize(rows, req))
	if !strings.Contains(md, "| A | 1 |") || !strings.Contains(md, "Value: v (mean)") {
		t.Fatalf("unexpected:\n%s", md)
	}

	empty := aggregate.Aggregate([]table.Record{{"k": table.StringCell("A")}}, req)
	md = SeriesMarkdown(req, empty, aggregate.Summary{TotalRecords: 1, DistinctKeys: 1})
	if !strings.Contains(md, "No numeric values") {
		t.Fatalf("empty series not reported:\n%s", md)
	}
}
