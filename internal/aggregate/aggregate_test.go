package aggregate

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/KaramelBytes/sheetlens/internal/table"
)

func rec(k, v table.Cell) table.Record { return table.Record{"k": k, "v": v} }

var (
	str = table.StringCell
	num = table.NumberCell
)

func TestAggregateMeanFirstSeenOrder(t *testing.T) {
	rows := []table.Record{
		rec(str("A"), str("10")),
		rec(str("A"), str("30")),
		rec(str("B"), str("20")),
	}
	got := Aggregate(rows, Request{Key: "k", Value: "v", Chart: ChartBar})
	if !reflect.DeepEqual(got.Labels, []string{"A", "B"}) || !reflect.DeepEqual(got.Values, []float64{20, 20}) {
		t.Fatalf("unexpected series %+v", got)
	}
}

func TestAggregateLabelsAreNotSorted(t *testing.T) {
	rows := []table.Record{
		rec(str("zeta"), num(1)),
		rec(num(2), num(4)),
		rec(str("alpha"), num(3)),
		rec(str("2"), num(6)),
	}
	got := Aggregate(rows, Request{Key: "k", Value: "v"})
	if !reflect.DeepEqual(got.Labels, []string{"zeta", "2", "alpha"}) {
		t.Fatalf("labels: %v", got.Labels)
	}
	// 2 and "2" share a group
	if got.Values[1] != 5 {
		t.Fatalf("values: %v", got.Values)
	}
}

func TestAggregateDropsUncoercibleRows(t *testing.T) {
	rows := []table.Record{
		rec(str("A"), str("n/a")),
		rec(str("B"), str("4")),
		rec(str("A"), table.EmptyCell()),
		{"k": str("C")},
	}
	got := Aggregate(rows, Request{Key: "k", Value: "v"})
	if !reflect.DeepEqual(got.Labels, []string{"B"}) {
		t.Fatalf("rows without a numeric value must not emit their key: %v", got.Labels)
	}
}

func TestAggregateEmptySeries(t *testing.T) {
	rows := []table.Record{rec(str("A"), str("x")), rec(str("B"), str("y"))}
	for _, kind := range []ChartKind{ChartBar, ChartLine, ChartPie} {
		got := Aggregate(rows, Request{Key: "k", Value: "v", Chart: kind})
		if !got.Empty() || len(got.Values) != 0 || got.Labels == nil {
			t.Fatalf("%s: expected empty non-nil series, got %+v", kind, got)
		}
	}
	sum := Summarize(rows, Request{Key: "k", Value: "v"})
	if sum.ValueStats != nil {
		t.Fatalf("no statistics on an empty value column, got %+v", sum.ValueStats)
	}
	if sum.TotalRecords != 2 || sum.DistinctKeys != 2 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestAggregateReductionsAndChartKind(t *testing.T) {
	rows := []table.Record{
		rec(str("A"), num(1)),
		rec(str("A"), num(2)),
		rec(str("B"), num(5)),
	}
	cases := []struct {
		r    Reduction
		want []float64
	}{
		{ReduceMean, []float64{1.5, 5}},
		{ReduceSum, []float64{3, 5}},
		{ReduceCount, []float64{2, 1}},
		{"", []float64{1.5, 5}},
	}
	for _, tc := range cases {
		got := Aggregate(rows, Request{Key: "k", Value: "v", Reduction: tc.r})
		if !reflect.DeepEqual(got.Values, tc.want) {
			t.Fatalf("%q: got %v want %v", tc.r, got.Values, tc.want)
		}
	}
	bar := Aggregate(rows, Request{Key: "k", Value: "v", Chart: ChartBar})
	pie := Aggregate(rows, Request{Key: "k", Value: "v", Chart: ChartPie})
	if !reflect.DeepEqual(bar.Values, pie.Values) || pie.Chart != ChartPie {
		t.Fatalf("chart kind must not affect values: %v vs %v", bar.Values, pie.Values)
	}
}

func TestSummarize(t *testing.T) {
	rows := []table.Record{
		rec(str("A"), str("10")),
		rec(str("A"), str("bad")),
		rec(str("B"), num(30)),
	}
	sum := Summarize(rows, Request{Key: "k", Value: "v"})
	want := ValueStats{Count: 2, Sum: 40, Avg: 20, Min: 10, Max: 30}
	if sum.ValueStats == nil || *sum.ValueStats != want {
		t.Fatalf("stats: %+v", sum.ValueStats)
	}
	if sum.TotalRecords != 3 || sum.DistinctKeys != 2 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestParseOptions(t *testing.T) {
	if k, err := ParseChartKind(" PIE "); err != nil || k != ChartPie {
		t.Fatalf("chart: %v %v", k, err)
	}
	if _, err := ParseChartKind("radar"); err == nil {
		t.Fatalf("expected error for radar")
	}
	if r, err := ParseReduction(""); err != nil || r != ReduceMean {
		t.Fatalf("reduction default: %v %v", r, err)
	}
	if _, err := ParseReduction("median"); err == nil {
		t.Fatalf("expected error for median")
	}
}

func TestAggregateReadsNumericPrefix(t *testing.T) {
	rows := []table.Record{
		rec(str("A"), str("12kg")),
		rec(str("A"), str("8")),
		rec(str("B"), table.BoolCell(true)),
		rec(str("C"), str("0x10")),
	}
	got := Aggregate(rows, Request{Key: "k", Value: "v"})
	if !reflect.DeepEqual(got.Labels, []string{"A", "C"}) || !reflect.DeepEqual(got.Values, []float64{10, 0}) {
		t.Fatalf("unexpected series %+v", got)
	}
	sum := Summarize(rows, Request{Key: "k", Value: "v"})
	want := ValueStats{Count: 3, Sum: 20, Avg: 20.0 / 3, Min: 0, Max: 12}
	if sum.ValueStats == nil || *sum.ValueStats != want {
		t.Fatalf("stats: %+v", sum.ValueStats)
	}
}

func TestAggregateMissingAndNullKeys(t *testing.T) {
	rows := []table.Record{
		{"v": num(1)},
		rec(table.EmptyCell(), num(3)),
		{"v": num(5)},
		rec(str("null"), num(7)),
	}
	got := Aggregate(rows, Request{Key: "k", Value: "v"})
	if !reflect.DeepEqual(got.Labels, []string{MissingKey, NullKey}) {
		t.Fatalf("labels: %v", got.Labels)
	}
	if !reflect.DeepEqual(got.Values, []float64{3, 5}) {
		t.Fatalf("values: %v", got.Values)
	}
}

func TestSummarizeCountsRawKeys(t *testing.T) {
	rows := []table.Record{
		rec(num(10), num(1)),
		rec(str("10"), num(2)),
		rec(num(10), num(3)),
	}
	if got := Aggregate(rows, Request{Key: "k", Value: "v"}); len(got.Labels) != 1 {
		t.Fatalf("10 and \"10\" share a group: %v", got.Labels)
	}
	if sum := Summarize(rows, Request{Key: "k", Value: "v"}); sum.DistinctKeys != 2 {
		t.Fatalf("10 and \"10\" are distinct raw values, got %d", sum.DistinctKeys)
	}
}

func TestSeriesJSONNonFinite(t *testing.T) {
	rows := []table.Record{
		rec(str("A"), str("Infinity")),
		rec(str("B"), str("-Infinity")),
		rec(str("B"), str("Infinity")),
	}
	req := Request{Key: "k", Value: "v"}
	s := Aggregate(rows, req)
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal series: %v", err)
	}
	var back Series
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal series: %v", err)
	}
	if !math.IsInf(back.Values[0], 1) || !math.IsNaN(back.Values[1]) {
		t.Fatalf("round trip lost values: %v", back.Values)
	}
	if _, err := json.Marshal(Summarize(rows, req)); err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
}
