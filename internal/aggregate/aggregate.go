// Package aggregate groups rows by a key column and reduces a value column
// into chart-ready series.
package aggregate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/montanaflynn/stats"
)

// ChartKind is the rendering hint carried alongside a series. It never
// changes the aggregation math.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
	ChartPie  ChartKind = "pie"
)

// ParseChartKind validates a chart kind; empty selects bar.
func ParseChartKind(s string) (ChartKind, error) {
	switch k := ChartKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return ChartBar, nil
	case ChartBar, ChartLine, ChartPie:
		return k, nil
	}
	return "", fmt.Errorf("unsupported chart kind %q (use bar|line|pie)", s)
}

// Reduction folds the values of one group into a single number.
type Reduction string

const (
	ReduceMean  Reduction = "mean"
	ReduceSum   Reduction = "sum"
	ReduceCount Reduction = "count"
)

// ParseReduction validates a reduction; empty selects mean.
func ParseReduction(s string) (Reduction, error) {
	switch r := Reduction(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return ReduceMean, nil
	case ReduceMean, ReduceSum, ReduceCount:
		return r, nil
	}
	return "", fmt.Errorf("unsupported reduction %q (use mean|sum|count)", s)
}

// Request names the axis pair and reduction.
type Request struct {
	Key       string    `json:"key" yaml:"key"`
	Value     string    `json:"value" yaml:"value"`
	Chart     ChartKind `json:"chart" yaml:"chart"`
	Reduction Reduction `json:"reduction" yaml:"reduction"`
}

// Series is a labeled set of values in first-seen key order.
type Series struct {
	Name   string    `json:"name,omitempty" yaml:"name,omitempty"`
	Chart  ChartKind `json:"chart" yaml:"chart"`
	Labels []string  `json:"labels" yaml:"labels"`
	Values []float64 `json:"values" yaml:"values"`
}

type seriesJSON struct {
	Name   string         `json:"name,omitempty"`
	Chart  ChartKind      `json:"chart"`
	Labels []string       `json:"labels"`
	Values []table.Number `json:"values"`
}

// MarshalJSON writes infinite group values as strings instead of failing.
func (s Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(seriesJSON{Name: s.Name, Chart: s.Chart, Labels: s.Labels, Values: table.Numbers(s.Values)})
}

func (s *Series) UnmarshalJSON(b []byte) error {
	var w seriesJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Series{Name: w.Name, Chart: w.Chart, Labels: w.Labels, Values: table.Floats(w.Values)}
	return nil
}

// Empty reports whether the series has no groups. Callers must branch on
// this before computing anything over the values.
func (s Series) Empty() bool { return len(s.Labels) == 0 }

// Aggregate groups rows by the canonical string of their key cell and
// reduces the numeric prefix of each value cell (see table.Cell.ParseFloat).
// Rows whose value has no numeric prefix are skipped entirely.
func Aggregate(rows []table.Record, req Request) Series {
	groups := map[string][]float64{}
	var order []string
	for _, row := range rows {
		v, ok := row[req.Value].ParseFloat()
		if !ok {
			continue
		}
		k := groupKey(row, req.Key)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], v)
	}

	chart := req.Chart
	if chart == "" {
		chart = ChartBar
	}
	out := Series{
		Name:   req.Value,
		Chart:  chart,
		Labels: make([]string, 0, len(order)),
		Values: make([]float64, 0, len(order)),
	}
	for _, k := range order {
		out.Labels = append(out.Labels, k)
		out.Values = append(out.Values, reduce(groups[k], req.Reduction))
	}
	return out
}

// Group labels for rows without a key value.
const (
	MissingKey = "undefined"
	NullKey    = "null"
)

// groupKey is the canonical label of the key cell. A row without the key
// column groups under MissingKey and an empty cell under NullKey.
func groupKey(row table.Record, key string) string {
	c, ok := row[key]
	switch {
	case !ok:
		return MissingKey
	case c.IsNull():
		return NullKey
	}
	return c.Key()
}

// reduce is only called on non-empty groups.
func reduce(vals []float64, r Reduction) float64 {
	switch r {
	case ReduceSum:
		sum, _ := stats.Sum(vals)
		return sum
	case ReduceCount:
		return float64(len(vals))
	default:
		mean, _ := stats.Mean(vals)
		return mean
	}
}
