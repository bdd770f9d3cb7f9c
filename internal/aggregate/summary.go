package aggregate

import (
	"encoding/json"

	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/montanaflynn/stats"
)

// ValueStats describes the coercible values of one column.
type ValueStats struct {
	Count int     `json:"count" yaml:"count"`
	Sum   float64 `json:"sum" yaml:"sum"`
	Avg   float64 `json:"avg" yaml:"avg"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
}

type valueStatsJSON struct {
	Count int          `json:"count"`
	Sum   table.Number `json:"sum"`
	Avg   table.Number `json:"avg"`
	Min   table.Number `json:"min"`
	Max   table.Number `json:"max"`
}

func (v ValueStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueStatsJSON{
		Count: v.Count,
		Sum:   table.Number(v.Sum),
		Avg:   table.Number(v.Avg),
		Min:   table.Number(v.Min),
		Max:   table.Number(v.Max),
	})
}

func (v *ValueStats) UnmarshalJSON(b []byte) error {
	var w valueStatsJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*v = ValueStats{Count: w.Count, Sum: float64(w.Sum), Avg: float64(w.Avg), Min: float64(w.Min), Max: float64(w.Max)}
	return nil
}

// Summary accompanies an aggregation result.
type Summary struct {
	TotalRecords int `json:"totalRecords" yaml:"totalRecords"`
	DistinctKeys int `json:"xAxisValues" yaml:"xAxisValues"`
	// ValueStats is nil when the value column has no numeric cells.
	ValueStats *ValueStats `json:"yAxisStats,omitempty" yaml:"yAxisStats,omitempty"`
}

// Summarize counts rows and distinct raw key values (across all rows) and
// describes the numeric prefixes of the value column.
func Summarize(rows []table.Record, req Request) Summary {
	// distinct by raw value, so 10 and "10" count twice
	type rawKey struct {
		present bool
		cell    table.Cell
	}
	keys := map[rawKey]struct{}{}
	var vals []float64
	for _, row := range rows {
		c, ok := row[req.Key]
		keys[rawKey{ok, c}] = struct{}{}
		if v, ok := row[req.Value].ParseFloat(); ok {
			vals = append(vals, v)
		}
	}
	sum := Summary{TotalRecords: len(rows), DistinctKeys: len(keys)}
	if len(vals) == 0 {
		return sum
	}
	data := stats.Float64Data(vals)
	total, _ := data.Sum()
	avg, _ := data.Mean()
	lo, _ := data.Min()
	hi, _ := data.Max()
	sum.ValueStats = &ValueStats{Count: len(vals), Sum: total, Avg: avg, Min: lo, Max: hi}
	return sum
}
