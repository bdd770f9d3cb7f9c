// Package profile infers a numeric or categorical type for each column of a
// table and computes its summary statistics.
package profile

import (
	"encoding/json"

	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/montanaflynn/stats"
)

// Type is the inferred column type.
type Type string

const (
	TypeNumeric     Type = "numeric"
	TypeCategorical Type = "categorical"
)

// TopValuesLimit bounds CategoricalProfile.TopValues.
const TopValuesLimit = 5

// ColumnProfile is either *NumericProfile or *CategoricalProfile.
type ColumnProfile interface {
	Type() Type
	isProfile()
}

// NumericProfile summarizes a column with at least one numeric value.
// NullCount counts present values that did not coerce to a number.
type NumericProfile struct {
	Count     int     `json:"count" yaml:"count"`
	Min       float64 `json:"min" yaml:"min"`
	Max       float64 `json:"max" yaml:"max"`
	Mean      float64 `json:"mean" yaml:"mean"`
	NullCount int     `json:"nullCount" yaml:"nullCount"`
}

// numericJSON writes Min, Max and Mean as table.Number so that infinite
// inputs and their NaN mean still encode.
type numericJSON struct {
	Type      Type         `json:"type,omitempty"`
	Count     int          `json:"count"`
	Min       table.Number `json:"min"`
	Max       table.Number `json:"max"`
	Mean      table.Number `json:"mean"`
	NullCount int          `json:"nullCount"`
}

func (p NumericProfile) wire(t Type) numericJSON {
	return numericJSON{
		Type:      t,
		Count:     p.Count,
		Min:       table.Number(p.Min),
		Max:       table.Number(p.Max),
		Mean:      table.Number(p.Mean),
		NullCount: p.NullCount,
	}
}

func (p NumericProfile) MarshalJSON() ([]byte, error) { return json.Marshal(p.wire("")) }

func (p *NumericProfile) UnmarshalJSON(b []byte) error {
	var w numericJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = NumericProfile{
		Count:     w.Count,
		Min:       float64(w.Min),
		Max:       float64(w.Max),
		Mean:      float64(w.Mean),
		NullCount: w.NullCount,
	}
	return nil
}

// CategoricalProfile summarizes a column with no numeric values.
// NullCount is measured against the table row count.
type CategoricalProfile struct {
	Count       int          `json:"count" yaml:"count"`
	UniqueCount int          `json:"unique" yaml:"unique"`
	NullCount   int          `json:"nullCount" yaml:"nullCount"`
	TopValues   []table.Cell `json:"topValues" yaml:"topValues"`
}

func (*NumericProfile) Type() Type     { return TypeNumeric }
func (*CategoricalProfile) Type() Type { return TypeCategorical }
func (*NumericProfile) isProfile()     {}
func (*CategoricalProfile) isProfile() {}

// Columns profiles every header of t. It never fails: a column without data
// yields an empty CategoricalProfile.
func Columns(t *table.Table) Set {
	set := Set{byName: make(map[string]ColumnProfile, len(t.Headers))}
	for i, h := range t.Headers {
		if _, dup := set.byName[h]; !dup {
			set.order = append(set.order, h)
		}
		set.byName[h] = Column(t, i)
	}
	return set
}

// Column profiles the cells at position i of every row.
func Column(t *table.Table, i int) ColumnProfile {
	var (
		present []table.Cell
		numbers []float64
	)
	for r := range t.Rows {
		c := t.Cell(r, i)
		if c.IsNull() {
			continue
		}
		present = append(present, c)
		if c.IsEmptyText() {
			continue
		}
		if f, ok := c.Float(); ok {
			numbers = append(numbers, f)
		}
	}
	if len(numbers) > 0 {
		return numericProfile(numbers, len(present))
	}
	return categoricalProfile(present, t.RowCount())
}

func numericProfile(numbers []float64, present int) *NumericProfile {
	data := stats.Float64Data(numbers)
	lo, _ := data.Min()
	hi, _ := data.Max()
	mean, _ := data.Mean()
	// clamp rounding drift, e.g. three 0.1s average slightly above 0.1
	mean = max(lo, min(hi, mean))
	return &NumericProfile{
		Count:     len(numbers),
		Min:       lo,
		Max:       hi,
		Mean:      mean,
		NullCount: present - len(numbers),
	}
}

func categoricalProfile(present []table.Cell, rowCount int) *CategoricalProfile {
	seen := make(map[table.Cell]struct{}, len(present))
	top := []table.Cell{}
	for _, c := range present {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		if len(top) < TopValuesLimit {
			top = append(top, c)
		}
	}
	return &CategoricalProfile{
		Count:       len(present),
		UniqueCount: len(seen),
		NullCount:   rowCount - len(present),
		TopValues:   top,
	}
}
