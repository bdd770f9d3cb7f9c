package table

import (
	"encoding/json"
	"fmt"
	"math"
)

// Number is a float64 whose JSON form survives non-finite values: Infinity,
// -Infinity and NaN are written as those strings, the way Cell does.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return json.Marshal(formatNumber(f))
	}
	return json.Marshal(f)
}

func (n *Number) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*n = Number(x)
	case nil:
		*n = Number(math.NaN())
	case string:
		switch x {
		case "Infinity":
			*n = Number(math.Inf(1))
		case "-Infinity":
			*n = Number(math.Inf(-1))
		case "NaN":
			*n = Number(math.NaN())
		default:
			return fmt.Errorf("number: unsupported JSON string %q", x)
		}
	default:
		return fmt.Errorf("number: unsupported JSON value %s", string(b))
	}
	return nil
}

// Numbers converts a float slice for JSON encoding.
func Numbers(fs []float64) []Number {
	if fs == nil {
		return nil
	}
	out := make([]Number, len(fs))
	for i, f := range fs {
		out[i] = Number(f)
	}
	return out
}

// Floats is the inverse of Numbers.
func Floats(ns []Number) []float64 {
	if ns == nil {
		return nil
	}
	out := make([]float64, len(ns))
	for i, n := range ns {
		out[i] = float64(n)
	}
	return out
}
