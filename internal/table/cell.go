package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Kind is the dynamic type of a Cell.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "empty"
	}
}

// Cell is a single raw spreadsheet value. The zero Cell is empty.
type Cell struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

func EmptyCell() Cell            { return Cell{} }
func StringCell(s string) Cell   { return Cell{kind: KindString, s: s} }
func NumberCell(f float64) Cell  { return Cell{kind: KindNumber, n: f} }
func BoolCell(b bool) Cell       { return Cell{kind: KindBool, b: b} }
func (c Cell) Kind() Kind        { return c.kind }
func (c Cell) IsNull() bool      { return c.kind == KindEmpty }
func (c Cell) IsEmptyText() bool { return c.kind == KindString && c.s == "" }

// IsBlank reports whether the cell counts as empty for row retention:
// an empty cell or the empty string.
func (c Cell) IsBlank() bool { return c.IsNull() || c.IsEmptyText() }

// Value returns the cell as a plain Go value (nil, string, float64 or bool).
func (c Cell) Value() any {
	switch c.kind {
	case KindString:
		return c.s
	case KindNumber:
		return c.n
	case KindBool:
		return c.b
	default:
		return nil
	}
}

// Float coerces the cell to a number. Booleans coerce to 1 and 0; strings are
// trimmed and must hold a complete numeric literal or nothing at all.
func (c Cell) Float() (float64, bool) {
	switch c.kind {
	case KindNumber:
		return c.n, !math.IsNaN(c.n)
	case KindBool:
		if c.b {
			return 1, true
		}
		return 0, true
	case KindString:
		return parseNumber(c.s)
	default:
		return 0, false
	}
}

// ParseFloat reads the longest numeric prefix of the cell's text, so "12kg"
// is 12 and "0x10" is 0. Booleans and empty cells are not numeric. This is
// the coercion used when aggregating a value column.
func (c Cell) ParseFloat() (float64, bool) {
	switch c.kind {
	case KindNumber:
		return c.n, !math.IsNaN(c.n)
	case KindString:
		return parsePrefix(c.s)
	default:
		return 0, false
	}
}

// Key is the canonical string form used to compare group keys, so that the
// number 10 and the string "10" land in the same group.
func (c Cell) Key() string {
	switch c.kind {
	case KindString:
		return c.s
	case KindNumber:
		return formatNumber(c.n)
	case KindBool:
		return strconv.FormatBool(c.b)
	default:
		return ""
	}
}

func (c Cell) String() string { return c.Key() }

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindString:
		return json.Marshal(c.s)
	case KindNumber:
		if math.IsInf(c.n, 0) || math.IsNaN(c.n) {
			return json.Marshal(formatNumber(c.n))
		}
		return json.Marshal(c.n)
	case KindBool:
		return json.Marshal(c.b)
	default:
		return []byte("null"), nil
	}
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*c = EmptyCell()
	case string:
		*c = StringCell(x)
	case float64:
		*c = NumberCell(x)
	case bool:
		*c = BoolCell(x)
	default:
		return fmt.Errorf("cell: unsupported JSON value %s", string(b))
	}
	return nil
}

// MarshalYAML emits the plain scalar.
func (c Cell) MarshalYAML() (any, error) { return c.Value(), nil }

// parseNumber accepts decimal and exponent literals, signed Infinity and
// 0x/0o/0b integer literals. Surrounding whitespace is ignored and text made
// only of whitespace is 0.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		// whitespace-only text reads as 0; the empty string is not numeric
		return 0, raw != ""
	}
	if strings.ContainsRune(s, '_') {
		return 0, false
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			u, err := strconv.ParseUint(s, 0, 64)
			if err != nil {
				return 0, false
			}
			return float64(u), true
		}
	}
	return parseDecimal(s)
}

// parsePrefix parses the longest prefix of s (after leading whitespace) that
// forms a signed decimal literal or Infinity.
func parsePrefix(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0, false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	f, err := strconv.ParseFloat(s[:i], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

// parseDecimal parses a plain decimal literal, rejecting the inf/nan/hex
// spellings strconv also understands.
func parseDecimal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= '0' && ch <= '9', ch == '.', ch == '+', ch == '-', ch == 'e', ch == 'E':
		default:
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// formatNumber renders a float the way a JavaScript engine stringifies it.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
