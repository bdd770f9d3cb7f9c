package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeDelimited(data []byte, delim rune) ([][]Cell, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if delim == 0 {
		delim = sniffDelimiter(data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	var grid [][]Cell
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		row := make([]Cell, len(rec))
		for i, v := range rec {
			row[i] = textCell(v)
		}
		grid = append(grid, row)
	}
	return grid, nil
}

// textCell types a delimited-text field: empty, number, TRUE/FALSE or string.
func textCell(v string) Cell {
	if v == "" {
		return Cell{}
	}
	if f, ok := parseDecimal(v); ok {
		return NumberCell(f)
	}
	switch {
	case strings.EqualFold(v, "true"):
		return BoolCell(true)
	case strings.EqualFold(v, "false"):
		return BoolCell(false)
	}
	return StringCell(v)
}

// sniffDelimiter picks the most frequent of ',', ';' and tab in the first
// line, ignoring quoted sections. Ties go to ','.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	counts := map[rune]int{}
	quoted := false
	for _, ch := range string(line) {
		switch ch {
		case '"':
			quoted = !quoted
		case ',', ';', '\t':
			if !quoted {
				counts[ch]++
			}
		}
	}
	best := ','
	for _, d := range []rune{';', '\t'} {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
