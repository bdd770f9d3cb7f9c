package table

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// decodeWorkbook reads the first sheet of an OOXML workbook. Values are read
// raw so number formats (dates included) do not leak into the grid.
func decodeWorkbook(data []byte) ([][]Cell, error) {
	raw := excelize.Options{RawCellValue: true}
	f, err := excelize.OpenReader(bytes.NewReader(data), raw)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, raw)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	grid := make([][]Cell, len(rows))
	for r, vals := range rows {
		cells := make([]Cell, len(vals))
		for c, v := range vals {
			if v == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("cell reference: %w", err)
			}
			typ, err := f.GetCellType(sheet, ref)
			if err != nil {
				return nil, fmt.Errorf("cell %s type: %w", ref, err)
			}
			cells[c] = workbookCell(v, typ)
		}
		grid[r] = cells
	}
	return trimUsedRange(grid), nil
}

func workbookCell(v string, typ excelize.CellType) Cell {
	switch typ {
	case excelize.CellTypeBool:
		return BoolCell(v == "1" || strings.EqualFold(v, "true"))
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeDate:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return NumberCell(f)
		}
	}
	return StringCell(v)
}

// trimUsedRange drops leading blank rows and leading blank columns so that
// row 0 and column 0 are the first used ones, as a sheet dimension would report.
func trimUsedRange(grid [][]Cell) [][]Cell {
	for len(grid) > 0 && blankRow(grid[0]) {
		grid = grid[1:]
	}
	offset := -1
	for _, row := range grid {
		for c, cell := range row {
			if !cell.IsBlank() {
				if offset < 0 || c < offset {
					offset = c
				}
				break
			}
		}
	}
	if offset <= 0 {
		return grid
	}
	for r, row := range grid {
		if len(row) <= offset {
			grid[r] = nil
			continue
		}
		grid[r] = row[offset:]
	}
	return grid
}
