package table

// DefaultPreviewLimit caps preview payloads.
const DefaultPreviewLimit = 100

// ProjectPreview returns a copy of t holding at most the first limit rows.
// A limit <= 0 selects DefaultPreviewLimit. Columns are never truncated.
func ProjectPreview(t *Table, limit int) *Table {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	n := min(limit, len(t.Rows))
	rows := make([][]Cell, n)
	copy(rows, t.Rows[:n])
	headers := make([]string, len(t.Headers))
	copy(headers, t.Headers)
	return &Table{Headers: headers, Rows: rows}
}
