package analysis

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/sheetlens/internal/aggregate"
)

// SeriesMarkdown renders an aggregation result and its summary.
func SeriesMarkdown(req aggregate.Request, s aggregate.Series, sum aggregate.Summary) string {
	var b strings.Builder
	reduction := req.Reduction
	if reduction == "" {
		reduction = aggregate.ReduceMean
	}
	b.WriteString("[AGGREGATION]\n")
	b.WriteString(fmt.Sprintf("Key: %s\nValue: %s (%s)\nChart: %s\n", safeName(req.Key), safeName(req.Value), reduction, s.Chart))
	b.WriteString(fmt.Sprintf("Records: %d, distinct keys: %d\n", sum.TotalRecords, sum.DistinctKeys))
	if st := sum.ValueStats; st != nil {
		b.WriteString(fmt.Sprintf("Values: count %d, sum %.4g, avg %.2f, min %.4g, max %.4g\n", st.Count, st.Sum, st.Avg, st.Min, st.Max))
	}
	if s.Empty() {
		b.WriteString("\nNo numeric values found in the value column.\n")
		return b.String()
	}
	b.WriteString("\n| ")
	b.WriteString(safeName(req.Key))
	b.WriteString(" | ")
	b.WriteString(string(reduction))
	b.WriteString(" |\n| --- | --- |\n")
	for i, l := range s.Labels {
		b.WriteString(fmt.Sprintf("| %s | %.4g |\n", safeVal(l), s.Values[i]))
	}
	return b.String()
}
