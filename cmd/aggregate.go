package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/KaramelBytes/sheetlens/internal/aggregate"
	"github.com/KaramelBytes/sheetlens/internal/analysis"
	"github.com/KaramelBytes/sheetlens/internal/chart"
	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/KaramelBytes/sheetlens/internal/utils"
	"github.com/spf13/cobra"
)

var (
	aggKey          string
	aggValue        string
	aggChart        string
	aggReduction    string
	aggFormat       string
	aggImagePath    string
	aggHeaderPolicy string
	aggDelimiter    string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <file>",
	Short: "Group rows by a key column and reduce a value column into a chart series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := aggregate.ParseChartKind(aggChart)
		if err != nil {
			return err
		}
		red, err := aggregate.ParseReduction(aggReduction)
		if err != nil {
			return err
		}
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		opt, err := profileOptions(c, aggHeaderPolicy, aggDelimiter, 0, 0)
		if err != nil {
			return err
		}
		t, err := table.LoadFile(args[0], opt.Table)
		if err != nil {
			return err
		}
		for _, col := range []string{aggKey, aggValue} {
			if !hasColumn(t.Headers, col) {
				return fmt.Errorf("unknown column %q (available: %s)", col, strings.Join(t.Headers, ", "))
			}
		}

		req := aggregate.Request{Key: aggKey, Value: aggValue, Chart: kind, Reduction: red}
		rows := t.Records()
		series := aggregate.Aggregate(rows, req)
		summary := aggregate.Summarize(rows, req)

		out := cmd.OutOrStdout()
		switch strings.ToLower(aggFormat) {
		case "json":
			b, err := utils.PrettyJSON(map[string]any{"request": req, "chartData": series, "summary": summary})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		case "", "md", "markdown":
			fmt.Fprint(out, analysis.SeriesMarkdown(req, series, summary))
		default:
			return fmt.Errorf("unsupported --format: %s (use md|json)", aggFormat)
		}

		if aggImagePath != "" {
			if series.Empty() {
				fmt.Fprintln(out, "⚠ Series is empty; no image written")
				return nil
			}
			format := chart.PNG
			if strings.HasSuffix(strings.ToLower(aggImagePath), ".svg") {
				format = chart.SVG
			}
			var buf bytes.Buffer
			err := chart.Render(&buf, series, chart.Options{
				Width:  c.ChartWidth,
				Height: c.ChartHeight,
				Format: format,
				Title:  fmt.Sprintf("%s of %s by %s", red, aggValue, aggKey),
			})
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(aggImagePath, buf.Bytes()); err != nil {
				return fmt.Errorf("write image: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote %s chart to %s\n", kind, aggImagePath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().StringVarP(&aggKey, "key", "k", "", "column to group by (required)")
	aggregateCmd.Flags().StringVarP(&aggValue, "value", "v", "", "numeric column to reduce (required)")
	aggregateCmd.Flags().StringVar(&aggChart, "chart", "bar", "chart kind: bar | line | pie")
	aggregateCmd.Flags().StringVar(&aggReduction, "reduction", "mean", "reduction per group: mean | sum | count")
	aggregateCmd.Flags().StringVarP(&aggFormat, "format", "f", "md", "output format: md | json")
	aggregateCmd.Flags().StringVar(&aggImagePath, "image", "", "also render the chart to this .png or .svg path")
	aggregateCmd.Flags().StringVar(&aggHeaderPolicy, "header-policy", "", "blank header cells: drop | placeholder")
	aggregateCmd.Flags().StringVar(&aggDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	_ = aggregateCmd.MarkFlagRequired("key")
	_ = aggregateCmd.MarkFlagRequired("value")
}

func hasColumn(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}
