package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/KaramelBytes/sheetlens/internal/utils"
	"github.com/spf13/cobra"
)

var (
	prevLimit        int
	prevFormat       string
	prevHeaderPolicy string
	prevDelimiter    string
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Print the first rows of the normalized table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		opt, err := profileOptions(c, prevHeaderPolicy, prevDelimiter, 0, prevLimit)
		if err != nil {
			return err
		}
		t, err := table.LoadFile(args[0], opt.Table)
		if err != nil {
			return err
		}
		p := table.ProjectPreview(t, opt.PreviewLimit)

		out := cmd.OutOrStdout()
		switch strings.ToLower(prevFormat) {
		case "json":
			b, err := utils.PrettyJSON(map[string]any{"headers": p.Headers, "rowCount": t.RowCount(), "data": p.Rows})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		case "", "table":
		default:
			return fmt.Errorf("unsupported --format: %s (use table|json)", prevFormat)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(p.Headers, "\t"))
		for _, row := range p.Rows {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = c.String()
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "(%d of %d rows)\n", p.RowCount(), t.RowCount())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().IntVarP(&prevLimit, "limit", "n", 0, "rows to show (default preview_limit)")
	previewCmd.Flags().StringVarP(&prevFormat, "format", "f", "table", "output format: table | json")
	previewCmd.Flags().StringVar(&prevHeaderPolicy, "header-policy", "", "blank header cells: drop | placeholder")
	previewCmd.Flags().StringVar(&prevDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
}
