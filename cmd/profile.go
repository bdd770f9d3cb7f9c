package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/sheetlens/internal/analysis"
	cfgpkg "github.com/KaramelBytes/sheetlens/internal/config"
	"github.com/KaramelBytes/sheetlens/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	profOutputPath   string
	profFormat       string
	profSampleRows   int
	profPreview      int
	profHeaderPolicy string
	profDelimiter    string
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Profile a CSV/TSV/XLSX file and print a per-column summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		opt, err := profileOptions(c, profHeaderPolicy, profDelimiter, profSampleRows, profPreview)
		if err != nil {
			return err
		}
		rep, _, err := analysis.AnalyzeFile(args[0], opt)
		if err != nil {
			return err
		}
		out, err := renderReport(rep, profFormat)
		if err != nil {
			return err
		}
		if profOutputPath != "" {
			if err := utils.SafeWriteFile(profOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote profile to %s\n", profOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(out), "\n"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "optional path to write the profile")
	profileCmd.Flags().StringVarP(&profFormat, "format", "f", "md", "output format: md | html | json | yaml")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "number of sample rows in Markdown output")
	profileCmd.Flags().IntVar(&profPreview, "preview", 0, "rows kept in the JSON/YAML preview (default preview_limit)")
	profileCmd.Flags().StringVar(&profHeaderPolicy, "header-policy", "", "blank header cells: drop | placeholder")
	profileCmd.Flags().StringVar(&profDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
}

// profileOptions applies the shared profile flags on top of the config.
func profileOptions(c *cfgpkg.Global, headerPolicy, delimiter string, sampleRows, preview int) (analysis.Options, error) {
	opt, err := analysisOptions(c, headerPolicy)
	if err != nil {
		return opt, err
	}
	opt.SampleRows = sampleRows
	if preview > 0 {
		opt.PreviewLimit = preview
	}
	d, err := parseDelimiter(delimiter)
	if err != nil {
		return opt, err
	}
	opt.Table.Delimiter = d
	return opt, nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported --delimiter: %s", s)
}

func checkReportFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "md", "markdown", "html", "json", "yaml", "yml":
		return nil
	}
	return fmt.Errorf("unsupported --format: %s (use md|html|json|yaml)", format)
}

func renderReport(rep *analysis.Report, format string) ([]byte, error) {
	if err := checkReportFormat(format); err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "html":
		return rep.HTML(), nil
	case "json":
		return utils.PrettyJSON(rep)
	case "yaml", "yml":
		return yaml.Marshal(rep)
	}
	return []byte(rep.Markdown()), nil
}
