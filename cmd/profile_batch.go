package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/KaramelBytes/sheetlens/internal/analysis"
	"github.com/KaramelBytes/sheetlens/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	pbOutputDir    string
	pbFormat       string
	pbSampleRows   int
	pbHeaderPolicy string
	pbDelimiter    string
	pbJobs         int
	pbQuiet        bool
)

var profileBatchCmd = &cobra.Command{
	Use:   "profile-batch <files...>",
	Short: "Profile multiple CSV/TSV/XLSX files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		opt, err := profileOptions(c, pbHeaderPolicy, pbDelimiter, pbSampleRows, 0)
		if err != nil {
			return err
		}
		if err := checkReportFormat(pbFormat); err != nil {
			return err
		}
		if pbOutputDir != "" {
			if err := utils.EnsureDir(pbOutputDir); err != nil {
				return err
			}
		}

		outputs, err := profileAll(cmd.Context(), files, opt, pbFormat, pbJobs)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !pbQuiet {
				fmt.Fprintf(out, "[%d/%d] %s\n", i+1, total, filepath.Base(path))
			}
			if pbOutputDir == "" {
				if !pbQuiet {
					fmt.Fprintln(out, strings.TrimRight(string(outputs[i]), "\n"))
				}
				continue
			}
			base := utils.SafeBaseName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			target := utils.UniquePath(pbOutputDir, base, ".summary."+extFor(pbFormat))
			if !pbQuiet && filepath.Base(target) != base+".summary."+extFor(pbFormat) {
				fmt.Fprintf(out, "⚠ Detected existing summary, writing to %s to avoid overwrite.\n", filepath.Base(target))
			}
			if err := utils.SafeWriteFile(target, outputs[i]); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			if !pbQuiet {
				fmt.Fprintf(out, "✓ Wrote %s\n", target)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileBatchCmd)
	profileBatchCmd.Flags().StringVar(&pbOutputDir, "output-dir", "", "directory to write one summary per file")
	profileBatchCmd.Flags().StringVarP(&pbFormat, "format", "f", "md", "output format: md | html | json | yaml")
	profileBatchCmd.Flags().IntVar(&pbSampleRows, "sample-rows", 5, "number of sample rows in Markdown output")
	profileBatchCmd.Flags().StringVar(&pbHeaderPolicy, "header-policy", "", "blank header cells: drop | placeholder")
	profileBatchCmd.Flags().StringVar(&pbDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	profileBatchCmd.Flags().IntVarP(&pbJobs, "jobs", "j", 0, "files profiled in parallel (default number of CPUs)")
	profileBatchCmd.Flags().BoolVar(&pbQuiet, "quiet", false, "suppress progress and non-essential output")
}

// expandInputs resolves globs and literal paths, de-duplicated and sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// profileAll renders every file, keeping the input order in the result. The
// first failure cancels the remaining work.
func profileAll(ctx context.Context, files []string, opt analysis.Options, format string, jobs int) ([][]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	outputs := make([][]byte, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rep, _, err := analysis.AnalyzeFile(path, opt)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			b, err := renderReport(rep, format)
			if err != nil {
				return err
			}
			outputs[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func extFor(format string) string {
	switch strings.ToLower(format) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "html":
		return "html"
	}
	return "md"
}

