package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/sheetlens/internal/analysis"
	cfgpkg "github.com/KaramelBytes/sheetlens/internal/config"
	"github.com/KaramelBytes/sheetlens/internal/logging"
	"github.com/KaramelBytes/sheetlens/internal/metrics"
	"github.com/KaramelBytes/sheetlens/internal/service"
	"github.com/KaramelBytes/sheetlens/internal/store"
	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "sheetlens",
	Short: "sheetlens: profile spreadsheets and aggregate them into chart series",
	Long: `sheetlens loads CSV, TSV and Excel files, infers a numeric or categorical
profile for every column, and groups rows into chart-ready series. Files can be
profiled directly, kept in a local upload store, or served over HTTP.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sheetlens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
}

// loadedConfig returns the loaded configuration, loading it on first use.
func loadedConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// newLogger writes structured logs to w, honoring --debug.
func newLogger(c *cfgpkg.Global, w io.Writer) *slog.Logger {
	level := c.LogLevel
	if debug {
		level = "debug"
	}
	return logging.New(level, c.LogFormat, w)
}

// analysisOptions merges config defaults with an optional --header-policy value.
func analysisOptions(c *cfgpkg.Global, headerPolicy string) (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	if c.PreviewLimit > 0 {
		opt.PreviewLimit = c.PreviewLimit
	}
	hp := c.HeaderPolicy
	if headerPolicy != "" {
		hp = headerPolicy
	}
	if hp != "" {
		p, err := table.ParseHeaderPolicy(hp)
		if err != nil {
			return opt, err
		}
		opt.Table.HeaderPolicy = p
	}
	return opt, nil
}

// openService builds the upload service over the configured store. The
// returned closer releases the store.
func openService(ctx context.Context, c *cfgpkg.Global, log *slog.Logger, m *metrics.Registry) (*service.Service, func() error, error) {
	st, err := store.Open(ctx, store.Kind(c.Store), c.DataDir, c.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	blobs, err := store.NewDiskBlobs(filepath.Join(c.DataDir, "uploads"))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	opt, err := analysisOptions(c, "")
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	svc := service.New(st, blobs, m, log, service.Config{
		MaxUploadBytes: int64(c.MaxUploadMB) << 20,
		HistoryLimit:   c.HistoryLimit,
		Analysis:       opt,
	})
	return svc, st.Close, nil
}
