package cmd

import (
	"fmt"
	"net/url"

	cfgpkg "github.com/KaramelBytes/sheetlens/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set sheetlens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "data_dir: %s\n", c.DataDir)
		fmt.Fprintf(out, "store: %s\n", c.Store)
		if c.DatabaseURL != "" {
			fmt.Fprintf(out, "database_url: %s\n", maskDSN(c.DatabaseURL))
		}
		fmt.Fprintf(out, "listen_addr: %s\n", c.ListenAddr)
		fmt.Fprintf(out, "max_upload_mb: %d\n", c.MaxUploadMB)
		fmt.Fprintf(out, "preview_limit: %d\n", c.PreviewLimit)
		fmt.Fprintf(out, "history_limit: %d\n", c.HistoryLimit)
		fmt.Fprintf(out, "header_policy: %s\n", c.HeaderPolicy)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", c.LogFormat)
		fmt.Fprintf(out, "chart_width: %d\n", c.ChartWidth)
		fmt.Fprintf(out, "chart_height: %d\n", c.ChartHeight)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// maskDSN hides the password of a connection URL.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
