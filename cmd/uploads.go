package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/sheetlens/internal/service"
	"github.com/KaramelBytes/sheetlens/internal/utils"
	"github.com/spf13/cobra"
)

var uploadsOwner string

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Manage files kept in the local upload store",
}

// withService opens the configured service for one command run.
func withService(cmd *cobra.Command, fn func(*service.Service) error) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	log := newLogger(c, cmd.ErrOrStderr())
	svc, closeStore, err := openService(cmd.Context(), c, log, nil)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(svc)
}

var uploadsAddCmd = &cobra.Command{
	Use:   "add <files...>",
	Short: "Store and process one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			out := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				u, err := svc.Upload(cmd.Context(), service.UploadInput{
					Owner:    uploadsOwner,
					Name:     filepath.Base(path),
					MimeType: mime.TypeByExtension(filepath.Ext(path)),
					Data:     data,
				})
				if err != nil {
					if u == nil {
						return fmt.Errorf("%s: %w", filepath.Base(path), err)
					}
					failed++
					fmt.Fprintf(out, "✗ %s (%s): %v\n", filepath.Base(path), u.ID, err)
					continue
				}
				fmt.Fprintf(out, "✓ %s -> %s (%d rows, %d columns)\n",
					u.OriginalName, u.ID, u.Processed.RowCount, u.Processed.ColumnCount)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to process", failed, len(args))
			}
			return nil
		})
	},
}

var uploadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent uploads, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			list, err := svc.History(cmd.Context(), uploadsOwner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "(no uploads)")
				return nil
			}
			for _, u := range list {
				fmt.Fprintf(out, "- %s: %s [%s] %d bytes, %s\n",
					u.ID, u.OriginalName, u.Status, u.Size, u.UploadedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		})
	},
}

var uploadsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an upload record, or its report with --report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			out := cmd.OutOrStdout()
			if uploadsReport {
				rep, err := svc.Report(cmd.Context(), uploadsOwner, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(out, rep.Markdown())
				return nil
			}
			u, err := svc.Get(cmd.Context(), uploadsOwner, args[0])
			if err != nil {
				return err
			}
			b, err := utils.PrettyJSON(u)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		})
	},
}

var uploadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an upload, its stored file and its analyses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			if err := svc.Delete(cmd.Context(), uploadsOwner, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
			return nil
		})
	},
}

var uploadsReprocessCmd = &cobra.Command{
	Use:   "reprocess <id>",
	Short: "Re-derive the profile and preview of a stored upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			u, err := svc.Reprocess(cmd.Context(), uploadsOwner, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Reprocessed %s [%s]\n", u.ID, u.Status)
			return nil
		})
	},
}

var uploadsReport bool

func init() {
	rootCmd.AddCommand(uploadsCmd)
	uploadsCmd.PersistentFlags().StringVar(&uploadsOwner, "owner", service.DefaultOwner, "owner scope for stored uploads")
	uploadsCmd.AddCommand(uploadsAddCmd, uploadsListCmd, uploadsShowCmd, uploadsDeleteCmd, uploadsReprocessCmd)
	uploadsShowCmd.Flags().BoolVar(&uploadsReport, "report", false, "print the Markdown report instead of the record")
}
