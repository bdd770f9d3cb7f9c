package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/sheetlens/internal/httpapi"
	"github.com/KaramelBytes/sheetlens/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveShutdown time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload, profile and chart API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		addr := c.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		log := newLogger(c, os.Stderr)
		m := metrics.New()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, closeStore, err := openService(ctx, c, log, m)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeStore(); err != nil {
				log.Error("close store", slog.String("error", err.Error()))
			}
		}()

		api := httpapi.New(svc, m, log, httpapi.Options{ChartWidth: c.ChartWidth, ChartHeight: c.ChartHeight})
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Minute,
			WriteTimeout:      time.Minute,
			IdleTimeout:       2 * time.Minute,
		}

		errc := make(chan error, 1)
		go func() {
			log.Info("server listening",
				slog.String("addr", addr),
				slog.String("store", c.Store),
				slog.String("data_dir", c.DataDir))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default listen_addr from config)")
	serveCmd.Flags().DurationVar(&serveShutdown, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
}
