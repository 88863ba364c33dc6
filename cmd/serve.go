package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brioai/brio/internal/app"
	"github.com/brioai/brio/internal/config"
	"github.com/brioai/brio/internal/log"
)

var serveJSONLogs bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := log.New(log.Config{Level: slog.LevelInfo, JSON: serveJSONLogs})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.Setup(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		return a.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveJSONLogs, "json-logs", false, "emit logs as JSON")
	rootCmd.AddCommand(serveCmd)
}
