package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/predmarket/predmarket/internal/app"
	"github.com/predmarket/predmarket/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the market service",
	Long: `Starts the market service, which exposes:
  GET /api/markets                     registered markets
  GET /api/markets/{address}           one market
  GET /api/markets/{address}/prices    per-outcome quotes
  GET /ws/prices                       websocket price feed
  GET /health, /ready, /metrics        operational endpoints

The price feed quotes every registered market on a fixed interval and
broadcasts the snapshots to all connected websocket clients.`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLoggerAt(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(context.Background(), cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
