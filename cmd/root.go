package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/predmarket/predmarket/internal/app"
	"github.com/predmarket/predmarket/internal/marketstore"
	"github.com/predmarket/predmarket/pkg/config"
	"github.com/predmarket/predmarket/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "predmarket",
	Short: "Prediction market operator",
	Long: `Prediction market operator for conditional-token markets priced by an
LMSR automated market maker.

Markets are created against a conditional tokens ledger, traded with
slippage-bounded buy and sell orders, resolved through a centralized
oracle, and redeemed per trader. The serve command runs the HTTP API
and the websocket price feed.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// newOneShotApp wires the full component graph for commands that perform a
// single operation and exit. The price feed stays off.
func newOneShotApp(ctx context.Context) (*app.App, *zap.Logger, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLoggerAt(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	application, err := app.New(ctx, cfg, logger, &app.Options{DisableFeed: true})
	if err != nil {
		return nil, nil, fmt.Errorf("create app: %w", err)
	}

	return application, logger, nil
}

// findMarket resolves a market reference: a hex address, or "latest" for the
// most recently registered market.
func findMarket(application *app.App, ref string) (*types.PredictionMarket, error) {
	if ref == "" || ref == "latest" {
		market, err := application.Store().GetRecent()
		if err != nil {
			return nil, fmt.Errorf("read market registry: %w", err)
		}
		if market == nil {
			return nil, errors.New("no markets registered yet")
		}
		return market, nil
	}

	if !common.IsHexAddress(ref) {
		return nil, fmt.Errorf("invalid market reference %q: expected hex address or \"latest\"", ref)
	}

	market, err := application.Store().Find(common.HexToAddress(ref))
	if err != nil {
		if errors.Is(err, marketstore.ErrNotFound) {
			return nil, fmt.Errorf("market %s not registered", ref)
		}
		return nil, fmt.Errorf("read market registry: %w", err)
	}
	return market, nil
}
