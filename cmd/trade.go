package cmd

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/predmarket/predmarket/internal/trading"
	"github.com/predmarket/predmarket/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var tradeCmd = &cobra.Command{
	Use:   "trade [market]",
	Short: "Buy or sell outcome shares",
	Long: `Executes a slippage-bounded trade against a market's AMM.

Buying quotes the net cost, tops the trader's collateral up when short,
approves the AMM and trades with the quote plus the slippage margin as
the collateral limit. Selling grants the AMM transfer rights on first
use and trades the negated amounts.

The market argument is a hex address or "latest".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrade,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	tradeOutcome int
	tradeAmount  float64
	tradeTrader  int
	tradeSell    bool
	tradeLimit   float64
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(tradeCmd)

	tradeCmd.Flags().IntVarP(&tradeOutcome, "outcome", "o", 0, "Outcome index to trade")
	tradeCmd.Flags().Float64VarP(&tradeAmount, "amount", "a", 1.0, "Shares to buy or sell")
	tradeCmd.Flags().IntVarP(&tradeTrader, "trader", "t", 0, "Trader account index")
	tradeCmd.Flags().BoolVar(&tradeSell, "sell", false, "Sell instead of buy")
	tradeCmd.Flags().Float64Var(&tradeLimit, "limit", 0, "Manual collateral limit; 0 uses the slippage-adjusted quote")
}

func runTrade(cmd *cobra.Command, args []string) error {
	if tradeAmount <= 0 {
		return fmt.Errorf("amount must be positive, got %f", tradeAmount)
	}

	application, logger, err := newOneShotApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		application.Close()
		_ = logger.Sync()
	}()

	ref := "latest"
	if len(args) > 0 {
		ref = args[0]
	}
	market, err := findMarket(application, ref)
	if err != nil {
		return err
	}

	if tradeOutcome < 0 || tradeOutcome >= len(market.Outcomes) {
		return fmt.Errorf("outcome index %d out of range for %d outcomes", tradeOutcome, len(market.Outcomes))
	}

	amounts := make([]*big.Float, len(market.Outcomes))
	for i := range amounts {
		amounts[i] = new(big.Float)
	}
	amounts[tradeOutcome] = big.NewFloat(tradeAmount)

	req := &trading.Request{
		Market:      market,
		TraderIndex: tradeTrader,
		Amounts:     amounts,
		IsSelling:   tradeSell,
	}
	if tradeLimit > 0 {
		req.ManualCollateralLimit = big.NewFloat(tradeLimit)
	}

	side := "Buy"
	if tradeSell {
		side = "Sell"
	}
	fmt.Printf("=== %s ===\n\n", side)
	fmt.Printf("Market: %s\n", market.Address.Hex())
	fmt.Printf("Outcome: %s (index %d)\n", market.Outcomes[tradeOutcome].Title, tradeOutcome)
	fmt.Printf("Amount: %.4f shares\n", tradeAmount)
	fmt.Printf("Trader: account %d\n\n", tradeTrader)

	result, err := application.Orchestrator().Trade(cmd.Context(), req)
	if err != nil {
		var insufficient *types.InsufficientFundsError
		if errors.As(err, &insufficient) {
			fmt.Printf("Insufficient funds:\n")
			fmt.Printf("   Cost: %s %s\n", insufficient.Cost.Text('f', 6), insufficient.Symbol)
			fmt.Printf("   Balance: %s %s\n", insufficient.Balance.Text('f', 6), insufficient.Symbol)
			fmt.Printf("   Shortfall: %s %s\n", insufficient.Shortfall.Text('f', 6), insufficient.Symbol)
		}
		return fmt.Errorf("trade: %w", err)
	}

	fmt.Printf("Trade confirmed!\n")
	fmt.Printf("   TX Hash: %s\n", result.TxHash.Hex())
	return nil
}
