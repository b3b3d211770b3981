package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var pricesCmd = &cobra.Command{
	Use:   "prices [market]",
	Short: "Quote every outcome of a market",
	Long: `Quotes the collateral cost of buying the given share amount of each
outcome. Resolved markets are priced off their payout ratios instead of
the AMM.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrices,
}

//nolint:gochecknoglobals // Cobra boilerplate
var pricesAmount float64

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.Flags().Float64VarP(&pricesAmount, "amount", "a", 1.0, "Share amount to quote")
}

func runPrices(cmd *cobra.Command, args []string) error {
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

	priced, err := application.Controller().OutcomePrices(cmd.Context(), market, pricesAmount)
	if err != nil {
		return fmt.Errorf("quote market: %w", err)
	}

	fmt.Printf("=== Prices: %s ===\n\n", market.Question)
	fmt.Printf("Market: %s (%s)\n", market.Address.Hex(), market.Status())
	fmt.Printf("Amount: %.4f shares\n\n", pricesAmount)

	for _, p := range priced {
		if p.Price == nil {
			fmt.Printf("  [%d] %-20s (awaiting resolution)\n", p.Index, p.Outcome)
			continue
		}
		fmt.Printf("  [%d] %-20s %s %s\n", p.Index, p.Outcome, p.Price.Text('f', 6), market.CollateralToken.Symbol)
	}

	return nil
}
