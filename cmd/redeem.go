package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var redeemCmd = &cobra.Command{
	Use:   "redeem [market]",
	Short: "Redeem winning positions for collateral",
	Long: `Burns the trader's positions in a resolved market and credits the
payout in collateral. By default all outcome positions are redeemed;
--outcome restricts redemption to a single outcome.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRedeem,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	redeemTrader  int
	redeemOutcome int
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(redeemCmd)
	redeemCmd.Flags().IntVarP(&redeemTrader, "trader", "t", 0, "Trader account index")
	redeemCmd.Flags().IntVarP(&redeemOutcome, "outcome", "o", -1, "Redeem only this outcome index; -1 redeems all")
}

func runRedeem(cmd *cobra.Command, args []string) error {
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

	if !market.IsResolved() {
		return fmt.Errorf("market %s is not resolved yet", market.Address.Hex())
	}

	var outcomeIndex *int
	if redeemOutcome >= 0 {
		outcomeIndex = &redeemOutcome
	}

	result, err := application.Controller().Redeem(cmd.Context(), redeemTrader, market, outcomeIndex)
	if err != nil {
		return fmt.Errorf("redeem: %w", err)
	}

	fmt.Printf("Positions redeemed!\n")
	fmt.Printf("   Market: %s\n", market.Address.Hex())
	fmt.Printf("   Payout: %s %s\n", result.Redeemed.Text('f', 6), market.CollateralToken.Symbol)
	fmt.Printf("   TX Hash: %s\n", result.Receipt.TxHash.Hex())
	return nil
}
