package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var resolveMarketCmd = &cobra.Command{
	Use:   "resolve-market [market]",
	Short: "Report a market's payout vector",
	Long: `Resolves a market by reporting the payout vector through its oracle.
The vector assigns one weight per outcome; weights are normalized into
payout ratios. A market still trading is closed first.

Example: --payouts 1,0 resolves a binary market in favor of outcome 0.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolveMarket,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resolvePayouts []uint

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(resolveMarketCmd)
	resolveMarketCmd.Flags().UintSliceVarP(&resolvePayouts, "payouts", "p", nil, "Payout weight per outcome (required)")
	_ = resolveMarketCmd.MarkFlagRequired("payouts")
}

func runResolveMarket(cmd *cobra.Command, args []string) error {
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

	payouts := make([]uint64, len(resolvePayouts))
	for i, p := range resolvePayouts {
		payouts[i] = uint64(p)
	}

	result, err := application.Controller().ResolveMarket(cmd.Context(), market, payouts)
	if err != nil {
		return fmt.Errorf("resolve market: %w", err)
	}

	fmt.Printf("Market resolved!\n")
	fmt.Printf("   Address: %s\n", market.Address.Hex())
	fmt.Printf("   TX Hash: %s\n", result.TxHash.Hex())
	for _, outcome := range market.Outcomes {
		if outcome.TruenessRatio != nil {
			fmt.Printf("   %-20s payout ratio %.4f\n", outcome.Title, *outcome.TruenessRatio)
		}
	}
	return nil
}
