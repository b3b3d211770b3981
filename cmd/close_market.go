package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var closeMarketCmd = &cobra.Command{
	Use:   "close-market [market]",
	Short: "Halt trading on a market",
	Long: `Closes a market's AMM so no further trades are accepted. Closing an
already-closed market is a no-op.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCloseMarket,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(closeMarketCmd)
}

func runCloseMarket(cmd *cobra.Command, args []string) error {
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

	if market.IsClosed() {
		fmt.Printf("Market %s already closed at %s\n", market.Address.Hex(), market.ClosedAt.Format("2006-01-02 15:04:05"))
		return nil
	}

	result, err := application.Controller().CloseMarket(cmd.Context(), market)
	if err != nil {
		return fmt.Errorf("close market: %w", err)
	}

	fmt.Printf("Market closed!\n")
	fmt.Printf("   Address: %s\n", market.Address.Hex())
	if result != nil {
		fmt.Printf("   TX Hash: %s\n", result.TxHash.Hex())
	}
	return nil
}
