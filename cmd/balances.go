package cmd

import (
	"fmt"
	"math/big"

	"github.com/predmarket/predmarket/internal/chain"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balancesCmd = &cobra.Command{
	Use:   "balances [market]",
	Short: "Show a trader's holdings in a market",
	Long: `Shows the trader's collateral balance and their outcome share balances
across the whole market tree, sub-markets included.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBalances,
}

//nolint:gochecknoglobals // Cobra boilerplate
var balancesTrader int

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balancesCmd)
	balancesCmd.Flags().IntVarP(&balancesTrader, "trader", "t", 0, "Trader account index")
}

func runBalances(cmd *cobra.Command, args []string) error {
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

	trader, err := application.Keyring().Get(chain.RoleTrader, balancesTrader)
	if err != nil {
		return fmt.Errorf("trader identity: %w", err)
	}

	collateralContract := application.Contracts().Collateral
	if collateralContract == nil {
		return fmt.Errorf("no collateral token configured")
	}

	result, err := application.Gateway().Invoke(cmd.Context(), collateralContract, chain.CallOpts{
		Method:   "balanceOf",
		ReadOnly: true,
	}, trader.Address)
	if err != nil {
		return fmt.Errorf("read collateral balance: %w", err)
	}
	collateralMinor, err := result.BigInt(0)
	if err != nil {
		return fmt.Errorf("collateral balance: %w", err)
	}

	shares, err := application.Resolver().SharesInMarket(cmd.Context(), market, trader.Address)
	if err != nil {
		return fmt.Errorf("resolve shares: %w", err)
	}

	fmt.Printf("=== Balances: %s ===\n\n", market.Question)
	fmt.Printf("Trader: account %d (%s)\n", balancesTrader, trader.Address.Hex())
	fmt.Printf("Collateral: %s %s\n\n", market.CollateralToken.FromMinor(collateralMinor).Text('f', 6), market.CollateralToken.Symbol)

	for _, share := range shares {
		marker := ""
		if share.Market != market.Address {
			marker = " (sub-market)"
		}
		if share.Balance == nil {
			share.Balance = new(big.Float)
		}
		fmt.Printf("  [%d] %-20s %s shares%s\n", share.Index, share.Outcome, share.Balance.Text('f', 6), marker)
	}

	return nil
}
