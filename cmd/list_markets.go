package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var listMarketsCmd = &cobra.Command{
	Use:   "list-markets",
	Short: "List registered markets",
	RunE:  runListMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listMarketsCmd)
}

func runListMarkets(cmd *cobra.Command, args []string) error {
	application, logger, err := newOneShotApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		application.Close()
		_ = logger.Sync()
	}()

	markets, err := application.Store().FindAll()
	if err != nil {
		return fmt.Errorf("read market registry: %w", err)
	}

	if len(markets) == 0 {
		fmt.Printf("No markets registered.\n")
		return nil
	}

	fmt.Printf("=== Markets (%d) ===\n\n", len(markets))
	for _, market := range markets {
		titles := make([]string, 0, len(market.Outcomes))
		for _, outcome := range market.Outcomes {
			titles = append(titles, outcome.Title)
		}
		fmt.Printf("%s  [%s]\n", market.Address.Hex(), market.Status())
		fmt.Printf("   %s\n", market.Question)
		fmt.Printf("   Outcomes: %s\n", strings.Join(titles, ", "))
		if len(market.SubMarkets) > 0 {
			fmt.Printf("   Sub-markets: %d\n", len(market.SubMarkets))
		}
		fmt.Printf("\n")
	}
	return nil
}
