package cmd

import (
	"fmt"
	"strings"

	"github.com/predmarket/predmarket/internal/lifecycle"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var createMarketCmd = &cobra.Command{
	Use:   "create-market",
	Short: "Create a market and deploy its AMM",
	Long: `Creates a market for a question: prepares the condition, funds the
initial liquidity from the operator account, deploys an LMSR market maker
and registers the market.

Nested markets are declared with --sub "<outcome>:<question>". Each
sub-question becomes an independent binary (Yes/No) market whose positions
live under the parent outcome's collection.`,
	RunE: runCreateMarket,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	createQuestion  string
	createOutcomes  []string
	createLiquidity float64
	createSubs      []string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(createMarketCmd)

	createMarketCmd.Flags().StringVarP(&createQuestion, "question", "q", "", "Market question (required)")
	createMarketCmd.Flags().StringSliceVarP(&createOutcomes, "outcomes", "o", []string{"Yes", "No"}, "Outcome titles")
	createMarketCmd.Flags().Float64VarP(&createLiquidity, "liquidity", "l", 1.0, "Initial liquidity per AMM, in collateral units")
	createMarketCmd.Flags().StringArrayVar(&createSubs, "sub", nil, "Nested market as <outcome>:<question> (repeatable)")
	_ = createMarketCmd.MarkFlagRequired("question")
}

func runCreateMarket(cmd *cobra.Command, args []string) error {
	subQuestions, err := parseSubQuestions(createSubs)
	if err != nil {
		return err
	}

	application, logger, err := newOneShotApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		application.Close()
		_ = logger.Sync()
	}()

	fmt.Printf("=== Create Market ===\n\n")
	fmt.Printf("Question: %s\n", createQuestion)
	fmt.Printf("Outcomes: %s\n", strings.Join(createOutcomes, ", "))
	fmt.Printf("Liquidity: %.4f\n", createLiquidity)
	if len(subQuestions) > 0 {
		fmt.Printf("Sub-markets: %d\n", len(subQuestions))
	}
	fmt.Printf("\n")

	market, err := application.Controller().CreateMarket(cmd.Context(), createQuestion, createOutcomes, createLiquidity, lifecycle.CreateOptions{
		SubQuestions: subQuestions,
	})
	if err != nil {
		return fmt.Errorf("create market: %w", err)
	}

	fmt.Printf("Market created!\n")
	fmt.Printf("   AMM Address: %s\n", market.Address.Hex())
	fmt.Printf("   Condition ID: %s\n", market.ConditionID.Hex())
	for title, sub := range market.SubMarkets {
		fmt.Printf("   Sub-market [%s]: %s\n", title, sub.Address.Hex())
	}

	return nil
}

func parseSubQuestions(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	subs := make(map[string]string, len(raw))
	for _, pair := range raw {
		outcome, question, found := strings.Cut(pair, ":")
		if !found || outcome == "" || question == "" {
			return nil, fmt.Errorf("invalid --sub %q: expected <outcome>:<question>", pair)
		}
		subs[outcome] = question
	}
	return subs, nil
}
