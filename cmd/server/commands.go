package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/services"
)

var coinsCmd = &cobra.Command{
	Use:   "coins",
	Short: "Print the top coins by market cap",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClients(cfg, nil, logger)
		if err != nil {
			return err
		}

		market := services.NewMarketService(c.market, logger)
		coins, err := market.LoadCoins(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s", domain.UserMessage(err, domain.MsgCoinsUnavailable))
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && limit < len(coins) {
			coins = coins[:limit]
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSYMBOL\tNAME\tPRICE")
		for _, coin := range coins {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", coin.ID, coin.QuoteSymbol(), coin.Name, domain.FormatUSD(coin.CurrentPrice))
		}
		return w.Flush()
	},
}

func init() {
	coinsCmd.Flags().Int("limit", 20, "number of coins to print (0 for all)")
}

var infoCmd = &cobra.Command{
	Use:   "info [coin-id]",
	Short: "Print the USD, EUR and ILS price of one coin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClients(cfg, nil, logger)
		if err != nil {
			return err
		}

		market := services.NewMarketService(c.market, logger)
		detail, err := market.MoreInfo(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s", domain.UserMessage(err, domain.MsgMoreInfoFailed))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend [coin-id]",
	Short: "Ask the inference service for a buy/no-buy opinion on one coin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildClients(cfg, nil, logger)
		if err != nil {
			return err
		}

		market := services.NewMarketService(c.market, logger)
		// no favorites set outside the server, any coin id is accepted
		recs := services.NewRecommendationService(nil, market, c.inference, clock.New(), logger)

		rec, err := recs.Recommend(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s", domain.UserMessage(err, domain.MsgServiceUnavailable))
		}

		fmt.Fprintln(cmd.OutOrStdout(), rec.Text)
		return nil
	},
}
