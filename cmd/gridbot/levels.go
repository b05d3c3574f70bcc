package main

import (
	"fmt"
	"text/tabwriter"

	"grid_go/internal/app"
	"grid_go/internal/infra"
	"grid_go/internal/strategy"

	"github.com/spf13/cobra"
)

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Print the configured grid levels",
	Long:  `Print the grid levels, buy zone and per-level notional for the configured range. Needs no broker access.`,
	RunE:  printLevels,
}

func init() {
	rootCmd.AddCommand(levelsCmd)
}

func printLevels(cmd *cobra.Command, _ []string) error {
	cfg, err := infra.ReadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateGrid(); err != nil {
		return err
	}
	params, err := app.ParamsFromConfig(cfg)
	if err != nil {
		return err
	}

	levels := strategy.BuildLevels(params.Base, params.PriceTick)
	inZone := make(map[string]bool)
	if params.BuyZone != strategy.BuyZoneBelowPrice {
		for _, l := range strategy.FilterBuyZone(levels, params.BuyZone, params.Base, params.Base.High) {
			inZone[l.String()] = true
		}
	}

	dp := strategy.TickPlaces(params.PriceTick)
	qty := strategy.TruncateToIncrement(params.QtyPerLevel, params.QtyIncrement)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s range %s, %d levels, buy zone %s, qty %s\n",
		params.Symbol, params.Base, len(levels), params.BuyZone, qty)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPRICE\tNOTIONAL\tBUY\tTAKE PROFIT")
	for i, l := range levels {
		buy := "-"
		if inZone[l.String()] {
			buy = "yes"
		} else if params.BuyZone == strategy.BuyZoneBelowPrice {
			buy = "if below price"
		}
		tp := strategy.TakeProfitPrice(l, params.TakeProfitPct, params.PriceTick)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, l.StringFixed(dp), l.Mul(qty).StringFixed(2), buy, tp.StringFixed(dp))
	}
	return w.Flush()
}
