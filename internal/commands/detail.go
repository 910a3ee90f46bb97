package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/coin-pulse/internal/synchronizer"
	"github.com/coin-pulse/pkg/models"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	detailTimeFrame string
	detailOutput    string
)

// detailCmd shows the detail screen of one asset
var detailCmd = &cobra.Command{
	Use:   "detail SYMBOL",
	Short: "Show price, stats and chart window of one asset",
	Long: `Load the detail view of one asset: name, price, windowed change,
market cap, circulating supply and popularity rank.

Examples:
  coin-pulse detail BTC
  coin-pulse detail eth --timeframe 1W
  coin-pulse detail SOL --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runDetail,
}

func init() {
	rootCmd.AddCommand(detailCmd)

	detailCmd.Flags().StringVarP(&detailTimeFrame, "timeframe", "t", string(models.DefaultTimeFrame), "Chart window (1H, 24H, 1W, 1M, 6M, 1Y, All)")
	detailCmd.Flags().StringVarP(&detailOutput, "output", "o", "table", "Output format (table, json, yaml)")
}

// loadDetail opens a detail synchronizer on tf, loading metadata and series
// together
func loadDetail(ctx context.Context, d *synchronizer.AssetDetail, tf models.TimeFrame) error {
	var g errgroup.Group
	g.Go(func() error { return d.LoadDetail(ctx) })
	g.Go(func() error { return d.SetTimeFrame(ctx, tf) })
	return g.Wait()
}

func runDetail(cmd *cobra.Command, args []string) error {
	tf, err := models.ParseTimeFrame(detailTimeFrame)
	if err != nil {
		return err
	}

	application, _, err := newCoreApp()
	if err != nil {
		return err
	}
	defer application.Close()

	d := application.NewAssetDetail(args[0])
	if err := loadDetail(application.GetContext(), d, tf); err != nil {
		if st := d.State(); st.Error != "" {
			return fmt.Errorf("%s: %w", st.Error, err)
		}
		return err
	}

	state := d.State()
	if ok, err := writeStructured(os.Stdout, detailOutput, state); ok {
		return err
	}

	currency := application.GetConfig().Market.TargetCurrency
	detail := state.Detail
	fmt.Printf("%s (%s)\n", detail.Name, detail.Symbol)
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("%-20s %s\n", "Price", models.FormatPrice(detail.Price, currency))
	fmt.Printf("%-20s %.2f%% (%s)\n", "Change", detail.PriceChangePercent, state.TimeFrame)
	fmt.Printf("%-20s %s\n", "Volume", models.FormatStat(state.Stats.Volume))
	fmt.Printf("%-20s %s\n", "Market cap", models.FormatStat(state.Stats.MarketCap))
	fmt.Printf("%-20s %s\n", "Circulating supply", models.FormatStat(state.Stats.CirculatingSupply))
	fmt.Printf("%-20s %s\n", "Popularity", state.Stats.Popularity)
	fmt.Printf("%-20s %d candles\n", "Chart", state.Chart.Len())
	return nil
}
