package commands

import (
	"fmt"
	"os"

	"github.com/coin-pulse/internal/synchronizer"
	"github.com/coin-pulse/pkg/models"
	"github.com/spf13/cobra"
)

var (
	assetsPage   int
	assetsLimit  int
	assetsPages  int
	assetsOutput string
)

// assetsCmd lists assets in the target currency
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "List assets priced in the target currency",
	Long: `List assets from the paginated market snapshot.

Without --page the list is loaded the way a client scrolls it: the first
page, then one more page at a time until --pages pages are loaded or the
snapshot runs out.

Examples:
  coin-pulse assets                     # First page
  coin-pulse assets --pages 3           # First three pages
  coin-pulse assets --page 4 --limit 20 # One specific page
  coin-pulse assets --output yaml       # Structured output`,
	RunE: runAssets,
}

func init() {
	rootCmd.AddCommand(assetsCmd)

	assetsCmd.Flags().IntVar(&assetsPage, "page", 0, "Fetch only this page (1-based)")
	assetsCmd.Flags().IntVar(&assetsLimit, "limit", 0, "Page size (default from MARKET_PAGE_SIZE)")
	assetsCmd.Flags().IntVar(&assetsPages, "pages", 1, "Number of pages to load")
	assetsCmd.Flags().StringVarP(&assetsOutput, "output", "o", "table", "Output format (table, json, yaml)")
}

func runAssets(cmd *cobra.Command, args []string) error {
	application, log, err := newCoreApp()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := application.GetContext()
	cfg := application.GetConfig()

	limit := assetsLimit
	if limit <= 0 {
		limit = cfg.Market.PageSize
	}

	var state synchronizer.ListState
	if assetsPage > 0 {
		page, err := application.Snapshot().FetchPage(ctx, assetsPage, limit)
		if err != nil {
			return fmt.Errorf("failed to fetch page %d: %w", assetsPage, err)
		}
		state = synchronizer.ListState{Assets: page.Assets, HasMore: page.HasMore, Page: assetsPage}
	} else {
		list := synchronizer.NewAssetList(application.Snapshot(), limit, log)
		if err := list.Load(ctx); err != nil {
			return fmt.Errorf("%s: %w", synchronizer.ErrAssetsMessage, err)
		}
		for i := 1; i < assetsPages && list.State().HasMore; i++ {
			if err := list.LoadMore(ctx); err != nil {
				log.WithError(err).Warn("Stopped loading more assets")
				break
			}
		}
		state = list.State()
	}

	if ok, err := writeStructured(os.Stdout, assetsOutput, state); ok {
		return err
	}

	currency := cfg.Market.TargetCurrency
	fmt.Printf("%-10s %-24s %22s %9s %18s\n", "SYMBOL", "NAME", "PRICE", "24H %", "VOLUME")
	for _, a := range state.Assets {
		fmt.Printf("%-10s %-24s %22s %8.2f%% %18s\n",
			a.Symbol,
			truncate(a.Name, 24),
			models.FormatPrice(a.Price, currency),
			a.PriceChangePercent,
			models.FormatWithUnits(a.Volume),
		)
	}
	fmt.Printf("\nPage %d, %d assets, more available: %v\n", state.Page, len(state.Assets), state.HasMore)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
