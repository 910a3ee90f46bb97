package commands

import (
	"fmt"
	"os"

	"github.com/coin-pulse/internal/chart"
	"github.com/coin-pulse/pkg/models"
	"github.com/spf13/cobra"
)

var (
	chartTimeFrame string
	chartWidth     float64
	chartHeight    float64
	chartSVG       string
	chartPNG       string
)

// chartCmd renders the price chart of one asset
var chartCmd = &cobra.Command{
	Use:   "chart SYMBOL",
	Short: "Render the price chart of one asset",
	Long: `Fetch candles for one chart window and lay them out on a canvas.

Without --svg or --png the computed axis ticks and value range are printed.

Examples:
  coin-pulse chart BTC
  coin-pulse chart ETH --timeframe 1M --svg eth.svg
  coin-pulse chart SOL --png sol.png --width 800 --height 300`,
	Args: cobra.ExactArgs(1),
	RunE: runChart,
}

func init() {
	rootCmd.AddCommand(chartCmd)

	chartCmd.Flags().StringVarP(&chartTimeFrame, "timeframe", "t", string(models.DefaultTimeFrame), "Chart window (1H, 24H, 1W, 1M, 6M, 1Y, All)")
	chartCmd.Flags().Float64Var(&chartWidth, "width", 0, "Canvas width (default from CHART_WIDTH)")
	chartCmd.Flags().Float64Var(&chartHeight, "height", 0, "Canvas height (default from CHART_HEIGHT)")
	chartCmd.Flags().StringVar(&chartSVG, "svg", "", "Write an SVG rendering to this file")
	chartCmd.Flags().StringVar(&chartPNG, "png", "", "Write a PNG rendering to this file")
}

func runChart(cmd *cobra.Command, args []string) error {
	tf, err := models.ParseTimeFrame(chartTimeFrame)
	if err != nil {
		return err
	}

	application, log, err := newCoreApp()
	if err != nil {
		return err
	}
	defer application.Close()

	opts := application.ChartOptions()
	if chartWidth > 0 {
		opts.Width = chartWidth
	}
	if chartHeight > 0 {
		opts.Height = chartHeight
	}

	d := application.NewAssetDetail(args[0])
	if err := d.SetTimeFrame(application.GetContext(), tf); err != nil {
		return fmt.Errorf("%s: %w", d.State().Error, err)
	}
	series := d.State().Chart

	g, err := chart.Build(series, opts)
	if err != nil {
		return err
	}

	if chartSVG != "" {
		if err := os.WriteFile(chartSVG, chart.RenderSVG(g, nil), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", chartSVG, err)
		}
		log.WithField("file", chartSVG).Info("SVG chart written")
	}

	if chartPNG != "" {
		img, err := chart.RenderPNG(series, d.Symbol()+" "+string(tf), opts)
		if err != nil {
			return err
		}
		if err := os.WriteFile(chartPNG, img, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", chartPNG, err)
		}
		log.WithField("file", chartPNG).Info("PNG chart written")
	}

	if chartSVG != "" || chartPNG != "" {
		return nil
	}

	if g.Empty() {
		fmt.Println("Not enough data")
		return nil
	}
	fmt.Printf("%s %s: %d points, range %.2f .. %.2f\n", d.Symbol(), tf, len(g.Points), g.Min, g.Max)
	fmt.Printf("%-16s %10s %18s\n", "LABEL", "X", "CLOSE")
	for _, p := range g.Ticks {
		fmt.Printf("%-16s %10.2f %18.2f\n", p.Label, p.X, p.Value)
	}
	return nil
}
