package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coin-pulse/internal/market"
	"github.com/coin-pulse/internal/messaging"
	"github.com/coin-pulse/pkg/models"
	"github.com/spf13/cobra"
)

var (
	watchPublish  bool
	watchFromNATS bool
)

// watchCmd prints live ticks
var watchCmd = &cobra.Command{
	Use:   "watch SYMBOL...",
	Short: "Stream live prices until interrupted",
	Long: `Open one live price stream per symbol and print every tick in the
target currency. Streams reconnect on their own after a disconnect.

With --publish every tick is also published to NATS on <prefix>.<SYMBOL>.
With --from-nats the ticks are read from NATS instead of the exchange, for
example those relayed by a running server.

Examples:
  coin-pulse watch BTC
  coin-pulse watch BTC ETH SOL --publish
  coin-pulse watch BTC --from-nats`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchPublish, "publish", false, "Publish ticks to NATS")
	watchCmd.Flags().BoolVar(&watchFromNATS, "from-nats", false, "Read ticks from NATS instead of the exchange")
	watchCmd.MarkFlagsMutuallyExclusive("publish", "from-nats")
}

func runWatch(cmd *cobra.Command, args []string) error {
	application, log, err := newCoreApp()
	if err != nil {
		return err
	}
	defer application.Close()

	cfg := application.GetConfig()

	var publisher *messaging.TickPublisher
	if watchPublish || watchFromNATS {
		publisher, err = messaging.NewTickPublisher(&cfg.NATS, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	currency := cfg.Market.TargetCurrency
	ticks := make(chan models.Tick, 256)
	enqueue := func(t models.Tick) {
		select {
		case ticks <- t:
		default:
		}
	}

	if watchFromNATS {
		if err := publisher.SubscribeTicks(enqueue, args...); err != nil {
			return err
		}
	} else {
		subs := make([]*market.Subscription, 0, len(args))
		for _, symbol := range args {
			subs = append(subs, application.Subscriber().Subscribe(symbol, enqueue))
		}
		defer func() {
			for _, sub := range subs {
				sub.Unsubscribe()
			}
		}()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-interrupt:
			return nil
		case t := <-ticks:
			fmt.Printf("%s %-8s %22s %8.2f%%\n",
				t.EventTime.Format("15:04:05"),
				t.Symbol,
				models.FormatPrice(t.Price, currency),
				t.PriceChangePercent,
			)
			if watchPublish {
				if err := publisher.PublishTick(t); err != nil {
					log.WithError(err).Warn("Failed to publish tick")
				}
			}
		}
	}
}
