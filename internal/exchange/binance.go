package exchange

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	binance "github.com/binance/binance-connector-go"
	"github.com/coin-pulse/pkg/config"
	"github.com/coin-pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// BinanceStream opens single-symbol 24hr ticker streams using the official
// connector. Every call to StreamTicker owns its own websocket connection.
type BinanceStream struct {
	baseURL string
	logger  *logrus.Entry

	open atomic.Int64
}

// NewBinanceStream creates a stream factory for cfg.StreamURL
func NewBinanceStream(cfg *config.BinanceConfig, logger *logrus.Logger) *BinanceStream {
	return &BinanceStream{
		baseURL: strings.TrimRight(cfg.StreamURL, "/"),
		logger:  logger.WithField("component", "binance-stream"),
	}
}

// StreamTicker connects to the <pair>@ticker stream. done is closed when the
// connection ends from either side; stop closes it from ours.
func (bs *BinanceStream) StreamTicker(pair string, onTick func(models.RawTick), onError func(error)) (<-chan struct{}, func(), error) {
	client := binance.NewWebsocketStreamClient(false, bs.baseURL)

	var handler binance.WsMarketTickersStatHandler = func(event *binance.WsMarketTickerStatEvent) {
		onTick(convertTickerEvent(event))
	}
	errHandler := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	doneCh, stopCh, err := client.WsMarketTickersStatServe(strings.ToLower(pair), handler, errHandler)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start WebSocket stream for %s: %w", pair, err)
	}

	bs.open.Add(1)
	bs.logger.WithFields(logrus.Fields{
		"symbol": pair,
		"open":   bs.open.Load(),
	}).Debug("Ticker stream connected")

	var once sync.Once
	stop := func() {
		once.Do(func() { close(stopCh) })
	}

	done := make(chan struct{})
	go func() {
		<-doneCh
		bs.open.Add(-1)
		close(done)
	}()

	return done, stop, nil
}

// OpenStreams returns the number of live connections
func (bs *BinanceStream) OpenStreams() int64 {
	return bs.open.Load()
}

func convertTickerEvent(event *binance.WsMarketTickerStatEvent) models.RawTick {
	return models.RawTick{
		Pair:               event.Symbol,
		LastPrice:          event.LastPrice,
		OpenPrice:          event.OpenPrice,
		HighPrice:          event.HighPrice,
		LowPrice:           event.LowPrice,
		Volume:             event.BaseVolume,
		PriceChangePercent: event.PriceChangePercent,
		EventTime:          event.Time,
	}
}
