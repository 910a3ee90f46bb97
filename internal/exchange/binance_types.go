package exchange

import (
	"github.com/coin-pulse/pkg/models"
)

// tickerResponse represents 24hr ticker data from the REST API
type tickerResponse struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	WeightedAvgPrice   string `json:"weightedAvgPrice"`
	LastPrice          string `json:"lastPrice"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`      // base asset volume
	QuoteVolume        string `json:"quoteVolume"` // quote asset volume
	OpenTime           int64  `json:"openTime"`    // statistics open time
	CloseTime          int64  `json:"closeTime"`   // statistics close time
	Count              int64  `json:"count"`       // number of trades
}

func (t tickerResponse) toModel() models.Ticker24h {
	return models.Ticker24h{
		Symbol:             t.Symbol,
		LastPrice:          t.LastPrice,
		PriceChangePercent: t.PriceChangePercent,
		Volume:             t.Volume,
		HighPrice:          t.HighPrice,
		LowPrice:           t.LowPrice,
	}
}

// parseKline converts one kline row:
// [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(raw []interface{}) (models.Kline, bool) {
	if len(raw) < 6 {
		return models.Kline{}, false
	}

	openTime, ok := raw[0].(float64)
	if !ok {
		return models.Kline{}, false
	}

	fields := make([]string, 5)
	for i := range fields {
		s, ok := raw[i+1].(string)
		if !ok {
			return models.Kline{}, false
		}
		fields[i] = s
	}

	return models.Kline{
		OpenTime: int64(openTime),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, true
}
