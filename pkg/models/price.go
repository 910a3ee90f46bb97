package models

import (
	"time"
)

// Candle represents one OHLCV interval in the target currency
type Candle struct {
	Time   int64   `json:"time"` // open time, epoch millis
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Tick is a normalized live ticker update
type Tick struct {
	Symbol             string    `json:"symbol"`
	Price              float64   `json:"price"`
	Open               float64   `json:"open"`
	High               float64   `json:"high"`
	Low                float64   `json:"low"`
	Volume             float64   `json:"volume"`
	PriceChangePercent float64   `json:"price_change_percent"`
	EventTime          time.Time `json:"event_time"`
}

// Provider records. Prices arrive as decimal strings in the pair's quote
// currency and are normalized by the market package.

// Ticker24h is a rolling 24h ticker statistic for one trading pair
type Ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

// SymbolPrice is the latest price of one trading pair
type SymbolPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Kline is a raw candlestick as returned by the ticker provider
type Kline struct {
	OpenTime int64
	Open     string
	High     string
	Low      string
	Close    string
	Volume   string
}

// RawTick is a raw streaming ticker event
type RawTick struct {
	Pair               string
	LastPrice          string
	OpenPrice          string
	HighPrice          string
	LowPrice           string
	Volume             string
	PriceChangePercent string
	EventTime          int64
}

// CoinMarket is one market-data record from the metadata provider
type CoinMarket struct {
	ID                string   `json:"id"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Image             string   `json:"image"`
	MarketCap         *float64 `json:"market_cap"`
	CirculatingSupply *float64 `json:"circulating_supply"`
	MarketCapRank     *int     `json:"market_cap_rank"`
}
