package models

import (
	"encoding/json"
	"fmt"
)

// PlaceholderLogo is used when no logo could be resolved for an asset
const PlaceholderLogo = "https://via.placeholder.com/32"

// Unavailable is how a missing stat is rendered
const Unavailable = "N/A"

// AssetSummary is one row of the asset list, normalized to the target currency
type AssetSummary struct {
	Symbol             string    `json:"symbol" yaml:"symbol"`
	Name               string    `json:"name" yaml:"name"`
	Price              float64   `json:"price" yaml:"price"`
	PriceChangePercent float64   `json:"price_change_percent" yaml:"price_change_percent"`
	Volume             float64   `json:"volume" yaml:"volume"`
	High               float64   `json:"high" yaml:"high"`
	Low                float64   `json:"low" yaml:"low"`
	LogoURL            string    `json:"logo_url" yaml:"logo_url"`
	Sparkline          []float64 `json:"sparkline" yaml:"sparkline"`
}

// Page is one paginated snapshot of asset summaries
type Page struct {
	Assets  []AssetSummary `json:"assets" yaml:"assets"`
	HasMore bool           `json:"has_more" yaml:"has_more"`
}

// AssetDetail is the detail-screen view of a single asset
type AssetDetail struct {
	Symbol             string  `json:"symbol" yaml:"symbol"`
	Name               string  `json:"name" yaml:"name"`
	Price              float64 `json:"price" yaml:"price"`
	PriceChangePercent float64 `json:"price_change_percent" yaml:"price_change_percent"`
	Volume             float64 `json:"volume" yaml:"volume"`
	High               float64 `json:"high" yaml:"high"`
	Low                float64 `json:"low" yaml:"low"`
	LogoURL            string  `json:"logo_url" yaml:"logo_url"`
	MarketCap          Stat    `json:"market_cap" yaml:"market_cap"`
	CirculatingSupply  Stat    `json:"circulating_supply" yaml:"circulating_supply"`
	Popularity         string  `json:"popularity" yaml:"popularity"`
}

// CoinMeta is the display metadata resolved for a canonical asset id
type CoinMeta struct {
	Name    string `json:"name"`
	LogoURL string `json:"logo_url"`
}

// Stat is an optional numeric statistic. The zero value is unavailable,
// which is distinct from a real zero.
type Stat struct {
	Value float64
	Valid bool
}

// StatOf returns an available stat
func StatOf(v float64) Stat {
	return Stat{Value: v, Valid: true}
}

// StatFromPtr maps a nil pointer to an unavailable stat
func StatFromPtr(v *float64) Stat {
	if v == nil {
		return Stat{}
	}
	return StatOf(*v)
}

// Or returns s when available, otherwise prev
func (s Stat) Or(prev Stat) Stat {
	if s.Valid {
		return s
	}
	return prev
}

func (s Stat) String() string {
	if !s.Valid {
		return Unavailable
	}
	return fmt.Sprintf("%g", s.Value)
}

// MarshalJSON renders unavailable stats as "N/A"
func (s Stat) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return json.Marshal(Unavailable)
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON accepts a number or the "N/A" sentinel
func (s *Stat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*s = StatOf(v)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("stat must be a number or %q: %w", Unavailable, err)
	}
	if str != Unavailable {
		return fmt.Errorf("unexpected stat value %q", str)
	}
	*s = Stat{}
	return nil
}

// MarshalYAML mirrors MarshalJSON
func (s Stat) MarshalYAML() (interface{}, error) {
	if !s.Valid {
		return Unavailable, nil
	}
	return s.Value, nil
}

// Stats is the stat panel of the detail screen
type Stats struct {
	Price             Stat   `json:"price" yaml:"price"`
	MarketCap         Stat   `json:"market_cap" yaml:"market_cap"`
	Volume            Stat   `json:"volume" yaml:"volume"`
	CirculatingSupply Stat   `json:"circulating_supply" yaml:"circulating_supply"`
	Popularity        string `json:"popularity" yaml:"popularity"`
}

// PopularityFromRank formats a market-cap rank as "#N"
func PopularityFromRank(rank *int) string {
	if rank == nil || *rank <= 0 {
		return Unavailable
	}
	return fmt.Sprintf("#%d", *rank)
}
