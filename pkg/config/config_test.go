package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Market.TargetCurrency != "INR" || cfg.Market.ForeignQuote != "USDT" || cfg.Market.RateBaseID != "tether" {
		t.Errorf("market currencies = %+v", cfg.Market)
	}
	if cfg.Market.FallbackRate != 83 || cfg.Market.PageSize != 50 || cfg.Market.MetadataBatchSize != 50 {
		t.Errorf("market sizes = %+v", cfg.Market)
	}
	if cfg.Market.MetadataDelay != time.Second || cfg.Market.ReconnectDelay != time.Second {
		t.Errorf("market delays = %v, %v", cfg.Market.MetadataDelay, cfg.Market.ReconnectDelay)
	}
	if cfg.Binance.CandleCap != 1000 {
		t.Errorf("candle cap = %d", cfg.Binance.CandleCap)
	}
	if cfg.Chart.Width != 1170 || cfg.Chart.Height != 250 || cfg.Chart.MaxLabels != 12 {
		t.Errorf("chart = %+v", cfg.Chart)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("session idle timeout = %v", cfg.Session.IdleTimeout)
	}
	if cfg.Redis.Enabled || cfg.NATS.Enabled || cfg.NATS.SubjectPrefix != "ticks" {
		t.Errorf("optional services = redis %v, nats %+v", cfg.Redis.Enabled, cfg.NATS)
	}
	if got := strings.Join(cfg.Security.CORSMethods, ","); got != "GET,POST,PUT,DELETE,OPTIONS" {
		t.Errorf("cors methods = %s", got)
	}
	if cfg.GetServerAddr() != "0.0.0.0:8080" {
		t.Errorf("server addr = %s", cfg.GetServerAddr())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MARKET_TARGET_CURRENCY", "eur")
	t.Setenv("MARKET_FALLBACK_RATE", "0.92")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SECURITY_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Market.TargetCurrency != "EUR" || cfg.Market.FallbackRate != 0.92 {
		t.Errorf("market = %+v", cfg.Market)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Errorf("cors origins = %v", cfg.Security.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	base, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"same currencies", func(c *Config) { c.Market.TargetCurrency = c.Market.ForeignQuote }},
		{"candle cap too large", func(c *Config) { c.Binance.CandleCap = 1500 }},
		{"http stream url", func(c *Config) { c.Binance.StreamURL = "https://stream.binance.com" }},
		{"zero page size", func(c *Config) { c.Market.PageSize = 0 }},
		{"zero fallback", func(c *Config) { c.Market.FallbackRate = 0 }},
		{"zero chart width", func(c *Config) { c.Chart.Width = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
