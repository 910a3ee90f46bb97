package market

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuoteConverter_CachesProviderRate(t *testing.T) {
	md := &fakeMetadata{rate: 90}
	conv, _ := newConverter(md)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if got := conv.Rate(ctx); !got.Equal(decimal.NewFromInt(90)) {
			t.Fatalf("Rate() = %s, want 90", got)
		}
	}
	if md.rateCalls != 1 {
		t.Errorf("provider called %d times, want 1", md.rateCalls)
	}
}

func TestQuoteConverter_FallbackIsCached(t *testing.T) {
	md := &fakeMetadata{rateErr: errUnavailable}
	conv, store := newConverter(md)
	ctx := context.Background()

	if got := conv.Rate(ctx); !got.Equal(decimal.NewFromInt(83)) {
		t.Fatalf("Rate() = %s, want fallback 83", got)
	}
	if store.Len() != 1 {
		t.Errorf("fallback not cached")
	}

	md.rateErr = nil
	md.rate = 90
	if got := conv.Rate(ctx); !got.Equal(decimal.NewFromInt(83)) {
		t.Errorf("Rate() after recovery = %s, want cached fallback 83", got)
	}
	if md.rateCalls != 1 {
		t.Errorf("provider called %d times, want 1", md.rateCalls)
	}
}

func TestQuoteConverter_NonPositiveRateFallsBack(t *testing.T) {
	conv, _ := newConverter(&fakeMetadata{rate: 0})
	if got := conv.Rate(context.Background()); !got.Equal(decimal.NewFromInt(83)) {
		t.Errorf("Rate() = %s, want 83", got)
	}
}

func TestQuoteConverter_CanceledContextNotCached(t *testing.T) {
	md := &fakeMetadata{rateErr: context.Canceled}
	conv, store := newConverter(md)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := conv.Rate(ctx); !got.Equal(decimal.NewFromInt(83)) {
		t.Fatalf("Rate() = %s, want 83", got)
	}
	if store.Len() != 0 {
		t.Errorf("fallback cached for a canceled request")
	}
}

func TestQuoteConverter_Convert(t *testing.T) {
	conv, _ := newConverter(&fakeMetadata{rate: 83.5})
	ctx := context.Background()

	tests := []struct {
		raw  string
		want float64
	}{
		{"2", 167},
		{"0.10000000", 8.35},
		{" 1 ", 83.5},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		if got := conv.Convert(ctx, tt.raw); got != tt.want {
			t.Errorf("Convert(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
