package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coin-pulse/internal/cache"
	"github.com/coin-pulse/pkg/logger"
	"github.com/coin-pulse/pkg/models"
)

var errUnavailable = errors.New("provider unavailable")

type fakeTickers struct {
	mu         sync.Mutex
	tickers    []models.Ticker24h
	prices     []models.SymbolPrice
	candles    map[string][]models.Kline // by pair
	tickerErr  error
	pricesErr  error
	candleReqs []string
}

func (f *fakeTickers) GetAllTickers(ctx context.Context) ([]models.Ticker24h, error) {
	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	return f.tickers, nil
}

func (f *fakeTickers) GetAllPrices(ctx context.Context) ([]models.SymbolPrice, error) {
	if f.pricesErr != nil {
		return nil, f.pricesErr
	}
	return f.prices, nil
}

func (f *fakeTickers) GetTicker(ctx context.Context, pair string) (*models.Ticker24h, error) {
	for _, t := range f.tickers {
		if t.Symbol == pair {
			t := t
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid symbol %s", pair)
}

func (f *fakeTickers) GetCandles(ctx context.Context, pair, interval string, start, end int64, limit int) ([]models.Kline, error) {
	f.mu.Lock()
	f.candleReqs = append(f.candleReqs, pair)
	f.mu.Unlock()

	k, ok := f.candles[pair]
	if !ok {
		return nil, fmt.Errorf("invalid symbol %s", pair)
	}
	return k, nil
}

type fakeMetadata struct {
	mu        sync.Mutex
	rate      float64
	rateErr   error
	rateCalls int
	failBatch map[int]bool // 1-based call index of GetMarketData
	batches   [][]string
	coins     map[string]models.CoinMarket
	coin      *models.CoinMarket
	coinErr   error
	marketErr error
}

func (f *fakeMetadata) GetRate(ctx context.Context, base, quote string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateCalls++
	return f.rate, f.rateErr
}

func (f *fakeMetadata) GetMarketData(ctx context.Context, ids []string, vsCurrency string, page, pageSize int) ([]models.CoinMarket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), ids...))
	if f.marketErr != nil {
		return nil, f.marketErr
	}
	if f.failBatch[len(f.batches)] {
		return nil, errUnavailable
	}

	out := make([]models.CoinMarket, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.coins[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeMetadata) GetCoin(ctx context.Context, id, vsCurrency string) (*models.CoinMarket, error) {
	if f.coinErr != nil {
		return nil, f.coinErr
	}
	if f.coin == nil {
		return nil, errUnavailable
	}
	return f.coin, nil
}

func (f *fakeMetadata) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// fakeStreamer records every stream opened and lets tests close them
type fakeStreamer struct {
	mu      sync.Mutex
	opens   []string
	streams []*fakeStream
	failN   int
}

type fakeStream struct {
	pair    string
	onTick  func(models.RawTick)
	onError func(error)
	done    chan struct{}
	once    sync.Once
	stopped bool
}

func (s *fakeStream) close() {
	s.once.Do(func() { close(s.done) })
}

func (f *fakeStreamer) StreamTicker(pair string, onTick func(models.RawTick), onError func(error)) (<-chan struct{}, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, pair)
	if f.failN > 0 {
		f.failN--
		return nil, nil, errUnavailable
	}

	st := &fakeStream{pair: pair, onTick: onTick, onError: onError, done: make(chan struct{})}
	f.streams = append(f.streams, st)
	stop := func() {
		f.mu.Lock()
		st.stopped = true
		f.mu.Unlock()
		st.close()
	}
	return st.done, stop, nil
}

func (f *fakeStreamer) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opens)
}

func (f *fakeStreamer) last() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

// manualScheduler queues tasks until the test fires them
type manualScheduler struct {
	mu     sync.Mutex
	tasks  []*manualTimer
	delays []time.Duration
}

type manualTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.tasks = append(s.tasks, t)
	s.delays = append(s.delays, d)
	return t
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			n++
		}
		t.mu.Unlock()
	}
	return n
}

// fire runs every pending task and returns how many ran
func (s *manualScheduler) fire() int {
	s.mu.Lock()
	tasks := append([]*manualTimer(nil), s.tasks...)
	s.mu.Unlock()

	n := 0
	for _, t := range tasks {
		t.mu.Lock()
		run := !t.stopped && !t.fired
		t.fired = true
		t.mu.Unlock()
		if run {
			t.f()
			n++
		}
	}
	return n
}

func newConverter(md MetadataProvider) (*QuoteConverter, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	return NewQuoteConverter(md, store, "tether", "INR", 83, logger.Discard()), store
}

func kline(openTime int64, close string) models.Kline {
	return models.Kline{OpenTime: openTime, Open: close, High: close, Low: close, Close: close, Volume: "1"}
}

// usdtTickers builds n USDT tickers named C0USDT, C1USDT, ...
func usdtTickers(n int) []models.Ticker24h {
	out := make([]models.Ticker24h, n)
	for i := range out {
		out[i] = models.Ticker24h{
			Symbol:             fmt.Sprintf("C%dUSDT", i),
			LastPrice:          "1",
			PriceChangePercent: "0.5",
			Volume:             "10",
			HighPrice:          "2",
			LowPrice:           "0.5",
		}
	}
	return out
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func noSleep(calls *int) Sleeper {
	var mu sync.Mutex
	return func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*calls++
		mu.Unlock()
		return nil
	}
}
