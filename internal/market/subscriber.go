package market

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coin-pulse/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// State is the connection state of a live subscription
type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Backoff returns the delay before reconnect attempt n (1-based)
type Backoff interface {
	Next(attempt int) time.Duration
}

// FixedBackoff waits the same delay before every attempt, without limit
type FixedBackoff time.Duration

func (b FixedBackoff) Next(int) time.Duration {
	return time.Duration(b)
}

// Timer is a cancellable scheduled task
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. Implementations must not call f synchronously.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Subscriber opens live ticker streams and normalizes their ticks into the
// target currency.
type Subscriber struct {
	streamer  TickerStreamer
	converter *QuoteConverter
	foreign   string
	backoff   Backoff
	scheduler Scheduler
	logger    *logrus.Entry
}

// NewSubscriber creates a subscriber streaming <symbol><foreign> pairs
func NewSubscriber(streamer TickerStreamer, converter *QuoteConverter, foreign string, backoff Backoff, logger *logrus.Logger) *Subscriber {
	if backoff == nil {
		backoff = FixedBackoff(time.Second)
	}
	return &Subscriber{
		streamer:  streamer,
		converter: converter,
		foreign:   foreign,
		backoff:   backoff,
		scheduler: clockScheduler{},
		logger:    logger.WithField("component", "subscriber"),
	}
}

// SetScheduler replaces the reconnect scheduler
func (s *Subscriber) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

// Subscription is one independent live stream handle. Each handle owns at
// most one connection at a time.
type Subscription struct {
	id     string
	symbol string
	pair   string
	sub    *Subscriber
	onTick func(models.Tick)
	logger *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	rateOnce sync.Once
	rate     decimal.Decimal

	mu       sync.Mutex
	state    State
	gen      uint64
	attempts int
	stop     func()
	timer    Timer
}

// Subscribe starts streaming symbol and delivers every normalized tick to
// onTick until the returned handle is unsubscribed. Calling Subscribe twice
// for the same symbol yields two independent handles.
func (s *Subscriber) Subscribe(symbol string, onTick func(models.Tick)) *Subscription {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	h := &Subscription{
		id:     id,
		symbol: symbol,
		pair:   symbol + s.foreign,
		sub:    s,
		onTick: onTick,
		ctx:    ctx,
		cancel: cancel,
		logger: s.logger.WithFields(logrus.Fields{
			"subscription": id,
			"symbol":       symbol,
		}),
	}
	h.connect()
	return h
}

// ID returns the handle id
func (h *Subscription) ID() string {
	return h.id
}

// Symbol returns the subscribed symbol
func (h *Subscription) Symbol() string {
	return h.symbol
}

// State returns the current connection state
func (h *Subscription) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Subscription) connect() {
	h.mu.Lock()
	if h.state == StateClosed {
		h.mu.Unlock()
		return
	}
	h.gen++
	gen := h.gen
	h.state = StateConnecting
	h.timer = nil
	h.mu.Unlock()

	done, stop, err := h.sub.streamer.StreamTicker(h.pair,
		func(raw models.RawTick) { h.handle(gen, raw) },
		func(err error) {
			h.logger.WithError(err).Warn("Stream error")
		},
	)
	if err != nil {
		h.logger.WithError(err).WithField("pair", h.pair).Warn("Failed to open stream")
		h.reconnect(gen)
		return
	}

	h.mu.Lock()
	if h.state == StateClosed || h.gen != gen {
		h.mu.Unlock()
		stop()
		return
	}
	h.state = StateStreaming
	h.stop = stop
	h.attempts = 0
	h.mu.Unlock()

	h.logger.WithField("pair", h.pair).Debug("Stream open")

	go func() {
		<-done
		h.reconnect(gen)
	}()
}

// reconnect schedules exactly one new connection attempt for connection gen
func (h *Subscription) reconnect(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateClosed || h.gen != gen || h.timer != nil {
		return
	}

	h.state = StateConnecting
	h.stop = nil
	h.attempts++
	delay := h.sub.backoff.Next(h.attempts)
	h.timer = h.sub.scheduler.AfterFunc(delay, h.connect)

	h.logger.WithFields(logrus.Fields{
		"attempt": h.attempts,
		"delay":   delay,
	}).Info("Stream closed, reconnecting")
}

func (h *Subscription) handle(gen uint64, raw models.RawTick) {
	h.mu.Lock()
	live := h.state != StateClosed && h.gen == gen
	h.mu.Unlock()
	if !live {
		return
	}

	h.rateOnce.Do(func() {
		h.rate = h.sub.converter.Rate(h.ctx)
	})

	tick := models.Tick{
		Symbol:             h.symbol,
		Price:              quoted(raw.LastPrice, h.rate),
		Open:               quoted(raw.OpenPrice, h.rate),
		High:               quoted(raw.HighPrice, h.rate),
		Low:                quoted(raw.LowPrice, h.rate),
		Volume:             quoted(raw.Volume, h.rate),
		PriceChangePercent: parseFloat(raw.PriceChangePercent),
		EventTime:          time.UnixMilli(raw.EventTime),
	}
	if h.onTick != nil {
		h.onTick(tick)
	}
}

// Unsubscribe closes the connection and cancels any pending reconnect.
// It is idempotent.
func (h *Subscription) Unsubscribe() {
	h.mu.Lock()
	if h.state == StateClosed {
		h.mu.Unlock()
		return
	}
	h.state = StateClosed
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	h.cancel()
	if stop != nil {
		stop()
	}
	h.logger.Debug("Unsubscribed")
}
