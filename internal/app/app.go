package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coin-pulse/internal/api"
	"github.com/coin-pulse/internal/cache"
	"github.com/coin-pulse/internal/chart"
	"github.com/coin-pulse/internal/exchange"
	"github.com/coin-pulse/internal/external"
	"github.com/coin-pulse/internal/market"
	"github.com/coin-pulse/internal/messaging"
	"github.com/coin-pulse/internal/session"
	"github.com/coin-pulse/internal/synchronizer"
	"github.com/coin-pulse/internal/websocket"
	"github.com/coin-pulse/pkg/config"
	"github.com/sirupsen/logrus"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	loc    *time.Location

	// Core components
	store      cache.Store
	redisStore *cache.RedisStore
	binance    *exchange.BinanceRESTClient
	stream     *exchange.BinanceStream
	coingecko  *external.CoinGeckoClient
	natsClient *messaging.TickPublisher

	// Market services
	converter  *market.QuoteConverter
	resolver   *market.MetadataResolver
	series     *market.SeriesFetcher
	snapshot   *market.SnapshotFetcher
	details    *market.DetailFetcher
	subscriber *market.Subscriber

	// Services
	sessionMgr *session.Manager
	bridge     *websocket.TickerBridge
	apiServer  *api.Server
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// InitializeCore builds the providers and market services used by both the
// server and the one-shot commands
func (a *App) InitializeCore() error {
	loc, err := time.LoadLocation(a.cfg.Chart.Timezone)
	if err != nil {
		return fmt.Errorf("invalid chart timezone %q: %w", a.cfg.Chart.Timezone, err)
	}
	a.loc = loc

	if err := a.initializeCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	a.initializeProviders()
	a.initializeMarket()
	return nil
}

// Initialize initializes all application components
func (a *App) Initialize() error {
	if err := a.InitializeCore(); err != nil {
		return err
	}

	if err := a.initializeMessaging(); err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	a.initializeSessions()
	a.initializeAPIServer()
	return nil
}

// Start starts the application
func (a *App) Start() error {
	if err := a.sessionMgr.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil {
			a.logger.WithError(err).Error("API server error")
		}
	}()

	a.logger.WithFields(logrus.Fields{
		"address":  a.cfg.GetServerAddr(),
		"currency": a.cfg.Market.TargetCurrency,
		"redis":    a.redisStore != nil,
		"nats":     a.natsClient != nil,
	}).Info("Application started")
	return nil
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	a.cancel()

	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	if err := a.closeConnections(); err != nil {
		a.logger.WithError(err).Error("Error closing connections")
	}

	a.logger.Info("Application stopped successfully")
	return nil
}

// Close releases the connections opened by InitializeCore
func (a *App) Close() error {
	a.cancel()
	return a.closeConnections()
}

// GetContext returns the application context
func (a *App) GetContext() context.Context {
	return a.ctx
}

// GetConfig returns the application configuration
func (a *App) GetConfig() *config.Config {
	return a.cfg
}

// GetLogger returns the application logger
func (a *App) GetLogger() *logrus.Logger {
	return a.logger
}

// Location returns the zone chart labels are rendered in
func (a *App) Location() *time.Location {
	return a.loc
}

// Snapshot returns the paginated snapshot fetcher
func (a *App) Snapshot() *market.SnapshotFetcher {
	return a.snapshot
}

// Series returns the historical candle fetcher
func (a *App) Series() *market.SeriesFetcher {
	return a.series
}

// Subscriber returns the live price subscriber
func (a *App) Subscriber() *market.Subscriber {
	return a.subscriber
}

// ChartOptions returns the configured chart canvas
func (a *App) ChartOptions() chart.Options {
	return chart.Options{
		Width:     a.cfg.Chart.Width,
		Height:    a.cfg.Chart.Height,
		MaxLabels: a.cfg.Chart.MaxLabels,
	}
}

// NewAssetList creates an idle list synchronizer
func (a *App) NewAssetList() *synchronizer.AssetList {
	return synchronizer.NewAssetList(a.snapshot, a.cfg.Market.PageSize, a.logger)
}

// NewAssetDetail creates a detail synchronizer for symbol
func (a *App) NewAssetDetail(symbol string) *synchronizer.AssetDetail {
	return synchronizer.NewAssetDetail(symbol, a.details, a.series, a.loc, a.logger)
}

// Private initialization methods

func (a *App) initializeCache() error {
	if !a.cfg.Redis.Enabled {
		a.store = cache.NewMemoryStore()
		return nil
	}

	redisStore, err := cache.NewRedisStore(&a.cfg.Redis, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redisStore = redisStore
	a.store = redisStore
	a.logger.WithField("addr", a.cfg.GetRedisAddr()).Info("Using Redis cache")
	return nil
}

func (a *App) initializeProviders() {
	a.binance = exchange.NewBinanceRESTClient(&a.cfg.Binance, a.logger)
	a.stream = exchange.NewBinanceStream(&a.cfg.Binance, a.logger)
	a.coingecko = external.NewCoinGeckoClient(&a.cfg.CoinGecko, a.logger)
}

func (a *App) initializeMarket() {
	m := a.cfg.Market

	a.converter = market.NewQuoteConverter(a.coingecko, a.store, m.RateBaseID, m.TargetCurrency, m.FallbackRate, a.logger)
	a.resolver = market.NewMetadataResolver(a.coingecko, a.store, m.TargetCurrency, m.MetadataBatchSize, m.MetadataDelay, a.logger)
	a.series = market.NewSeriesFetcher(a.binance, a.converter, m.TargetCurrency, m.ForeignQuote, a.cfg.Binance.CandleCap, a.logger)
	a.snapshot = market.NewSnapshotFetcher(a.binance, a.coingecko, a.resolver, a.converter, a.series, m.TargetCurrency, m.ForeignQuote, a.logger)
	a.details = market.NewDetailFetcher(a.binance, a.coingecko, a.resolver, a.converter, m.TargetCurrency, m.ForeignQuote, a.logger)
	a.subscriber = market.NewSubscriber(a.stream, a.converter, m.ForeignQuote, market.FixedBackoff(m.ReconnectDelay), a.logger)
}

func (a *App) initializeMessaging() error {
	if !a.cfg.NATS.Enabled {
		return nil
	}

	natsClient, err := messaging.NewTickPublisher(&a.cfg.NATS, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.natsClient = natsClient
	return nil
}

func (a *App) initializeSessions() {
	a.sessionMgr = session.NewManager(a.NewAssetList, a.NewAssetDetail, &a.cfg.Session, a.logger)

	sinks := websocket.MultiSink{a.sessionMgr}
	if a.natsClient != nil {
		sinks = append(sinks, a.natsClient)
	}
	a.bridge = websocket.NewTickerBridge(a.subscriber, sinks, a.logger)
}

func (a *App) initializeAPIServer() {
	a.apiServer = api.NewServer(
		a.cfg,
		a.logger,
		a.snapshot,
		a.series,
		a.sessionMgr,
		a.bridge,
		a.store,
		a.natsClient,
		a.loc,
	)
}

func (a *App) closeConnections() error {
	var errs []error

	if a.bridge != nil {
		a.bridge.Close()
	}

	if a.sessionMgr != nil {
		if err := a.sessionMgr.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop session manager: %w", err))
		}
	}

	if a.coingecko != nil {
		a.coingecko.Close()
	}

	if a.redisStore != nil {
		if err := a.redisStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close NATS: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}
