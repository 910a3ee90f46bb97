package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/coin-pulse/pkg/config"
	"github.com/coin-pulse/pkg/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// TickPublisher fans normalized live ticks out over NATS on
// <prefix>.<SYMBOL> subjects.
type TickPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *logrus.Entry

	// Subscriptions
	subs   map[string]*nats.Subscription
	subsMu sync.Mutex
}

// NewTickPublisher connects to NATS
func NewTickPublisher(cfg *config.NATSConfig, logger *logrus.Logger) (*TickPublisher, error) {
	log := logger.WithField("component", "nats")
	opts := []nats.Option{
		nats.Name("coin-pulse"),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = "ticks"
	}

	return &TickPublisher{
		conn:   conn,
		prefix: prefix,
		logger: log,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Subject returns the subject ticks for symbol are published on
func (tp *TickPublisher) Subject(symbol string) string {
	return Subject(tp.prefix, symbol)
}

// Subject builds <prefix>.<SYMBOL>
func Subject(prefix, symbol string) string {
	return fmt.Sprintf("%s.%s", prefix, strings.ToUpper(symbol))
}

// PublishTick publishes one tick
func (tp *TickPublisher) PublishTick(tick models.Tick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}
	if err := tp.conn.Publish(tp.Subject(tick.Symbol), data); err != nil {
		return fmt.Errorf("failed to publish tick: %w", err)
	}
	return nil
}

// SubscribeTicks delivers ticks for the given symbols, or every symbol when
// none are given.
func (tp *TickPublisher) SubscribeTicks(handler func(models.Tick), symbols ...string) error {
	subjects := []string{tp.prefix + ".>"}
	if len(symbols) > 0 {
		subjects = subjects[:0]
		for _, symbol := range symbols {
			subjects = append(subjects, tp.Subject(symbol))
		}
	}

	for _, subj := range subjects {
		sub, err := tp.conn.Subscribe(subj, func(msg *nats.Msg) {
			var tick models.Tick
			if err := json.Unmarshal(msg.Data, &tick); err != nil {
				tp.logger.WithError(err).WithField("subject", msg.Subject).Warn("Dropping malformed tick")
				return
			}
			handler(tick)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subj, err)
		}

		tp.subsMu.Lock()
		tp.subs[subj] = sub
		tp.subsMu.Unlock()
	}
	return nil
}

// IsConnected checks if NATS is connected
func (tp *TickPublisher) IsConnected() bool {
	return tp.conn.IsConnected()
}

// Close drops subscriptions and closes the connection
func (tp *TickPublisher) Close() error {
	tp.subsMu.Lock()
	for _, sub := range tp.subs {
		sub.Unsubscribe()
	}
	tp.subs = make(map[string]*nats.Subscription)
	tp.subsMu.Unlock()

	tp.conn.Close()
	return nil
}
