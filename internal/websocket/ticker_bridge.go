package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coin-pulse/internal/market"
	"github.com/coin-pulse/pkg/models"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// TickSink receives every tick relayed to a client
type TickSink interface {
	PublishTick(tick models.Tick) error
}

// MultiSink fans a tick out to several sinks and returns the first error
type MultiSink []TickSink

// PublishTick implements TickSink
func (m MultiSink) PublishTick(tick models.Tick) error {
	var first error
	for _, sink := range m {
		if err := sink.PublishTick(tick); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TickerBridge relays live ticks for one symbol per websocket client. Each
// client owns its own subscriber handle, released when the socket closes.
type TickerBridge struct {
	subscriber *market.Subscriber
	sink       TickSink
	logger     *logrus.Entry

	mu      sync.RWMutex
	clients map[*TickerClient]bool
}

// TickerClient is one websocket connection watching one symbol
type TickerClient struct {
	symbol string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	bridge *TickerBridge
	sub    *market.Subscription

	closeOnce sync.Once
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewTickerBridge creates a bridge. sink may be nil.
func NewTickerBridge(subscriber *market.Subscriber, sink TickSink, logger *logrus.Logger) *TickerBridge {
	return &TickerBridge{
		subscriber: subscriber,
		sink:       sink,
		logger:     logger.WithField("component", "ticker-bridge"),
		clients:    make(map[*TickerClient]bool),
	}
}

// HandleTicker upgrades the request and streams ticks for symbol until the
// client disconnects
func (b *TickerBridge) HandleTicker(w http.ResponseWriter, r *http.Request, symbol string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WithError(err).Error("Failed to upgrade connection")
		return
	}

	c := &TickerClient{
		symbol: strings.ToUpper(symbol),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		bridge: b,
	}

	c.sub = b.subscriber.Subscribe(c.symbol, c.deliver)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"symbol":       c.symbol,
		"subscription": c.sub.ID(),
	}).Debug("Ticker client connected")

	go c.writePump()
	go c.readPump()
}

// GetConnectionCount returns the number of active connections
func (b *TickerBridge) GetConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client
func (b *TickerBridge) Close() {
	b.mu.RLock()
	clients := make([]*TickerClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (b *TickerBridge) remove(c *TickerClient) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
}

// deliver runs on the subscriber's callback path and must not block
func (c *TickerClient) deliver(tick models.Tick) {
	if sink := c.bridge.sink; sink != nil {
		if err := sink.PublishTick(tick); err != nil {
			c.bridge.logger.WithError(err).WithField("symbol", tick.Symbol).Warn("Failed to publish tick")
		}
	}

	data, err := json.Marshal(tick)
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.bridge.logger.WithField("symbol", c.symbol).Debug("Client too slow, dropping tick")
	}
}

func (c *TickerClient) close() {
	c.closeOnce.Do(func() {
		c.sub.Unsubscribe()
		close(c.done)
		c.bridge.remove(c)
		c.conn.Close()
	})
}

func (c *TickerClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
					c.bridge.logger.WithError(err).Debug("Write error")
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; the stream is one-way
func (c *TickerClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
				websocket.CloseNormalClosure) {
				c.bridge.logger.WithError(err).Debug("WebSocket closed")
			}
			return
		}
	}
}
