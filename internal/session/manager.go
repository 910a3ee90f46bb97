package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coin-pulse/internal/synchronizer"
	"github.com/coin-pulse/pkg/config"
	"github.com/coin-pulse/pkg/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ListFactory builds the asset list of a new session
type ListFactory func() *synchronizer.AssetList

// DetailFactory builds the detail synchronizer for one symbol
type DetailFactory func(symbol string) *synchronizer.AssetDetail

// Session holds the synchronizers of one client
type Session struct {
	ID      string
	Created time.Time
	List    *synchronizer.AssetList

	newDetail DetailFactory
	listOnce  sync.Once

	mu       sync.Mutex
	details  map[string]*synchronizer.AssetDetail
	lastSeen time.Time
}

// EnsureList runs the initial list load once per session
func (s *Session) EnsureList(ctx context.Context) {
	s.listOnce.Do(func() {
		s.List.Load(ctx)
	})
}

// Detail returns the detail synchronizer for symbol, creating it on first
// use. created reports whether this call created it.
func (s *Session) Detail(symbol string) (d *synchronizer.AssetDetail, created bool) {
	symbol = strings.ToUpper(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.details[symbol]; ok {
		return d, false
	}
	d = s.newDetail(symbol)
	s.details[symbol] = d
	return d, true
}

// LookupDetail returns an existing detail synchronizer
func (s *Session) LookupDetail(symbol string) (*synchronizer.AssetDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.details[strings.ToUpper(symbol)]
	return d, ok
}

// LastSeen returns when the session was last used
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Manager tracks client sessions and evicts idle ones
type Manager struct {
	newList   ListFactory
	newDetail DetailFactory
	idle      time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *logrus.Entry

	// Session tracking
	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	// Control
	runMu   sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a new session manager
func NewManager(
	newList ListFactory,
	newDetail DetailFactory,
	cfg *config.SessionConfig,
	logger *logrus.Logger,
) *Manager {
	return &Manager{
		newList:   newList,
		newDetail: newDetail,
		idle:      cfg.IdleTimeout,
		interval:  cfg.SweepInterval,
		now:       time.Now,
		logger:    logger.WithField("component", "session-manager"),
		sessions:  make(map[string]*Session),
	}
}

// Start starts the idle sweep loop
func (sm *Manager) Start(ctx context.Context) error {
	sm.runMu.Lock()
	defer sm.runMu.Unlock()

	if sm.running {
		return fmt.Errorf("session manager already running")
	}

	sm.done = make(chan struct{})
	sm.running = true

	if sm.idle > 0 && sm.interval > 0 {
		sm.wg.Add(1)
		go sm.sweepLoop(ctx)
	}

	sm.logger.WithFields(logrus.Fields{
		"idle_timeout": sm.idle,
		"interval":     sm.interval,
	}).Info("Session manager started")
	return nil
}

// Stop stops the session manager
func (sm *Manager) Stop() error {
	sm.runMu.Lock()
	defer sm.runMu.Unlock()

	if !sm.running {
		return nil
	}

	close(sm.done)
	sm.running = false
	sm.wg.Wait()

	sm.logger.Info("Session manager stopped")
	return nil
}

func (sm *Manager) sweepLoop(ctx context.Context) {
	defer sm.wg.Done()

	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sm.done:
			return
		case <-ticker.C:
			if n := sm.sweep(); n > 0 {
				sm.logger.WithField("evicted", n).Debug("Evicted idle sessions")
			}
		}
	}
}

// sweep drops sessions idle for longer than the timeout
func (sm *Manager) sweep() int {
	cutoff := sm.now().Add(-sm.idle)

	sm.sessionsMu.Lock()
	defer sm.sessionsMu.Unlock()

	evicted := 0
	for id, s := range sm.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(sm.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Create starts a new session
func (sm *Manager) Create() *Session {
	now := sm.now()
	s := &Session{
		ID:        uuid.New().String(),
		Created:   now,
		List:      sm.newList(),
		newDetail: sm.newDetail,
		details:   make(map[string]*synchronizer.AssetDetail),
		lastSeen:  now,
	}

	sm.sessionsMu.Lock()
	sm.sessions[s.ID] = s
	sm.sessionsMu.Unlock()

	sm.logger.WithField("session", s.ID).Debug("Session created")
	return s
}

// Get returns a session and marks it as used
func (sm *Manager) Get(id string) (*Session, bool) {
	sm.sessionsMu.RLock()
	s, ok := sm.sessions[id]
	sm.sessionsMu.RUnlock()

	if ok {
		s.touch(sm.now())
	}
	return s, ok
}

// Delete removes a session
func (sm *Manager) Delete(id string) bool {
	sm.sessionsMu.Lock()
	defer sm.sessionsMu.Unlock()

	if _, ok := sm.sessions[id]; !ok {
		return false
	}
	delete(sm.sessions, id)
	return true
}

// PublishTick applies a live tick to the asset list of every session, so
// loaded rows follow the stream without a reload
func (sm *Manager) PublishTick(tick models.Tick) error {
	sm.sessionsMu.RLock()
	lists := make([]*synchronizer.AssetList, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		lists = append(lists, s.List)
	}
	sm.sessionsMu.RUnlock()

	for _, l := range lists {
		l.ApplyTick(tick)
	}
	return nil
}

// GetStats returns session manager statistics
func (sm *Manager) GetStats() map[string]interface{} {
	sm.sessionsMu.RLock()
	total := len(sm.sessions)
	sm.sessionsMu.RUnlock()

	sm.runMu.Lock()
	running := sm.running
	sm.runMu.Unlock()

	return map[string]interface{}{
		"total_sessions": total,
		"running":        running,
	}
}
