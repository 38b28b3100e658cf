// Package session keeps the per-browser state of signed-in users: one
// navigation holder and one assistant conversation each, all in memory.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"callpulse/internal/assistant"
	"callpulse/internal/events"
	"callpulse/internal/navigation"
	"callpulse/metrics"
)

// Session is one signed-in browser.
type Session struct {
	ID        string
	User      string
	CreatedAt time.Time
	Nav       *navigation.Holder
	Chat      *assistant.Conversation

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen is the time of the last request on this session.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Options configure a Manager.
type Options struct {
	TTL    time.Duration
	Chrome navigation.Chrome
	Now    func() time.Time
}

// Manager owns the session table.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	lookup  navigation.Lookup
	asst    *assistant.Assistant
	bus     *events.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options
}

func NewManager(lookup navigation.Lookup, asst *assistant.Assistant, bus *events.Bus, m *metrics.Metrics, logger *zap.Logger, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		lookup:   lookup,
		asst:     asst,
		bus:      bus,
		metrics:  m,
		logger:   logger.Named("session"),
		opts:     opts,
	}
}

// Create starts a session for user in the initial navigation state.
func (m *Manager) Create(user string) *Session {
	now := m.opts.Now()
	s := &Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: now,
		lastSeen:  now,
	}
	s.Nav = navigation.NewHolder(m.lookup, m.observer(s.ID), m.opts.Chrome)
	if m.asst != nil {
		s.Chat = m.asst.NewConversation()
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	m.publish(events.Event{Kind: events.KindSignIn, Subject: user, Session: s.ID})
	m.logger.Info("session started", zap.String("session", s.ID), zap.String("user", user))
	return s
}

// Get returns the live session for id and refreshes its idle timer. Expired
// sessions are removed and reported as missing.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := m.opts.Now()
	if now.Sub(s.LastSeen()) > m.opts.TTL {
		m.remove(id, events.KindSessionExpired)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Delete ends a session (sign-out). Its navigation state is discarded.
func (m *Manager) Delete(id string) bool {
	return m.remove(id, events.KindSignOut)
}

func (m *Manager) remove(id, kind string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Nav.Reset()
	m.metrics.SetActiveSessions(n)
	if kind == events.KindSessionExpired {
		m.metrics.RecordSessionExpired(1)
	}
	m.publish(events.Event{Kind: kind, Subject: s.User, Session: id})
	m.logger.Info("session ended", zap.String("session", id), zap.String("reason", kind))
	return true
}

// Len reports the number of sessions, expired ones included until swept.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes every session idle for longer than the TTL and returns how
// many were removed.
func (m *Manager) Sweep() int {
	now := m.opts.Now()
	var expired []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.opts.TTL {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()
	n := 0
	for _, id := range expired {
		if m.remove(id, events.KindSessionExpired) {
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired sessions swept", zap.Int("count", n))
			}
		}
	}
}

// observer turns navigation events of one session into metrics, log lines
// and bus events.
func (m *Manager) observer(sessionID string) navigation.Observer {
	return navigation.ObserverFunc(func(ev navigation.Event) {
		if ev.Kind.Transition() {
			m.metrics.RecordTransition()
		}
		switch ev.Kind {
		case navigation.EventLookupMiss:
			m.metrics.RecordLookupMiss()
			m.logger.Warn("location lookup miss",
				zap.String("session", sessionID),
				zap.String("location", ev.LocationID),
				zap.String("origin", string(ev.Origin)),
			)
		case navigation.EventSelectionOverridden:
			m.metrics.RecordOverride()
			m.logger.Info("overview selection ignored, portfolio selection shown",
				zap.String("session", sessionID),
				zap.String("location", ev.LocationID),
			)
		}
		m.publish(events.Event{
			Kind:    string(ev.Kind),
			Subject: ev.LocationID,
			Session: sessionID,
			Detail:  string(ev.Page),
		})
	})
}

func (m *Manager) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}
