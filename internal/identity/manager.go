package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"continuity.org/internal/obs"
)

// EventKind names an auth-state change.
type EventKind string

const (
	EventSignedIn         EventKind = "signed_in"
	EventSignedOut        EventKind = "signed_out"
	EventTokenRefreshed   EventKind = "token_refreshed"
	EventUserUpdated      EventKind = "user_updated"
	EventResolutionFailed EventKind = "resolution_failed"
)

// ParseEventKind validates an inbound auth-state notification.
func ParseEventKind(raw string) (EventKind, bool) {
	switch k := EventKind(raw); k {
	case EventSignedIn, EventSignedOut, EventTokenRefreshed, EventUserUpdated:
		return k, true
	default:
		return "", false
	}
}

// Event is delivered to observers.
type Event struct {
	Kind       EventKind
	Session    *Session
	Resolution Resolution
	Err        error
}

// Observer receives events synchronously; it must not block.
type Observer func(Event)

// Manager is the application's auth context: it resolves sessions, caches
// the result for the session's lifetime and notifies registered observers.
type Manager struct {
	resolver  *Resolver
	cache     Cache
	signOuter SignOuter
	now       func() time.Time
	maxTTL    time.Duration
	log       *zap.Logger

	mu        sync.RWMutex
	observers map[int]Observer
	next      int
}

// ManagerOption configures Manager behavior.
type ManagerOption func(*Manager)

// WithCache replaces the default in-memory cache.
func WithCache(c Cache) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.cache = c
		}
	}
}

// WithSignOuter wires the auth service used by SignOut.
func WithSignOuter(s SignOuter) ManagerOption {
	return func(m *Manager) { m.signOuter = s }
}

// WithMaxTTL caps how long a resolution is cached when the session expiry is unknown or far away.
func WithMaxTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.maxTTL = d
		}
	}
}

// WithManagerClock overrides time source (useful for tests).
func WithManagerClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager constructs the auth context.
func NewManager(resolver *Resolver, opts ...ManagerOption) (*Manager, error) {
	if resolver == nil {
		return nil, errors.New("identity: resolver is required")
	}
	m := &Manager{
		resolver:  resolver,
		cache:     NewMemoryCache(),
		now:       time.Now,
		maxTTL:    time.Hour,
		log:       obs.Logger(),
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Subscribe registers fn and returns a func that removes it.
func (m *Manager) Subscribe(fn Observer) (unsubscribe func()) {
	m.mu.Lock()
	id := m.next
	m.next++
	m.observers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) publish(evt Event) {
	m.mu.RLock()
	obsCopy := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		obsCopy = append(obsCopy, fn)
	}
	m.mu.RUnlock()
	for _, fn := range obsCopy {
		fn(evt)
	}
}

// Bootstrap returns the identity for s, resolving it on a cache miss.
// A resolution whose context ended before completion is discarded.
func (m *Manager) Bootstrap(ctx context.Context, s *Session) (Resolution, error) {
	if s == nil {
		return Resolution{Identity: Unauthenticated{}}, nil
	}
	key := s.Key()
	if key != "" {
		cached, ok, err := m.cache.Get(ctx, key)
		if err != nil {
			m.log.Warn("identity cache read failed", zap.Error(err))
		} else if ok {
			cached.Session = s
			return cached, nil
		}
	}

	res, err := m.resolver.Resolve(ctx, s)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Resolution{Identity: Unauthenticated{}}, ctxErr
	}
	if err != nil {
		m.invalidate(ctx, key)
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrAuthFailed) {
			m.publish(Event{Kind: EventResolutionFailed, Session: s, Resolution: res, Err: err})
		}
		return res, err
	}

	if res.Refreshed(s) {
		m.invalidate(ctx, key)
		key = res.Session.Key()
		m.store(ctx, key, res)
		m.publish(Event{Kind: EventTokenRefreshed, Session: res.Session, Resolution: res})
		return res, nil
	}
	m.store(ctx, key, res)
	return res, nil
}

// HandleAuthEvent applies an auth-state change. Everything except sign-out
// drops the cached identity and rebuilds it wholesale.
func (m *Manager) HandleAuthEvent(ctx context.Context, kind EventKind, s *Session) (Resolution, error) {
	key := s.Key()
	if kind == EventSignedOut {
		m.invalidate(ctx, key)
		m.publish(Event{Kind: EventSignedOut, Session: s, Resolution: Resolution{Identity: Unauthenticated{}}})
		return Resolution{Identity: Unauthenticated{}}, nil
	}
	m.invalidate(ctx, key)
	res, err := m.Bootstrap(ctx, s)
	if err != nil {
		return res, err
	}
	m.publish(Event{Kind: kind, Session: res.Session, Resolution: res})
	return res, nil
}

// SignOut revokes the session with the auth service and forgets the identity.
// The cached identity is cleared even when revocation fails.
func (m *Manager) SignOut(ctx context.Context, s *Session) error {
	var err error
	if m.signOuter != nil && s != nil && s.AccessToken != "" {
		err = m.signOuter.SignOut(ctx, s.AccessToken)
	}
	_, _ = m.HandleAuthEvent(ctx, EventSignedOut, s)
	return err
}

func (m *Manager) store(ctx context.Context, key string, res Resolution) {
	if key == "" {
		return
	}
	ttl := m.maxTTL
	if res.Session != nil && !res.Session.ExpiresAt.IsZero() {
		if until := res.Session.ExpiresAt.Sub(m.now()); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return
	}
	if err := m.cache.Set(ctx, key, res, ttl); err != nil {
		m.log.Warn("identity cache write failed", zap.Error(err))
	}
}

func (m *Manager) invalidate(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := m.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
		m.log.Warn("identity cache delete failed", zap.Error(err))
	}
}
