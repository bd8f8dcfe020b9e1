package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/cart-store/internal/port"
)

// DefaultSession maps to the bare cart key.
const DefaultSession = ""

const (
	DefaultSessionLimit = 10000
	DefaultSessionTTL   = 30 * time.Minute
)

// Sessions hands out one initialized CartStore per session id. At most limit
// stores are kept in memory and a store idle for ttl is dropped; the next
// request for that session reloads it from storage.
type Sessions struct {
	catalog  port.CatalogAPI
	kv       port.PersistentKV
	notifier port.Notifier
	baseKey  string
	log      logrus.FieldLogger

	limit int
	ttl   time.Duration

	stores *expirable.LRU[string, *CartStore]
	loads  singleflight.Group
}

type SessionOption func(*Sessions)

// WithSessionLimit bounds the number of cached stores and their idle lifetime.
func WithSessionLimit(limit int, ttl time.Duration) SessionOption {
	return func(s *Sessions) {
		if limit > 0 {
			s.limit = limit
		}
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewSessions(catalog port.CatalogAPI, kv port.PersistentKV, notifier port.Notifier, baseKey string, log logrus.FieldLogger, opts ...SessionOption) *Sessions {
	if baseKey == "" {
		baseKey = DefaultCartKey
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Sessions{
		catalog:  catalog,
		kv:       kv,
		notifier: notifier,
		baseKey:  baseKey,
		log:      log,
		limit:    DefaultSessionLimit,
		ttl:      DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stores = expirable.NewLRU[string, *CartStore](s.limit, func(sessionID string, _ *CartStore) {
		s.log.WithField("session", sessionID).Debug("cart session evicted")
	}, s.ttl)
	return s
}

// KeyFor returns the storage key of a session's cart.
func KeyFor(baseKey, sessionID string) string {
	if sessionID == DefaultSession {
		return baseKey
	}
	return baseKey + ":" + sessionID
}

// Get returns the session's store, loading it from storage on first use.
// Concurrent first loads of one session share a single storage read and
// loads of different sessions do not wait on each other. A store that fails
// to load is not cached.
func (s *Sessions) Get(ctx context.Context, sessionID string) (*CartStore, error) {
	if store, ok := s.touch(sessionID); ok {
		return store, nil
	}

	v, err, _ := s.loads.Do(sessionID, func() (any, error) {
		if store, ok := s.touch(sessionID); ok {
			return store, nil
		}
		store := NewCartStore(s.catalog, s.kv, s.notifier, KeyFor(s.baseKey, sessionID), s.log)
		if _, err := store.Initialize(ctx); err != nil {
			return nil, err
		}
		s.stores.Add(sessionID, store)
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CartStore), nil
}

// touch returns a cached store and restarts its idle timer.
func (s *Sessions) touch(sessionID string) (*CartStore, bool) {
	store, ok := s.stores.Get(sessionID)
	if !ok {
		return nil, false
	}
	s.stores.Add(sessionID, store)
	return store, true
}

func (s *Sessions) Len() int {
	return s.stores.Len()
}
