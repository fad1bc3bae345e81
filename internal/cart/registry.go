package cart

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"shopflow/internal/storage"
)

// Registry hands out one Store per shopper session. Idle stores stay cached
// in an LRU and an evicted store is rebuilt from its slot on the next request.
// A store that is evicted while a request still holds it is parked until the
// last holder releases it, so a session never has two live stores over the
// same slot.
type Registry struct {
	mu     sync.Mutex
	slots  storage.Slots
	cache  *lru.Cache
	parked map[string]*entry
	opts   []Option
	log    zerolog.Logger
}

type entry struct {
	store   *Store
	refs    int
	evicted bool
	failed  bool
	ready   chan struct{}
	err     error
}

func NewRegistry(slots storage.Slots, size int, log zerolog.Logger, opts ...Option) (*Registry, error) {
	r := &Registry{
		slots:  slots,
		parked: make(map[string]*entry),
		opts:   append([]Option{WithLogger(log)}, opts...),
		log:    log,
	}
	cache, err := lru.NewWithEvict(size, r.onEvict)
	if err != nil {
		return nil, fmt.Errorf("cart registry: %w", err)
	}
	r.cache = cache
	return r, nil
}

// SessionKey is the slot key of a session cart.
func SessionKey(sessionID string) string {
	if sessionID == "" {
		return StorageKey
	}
	return StorageKey + ":" + sessionID
}

// Acquire returns the session store, loading it from its slot on first use.
// The caller must call release once it is done with the store.
//
// Slot I/O happens outside the registry lock. If the slot cannot be read the
// store is not cached and the error wraps ErrSlotUnavailable.
func (r *Registry) Acquire(ctx context.Context, sessionID string) (st *Store, release func(), err error) {
	r.mu.Lock()
	e, found := r.lookup(sessionID)
	if !found {
		e = &entry{
			store: NewStore(r.slots, SessionKey(sessionID), r.opts...),
			ready: make(chan struct{}),
		}
		r.cache.Add(sessionID, e)
	}
	e.refs++
	r.mu.Unlock()

	if found {
		select {
		case <-e.ready:
		case <-ctx.Done():
			r.release(sessionID, e)
			return nil, nil, ctx.Err()
		}
	} else {
		e.err = e.store.Load(ctx)
		if e.err != nil {
			r.log.Error().Err(e.err).Str("session", sessionID).Msg("cart slot unavailable")
			r.mu.Lock()
			r.drop(sessionID, e)
			r.mu.Unlock()
		}
		close(e.ready)
	}

	if e.err != nil {
		r.release(sessionID, e)
		return nil, nil, e.err
	}
	var once sync.Once
	return e.store, func() { once.Do(func() { r.release(sessionID, e) }) }, nil
}

// Len is the number of cached stores, parked ones excluded.
func (r *Registry) Len() int { return r.cache.Len() }

// lookup must be called with r.mu held.
func (r *Registry) lookup(sessionID string) (*entry, bool) {
	if v, ok := r.cache.Get(sessionID); ok {
		return v.(*entry), true
	}
	if e, ok := r.parked[sessionID]; ok {
		delete(r.parked, sessionID)
		e.evicted = false
		r.cache.Add(sessionID, e)
		return e, true
	}
	return nil, false
}

// drop forgets a store whose hydration failed. Must be called with r.mu held.
func (r *Registry) drop(sessionID string, e *entry) {
	e.failed = true
	if v, ok := r.cache.Peek(sessionID); ok && v.(*entry) == e {
		r.cache.Remove(sessionID)
	}
	if r.parked[sessionID] == e {
		delete(r.parked, sessionID)
	}
}

func (r *Registry) release(sessionID string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs == 0 && e.evicted && r.parked[sessionID] == e {
		delete(r.parked, sessionID)
	}
}

// onEvict runs inside cache calls, which only happen with r.mu held.
func (r *Registry) onEvict(key, value interface{}) {
	e := value.(*entry)
	if e.failed || e.refs == 0 {
		return
	}
	e.evicted = true
	r.parked[key.(string)] = e
}
