// Package session keeps per-conversation dialogue state in process memory.
//
// Each session key owns its own one-slot semaphore, so turns of the same session run one
// at a time while different sessions proceed independently. The lock is held for the
// whole turn including cart store I/O. Multi-step cart sequences are still not atomic
// against another session sharing the same cart owner (one user on two devices).
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
)

// ErrStoreClosed is returned by every call made after Close.
var ErrStoreClosed = errors.New("session store closed")

const (
	// DefaultTTL is the idle time after which a session is forgotten.
	DefaultTTL = 30 * time.Minute
	// DefaultMaxEntries caps the number of remembered sessions.
	DefaultMaxEntries = 10000
)

// Context is the conversational memory of one session.
type Context struct {
	// LastSearch holds the candidates of the latest search, empty once consumed.
	LastSearch []catalog.Product
	// LastAdded is the product most recently put in the cart.
	LastAdded *catalog.Product
	// PendingQuantity is applied when a search candidate is confirmed. Always ≥ 1.
	PendingQuantity int
}

// NewSearch replaces the candidates and resets the pending quantity.
func (c *Context) NewSearch(products []catalog.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	c.LastSearch = append([]catalog.Product(nil), products...)
	c.PendingQuantity = quantity
}

// Added records a cart addition, consuming the search candidates.
func (c *Context) Added(product catalog.Product) {
	p := product
	c.LastAdded = &p
	c.LastSearch = nil
	c.PendingQuantity = 1
}

// Clear forgets everything except the defaults.
func (c *Context) Clear() {
	c.LastSearch = nil
	c.LastAdded = nil
	c.PendingQuantity = 1
}

func (c Context) clone() Context {
	out := Context{
		LastSearch:      append([]catalog.Product(nil), c.LastSearch...),
		PendingQuantity: c.PendingQuantity,
	}
	if c.LastAdded != nil {
		p := *c.LastAdded
		out.LastAdded = &p
	}
	return out
}

// keyLock serialises the turns of one key. It lives outside the LRU and is refcounted,
// so eviction of a session's state never releases a lock a turn still holds.
type keyLock struct {
	sem  chan struct{}
	refs int
}

// Options configures eviction. Zero values mean the defaults.
type Options struct {
	TTL        time.Duration
	MaxEntries int
}

// Store is a keyed, per-entry locked session table with LRU and idle TTL eviction.
type Store struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *Context]
	locks   map[string]*keyLock
	closed  bool
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	return &Store{
		entries: expirable.NewLRU[string, *Context](opts.MaxEntries, nil, opts.TTL),
		locks:   make(map[string]*keyLock),
	}
}

// Key derives the session key: the session id, else the user id, else the shared bucket.
func Key(sessionID, userID string) string {
	switch {
	case sessionID != "":
		return sessionID
	case userID != "":
		return "user:" + userID
	default:
		return "anonymous"
	}
}

// lock registers interest in key's lock. When mustExist is set and no state is stored
// for key, it returns nil without registering.
func (s *Store) lock(key string, mustExist bool) (*keyLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if mustExist && !s.entries.Contains(key) {
		if _, busy := s.locks[key]; !busy {
			return nil, nil
		}
	}
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	return l, nil
}

func (s *Store) unlock(key string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

func (l *keyLock) enter(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *keyLock) leave() { <-l.sem }

// load returns key's state, creating it on first use and refreshing its TTL.
func (s *Store) load(key string) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.entries.Get(key)
	if !ok {
		state = &Context{PendingQuantity: 1}
	}
	s.entries.Add(key, state)
	return state
}

// save puts state back after a turn; it may have been evicted while the turn ran.
func (s *Store) save(key string, state *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.entries.Add(key, state)
	}
}

// With runs fn with exclusive access to the session's context. The entry is created on
// first use. Waiting for a busy session honours ctx cancellation.
func (s *Store) With(ctx context.Context, key string, fn func(*Context) error) error {
	l, err := s.lock(key, false)
	if err != nil {
		return err
	}
	defer s.unlock(key, l)

	if err := l.enter(ctx); err != nil {
		return err
	}
	defer l.leave()

	state := s.load(key)
	if state.PendingQuantity < 1 {
		state.PendingQuantity = 1
	}
	err = fn(state)
	s.save(key, state)
	return err
}

// Peek returns a copy of the session's context without creating it.
func (s *Store) Peek(ctx context.Context, key string) (Context, bool, error) {
	l, err := s.lock(key, true)
	if err != nil || l == nil {
		return Context{}, false, err
	}
	defer s.unlock(key, l)

	if err := l.enter(ctx); err != nil {
		return Context{}, false, err
	}
	defer l.leave()

	s.mu.Lock()
	state, ok := s.entries.Peek(key)
	s.mu.Unlock()
	if !ok {
		return Context{}, false, nil
	}
	return state.clone(), true, nil
}

// Reset drops a session.
func (s *Store) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Remove(key)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Close drops all sessions and rejects further use.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries.Purge()
}
