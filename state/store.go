package state

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/coordkit/logging"
)

// Store is the shared memory store: keyed opaque values with per-key
// ownership, visibility levels, TTL expiry, and advisory locks.
//
// Locks are advisory only. Set, Get, and Delete never consult the lock
// table; a lock is a cooperative signal of intent, not enforced mutual
// exclusion. Expiry uses an absolute deadline per entry checked lazily on
// access plus a background sweeper, so overwriting a key can never be
// undone by a stale timer.
type Store struct {
	mu       sync.RWMutex
	data     map[string]*entry
	locks    map[string]*lockEntry
	watchers []*watcher
	log      *logging.Logger
	closed   atomic.Bool

	lockTimeout time.Duration
	sweepTicker *time.Ticker
	done        chan struct{}
}

type entry struct {
	value   []byte
	owner   string
	access  Access
	updated time.Time
	ttl     time.Duration
	expires time.Time // Zero means no expiry
}

type lockEntry struct {
	owner   string
	expires time.Time
}

type watcher struct {
	pattern string
	ch      chan *Change
	closed  atomic.Bool
}

// Config configures the store.
type Config struct {
	// SweepInterval is how often expired entries and locks are reaped.
	// Lazy checks on access make expiry visible sooner. Default: 1s.
	SweepInterval time.Duration

	// DefaultLockTimeout applies when Lock is called with no timeout.
	// Default: 30s.
	DefaultLockTimeout time.Duration

	// Logger for audit records. Default: a new logger.
	Logger *logging.Logger
}

// NewStore creates a new shared memory store.
func NewStore(cfg Config) *Store {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Second
	}
	if cfg.DefaultLockTimeout <= 0 {
		cfg.DefaultLockTimeout = DefaultLockTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}

	s := &Store{
		data:        make(map[string]*entry),
		locks:       make(map[string]*lockEntry),
		log:         cfg.Logger.WithComponent("state"),
		lockTimeout: cfg.DefaultLockTimeout,
		sweepTicker: time.NewTicker(cfg.SweepInterval),
		done:        make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// sweepLoop reaps expired entries and locks periodically.
func (s *Store) sweepLoop() {
	for {
		select {
		case <-s.sweepTicker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep removes entries and locks whose deadline has passed.
func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.data {
		if e.expired(now) {
			delete(s.data, key)
			s.notifyWatchers(&Change{Key: key, Operation: OpDelete, Owner: e.owner, Access: e.access, At: now})
		}
	}
	for key, l := range s.locks {
		if now.After(l.expires) {
			delete(s.locks, key)
		}
	}
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Set creates or overwrites the entry, stamping its update time. Any
// caller may overwrite any key; visibility levels gate reads and deletes,
// not writes.
func (s *Store) Set(key string, value []byte, owner string, opts Options) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if owner == "" {
		return ErrInvalidOwner
	}
	if opts.TTL < 0 {
		return ErrInvalidTTL
	}
	if opts.Access == "" {
		opts.Access = AccessPublic
	}
	if !opts.Access.Valid() {
		return ErrInvalidAccess
	}
	if s.closed.Load() {
		return ErrClosed
	}

	// Copy value to prevent external mutation
	val := make([]byte, len(value))
	copy(val, value)

	now := time.Now()
	var expires time.Time
	if opts.TTL > 0 {
		expires = now.Add(opts.TTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = &entry{
		value:   val,
		owner:   owner,
		access:  opts.Access,
		updated: now,
		ttl:     opts.TTL,
		expires: expires,
	}
	s.notifyWatchers(&Change{Key: key, Operation: OpPut, Owner: owner, Access: opts.Access, At: now})
	return nil
}

// Get retrieves a value. Absent and expired keys return ErrNotFound;
// private entries return ErrAccessDenied to anyone but their owner.
func (s *Store) Get(key, requestor string) ([]byte, error) {
	e, err := s.visible("get", key, requestor)
	if err != nil {
		return nil, err
	}

	val := make([]byte, len(e.value))
	copy(val, e.value)
	return val, nil
}

// GetEntry retrieves the full entry snapshot under the same visibility
// rules as Get.
func (s *Store) GetEntry(key, requestor string) (*Entry, error) {
	e, err := s.visible("get", key, requestor)
	if err != nil {
		return nil, err
	}

	val := make([]byte, len(e.value))
	copy(val, e.value)
	return &Entry{
		Key:       key,
		Value:     val,
		Owner:     e.owner,
		Access:    e.access,
		UpdatedAt: e.updated,
		TTL:       e.ttl,
	}, nil
}

// visible looks up a live entry and applies the private-read rule.
func (s *Store) visible(op, key, requestor string) (*entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, ErrNotFound
	}
	if e.access == AccessPrivate && e.owner != requestor {
		s.log.AccessDenied(op, key, requestor, e.owner)
		return nil, ErrAccessDenied
	}
	return e, nil
}

// Delete removes the entry and its lock row. Non-public entries may only
// be deleted by their owner.
func (s *Store) Delete(key, requestor string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.data[key]
	if !ok || e.expired(now) {
		return ErrNotFound
	}
	if e.access != AccessPublic && e.owner != requestor {
		s.log.AccessDenied("delete", key, requestor, e.owner)
		return ErrAccessDenied
	}

	delete(s.data, key)
	delete(s.locks, key)
	s.notifyWatchers(&Change{Key: key, Operation: OpDelete, Owner: e.owner, Access: e.access, At: now})
	return nil
}

// Lock acquires the advisory lock on a key for owner, expiring after
// timeout (DefaultLockTimeout when non-positive). Held by someone else
// returns ErrLockHeld. Re-locking by the current holder succeeds without
// touching the existing expiry. The key itself need not exist.
func (s *Store) Lock(key, owner string, timeout time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if owner == "" {
		return ErrInvalidOwner
	}
	if timeout <= 0 {
		timeout = s.lockTimeout
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.locks[key]; ok && now.Before(existing.expires) {
		if existing.owner == owner {
			return nil
		}
		s.log.LockDenied(key, owner, existing.owner)
		return ErrLockHeld
	}

	s.locks[key] = &lockEntry{owner: owner, expires: now.Add(timeout)}
	return nil
}

// Unlock releases the advisory lock. Only the current holder may release;
// an expired or absent lock returns ErrLockNotHeld.
func (s *Store) Unlock(key, owner string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok || time.Now().After(l.expires) {
		return ErrLockNotHeld
	}
	if l.owner != owner {
		s.log.LockDenied(key, owner, l.owner)
		return ErrLockNotHeld
	}

	delete(s.locks, key)
	return nil
}

// LockHolder returns the current holder of a live lock on the key.
func (s *Store) LockHolder(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.locks[key]
	if !ok || time.Now().After(l.expires) {
		return "", false
	}
	return l.owner, true
}

// Keys returns all live keys listed for the requestor: public entries
// plus the requestor's own, sorted. Protected entries owned by others are
// readable by key but not enumerated.
func (s *Store) Keys(requestor string) []string {
	if s.closed.Load() {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var keys []string
	for key, e := range s.data {
		if e.expired(now) {
			continue
		}
		if e.access != AccessPublic && e.owner != requestor {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GetStatus returns entry and lock counts broken down by access level.
func (s *Store) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	status := Status{ByAccess: make(map[Access]int)}
	for _, e := range s.data {
		if e.expired(now) {
			continue
		}
		status.Entries++
		status.ByAccess[e.access]++
	}
	for _, l := range s.locks {
		if now.After(l.expires) {
			continue
		}
		status.Locks++
	}
	return status
}

// Watch watches for changes to keys matching a pattern.
// The channel is closed when the store closes.
func (s *Store) Watch(pattern string) (<-chan *Change, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ch := make(chan *Change, 64)
	w := &watcher{pattern: pattern, ch: ch}

	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	return ch, nil
}

// notifyWatchers sends notifications to matching watchers.
// Must be called with lock held.
func (s *Store) notifyWatchers(c *Change) {
	for _, w := range s.watchers {
		if w.closed.Load() {
			continue
		}
		if MatchPattern(w.pattern, c.Key) {
			select {
			case w.ch <- c:
			default:
				// Channel full, drop notification
			}
		}
	}
}

// Close shuts down the store.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)
	s.sweepTicker.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.watchers {
		if !w.closed.Swap(true) {
			close(w.ch)
		}
	}
	s.watchers = nil
	s.data = nil
	s.locks = nil

	return nil
}
