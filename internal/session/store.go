package session

import (
	"context"
	"sync"
	"time"
)

// entry wraps a Session with its own mutex so that mutating one session
// never blocks lookups or mutations of another. Readers that only need to
// look up the entry take the Store's map lock; the Gateway takes the
// per-session lock before mutating the Session itself (§9).
type entry struct {
	mu       sync.Mutex
	session  Session
	expireAt time.Time
}

// Store is the process-wide, TTL-scoped session map. Safe for concurrent
// use: a map-level RWMutex guards insert/evict, while mutation of an
// individual session is guarded by that session's own mutex.
type Store struct {
	ttl time.Duration

	mapMu   sync.RWMutex
	entries map[string]*entry

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewStore constructs a Store with the given TTL. Call StartSweeper to run
// the background eviction loop; it is optional (a Store with no sweeper
// still honors TTL lazily, treating expired entries as not-found on
// LoadOrCreate).
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:       ttl,
		entries:   make(map[string]*entry),
		stopSweep: make(chan struct{}),
	}
}

// LoadOrCreate returns the session for id, creating a new empty one if id is
// empty, unknown, or expired. The bool return reports whether an existing,
// unexpired session was found.
func (s *Store) LoadOrCreate(_ context.Context, id string) (Session, bool) {
	now := time.Now()

	if id != "" {
		s.mapMu.RLock()
		e, ok := s.entries[id]
		s.mapMu.RUnlock()
		if ok {
			e.mu.Lock()
			expired := now.After(e.expireAt)
			if !expired {
				sess := e.session
				e.mu.Unlock()
				return sess, true
			}
			e.mu.Unlock()
			s.evict(id)
		}
	}

	newID := id
	if newID == "" {
		newID = NewConversationID()
	}
	sess := Session{
		ConversationID:     newID,
		AccumulatedContext: map[string]any{},
		CreatedAt:          now,
		LastSeenAt:         now,
	}
	s.insert(newID, sess)
	return sess, false
}

// Save persists sess, refreshing its TTL.
func (s *Store) Save(_ context.Context, sess Session) {
	sess.LastSeenAt = time.Now()
	s.mapMu.RLock()
	e, ok := s.entries[sess.ConversationID]
	s.mapMu.RUnlock()
	if !ok {
		s.insert(sess.ConversationID, sess)
		return
	}
	e.mu.Lock()
	e.session = sess
	e.expireAt = time.Now().Add(s.ttl)
	e.mu.Unlock()
}

// WithLock loads sess by id (creating it if absent), holds that session's
// per-entry lock for the duration of fn, persists whatever fn returns, and
// refreshes the TTL. This is the single read-modify-write primitive the
// Gateway uses to serialize two requests for the same conversationId
// (§5 Scheduling model).
func (s *Store) WithLock(_ context.Context, id string, fn func(Session) Session) Session {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	updated := fn(e.session)
	updated.LastSeenAt = time.Now()
	e.session = updated
	e.expireAt = time.Now().Add(s.ttl)
	return updated
}

func (s *Store) entryFor(id string) *entry {
	s.mapMu.RLock()
	e, ok := s.entries[id]
	s.mapMu.RUnlock()
	if ok {
		return e
	}
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e
	}
	e = &entry{
		session:  Session{ConversationID: id, AccumulatedContext: map[string]any{}, CreatedAt: time.Now()},
		expireAt: time.Now().Add(s.ttl),
	}
	s.entries[id] = e
	return e
}

func (s *Store) insert(id string, sess Session) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.entries[id] = &entry{session: sess, expireAt: time.Now().Add(s.ttl)}
}

func (s *Store) evict(id string) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	delete(s.entries, id)
}

// StartSweeper runs a low-priority background loop that evicts expired
// sessions every interval, until the returned stop function is called.
func (s *Store) StartSweeper(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func (s *Store) sweep() {
	now := time.Now()
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	for id, e := range s.entries {
		e.mu.Lock()
		expired := now.After(e.expireAt)
		e.mu.Unlock()
		if expired {
			delete(s.entries, id)
		}
	}
}

// Len reports the current number of tracked sessions (including not-yet-
// swept expired ones); primarily useful for tests.
func (s *Store) Len() int {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return len(s.entries)
}
