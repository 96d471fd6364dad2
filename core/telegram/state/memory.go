package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/starsbot/core/logger"
)

// DefaultTTL is used when a store is created with a non-positive TTL.
const DefaultTTL = 30 * time.Minute

// UpdateFunc receives the current session (zero value and false when absent or expired)
// and returns the session to store. Returning keep=false removes the session.
type UpdateFunc[S any] func(current S, found bool) (next S, keep bool, err error)

type entry[S any] struct {
	mu      sync.Mutex
	value   S
	present bool
	touched time.Time
	// dead marks an entry already unlinked from the map; holders must retry.
	dead bool
}

// Store is an in-memory session store keyed by Telegram user ID.
// Sessions expire after the configured TTL of inactivity.
type Store[S any] struct {
	mu      sync.Mutex
	entries map[int64]*entry[S]
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore constructs an in-memory Store with the given inactivity TTL.
func NewMemoryStore[S any](ttl time.Duration) *Store[S] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store[S]{
		entries: make(map[int64]*entry[S]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TTL returns the configured inactivity timeout.
func (s *Store[S]) TTL() time.Duration {
	return s.ttl
}

func (s *Store[S]) acquire(userID int64) *entry[S] {
	for {
		s.mu.Lock()
		e, ok := s.entries[userID]
		if !ok {
			e = &entry[S]{}
			s.entries[userID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
	}
}

func (s *Store[S]) expired(e *entry[S], now time.Time) bool {
	return e.present && now.Sub(e.touched) > s.ttl
}

// Update runs fn under the user's lock and stores its result.
// Calls for the same user are serialized in arrival order of lock acquisition;
// calls for different users run independently.
func (s *Store[S]) Update(userID int64, fn UpdateFunc[S]) error {
	e := s.acquire(userID)
	defer e.mu.Unlock()

	now := s.now()
	if s.expired(e, now) {
		var zero S
		e.value, e.present = zero, false
	}

	next, keep, err := fn(e.value, e.present)
	if err != nil {
		s.release(userID, e)
		return err
	}
	if !keep {
		var zero S
		e.value, e.present = zero, false
		s.release(userID, e)
		return nil
	}
	e.value, e.present, e.touched = next, true, s.now()
	return nil
}

// release unlinks an empty entry so idle users do not accumulate. Caller holds e.mu.
func (s *Store[S]) release(userID int64, e *entry[S]) {
	if e.present {
		return
	}
	s.mu.Lock()
	if cur, ok := s.entries[userID]; ok && cur == e {
		delete(s.entries, userID)
	}
	s.mu.Unlock()
	e.dead = true
}

// Get returns a snapshot of the user's session if one exists and has not expired.
// It does not refresh the TTL.
func (s *Store[S]) Get(userID int64) (S, bool) {
	var zero S
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return zero, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead || !e.present || s.expired(e, s.now()) {
		return zero, false
	}
	return e.value, true
}

// Clear removes the user's session.
func (s *Store[S]) Clear(userID int64) {
	_ = s.Update(userID, func(S, bool) (S, bool, error) {
		var zero S
		return zero, false, nil
	})
}

// InProgress reports whether the user currently has a live session.
func (s *Store[S]) InProgress(userID int64) bool {
	_, ok := s.Get(userID)
	return ok
}

// Len returns the number of tracked sessions, including expired ones not yet swept.
func (s *Store[S]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts expired sessions and returns how many were removed.
// Entries locked by an in-flight update are skipped and picked up on the next sweep.
func (s *Store[S]) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.entries {
		if !e.mu.TryLock() {
			continue
		}
		if s.expired(e, now) || !e.present {
			delete(s.entries, id)
			e.dead = true
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (s *Store[S]) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug(ctx, "tg", "fsm.sweep",
					slog.String("status", "ok"),
					slog.Int("evicted", n),
					slog.Int("sessions", s.Len()),
				)
			}
		}
	}
}
