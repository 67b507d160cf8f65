// Package matchstate is the Match State Store: per-device consecutive-match
// counters, serialised per device_id so concurrent fixes from distinct
// devices never block one another while fixes from the same device are
// applied one at a time. Concurrent calls for one device take its mutex in
// no guaranteed order.
package matchstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/store"
)

// deviceLock is a per-device mutex, created lazily and never removed — the
// number of distinct devices a deployment ever sees is bounded and small
// relative to fix volume, so leaking one mutex per device is acceptable.
type deviceLock struct {
	mu sync.Mutex
}

// Store holds one match counter per device, each guarded by its own mutex
// so that unrelated devices never contend with one another.
type Store struct {
	mu       sync.Mutex // guards locks and counters maps themselves, not their contents
	locks    map[string]*deviceLock
	counters map[string]model.MatchCounter
	backing  store.Store
}

func New(backing store.Store) *Store {
	return &Store{
		locks:    make(map[string]*deviceLock),
		counters: make(map[string]model.MatchCounter),
		backing:  backing,
	}
}

// Bootstrap loads every persisted match counter into memory.
func (s *Store) Bootstrap(ctx context.Context) error {
	counters, err := s.backing.LoadMatchCounters(ctx)
	if err != nil {
		return fmt.Errorf("matchstate: bootstrap: %w: %v", model.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range counters {
		s.counters[c.DeviceID] = c
	}
	return nil
}

func (s *Store) lockFor(deviceID string) *deviceLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[deviceID]
	if !ok {
		l = &deviceLock{}
		s.locks[deviceID] = l
	}
	return l
}

// Get returns the current counter for a device, if any.
func (s *Store) Get(deviceID string) (model.MatchCounter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[deviceID]
	return c, ok
}

// Advance applies the counter-update policy for a single matched or
// unmatched fix against trackID, atomically with respect to any other call
// for the same deviceID. It returns the resulting consecutive-match count
// (0 if the fix was unmatched, which also deletes any existing counter).
func (s *Store) Advance(ctx context.Context, deviceID, trackID string, matched bool, matchedIndex int) (int, error) {
	dl := s.lockFor(deviceID)
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if !matched {
		if err := s.backing.DeleteMatchCounter(ctx, deviceID); err != nil {
			return 0, fmt.Errorf("matchstate: advance %s: %w: %v", deviceID, model.ErrStoreUnavailable, err)
		}
		s.mu.Lock()
		delete(s.counters, deviceID)
		s.mu.Unlock()
		return 0, nil
	}

	s.mu.Lock()
	existing, ok := s.counters[deviceID]
	s.mu.Unlock()

	next := model.MatchCounter{
		DeviceID:         deviceID,
		TrackID:          trackID,
		LastMatchedIndex: matchedIndex,
		UpdatedAt:        time.Now().UTC(),
	}
	if ok && existing.TrackID == trackID {
		next.Consecutive = existing.Consecutive + 1
	} else {
		next.Consecutive = 1
	}

	if err := s.backing.SaveMatchCounter(ctx, next); err != nil {
		return 0, fmt.Errorf("matchstate: advance %s: %w: %v", deviceID, model.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	s.counters[deviceID] = next
	s.mu.Unlock()
	return next.Consecutive, nil
}
