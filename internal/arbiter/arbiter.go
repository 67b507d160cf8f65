// Package arbiter is the Lock Arbiter: it promotes a sustained match into
// a recorded claim over a track, serialised per track_id so two
// concurrent acquires on the same track can never both believe themselves
// the sole holder.
package arbiter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/store"
)

type trackLock struct {
	mu sync.Mutex
}

// Arbiter owns every track_lock record. It never mutates the Train
// Registry directly; the Collision Detector is the one-way function from
// holders() to collision_detected.
type Arbiter struct {
	mu      sync.Mutex // guards locks and byTrack map structures
	locks   map[string]*trackLock
	byTrack map[string]map[string]model.TrackLock // trackID -> trainID -> lock
	backing store.Store
}

func New(backing store.Store) *Arbiter {
	return &Arbiter{
		locks:   make(map[string]*trackLock),
		byTrack: make(map[string]map[string]model.TrackLock),
		backing: backing,
	}
}

// Bootstrap loads every persisted track lock into memory.
func (a *Arbiter) Bootstrap(ctx context.Context) error {
	locks, err := a.backing.LoadTrackLocks(ctx)
	if err != nil {
		return fmt.Errorf("arbiter: bootstrap: %w: %v", model.ErrStoreUnavailable, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range locks {
		if a.byTrack[l.TrackID] == nil {
			a.byTrack[l.TrackID] = make(map[string]model.TrackLock)
		}
		a.byTrack[l.TrackID][l.TrainID] = l
	}
	return nil
}

func (a *Arbiter) lockFor(trackID string) *trackLock {
	a.mu.Lock()
	defer a.mu.Unlock()
	tl, ok := a.locks[trackID]
	if !ok {
		tl = &trackLock{}
		a.locks[trackID] = tl
	}
	return tl
}

// AcquireResult mirrors the acquire() return shape.
type AcquireResult struct {
	Granted            bool
	AlreadyHeldByOther bool
}

// Acquire implements the permissive record_claim policy: it always records
// the calling train's own claim, even if another train already holds the
// track. Exclusivity checks belong to the caller (see trip.Controller.Start,
// which pre-checks Holders before ever calling Acquire); Acquire itself
// never blocks a second claimant, because the Collision Detector depends on
// both claims being visible in holders().
func (a *Arbiter) Acquire(ctx context.Context, trainID, deviceID, trackID string) (AcquireResult, error) {
	tl := a.lockFor(trackID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	a.mu.Lock()
	existing := a.byTrack[trackID]
	alreadyHeldByOther := false
	for otherTrain := range existing {
		if otherTrain != trainID {
			alreadyHeldByOther = true
			break
		}
	}
	a.mu.Unlock()

	now := time.Now().UTC()
	lock := model.TrackLock{
		TrackID:   trackID,
		TrainID:   trainID,
		DeviceID:  deviceID,
		LockedAt:  now,
		UpdatedAt: now,
	}
	if prior, ok := existing[trainID]; ok {
		lock.LockedAt = prior.LockedAt
	}

	if err := a.backing.SaveTrackLock(ctx, lock); err != nil {
		return AcquireResult{}, fmt.Errorf("arbiter: acquire %s/%s: %w: %v", trackID, trainID, model.ErrStoreUnavailable, err)
	}

	a.mu.Lock()
	if a.byTrack[trackID] == nil {
		a.byTrack[trackID] = make(map[string]model.TrackLock)
	}
	a.byTrack[trackID][trainID] = lock
	a.mu.Unlock()

	return AcquireResult{Granted: true, AlreadyHeldByOther: alreadyHeldByOther}, nil
}

// Release removes trainID's lock on trackID. No-op if absent.
func (a *Arbiter) Release(ctx context.Context, trainID, trackID string) error {
	tl := a.lockFor(trackID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	a.mu.Lock()
	_, ok := a.byTrack[trackID][trainID]
	a.mu.Unlock()
	if !ok {
		return nil
	}

	if err := a.backing.DeleteTrackLock(ctx, trackID, trainID); err != nil {
		return fmt.Errorf("arbiter: release %s/%s: %w: %v", trackID, trainID, model.ErrStoreUnavailable, err)
	}

	a.mu.Lock()
	delete(a.byTrack[trackID], trainID)
	if len(a.byTrack[trackID]) == 0 {
		delete(a.byTrack, trackID)
	}
	a.mu.Unlock()
	return nil
}

// Holders returns every current holder of trackID, sorted by train_id for
// deterministic iteration by callers. Registry.SetCollision sorts the
// train_ids again itself before taking its per-train locks.
func (a *Arbiter) Holders(trackID string) []model.Holder {
	a.mu.Lock()
	defer a.mu.Unlock()
	locks := a.byTrack[trackID]
	out := make([]model.Holder, 0, len(locks))
	for _, l := range locks {
		out = append(out, model.Holder{TrainID: l.TrainID, DeviceID: l.DeviceID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrainID < out[j].TrainID })
	return out
}
