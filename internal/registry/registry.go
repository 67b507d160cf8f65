// Package registry is the Train Registry: the source of truth for
// collision_detected and the only component that ever flips a train's
// alarm flag. Locking is fine-grained per train_id; multi-train updates
// (collision recording) take locks in train_id sort order to avoid
// deadlock, matching the deterministic lock-ordering policy the design
// notes require.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/store"
)

type trainLock struct {
	mu sync.Mutex
}

// Registry holds every known Train, plus a device_id -> train_id index so
// lookups work from either identity.
type Registry struct {
	mu         sync.Mutex // guards locks/trains/byDevice map structures
	locks      map[string]*trainLock
	trains     map[string]model.Train
	byDevice   map[string]string // device_id -> train_id
	backing    store.Store
}

func New(backing store.Store) *Registry {
	return &Registry{
		locks:    make(map[string]*trainLock),
		trains:   make(map[string]model.Train),
		byDevice: make(map[string]string),
		backing:  backing,
	}
}

// Bootstrap loads every persisted train into memory.
func (r *Registry) Bootstrap(ctx context.Context) error {
	trains, err := r.backing.LoadTrains(ctx)
	if err != nil {
		return fmt.Errorf("registry: bootstrap: %w: %v", model.ErrStoreUnavailable, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tr := range trains {
		r.trains[tr.TrainID] = tr
		r.byDevice[tr.DeviceID] = tr.TrainID
	}
	return nil
}

func (r *Registry) lockFor(trainID string) *trainLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[trainID]
	if !ok {
		l = &trainLock{}
		r.locks[trainID] = l
	}
	return l
}

// RegisterTrain binds a train_id to a device_id. Not named explicitly in
// the external interface, but required by start_trip's "validates the
// train exists" precondition — something must create that binding before
// a trip can reference it. Idempotent: re-registering the same pair is a
// no-op; re-registering a train_id with a different device_id rebinds it.
func (r *Registry) RegisterTrain(ctx context.Context, trainID, deviceID string) error {
	tl := r.lockFor(trainID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	r.mu.Lock()
	existing, ok := r.trains[trainID]
	r.mu.Unlock()

	tr := model.Train{
		TrainID:   trainID,
		DeviceID:  deviceID,
		UpdatedAt: time.Now().UTC(),
	}
	if ok {
		tr = existing
		tr.DeviceID = deviceID
		tr.UpdatedAt = time.Now().UTC()
	}

	if err := r.backing.SaveTrain(ctx, tr); err != nil {
		return fmt.Errorf("registry: register train %s: %w: %v", trainID, model.ErrStoreUnavailable, err)
	}

	r.mu.Lock()
	if ok && existing.DeviceID != deviceID && r.byDevice[existing.DeviceID] == trainID {
		delete(r.byDevice, existing.DeviceID)
	}
	r.trains[trainID] = tr
	r.byDevice[deviceID] = trainID
	r.mu.Unlock()
	return nil
}

// ResolveTrainID maps a device_id to its bound train_id.
func (r *Registry) ResolveTrainID(deviceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trainID, ok := r.byDevice[deviceID]
	return trainID, ok
}

// Get returns the train by train_id.
func (r *Registry) Get(trainID string) (model.Train, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr, ok := r.trains[trainID]
	if !ok {
		return model.Train{}, fmt.Errorf("registry: get %s: %w", trainID, model.ErrUnknownTrain)
	}
	return *tr.Clone(), nil
}

// GetByDevice returns the train bound to device_id.
func (r *Registry) GetByDevice(deviceID string) (model.Train, error) {
	r.mu.Lock()
	trainID, ok := r.byDevice[deviceID]
	r.mu.Unlock()
	if !ok {
		return model.Train{}, fmt.Errorf("registry: get by device %s: %w", deviceID, model.ErrUnknownTrain)
	}
	return r.Get(trainID)
}

// List returns every known train.
func (r *Registry) List() []model.Train {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Train, 0, len(r.trains))
	for _, tr := range r.trains {
		out = append(out, *tr.Clone())
	}
	return out
}

func (r *Registry) save(ctx context.Context, tr model.Train) error {
	if err := r.backing.SaveTrain(ctx, tr); err != nil {
		return fmt.Errorf("registry: save %s: %w: %v", tr.TrainID, model.ErrStoreUnavailable, err)
	}
	r.mu.Lock()
	r.trains[tr.TrainID] = tr
	r.mu.Unlock()
	return nil
}

// SetCollision updates the alarm state for a set of trains that share a
// collision: for each train in trains, active=true,
// collision_detected=true, collision_with = trains minus itself. Locks are
// acquired in sorted train_id order so concurrent collision scans on
// overlapping train sets can never deadlock.
func (r *Registry) SetCollision(ctx context.Context, holders []model.Holder) error {
	trainIDs := make([]string, 0, len(holders))
	for _, h := range holders {
		trainIDs = append(trainIDs, h.TrainID)
	}
	sort.Strings(trainIDs)

	locksTaken := make([]*trainLock, 0, len(trainIDs))
	for _, id := range trainIDs {
		tl := r.lockFor(id)
		tl.mu.Lock()
		locksTaken = append(locksTaken, tl)
	}
	defer func() {
		for _, tl := range locksTaken {
			tl.mu.Unlock()
		}
	}()

	for _, id := range trainIDs {
		r.mu.Lock()
		tr, ok := r.trains[id]
		r.mu.Unlock()
		if !ok {
			return fmt.Errorf("registry: set collision %s: %w", id, model.ErrUnknownTrain)
		}

		peers := make([]string, 0, len(trainIDs)-1)
		for _, other := range trainIDs {
			if other != id {
				peers = append(peers, other)
			}
		}

		tr.Active = true
		tr.CollisionDetected = true
		tr.CollisionWith = peers
		tr.UpdatedAt = time.Now().UTC()

		if err := r.save(ctx, tr); err != nil {
			return err
		}
	}
	return nil
}

// Clear resets a single train's alarm state. The Collision Detector uses it
// when it observes a lone remaining holder; stop_trip uses StopTripClear.
func (r *Registry) Clear(ctx context.Context, trainID string) error {
	tl := r.lockFor(trainID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	r.mu.Lock()
	tr, ok := r.trains[trainID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("registry: clear %s: %w", trainID, model.ErrUnknownTrain)
	}

	tr.Active = false
	tr.CollisionDetected = false
	tr.CollisionWith = nil
	tr.UpdatedAt = time.Now().UTC()
	return r.save(ctx, tr)
}

// SetSelectedTrack pins (or clears, if trackID == "") the train's
// selected_track_id for a real-testing trip.
func (r *Registry) SetSelectedTrack(ctx context.Context, trainID, trackID string) error {
	tl := r.lockFor(trainID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	r.mu.Lock()
	tr, ok := r.trains[trainID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("registry: set selected track %s: %w", trainID, model.ErrUnknownTrain)
	}

	if trackID == "" {
		tr.SelectedTrackID = nil
	} else {
		t := trackID
		tr.SelectedTrackID = &t
	}
	tr.UpdatedAt = time.Now().UTC()
	return r.save(ctx, tr)
}

// SetCurrentTrack updates (or clears) the track currently held on the
// train's behalf.
func (r *Registry) SetCurrentTrack(ctx context.Context, trainID, trackID string) error {
	tl := r.lockFor(trainID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	r.mu.Lock()
	tr, ok := r.trains[trainID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("registry: set current track %s: %w", trainID, model.ErrUnknownTrain)
	}

	if trackID == "" {
		tr.CurrentTrack = nil
	} else {
		t := trackID
		tr.CurrentTrack = &t
	}
	tr.UpdatedAt = time.Now().UTC()
	return r.save(ctx, tr)
}

// StopTripClear clears every field a stop_trip call must reset in one
// store round-trip: selected_track_id, current_track, active,
// collision_detected, collision_with.
func (r *Registry) StopTripClear(ctx context.Context, trainID string) error {
	tl := r.lockFor(trainID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	r.mu.Lock()
	tr, ok := r.trains[trainID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("registry: stop trip clear %s: %w", trainID, model.ErrUnknownTrain)
	}

	tr.SelectedTrackID = nil
	tr.CurrentTrack = nil
	tr.Active = false
	tr.CollisionDetected = false
	tr.CollisionWith = nil
	tr.UpdatedAt = time.Now().UTC()
	return r.save(ctx, tr)
}
