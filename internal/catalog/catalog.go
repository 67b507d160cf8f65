// Package catalog is the Track Catalog: the in-memory source of truth for
// every track's polyline and metadata, backed by a store.Store for
// durability.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/store"
)

// Catalog holds every known track in memory, guarded by a single RWMutex.
// Reads (Get, List) take the read lock; mutations persist to the Store
// before they are applied to the in-memory map, so a Store failure never
// leaves the catalog in a state the store doesn't also have.
type Catalog struct {
	mu     sync.RWMutex
	tracks map[string]model.Track
	store  store.Store
	cache  trackCache
}

// trackCache is the narrow surface of internal/cache.TrackCache the
// catalog depends on for its read-aside fast path. Kept as an interface
// so the catalog package never needs to import Redis; production wiring
// happens in cmd/server.
type trackCache interface {
	GetList(ctx context.Context) ([]model.Track, bool)
	SetList(ctx context.Context, tracks []model.Track)
	GetTrack(ctx context.Context, trackID string) (model.Track, bool)
	SetTrack(ctx context.Context, t model.Track)
	Invalidate(ctx context.Context, trackID string)
}

// New constructs an empty Catalog. Call Bootstrap to load any tracks
// already persisted in store.
func New(s store.Store) *Catalog {
	return &Catalog{
		tracks: make(map[string]model.Track),
		store:  s,
	}
}

// WithCache attaches a read-aside cache (internal/cache.TrackCache) to an
// existing Catalog and returns it for chaining. Never required for
// correctness — every List/Get falls back to the in-memory map on a cache
// miss or when no cache is attached.
func (c *Catalog) WithCache(tc trackCache) *Catalog {
	c.cache = tc
	return c
}

// Bootstrap loads every track already persisted in the store into memory.
// Call it once at startup, before serving traffic.
func (c *Catalog) Bootstrap(ctx context.Context) error {
	tracks, err := c.store.LoadTracks(ctx)
	if err != nil {
		return fmt.Errorf("catalog: bootstrap: %w: %v", model.ErrStoreUnavailable, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tracks {
		c.tracks[t.TrackID] = t
	}
	return nil
}

// Load registers a new track (or replaces an existing one with the same
// ID), validating that the polyline has at least two vertices — a track of
// length 0 or 1 describes no rail segment to match against.
func (c *Catalog) Load(ctx context.Context, trackID, name, startStation, endStation string, vertices []model.Vertex) (model.Track, error) {
	if len(vertices) < 2 {
		return model.Track{}, fmt.Errorf("catalog: load %s: %w: need at least 2 vertices, got %d", trackID, model.ErrInvalidTrack, len(vertices))
	}

	t := model.Track{
		TrackID:      trackID,
		Name:         name,
		StartStation: startStation,
		EndStation:   endStation,
		Vertices:     append([]model.Vertex(nil), vertices...),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := c.store.SaveTrack(ctx, t); err != nil {
		return model.Track{}, fmt.Errorf("catalog: load %s: %w: %v", trackID, model.ErrStoreUnavailable, err)
	}

	c.mu.Lock()
	c.tracks[trackID] = t
	c.mu.Unlock()
	if c.cache != nil {
		c.cache.Invalidate(ctx, trackID)
	}
	return t, nil
}

// Get returns the track with the given ID. It always reads the in-memory
// map directly — this is the path the Matcher and Trip Controller use on
// every fix, and it must never add a Redis round-trip to that hot path.
func (c *Catalog) Get(trackID string) (model.Track, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tracks[trackID]
	if !ok {
		return model.Track{}, fmt.Errorf("catalog: get %s: %w", trackID, model.ErrUnknownTrack)
	}
	return t, nil
}

// List returns every known track, in no particular order, from the
// in-memory map. See ListCached for the Redis-fronted equivalent used by
// the track-management HTTP surface.
func (c *Catalog) List() []model.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Track, 0, len(c.tracks))
	for _, t := range c.tracks {
		out = append(out, t)
	}
	return out
}

// GetCached is the cache-aside equivalent of Get, for callers outside the
// fix-ingest hot path (the track-management HTTP handlers). It checks the
// attached cache first and falls back to Get on a miss or when no cache
// is attached, populating the cache afterward.
func (c *Catalog) GetCached(ctx context.Context, trackID string) (model.Track, error) {
	if c.cache != nil {
		if t, ok := c.cache.GetTrack(ctx, trackID); ok {
			return t, nil
		}
	}
	t, err := c.Get(trackID)
	if err != nil {
		return model.Track{}, err
	}
	if c.cache != nil {
		c.cache.SetTrack(ctx, t)
	}
	return t, nil
}

// ListCached is the cache-aside equivalent of List, for the
// track-management HTTP surface. A cache miss or Redis outage always
// falls through to the in-memory List — Redis is never the system of
// record for the catalog.
func (c *Catalog) ListCached(ctx context.Context) []model.Track {
	if c.cache != nil {
		if tracks, ok := c.cache.GetList(ctx); ok {
			return tracks
		}
	}
	tracks := c.List()
	if c.cache != nil {
		c.cache.SetList(ctx, tracks)
	}
	return tracks
}

// Delete removes a track entirely.
func (c *Catalog) Delete(ctx context.Context, trackID string) error {
	c.mu.RLock()
	_, ok := c.tracks[trackID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("catalog: delete %s: %w", trackID, model.ErrUnknownTrack)
	}

	if err := c.store.DeleteTrack(ctx, trackID); err != nil {
		return fmt.Errorf("catalog: delete %s: %w: %v", trackID, model.ErrStoreUnavailable, err)
	}

	c.mu.Lock()
	delete(c.tracks, trackID)
	c.mu.Unlock()
	if c.cache != nil {
		c.cache.Invalidate(ctx, trackID)
	}
	return nil
}

// SetActive implements exclusive-selection semantics: it clears IsActive
// on every other track, then sets it on trackID. is_active is a
// display/selection hint only — it also determines which track a
// fallback (non-trip) fix is matched against, but it never by itself
// grants a lock.
func (c *Catalog) SetActive(ctx context.Context, trackID string) error {
	c.mu.Lock()
	if _, ok := c.tracks[trackID]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("catalog: set active %s: %w", trackID, model.ErrUnknownTrack)
	}
	changed := make([]model.Track, 0, len(c.tracks))
	for id, t := range c.tracks {
		want := id == trackID
		if t.IsActive != want {
			t.IsActive = want
			changed = append(changed, t)
		}
	}
	c.mu.Unlock()

	for _, t := range changed {
		if err := c.store.SaveTrack(ctx, t); err != nil {
			return fmt.Errorf("catalog: set active %s: %w: %v", trackID, model.ErrStoreUnavailable, err)
		}
	}

	c.mu.Lock()
	for _, t := range changed {
		c.tracks[t.TrackID] = t
	}
	c.mu.Unlock()

	if c.cache != nil {
		for _, t := range changed {
			c.cache.Invalidate(ctx, t.TrackID)
		}
	}
	return nil
}

// Active returns the track currently flagged is_active, if any — the
// fallback match target for fix-ingest telemetry with no open trip.
func (c *Catalog) Active() (model.Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tracks {
		if t.IsActive {
			return t, true
		}
	}
	return model.Track{}, false
}
