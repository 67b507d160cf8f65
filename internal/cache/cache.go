// Package cache is a cache-aside layer in front of the Track Catalog's
// List/Get views, plus a pub/sub feed that announces collision transitions
// to any number of dashboard or logging subscribers.
//
// Redis is never the system of record here: every method degrades to
// "miss" (not error) on a Redis outage, and callers are expected to fall
// back to the in-memory catalog directly. The alarm invariant itself is
// decided entirely by the in-memory registry and never touches Redis.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatdilshan/railway-safety-research/internal/model"
)

const (
	trackListKey     = "catalog:list"
	trackKeyPrefix   = "catalog:track:"
	catalogCacheTTL  = 10 * time.Second
	collisionChannel = "railway:collisions"
)

// TrackCache is a best-effort cache-aside wrapper around the Track
// Catalog's read views.
type TrackCache struct {
	redis *redis.Client
}

// New wraps an already-connected Redis client. A nil client is valid and
// makes every method behave as an unconditional miss — useful for
// deployments or tests that run without Redis.
func New(client *redis.Client) *TrackCache {
	return &TrackCache{redis: client}
}

func trackKey(trackID string) string { return trackKeyPrefix + trackID }

// GetList returns the cached track list, and whether it was present.
// A Redis error or miss is reported as (nil, false) — never an error —
// so every caller's fallback is a direct in-memory List().
func (c *TrackCache) GetList(ctx context.Context) ([]model.Track, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, trackListKey).Bytes()
	if err != nil {
		return nil, false
	}
	var tracks []model.Track
	if err := json.Unmarshal(raw, &tracks); err != nil {
		return nil, false
	}
	return tracks, true
}

// SetList caches the full track list. Failures are logged and otherwise
// ignored — a cache write never blocks or fails the caller's request.
func (c *TrackCache) SetList(ctx context.Context, tracks []model.Track) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(tracks)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, trackListKey, raw, catalogCacheTTL).Err(); err != nil {
		log.Printf("[cache] set %s failed: %v", trackListKey, err)
	}
}

// GetTrack returns a single cached track, and whether it was present.
func (c *TrackCache) GetTrack(ctx context.Context, trackID string) (model.Track, bool) {
	if c.redis == nil {
		return model.Track{}, false
	}
	raw, err := c.redis.Get(ctx, trackKey(trackID)).Bytes()
	if err != nil {
		return model.Track{}, false
	}
	var t model.Track
	if err := json.Unmarshal(raw, &t); err != nil {
		return model.Track{}, false
	}
	return t, true
}

// SetTrack caches a single track.
func (c *TrackCache) SetTrack(ctx context.Context, t model.Track) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, trackKey(t.TrackID), raw, catalogCacheTTL).Err(); err != nil {
		log.Printf("[cache] set %s failed: %v", trackKey(t.TrackID), err)
	}
}

// Invalidate drops both the list cache and a single track entry. Called
// on every Load/Delete/SetActive so a stale entry never outlives its TTL
// plus one mutation.
func (c *TrackCache) Invalidate(ctx context.Context, trackID string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, trackListKey, trackKey(trackID)).Err(); err != nil {
		log.Printf("[cache] invalidate %s failed: %v", trackID, err)
	}
}

// CollisionEvent is published on the collisions channel after every
// collision scan that fix ingest runs (each fix whose streak is at or above
// threshold under an open trip), whether or not the track's collision state
// changed. Scans run by trip start and stop are not published.
type CollisionEvent struct {
	TrackID   string    `json:"track_id"`
	Collision bool      `json:"collision"`
	Trains    []string  `json:"trains,omitempty"`
	Devices   []string  `json:"devices,omitempty"`
	At        time.Time `json:"at"`
}

// PublishCollision announces the result of a collision scan to any
// subscribers (dashboards, loggers). Best-effort: a publish failure is
// logged and never propagated — it has no bearing on the alarm flags
// themselves, which live entirely in the in-memory Train Registry.
func (c *TrackCache) PublishCollision(ctx context.Context, report model.CollisionReport, trackID string) {
	if c.redis == nil {
		return
	}
	evt := CollisionEvent{
		TrackID:   trackID,
		Collision: report.Collision,
		Trains:    report.Trains,
		Devices:   report.Devices,
		At:        time.Now().UTC(),
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := c.redis.Publish(ctx, collisionChannel, raw).Err(); err != nil {
		log.Printf("[cache] publish collision for %s failed: %v", trackID, err)
	}
}
