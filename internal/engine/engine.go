// Package engine is the composition root: it wires the Track Catalog,
// Match State Store, Matcher, Lock Arbiter, Collision Detector, Train
// Registry and Trip Controller behind the request/response operations of
// the external interface — thin orchestration methods with no business
// logic duplicated from the core packages underneath.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatdilshan/railway-safety-research/internal/arbiter"
	"github.com/gatdilshan/railway-safety-research/internal/catalog"
	"github.com/gatdilshan/railway-safety-research/internal/collision"
	"github.com/gatdilshan/railway-safety-research/internal/csvtrack"
	"github.com/gatdilshan/railway-safety-research/internal/matcher"
	"github.com/gatdilshan/railway-safety-research/internal/matchstate"
	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/registry"
	"github.com/gatdilshan/railway-safety-research/internal/trip"
)

// FixTimeout is the soft per-fix timeout covering every store round-trip a
// single SubmitFix call makes, per the concurrency model's cancellation
// policy.
const FixTimeout = 5 * time.Second

// collisionPublisher is the narrow surface of internal/cache.TrackCache
// the engine needs for the best-effort collision feed. Kept as an
// interface so the engine never requires Redis to be present.
type collisionPublisher interface {
	PublishCollision(ctx context.Context, report model.CollisionReport, trackID string)
}

// Engine wires every core singleton into the system's external-facing
// request/response operations.
type Engine struct {
	Catalog    *catalog.Catalog
	MatchState *matchstate.Store
	Matcher    *matcher.Matcher
	Arbiter    *arbiter.Arbiter
	Collision  *collision.Detector
	Registry   *registry.Registry
	Trip       *trip.Controller

	feed collisionPublisher
}

// New constructs an Engine from already-constructed singletons. Call
// Bootstrap once before serving traffic.
func New(c *catalog.Catalog, ms *matchstate.Store, m *matcher.Matcher, a *arbiter.Arbiter, d *collision.Detector, r *registry.Registry, tc *trip.Controller) *Engine {
	return &Engine{Catalog: c, MatchState: ms, Matcher: m, Arbiter: a, Collision: d, Registry: r, Trip: tc}
}

// WithFeed attaches the best-effort Redis collision feed and returns the
// Engine for chaining.
func (e *Engine) WithFeed(feed collisionPublisher) *Engine {
	e.feed = feed
	return e
}

// Bootstrap reloads every persisted collection into the in-memory
// singletons, in dependency order (tracks and match counters have no
// cross-references; the arbiter's locks reference trains, so the
// registry loads first).
func (e *Engine) Bootstrap(ctx context.Context) error {
	if err := e.Catalog.Bootstrap(ctx); err != nil {
		return err
	}
	if err := e.MatchState.Bootstrap(ctx); err != nil {
		return err
	}
	if err := e.Registry.Bootstrap(ctx); err != nil {
		return err
	}
	if err := e.Arbiter.Bootstrap(ctx); err != nil {
		return err
	}
	return nil
}

// FixInput is the ingress submit-fix request, with pointer lat/lon so a
// genuinely absent coordinate can be told apart from an explicit (0, 0).
type FixInput struct {
	Latitude   *float64
	Longitude  *float64
	Satellites int
	HDOP       float64
	Accuracy   float64
	Timestamp  time.Time
	DeviceID   string
}

// SubmitFixResult is the ingress submit-fix response.
type SubmitFixResult struct {
	Saved      bool
	TrackMatch model.MatchResult
	Collision  model.CollisionReport
}

// SubmitFix implements the fix-ingest control flow, the one externally
// observable composition of every core component: resolve
// train_id from device_id; route the fix to the trip's selected track, or
// the catalog's fallback active track if no trip is open; match; only
// when the streak is at or above threshold under an active trip does it
// acquire (or refresh) a lock and run the collision scan, which it does
// again on every such fix. A fallback match (no trip)
// never acquires a lock — the safety boundary that keeps unsolicited
// telemetry from forging a collision.
func (e *Engine) SubmitFix(ctx context.Context, in FixInput) (SubmitFixResult, error) {
	if in.Latitude == nil || in.Longitude == nil || in.DeviceID == "" {
		return SubmitFixResult{}, fmt.Errorf("engine: submit fix: %w", model.ErrInvalidFix)
	}

	ctx, cancel := context.WithTimeout(ctx, FixTimeout)
	defer cancel()

	fix := model.Fix{
		Latitude:   *in.Latitude,
		Longitude:  *in.Longitude,
		Satellites: in.Satellites,
		HDOP:       in.HDOP,
		Accuracy:   in.Accuracy,
		Timestamp:  in.Timestamp,
		DeviceID:   in.DeviceID,
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now().UTC()
	}

	trainID, ok := e.Registry.ResolveTrainID(in.DeviceID)
	if !ok {
		return SubmitFixResult{}, fmt.Errorf("engine: submit fix: device %s: %w", in.DeviceID, model.ErrUnknownTrain)
	}
	train, err := e.Registry.Get(trainID)
	if err != nil {
		return SubmitFixResult{}, fmt.Errorf("engine: submit fix: %w", err)
	}

	tripActive := train.SelectedTrackID != nil
	var targetTrack string
	switch {
	case tripActive:
		targetTrack = *train.SelectedTrackID
	default:
		active, ok := e.Catalog.Active()
		if !ok {
			// No open trip and no fallback active track: there is nothing
			// to route this fix against. Discarded silently, matching the
			// device's point of view in the error-handling design.
			return SubmitFixResult{Saved: false}, fmt.Errorf("engine: submit fix: %w", model.ErrMissingSession)
		}
		targetTrack = active.TrackID
	}

	result, err := e.Matcher.Match(ctx, in.DeviceID, targetTrack, fix)
	if err != nil {
		return SubmitFixResult{}, fmt.Errorf("engine: submit fix: %w", err)
	}

	out := SubmitFixResult{Saved: true, TrackMatch: result}

	if tripActive && result.LockedCandidate {
		if _, err := e.Arbiter.Acquire(ctx, trainID, in.DeviceID, targetTrack); err != nil {
			return SubmitFixResult{}, fmt.Errorf("engine: submit fix: %w", err)
		}
		if err := e.Registry.SetCurrentTrack(ctx, trainID, targetTrack); err != nil {
			return SubmitFixResult{}, fmt.Errorf("engine: submit fix: %w", err)
		}
		report, err := e.Collision.Scan(ctx, targetTrack)
		if err != nil {
			return SubmitFixResult{}, fmt.Errorf("engine: submit fix: %w", err)
		}
		out.Collision = report
		if e.feed != nil {
			e.feed.PublishCollision(ctx, report, targetTrack)
		}
	}

	return out, nil
}

// RegisterTrain binds a train_id to a device_id, a precondition StartTrip
// and SubmitFix both depend on: a one-to-one binding that has to be
// created somewhere before a trip can reference it, so this repository
// exposes it explicitly.
func (e *Engine) RegisterTrain(ctx context.Context, trainID, deviceID string) error {
	return e.Registry.RegisterTrain(ctx, trainID, deviceID)
}

// StartTrip begins a real-testing trip.
func (e *Engine) StartTrip(ctx context.Context, trainID, trackID string) error {
	ctx, cancel := context.WithTimeout(ctx, FixTimeout)
	defer cancel()
	return e.Trip.Start(ctx, trainID, trackID)
}

// StopTrip ends a real-testing trip. trackID may be empty, in
// which case it is resolved from the train's own state.
func (e *Engine) StopTrip(ctx context.Context, trainID, trackID string) error {
	ctx, cancel := context.WithTimeout(ctx, FixTimeout)
	defer cancel()
	return e.Trip.Stop(ctx, trainID, trackID)
}

// GetTrain resolves id as a train_id first, then as a device_id — the
// polled state-query endpoint field devices use to drive their buzzer.
func (e *Engine) GetTrain(id string) (model.Train, error) {
	if tr, err := e.Registry.Get(id); err == nil {
		return tr, nil
	}
	return e.Registry.GetByDevice(id)
}

// ListTrains returns every known train.
func (e *Engine) ListTrains() []model.Train {
	return e.Registry.List()
}

// Upload parses a CSV polyline upload and loads it into the catalog under
// a generated track_id, per the upload(csv_text, name, start_station,
// end_station) contract — the request carries no track_id of its own.
func (e *Engine) Upload(ctx context.Context, csvText, name, startStation, endStation string) (model.Track, error) {
	vertices, err := csvtrack.Parse(csvText)
	if err != nil {
		return model.Track{}, fmt.Errorf("engine: upload: %w", err)
	}
	trackID := uuid.NewString()
	return e.Catalog.Load(ctx, trackID, name, startStation, endStation, vertices)
}

// ListTracks returns every known track via the Redis-fronted fast path.
func (e *Engine) ListTracks(ctx context.Context) []model.Track {
	return e.Catalog.ListCached(ctx)
}

// GetTrack returns a single track via the Redis-fronted fast path.
func (e *Engine) GetTrack(ctx context.Context, trackID string) (model.Track, error) {
	return e.Catalog.GetCached(ctx, trackID)
}

// DeleteTrack removes a track from the catalog.
func (e *Engine) DeleteTrack(ctx context.Context, trackID string) error {
	return e.Catalog.Delete(ctx, trackID)
}

// SetActiveTrack selects trackID as the catalog's single active track,
// clearing the flag on every other track.
func (e *Engine) SetActiveTrack(ctx context.Context, trackID string) error {
	return e.Catalog.SetActive(ctx, trackID)
}
