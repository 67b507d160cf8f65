// Package trip is the Trip Controller: it starts and stops real-testing
// trips, the only context in which the Lock Arbiter may be asked to claim
// a track on a train's behalf.
package trip

import (
	"context"
	"fmt"

	"github.com/gatdilshan/railway-safety-research/internal/arbiter"
	"github.com/gatdilshan/railway-safety-research/internal/catalog"
	"github.com/gatdilshan/railway-safety-research/internal/collision"
	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/registry"
)

// Controller wires the Track Catalog, Train Registry, Lock Arbiter and
// Collision Detector together behind start/stop.
type Controller struct {
	catalog   *catalog.Catalog
	registry  *registry.Registry
	arbiter   *arbiter.Arbiter
	collision *collision.Detector
}

func New(c *catalog.Catalog, r *registry.Registry, a *arbiter.Arbiter, d *collision.Detector) *Controller {
	return &Controller{catalog: c, registry: r, arbiter: a, collision: d}
}

// Start validates the train and track exist, then performs an exclusive
// pre-check against the arbiter's current holders before ever mutating
// state: start_trip is the single-writer path, distinct
// from the permissive co-claim path the fix-ingest flow uses. It fails
// fast with TrackBusy without recording any claim when another train
// already holds the track.
func (c *Controller) Start(ctx context.Context, trainID, trackID string) error {
	tr, err := c.registry.Get(trainID)
	if err != nil {
		return fmt.Errorf("trip: start: %w", err)
	}
	if _, err := c.catalog.Get(trackID); err != nil {
		return fmt.Errorf("trip: start: %w", err)
	}

	for _, h := range c.arbiter.Holders(trackID) {
		if h.TrainID != trainID {
			return fmt.Errorf("trip: start %s/%s: %w", trainID, trackID, model.ErrTrackBusy)
		}
	}

	res, err := c.arbiter.Acquire(ctx, trainID, tr.DeviceID, trackID)
	if err != nil {
		return fmt.Errorf("trip: start: %w", err)
	}
	if !res.Granted {
		return fmt.Errorf("trip: start %s/%s: %w", trainID, trackID, model.ErrTrackBusy)
	}

	if err := c.registry.SetSelectedTrack(ctx, trainID, trackID); err != nil {
		return fmt.Errorf("trip: start: %w", err)
	}
	if err := c.registry.SetCurrentTrack(ctx, trainID, trackID); err != nil {
		return fmt.Errorf("trip: start: %w", err)
	}

	if _, err := c.collision.Scan(ctx, trackID); err != nil {
		return fmt.Errorf("trip: start: %w", err)
	}
	return nil
}

// Stop releases trainID's lock and clears its trip-related state. If
// trackID is empty, it is resolved from the train's SelectedTrackID, then
// CurrentTrack. Stop is idempotent on an already-stopped trip: a train
// with no selected/current track and no lock simply has its (already
// clear) fields re-written.
func (c *Controller) Stop(ctx context.Context, trainID, trackID string) error {
	tr, err := c.registry.Get(trainID)
	if err != nil {
		return fmt.Errorf("trip: stop: %w", err)
	}

	resolved := trackID
	if resolved == "" && tr.SelectedTrackID != nil {
		resolved = *tr.SelectedTrackID
	}
	if resolved == "" && tr.CurrentTrack != nil {
		resolved = *tr.CurrentTrack
	}

	if resolved != "" {
		if err := c.arbiter.Release(ctx, trainID, resolved); err != nil {
			return fmt.Errorf("trip: stop: %w", err)
		}
	}

	if err := c.registry.StopTripClear(ctx, trainID); err != nil {
		return fmt.Errorf("trip: stop: %w", err)
	}

	if resolved != "" {
		if _, err := c.collision.Scan(ctx, resolved); err != nil {
			return fmt.Errorf("trip: stop: %w", err)
		}
	}
	return nil
}
