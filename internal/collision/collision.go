// Package collision is the Collision Detector: the one-way function from
// Lock Arbiter holders to Train Registry alarm state.
package collision

import (
	"context"
	"fmt"

	"github.com/gatdilshan/railway-safety-research/internal/arbiter"
	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/registry"
)

// Detector scans an arbiter's holders for a track and folds the result
// into the registry's alarm state.
type Detector struct {
	arbiter  *arbiter.Arbiter
	registry *registry.Registry
}

func New(a *arbiter.Arbiter, r *registry.Registry) *Detector {
	return &Detector{arbiter: a, registry: r}
}

// Scan implements the collision rule: collision is true iff at least two distinct trains
// hold trackID. When true, every holder is flagged collision_detected and
// given the others as peers. When exactly one holder remains (the common
// case right after a Release), that lone holder's alarm is cleared — this
// is what lets stop_trip on one train silence the buzzer for the train
// that is still running.
func (d *Detector) Scan(ctx context.Context, trackID string) (model.CollisionReport, error) {
	holders := d.arbiter.Holders(trackID)

	report := model.CollisionReport{Collision: len(holders) >= 2}
	for _, h := range holders {
		report.Trains = append(report.Trains, h.TrainID)
		report.Devices = append(report.Devices, h.DeviceID)
	}

	switch len(holders) {
	case 0:
		return report, nil
	case 1:
		if err := d.registry.Clear(ctx, holders[0].TrainID); err != nil {
			return model.CollisionReport{}, fmt.Errorf("collision: scan %s: %w", trackID, err)
		}
	default:
		if err := d.registry.SetCollision(ctx, holders); err != nil {
			return model.CollisionReport{}, fmt.Errorf("collision: scan %s: %w", trackID, err)
		}
	}
	return report, nil
}
