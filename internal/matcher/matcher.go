// Package matcher implements the nearest-vertex map-matching algorithm: it
// decides whether a fix lies on a named track and folds the result into
// that device's match-state streak.
package matcher

import (
	"context"
	"fmt"

	"github.com/gatdilshan/railway-safety-research/internal/catalog"
	"github.com/gatdilshan/railway-safety-research/internal/matchstate"
	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/pkg/geo"
)

// Matcher ties the Track Catalog and Match State Store together behind the
// single match operation described in the design notes.
type Matcher struct {
	catalog    *catalog.Catalog
	matchstate *matchstate.Store

	// ThresholdMeters (T) and RequiredConsecutive (K) are the system's only
	// tuning knobs; both are read from these fields on every call. They are
	// set once from config at startup; there is no config reload.
	ThresholdMeters     float64
	RequiredConsecutive int
}

func New(c *catalog.Catalog, ms *matchstate.Store, thresholdMeters float64, requiredConsecutive int) *Matcher {
	return &Matcher{
		catalog:             c,
		matchstate:          ms,
		ThresholdMeters:     thresholdMeters,
		RequiredConsecutive: requiredConsecutive,
	}
}

// Match finds the nearest vertex of trackID to fix, updates deviceID's
// streak accordingly, and reports whether the streak has crossed the
// locking threshold.
func (m *Matcher) Match(ctx context.Context, deviceID, trackID string, fix model.Fix) (model.MatchResult, error) {
	track, err := m.catalog.Get(trackID)
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("matcher: match: %w", err)
	}

	idx, dist := geo.Nearest(fix.Vertex(), track.Vertices)
	matched := dist <= m.ThresholdMeters

	consecutive, err := m.matchstate.Advance(ctx, deviceID, trackID, matched, idx)
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("matcher: match: %w", err)
	}

	result := model.MatchResult{
		Matched:     matched,
		DistanceM:   dist,
		Consecutive: consecutive,
	}
	if matched {
		i := idx
		result.TrackIndex = &i
		result.LockedCandidate = consecutive >= m.RequiredConsecutive
	} else {
		result.Reason = fmt.Sprintf("nearest vertex %.2fm away, exceeds threshold %.2fm", dist, m.ThresholdMeters)
	}
	return result, nil
}
