// Package store defines the persistence contract for the core's four
// process-wide singletons. It holds no business logic: durability is
// delegated entirely to whichever Store implementation is wired in (see
// store/pgstore for the PostgreSQL-backed one used in production and
// store/memstore for the in-memory fake used in tests).
package store

import (
	"context"

	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// Store persists the four logical collections described in the repository's
// design notes: tracks, trains, match_counters, and track_locks. Every
// method may fail with a wrapped error; callers translate any such failure
// into model.ErrStoreUnavailable and must not consider the corresponding
// in-memory mutation committed.
type Store interface {
	LoadTracks(ctx context.Context) ([]model.Track, error)
	SaveTrack(ctx context.Context, t model.Track) error
	DeleteTrack(ctx context.Context, trackID string) error

	LoadTrains(ctx context.Context) ([]model.Train, error)
	SaveTrain(ctx context.Context, tr model.Train) error

	LoadMatchCounters(ctx context.Context) ([]model.MatchCounter, error)
	SaveMatchCounter(ctx context.Context, c model.MatchCounter) error
	DeleteMatchCounter(ctx context.Context, deviceID string) error

	LoadTrackLocks(ctx context.Context) ([]model.TrackLock, error)
	SaveTrackLock(ctx context.Context, l model.TrackLock) error
	DeleteTrackLock(ctx context.Context, trackID, trainID string) error
}
