package memstore

import (
	"context"
	"errors"

	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// ErrUnavailable is returned by every Failing write method (and by its read
// methods when FailReads is set), simulating a document store that has gone
// away.
var ErrUnavailable = errors.New("memstore: simulated store outage")

// Failing wraps a Store and fails every write (and, optionally, every read)
// so tests can exercise the StoreUnavailable path.
type Failing struct {
	*Store
	FailReads bool
}

func NewFailing(base *Store) *Failing {
	return &Failing{Store: base}
}

func (f *Failing) SaveTrack(ctx context.Context, t model.Track) error { return ErrUnavailable }
func (f *Failing) DeleteTrack(ctx context.Context, trackID string) error {
	return ErrUnavailable
}
func (f *Failing) SaveTrain(ctx context.Context, tr model.Train) error { return ErrUnavailable }
func (f *Failing) SaveMatchCounter(ctx context.Context, c model.MatchCounter) error {
	return ErrUnavailable
}
func (f *Failing) DeleteMatchCounter(ctx context.Context, deviceID string) error {
	return ErrUnavailable
}
func (f *Failing) SaveTrackLock(ctx context.Context, l model.TrackLock) error {
	return ErrUnavailable
}
func (f *Failing) DeleteTrackLock(ctx context.Context, trackID, trainID string) error {
	return ErrUnavailable
}

func (f *Failing) LoadTracks(ctx context.Context) ([]model.Track, error) {
	if f.FailReads {
		return nil, ErrUnavailable
	}
	return f.Store.LoadTracks(ctx)
}

func (f *Failing) LoadTrains(ctx context.Context) ([]model.Train, error) {
	if f.FailReads {
		return nil, ErrUnavailable
	}
	return f.Store.LoadTrains(ctx)
}

func (f *Failing) LoadMatchCounters(ctx context.Context) ([]model.MatchCounter, error) {
	if f.FailReads {
		return nil, ErrUnavailable
	}
	return f.Store.LoadMatchCounters(ctx)
}

func (f *Failing) LoadTrackLocks(ctx context.Context) ([]model.TrackLock, error) {
	if f.FailReads {
		return nil, ErrUnavailable
	}
	return f.Store.LoadTrackLocks(ctx)
}
