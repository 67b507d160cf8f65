// Package memstore is an in-memory store.Store used by unit tests and local
// development. It never fails, which makes it unsuitable as a stand-in for
// verifying StoreUnavailable handling — Failing (failing.go) wraps a Store
// for that.
package memstore

import (
	"context"
	"sync"

	"github.com/gatdilshan/railway-safety-research/internal/model"
)

type Store struct {
	mu            sync.Mutex
	tracks        map[string]model.Track
	trains        map[string]model.Train
	matchCounters map[string]model.MatchCounter
	trackLocks    map[string]model.TrackLock // key: trackID + "|" + trainID
}

func New() *Store {
	return &Store{
		tracks:        make(map[string]model.Track),
		trains:        make(map[string]model.Train),
		matchCounters: make(map[string]model.MatchCounter),
		trackLocks:    make(map[string]model.TrackLock),
	}
}

func lockKey(trackID, trainID string) string { return trackID + "|" + trainID }

func (s *Store) LoadTracks(ctx context.Context) ([]model.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) SaveTrack(ctx context.Context, t model.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[t.TrackID] = t
	return nil
}

func (s *Store) DeleteTrack(ctx context.Context, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracks, trackID)
	return nil
}

func (s *Store) LoadTrains(ctx context.Context) ([]model.Train, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Train, 0, len(s.trains))
	for _, tr := range s.trains {
		out = append(out, tr)
	}
	return out, nil
}

func (s *Store) SaveTrain(ctx context.Context, tr model.Train) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trains[tr.TrainID] = tr
	return nil
}

func (s *Store) LoadMatchCounters(ctx context.Context) ([]model.MatchCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MatchCounter, 0, len(s.matchCounters))
	for _, c := range s.matchCounters {
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) SaveMatchCounter(ctx context.Context, c model.MatchCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchCounters[c.DeviceID] = c
	return nil
}

func (s *Store) DeleteMatchCounter(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matchCounters, deviceID)
	return nil
}

func (s *Store) LoadTrackLocks(ctx context.Context) ([]model.TrackLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TrackLock, 0, len(s.trackLocks))
	for _, l := range s.trackLocks {
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) SaveTrackLock(ctx context.Context, l model.TrackLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackLocks[lockKey(l.TrackID, l.TrainID)] = l
	return nil
}

func (s *Store) DeleteTrackLock(ctx context.Context, trackID, trainID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackLocks, lockKey(trackID, trainID))
	return nil
}
