// Package pgstore is the production store.Store implementation. It layers a
// document-store shape directly on PostgreSQL: each of the four logical
// collections is one table of (key columns, doc jsonb, updated_at), queried
// and written with github.com/jackc/pgx/v5.
//
// The schema this package expects (see migrations in a real deployment):
//
//	CREATE TABLE tracks         (track_id TEXT PRIMARY KEY, doc JSONB NOT NULL, updated_at TIMESTAMPTZ NOT NULL);
//	CREATE TABLE trains         (train_id TEXT PRIMARY KEY, doc JSONB NOT NULL, updated_at TIMESTAMPTZ NOT NULL);
//	CREATE TABLE match_counters (device_id TEXT PRIMARY KEY, doc JSONB NOT NULL, updated_at TIMESTAMPTZ NOT NULL);
//	CREATE TABLE track_locks    (track_id TEXT NOT NULL, train_id TEXT NOT NULL, doc JSONB NOT NULL, updated_at TIMESTAMPTZ NOT NULL, PRIMARY KEY (track_id, train_id));
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool. Callers create the pool with
// pkg/db.NewPostgresPool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) LoadTracks(ctx context.Context) ([]model.Track, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM tracks`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load tracks: %w", err)
	}
	defer rows.Close()

	var out []model.Track
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("pgstore: scan track: %w", err)
		}
		var t model.Track
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("pgstore: decode track: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SaveTrack(ctx context.Context, t model.Track) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("pgstore: encode track: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tracks (track_id, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (track_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, t.TrackID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pgstore: save track %s: %w", t.TrackID, err)
	}
	return nil
}

func (s *Store) DeleteTrack(ctx context.Context, trackID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tracks WHERE track_id = $1`, trackID)
	if err != nil {
		return fmt.Errorf("pgstore: delete track %s: %w", trackID, err)
	}
	return nil
}

func (s *Store) LoadTrains(ctx context.Context) ([]model.Train, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM trains`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load trains: %w", err)
	}
	defer rows.Close()

	var out []model.Train
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("pgstore: scan train: %w", err)
		}
		var tr model.Train
		if err := json.Unmarshal(raw, &tr); err != nil {
			return nil, fmt.Errorf("pgstore: decode train: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *Store) SaveTrain(ctx context.Context, tr model.Train) error {
	raw, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("pgstore: encode train: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO trains (train_id, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (train_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, tr.TrainID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pgstore: save train %s: %w", tr.TrainID, err)
	}
	return nil
}

func (s *Store) LoadMatchCounters(ctx context.Context) ([]model.MatchCounter, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM match_counters`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load match counters: %w", err)
	}
	defer rows.Close()

	var out []model.MatchCounter
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("pgstore: scan match counter: %w", err)
		}
		var c model.MatchCounter
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("pgstore: decode match counter: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SaveMatchCounter(ctx context.Context, c model.MatchCounter) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("pgstore: encode match counter: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO match_counters (device_id, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, c.DeviceID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pgstore: save match counter %s: %w", c.DeviceID, err)
	}
	return nil
}

func (s *Store) DeleteMatchCounter(ctx context.Context, deviceID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM match_counters WHERE device_id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("pgstore: delete match counter %s: %w", deviceID, err)
	}
	return nil
}

func (s *Store) LoadTrackLocks(ctx context.Context) ([]model.TrackLock, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM track_locks`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load track locks: %w", err)
	}
	defer rows.Close()

	var out []model.TrackLock
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("pgstore: scan track lock: %w", err)
		}
		var l model.TrackLock
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("pgstore: decode track lock: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) SaveTrackLock(ctx context.Context, l model.TrackLock) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("pgstore: encode track lock: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO track_locks (track_id, train_id, doc, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (track_id, train_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, l.TrackID, l.TrainID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pgstore: save track lock %s/%s: %w", l.TrackID, l.TrainID, err)
	}
	return nil
}

func (s *Store) DeleteTrackLock(ctx context.Context, trackID, trainID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM track_locks WHERE track_id = $1 AND train_id = $2`, trackID, trainID)
	if err != nil {
		return fmt.Errorf("pgstore: delete track lock %s/%s: %w", trackID, trainID, err)
	}
	return nil
}
