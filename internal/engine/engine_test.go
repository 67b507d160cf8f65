package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatdilshan/railway-safety-research/internal/arbiter"
	"github.com/gatdilshan/railway-safety-research/internal/catalog"
	"github.com/gatdilshan/railway-safety-research/internal/collision"
	"github.com/gatdilshan/railway-safety-research/internal/matcher"
	"github.com/gatdilshan/railway-safety-research/internal/matchstate"
	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/registry"
	"github.com/gatdilshan/railway-safety-research/internal/store/memstore"
	"github.com/gatdilshan/railway-safety-research/internal/trip"
)

func setup(t *testing.T) *Engine {
	t.Helper()
	backing := memstore.New()
	cat := catalog.New(backing)
	ms := matchstate.New(backing)
	reg := registry.New(backing)
	arb := arbiter.New(backing)
	det := collision.New(arb, reg)
	m := matcher.New(cat, ms, 30.0, 5)
	ctl := trip.New(cat, reg, arb, det)
	return New(cat, ms, m, arb, det, reg, ctl)
}

func straightTrack() []model.Vertex {
	return []model.Vertex{
		{Lat: 0.0000, Lon: 0}, {Lat: 0.0001, Lon: 0}, {Lat: 0.0002, Lon: 0},
		{Lat: 0.0003, Lon: 0}, {Lat: 0.0004, Lon: 0}, {Lat: 0.0005, Lon: 0},
	}
}

func ptr(f float64) *float64 { return &f }

func submitAt(t *testing.T, e *Engine, deviceID string, lat, lon float64) SubmitFixResult {
	t.Helper()
	res, err := e.SubmitFix(context.Background(), FixInput{
		Latitude: ptr(lat), Longitude: ptr(lon), DeviceID: deviceID,
	})
	require.NoError(t, err)
	return res
}

// TestSoloTripNoCollision drives a single train through a full trip with
// no other claimant on the track: no collision should ever be raised.
func TestSoloTripNoCollision(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.Catalog.Load(ctx, "trk-x", "Main Line", "A", "B", straightTrack())
	require.NoError(t, err)
	require.NoError(t, e.RegisterTrain(ctx, "T1", "D1"))
	require.NoError(t, e.StartTrip(ctx, "T1", "trk-x"))

	var last SubmitFixResult
	for _, lat := range []float64{0.0000, 0.0001, 0.0002, 0.0003, 0.0004} {
		last = submitAt(t, e, "D1", lat, 0)
	}

	assert.Equal(t, 5, last.TrackMatch.Consecutive)
	assert.True(t, last.TrackMatch.LockedCandidate)

	holders := e.Arbiter.Holders("trk-x")
	require.Len(t, holders, 1)
	assert.Equal(t, "T1", holders[0].TrainID)

	tr, err := e.Registry.Get("T1")
	require.NoError(t, err)
	assert.False(t, tr.CollisionDetected)
}

// TestCollisionBetweenTwoTrains drives two trains onto the same track and
// checks both get flagged collision_detected with each other as a peer.
func TestCollisionBetweenTwoTrains(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.Catalog.Load(ctx, "trk-x", "Main Line", "A", "B", straightTrack())
	require.NoError(t, err)
	require.NoError(t, e.RegisterTrain(ctx, "T1", "D1"))
	require.NoError(t, e.RegisterTrain(ctx, "T2", "D2"))
	require.NoError(t, e.StartTrip(ctx, "T1", "trk-x"))

	for _, lat := range []float64{0.0000, 0.0001, 0.0002, 0.0003, 0.0004} {
		submitAt(t, e, "D1", lat, 0)
	}

	err = e.StartTrip(ctx, "T2", "trk-x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrTrackBusy))

	// The permissive co-claim path: T2's own fix-ingest can still record a
	// claim on trk-x once its own streak crosses threshold, once it has a
	// selected track of its own that happens to be trk-x. Simulate the
	// field-trial operator instead routing T2's trip at a track it does
	// hold — here we drive the co-claim directly via SetSelectedTrack to
	// model the permitted second-claimant path.
	require.NoError(t, e.Registry.SetSelectedTrack(ctx, "T2", "trk-x"))

	var lastT2 SubmitFixResult
	for _, lat := range []float64{0.0000, 0.0001, 0.0002, 0.0003, 0.0004} {
		lastT2 = submitAt(t, e, "D2", lat, 0)
	}

	assert.True(t, lastT2.Collision.Collision)

	holders := e.Arbiter.Holders("trk-x")
	require.Len(t, holders, 2)

	t1, err := e.Registry.Get("T1")
	require.NoError(t, err)
	t2, err := e.Registry.Get("T2")
	require.NoError(t, err)

	assert.True(t, t1.CollisionDetected)
	assert.True(t, t2.CollisionDetected)
	assert.Equal(t, []string{"T2"}, t1.CollisionWith)
	assert.Equal(t, []string{"T1"}, t2.CollisionWith)
}

// TestStreakResetRetainsLock checks that a single missed fix resets the
// consecutive-match streak without releasing an already-held lock.
func TestStreakResetRetainsLock(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.Catalog.Load(ctx, "trk-x", "Main Line", "A", "B", straightTrack())
	require.NoError(t, err)
	require.NoError(t, e.RegisterTrain(ctx, "T1", "D1"))
	require.NoError(t, e.StartTrip(ctx, "T1", "trk-x"))
	for _, lat := range []float64{0.0000, 0.0001, 0.0002, 0.0003, 0.0004} {
		submitAt(t, e, "D1", lat, 0)
	}

	missed := submitAt(t, e, "D1", 1.0, 1.0)
	assert.False(t, missed.TrackMatch.Matched)
	assert.Equal(t, 0, missed.TrackMatch.Consecutive)

	// Lock retained across the miss.
	holders := e.Arbiter.Holders("trk-x")
	require.Len(t, holders, 1)

	restart := submitAt(t, e, "D1", 0.0000, 0)
	assert.Equal(t, 1, restart.TrackMatch.Consecutive)
}

// TestStopClearsAlarm checks that stopping one train's trip out of a
// two-train collision silences the alarm for both trains.
func TestStopClearsAlarm(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.Catalog.Load(ctx, "trk-x", "Main Line", "A", "B", straightTrack())
	require.NoError(t, err)
	require.NoError(t, e.RegisterTrain(ctx, "T1", "D1"))
	require.NoError(t, e.RegisterTrain(ctx, "T2", "D2"))
	require.NoError(t, e.StartTrip(ctx, "T1", "trk-x"))
	for _, lat := range []float64{0.0000, 0.0001, 0.0002, 0.0003, 0.0004} {
		submitAt(t, e, "D1", lat, 0)
	}
	require.NoError(t, e.Registry.SetSelectedTrack(ctx, "T2", "trk-x"))
	for _, lat := range []float64{0.0000, 0.0001, 0.0002, 0.0003, 0.0004} {
		submitAt(t, e, "D2", lat, 0)
	}

	require.NoError(t, e.StopTrip(ctx, "T1", ""))

	t1, err := e.Registry.Get("T1")
	require.NoError(t, err)
	assert.False(t, t1.CollisionDetected)
	assert.Nil(t, t1.SelectedTrackID)
	assert.Nil(t, t1.CurrentTrack)
	assert.Empty(t, t1.CollisionWith)

	holders := e.Arbiter.Holders("trk-x")
	require.Len(t, holders, 1)
	assert.Equal(t, "T2", holders[0].TrainID)

	t2, err := e.Registry.Get("T2")
	require.NoError(t, err)
	assert.False(t, t2.CollisionDetected)
	assert.Empty(t, t2.CollisionWith)
}

// TestUnsolicitedTelemetryCannotForgeCollision checks that fixes arriving
// with no open trip can match the catalog's fallback track but never
// acquire a lock or raise a collision.
func TestUnsolicitedTelemetryCannotForgeCollision(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.Catalog.Load(ctx, "trk-x", "Main Line", "A", "B", straightTrack())
	require.NoError(t, err)
	require.NoError(t, e.RegisterTrain(ctx, "T1", "D1"))
	require.NoError(t, e.RegisterTrain(ctx, "T2", "D2"))
	// No trip is started. trk-x is active by default (Load sets is_active
	// true), so fixes route to it via the fallback path but never lock.

	for i := 0; i < 20; i++ {
		submitAt(t, e, "D1", 0.0000, 0)
		submitAt(t, e, "D2", 0.0000, 0)
	}

	assert.Empty(t, e.Arbiter.Holders("trk-x"))

	t1, err := e.Registry.Get("T1")
	require.NoError(t, err)
	t2, err := e.Registry.Get("T2")
	require.NoError(t, err)
	assert.False(t, t1.CollisionDetected)
	assert.False(t, t2.CollisionDetected)
}

// TestDistanceThresholdBoundary checks a fix exactly at the matching
// threshold distance still counts as matched.
func TestDistanceThresholdBoundary(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.Catalog.Load(ctx, "trk-x", "Main Line", "A", "B", straightTrack())
	require.NoError(t, err)
	require.NoError(t, e.RegisterTrain(ctx, "T1", "D1"))

	// 30m south of the first vertex, which is then the nearest one.
	const thresholdDeg = 30.0 / 6_371_000.0 * (180.0 / 3.14159265358979323846)
	atThreshold := submitAt(t, e, "D1", -thresholdDeg, 0)
	assert.InDelta(t, 30.0, atThreshold.TrackMatch.DistanceM, 1e-6)
	assert.True(t, atThreshold.TrackMatch.Matched)
}

func TestSubmitFix_InvalidFixMissingCoordinates(t *testing.T) {
	e := setup(t)
	_, err := e.SubmitFix(context.Background(), FixInput{DeviceID: "D1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidFix))
}

func TestSubmitFix_NoSessionNoFallback(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RegisterTrain(ctx, "T1", "D1"))
	// No track loaded at all: no fallback active track exists.
	_, err := e.SubmitFix(ctx, FixInput{Latitude: ptr(0), Longitude: ptr(0), DeviceID: "D1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingSession))
}

func TestStartTrip_IdempotentForSameTrain(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.Catalog.Load(ctx, "trk-x", "Main Line", "A", "B", straightTrack())
	require.NoError(t, err)
	require.NoError(t, e.RegisterTrain(ctx, "T1", "D1"))

	require.NoError(t, e.StartTrip(ctx, "T1", "trk-x"))
	require.NoError(t, e.StartTrip(ctx, "T1", "trk-x"))

	holders := e.Arbiter.Holders("trk-x")
	require.Len(t, holders, 1)
}

func TestStopTrip_IdempotentOnAlreadyStopped(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.RegisterTrain(ctx, "T1", "D1"))
	require.NoError(t, e.StopTrip(ctx, "T1", ""))
	require.NoError(t, e.StopTrip(ctx, "T1", ""))
}

func TestUpload_ParsesCSVIntoCatalog(t *testing.T) {
	e := setup(t)
	csvText := "lat,lon\n0.0,0.0\n0.0001,0.0\nbad,row\n0.0002,0.0\n"
	track, err := e.Upload(context.Background(), csvText, "Loop Line", "A", "B")
	require.NoError(t, err)
	assert.Len(t, track.Vertices, 3)

	listed := e.ListTracks(context.Background())
	require.Len(t, listed, 1)
}

func TestUpload_TooFewVerticesIsInvalidTrack(t *testing.T) {
	e := setup(t)
	csvText := "lat,lon\n0.0,0.0\n"
	_, err := e.Upload(context.Background(), csvText, "Loop Line", "A", "B")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidTrack))
}
