package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatdilshan/railway-safety-research/internal/catalog"
	"github.com/gatdilshan/railway-safety-research/internal/matchstate"
	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/store/memstore"
)

func setup(t *testing.T) *Matcher {
	t.Helper()
	backing := memstore.New()
	c := catalog.New(backing)
	_, err := c.Load(context.Background(), "trk-1", "Main Line", "A", "B", []model.Vertex{
		{Lat: 0.0000, Lon: 0}, {Lat: 0.0001, Lon: 0}, {Lat: 0.0002, Lon: 0},
		{Lat: 0.0003, Lon: 0}, {Lat: 0.0004, Lon: 0}, {Lat: 0.0005, Lon: 0},
	})
	require.NoError(t, err)
	ms := matchstate.New(backing)
	return New(c, ms, 30.0, 5)
}

func fixAt(lat, lon float64) model.Fix {
	return model.Fix{Latitude: lat, Longitude: lon, Timestamp: time.Now()}
}

func TestMatch_BuildsStreakToLockedCandidate(t *testing.T) {
	m := setup(t)
	ctx := context.Background()
	vertices := [][2]float64{{0.0000, 0}, {0.0001, 0}, {0.0002, 0}, {0.0003, 0}, {0.0004, 0}}

	var last model.MatchResult
	for i, v := range vertices {
		r, err := m.Match(ctx, "dev-1", "trk-1", fixAt(v[0], v[1]))
		require.NoError(t, err)
		assert.True(t, r.Matched)
		assert.Equal(t, i+1, r.Consecutive)
		last = r
	}
	assert.True(t, last.LockedCandidate, "5th consecutive match must cross K=5")
}

func TestMatch_StreakOfFourIsNotLocked(t *testing.T) {
	m := setup(t)
	ctx := context.Background()
	var last model.MatchResult
	for _, lat := range []float64{0.0000, 0.0001, 0.0002, 0.0003} {
		r, err := m.Match(ctx, "dev-1", "trk-1", fixAt(lat, 0))
		require.NoError(t, err)
		last = r
	}
	assert.Equal(t, 4, last.Consecutive)
	assert.False(t, last.LockedCandidate)
}

func TestMatch_FarFixResetsStreak(t *testing.T) {
	m := setup(t)
	ctx := context.Background()
	_, err := m.Match(ctx, "dev-1", "trk-1", fixAt(0.0000, 0))
	require.NoError(t, err)
	_, err = m.Match(ctx, "dev-1", "trk-1", fixAt(0.0001, 0))
	require.NoError(t, err)

	r, err := m.Match(ctx, "dev-1", "trk-1", fixAt(1.0, 1.0))
	require.NoError(t, err)
	assert.False(t, r.Matched)
	assert.Equal(t, 0, r.Consecutive)

	r, err = m.Match(ctx, "dev-1", "trk-1", fixAt(0.0000, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Consecutive, "streak restarts after a miss")
}

func TestMatch_UnknownTrack(t *testing.T) {
	m := setup(t)
	_, err := m.Match(context.Background(), "dev-1", "nope", fixAt(0, 0))
	require.Error(t, err)
}

func TestMatch_DistanceExactlyThresholdMatches(t *testing.T) {
	m := setup(t)
	// 30m south of the first vertex, which is then the nearest one; the
	// threshold is inclusive.
	const thresholdDeg = 30.0 / 6_371_000.0 * (180.0 / 3.14159265358979323846)
	r, err := m.Match(context.Background(), "dev-1", "trk-1", fixAt(-thresholdDeg, 0))
	require.NoError(t, err)
	assert.InDelta(t, 30.0, r.DistanceM, 1e-6)
	assert.True(t, r.Matched)
}
