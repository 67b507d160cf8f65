package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatdilshan/railway-safety-research/internal/model"
	"github.com/gatdilshan/railway-safety-research/internal/store/memstore"
)

func twoVertices() []model.Vertex {
	return []model.Vertex{{Lat: 0, Lon: 0}, {Lat: 0.001, Lon: 0}}
}

func TestLoad_RejectsShortPolyline(t *testing.T) {
	c := New(memstore.New())

	_, err := c.Load(context.Background(), "trk-1", "Main Line", "A", "B", []model.Vertex{{Lat: 0, Lon: 0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidTrack))

	_, err = c.Load(context.Background(), "trk-1", "Main Line", "A", "B", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidTrack))
}

func TestLoad_GetRoundTrip(t *testing.T) {
	c := New(memstore.New())

	track, err := c.Load(context.Background(), "trk-1", "Main Line", "A", "B", twoVertices())
	require.NoError(t, err)
	assert.True(t, track.IsActive)

	got, err := c.Get("trk-1")
	require.NoError(t, err)
	assert.Equal(t, "Main Line", got.Name)
	assert.Len(t, got.Vertices, 2)
}

func TestGet_UnknownTrack(t *testing.T) {
	c := New(memstore.New())
	_, err := c.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUnknownTrack))
}

func TestList_ReturnsAllLoadedTracks(t *testing.T) {
	c := New(memstore.New())
	_, err := c.Load(context.Background(), "trk-1", "A Line", "A", "B", twoVertices())
	require.NoError(t, err)
	_, err = c.Load(context.Background(), "trk-2", "B Line", "C", "D", twoVertices())
	require.NoError(t, err)

	got := c.List()
	assert.Len(t, got, 2)
}

func TestDelete_RemovesTrack(t *testing.T) {
	c := New(memstore.New())
	_, err := c.Load(context.Background(), "trk-1", "Main Line", "A", "B", twoVertices())
	require.NoError(t, err)

	require.NoError(t, c.Delete(context.Background(), "trk-1"))

	_, err = c.Get("trk-1")
	assert.True(t, errors.Is(err, model.ErrUnknownTrack))
}

func TestDelete_UnknownTrack(t *testing.T) {
	c := New(memstore.New())
	err := c.Delete(context.Background(), "nope")
	assert.True(t, errors.Is(err, model.ErrUnknownTrack))
}

func TestSetActive_ExclusiveSelection(t *testing.T) {
	c := New(memstore.New())
	_, err := c.Load(context.Background(), "trk-1", "Main Line", "A", "B", twoVertices())
	require.NoError(t, err)
	_, err = c.Load(context.Background(), "trk-2", "Branch Line", "C", "D", twoVertices())
	require.NoError(t, err)

	require.NoError(t, c.SetActive(context.Background(), "trk-2"))

	got1, err := c.Get("trk-1")
	require.NoError(t, err)
	assert.False(t, got1.IsActive)

	got2, err := c.Get("trk-2")
	require.NoError(t, err)
	assert.True(t, got2.IsActive)

	active, ok := c.Active()
	require.True(t, ok)
	assert.Equal(t, "trk-2", active.TrackID)
}

func TestSetActive_UnknownTrack(t *testing.T) {
	c := New(memstore.New())
	err := c.SetActive(context.Background(), "nope")
	assert.True(t, errors.Is(err, model.ErrUnknownTrack))
}

func TestLoad_StoreUnavailableDoesNotMutateCatalog(t *testing.T) {
	base := memstore.New()
	failing := memstore.NewFailing(base)
	c := New(failing)

	_, err := c.Load(context.Background(), "trk-1", "Main Line", "A", "B", twoVertices())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrStoreUnavailable))

	_, err = c.Get("trk-1")
	assert.True(t, errors.Is(err, model.ErrUnknownTrack), "failed store write must not be reflected in memory")
}

func TestBootstrap_LoadsExistingTracksFromStore(t *testing.T) {
	base := memstore.New()
	require.NoError(t, base.SaveTrack(context.Background(), model.Track{
		TrackID:  "trk-1",
		Name:     "Main Line",
		Vertices: twoVertices(),
		IsActive: true,
	}))

	c := New(base)
	require.NoError(t, c.Bootstrap(context.Background()))

	got, err := c.Get("trk-1")
	require.NoError(t, err)
	assert.Equal(t, "Main Line", got.Name)
}
