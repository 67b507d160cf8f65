package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// A nil *redis.Client is the configuration used whenever a deployment (or a
// test) runs without Redis; every method must degrade to a no-op miss
// instead of panicking or erroring.
func TestTrackCache_NilClientIsAlwaysAMiss(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	_, ok := c.GetList(ctx)
	assert.False(t, ok)

	_, ok = c.GetTrack(ctx, "trk-1")
	assert.False(t, ok)

	// These must not panic even though there is nothing to write to.
	c.SetList(ctx, []model.Track{{TrackID: "trk-1"}})
	c.SetTrack(ctx, model.Track{TrackID: "trk-1"})
	c.Invalidate(ctx, "trk-1")
	c.PublishCollision(ctx, model.CollisionReport{Collision: true, Trains: []string{"T1", "T2"}}, "trk-1")
}

func TestTrackKey_PrefixesTrackID(t *testing.T) {
	assert.Equal(t, "catalog:track:trk-1", trackKey("trk-1"))
}
