package arbiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatdilshan/railway-safety-research/internal/store/memstore"
)

func TestAcquire_FirstClaimGrantedNotHeldByOther(t *testing.T) {
	a := New(memstore.New())
	res, err := a.Acquire(context.Background(), "T1", "D1", "trk-1")
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.False(t, res.AlreadyHeldByOther)
}

func TestAcquire_SameTrainIdempotent(t *testing.T) {
	a := New(memstore.New())
	ctx := context.Background()
	_, err := a.Acquire(ctx, "T1", "D1", "trk-1")
	require.NoError(t, err)

	res, err := a.Acquire(ctx, "T1", "D1", "trk-1")
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.False(t, res.AlreadyHeldByOther)

	holders := a.Holders("trk-1")
	assert.Len(t, holders, 1)
}

func TestAcquire_SecondTrainRecordedAsCoClaimAndFlagged(t *testing.T) {
	a := New(memstore.New())
	ctx := context.Background()
	_, err := a.Acquire(ctx, "T1", "D1", "trk-1")
	require.NoError(t, err)

	res, err := a.Acquire(ctx, "T2", "D2", "trk-1")
	require.NoError(t, err)
	assert.True(t, res.Granted, "acquire always records the calling train's own claim")
	assert.True(t, res.AlreadyHeldByOther)

	holders := a.Holders("trk-1")
	assert.Len(t, holders, 2)
	assert.Equal(t, "T1", holders[0].TrainID)
	assert.Equal(t, "T2", holders[1].TrainID)
}

func TestRelease_RemovesLock(t *testing.T) {
	a := New(memstore.New())
	ctx := context.Background()
	_, err := a.Acquire(ctx, "T1", "D1", "trk-1")
	require.NoError(t, err)

	require.NoError(t, a.Release(ctx, "T1", "trk-1"))
	assert.Empty(t, a.Holders("trk-1"))
}

func TestRelease_NoopWhenAbsent(t *testing.T) {
	a := New(memstore.New())
	require.NoError(t, a.Release(context.Background(), "T1", "trk-1"))
}

func TestAcquire_StoreUnavailableDoesNotRecordHolder(t *testing.T) {
	failing := memstore.NewFailing(memstore.New())
	a := New(failing)
	_, err := a.Acquire(context.Background(), "T1", "D1", "trk-1")
	require.Error(t, err)
	assert.Empty(t, a.Holders("trk-1"))
}

func TestBootstrap_LoadsExistingLocks(t *testing.T) {
	base := memstore.New()
	ctx := context.Background()
	a := New(base)
	_, err := a.Acquire(ctx, "T1", "D1", "trk-1")
	require.NoError(t, err)

	a2 := New(base)
	require.NoError(t, a2.Bootstrap(ctx))
	assert.Len(t, a2.Holders("trk-1"), 1)
}
