package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/herohde/shogiserver/internal/room"
	"github.com/herohde/shogiserver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := room.Snapshot{Status: room.Playing, GameCount: 2}
	require.NoError(t, s.Save(ctx, "r1", snap))

	loaded, ok, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, room.Playing, loaded.Status)
	assert.Equal(t, 2, loaded.GameCount)
}

func TestLoadMissingRoomIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadAllEnumeratesEverySavedRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "r1", room.Snapshot{GameCount: 1}))
	require.NoError(t, s.Save(ctx, "r2", room.Snapshot{GameCount: 2}))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 1, all["r1"].GameCount)
	assert.Equal(t, 2, all["r2"].GameCount)
}

func TestGCDeletesStaleRoomsOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "stale", room.Snapshot{}))
	require.NoError(t, s.Save(ctx, "live", room.Snapshot{}))

	// Backdate "stale" by saving then manually waiting is impractical in a
	// unit test; instead use a maxAge of 0 so both look stale, and rely on
	// isLive to protect "live".
	gcCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.GC(gcCtx, 10*time.Millisecond, 0, func(roomID string) bool { return roomID == "live" })
		close(done)
	}()
	time.Sleep(25 * time.Millisecond)
	cancel()
	<-done

	_, staleOK, err := s.Load(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, staleOK)

	_, liveOK, err := s.Load(ctx, "live")
	require.NoError(t, err)
	assert.True(t, liveOK)
}
