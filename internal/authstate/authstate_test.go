package authstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learningTrackerAPI/internal/localstore"
	"learningTrackerAPI/internal/logger"
)

func TestDefaultsToLoggedOut(t *testing.T) {
	s, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	h := New(s, logger.Test(t))
	assert.False(t, h.IsAuthenticated())
}

func TestSetPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := localstore.Open(dir)
	require.NoError(t, err)

	h := New(s, logger.Test(t))
	require.NoError(t, h.Set(true))
	assert.True(t, h.IsAuthenticated())

	v, ok, err := s.Get(Key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	other, err := localstore.Open(dir)
	require.NoError(t, err)
	assert.True(t, New(other, logger.Test(t)).IsAuthenticated())

	require.NoError(t, h.Set(false))
	v, _, err = s.Get(Key)
	require.NoError(t, err)
	assert.Equal(t, "false", v)
}

func TestSyncPicksUpExternalWrites(t *testing.T) {
	s, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	h := New(s, logger.Test(t))
	require.NoError(t, s.Set(Key, "true"))
	assert.False(t, h.IsAuthenticated(), "in-memory value is stale until synced")
	assert.True(t, h.Sync())
	assert.True(t, h.IsAuthenticated())
}

func TestWatchNotifiesOnFlip(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := localstore.Open(dir)
	require.NoError(t, err)
	h := New(s, logger.Test(t))

	got := make(chan bool, 4)
	require.NoError(t, h.Watch(ctx, func(v bool) { got <- v }))

	other, err := localstore.Open(dir)
	require.NoError(t, err)
	require.NoError(t, New(other, logger.Test(t)).Set(true))

	select {
	case v := <-got:
		assert.True(t, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
	assert.True(t, h.IsAuthenticated())
}
