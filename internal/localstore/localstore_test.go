package localstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok, err := s.Get("isAuthenticated")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("isAuthenticated", "true"))
	v, ok, err := s.Get("isAuthenticated")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, s.Delete("isAuthenticated"))
	_, ok, err = s.Get("isAuthenticated")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Delete("missing"))
}

func TestValuesPersistAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	a, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, a.Set("cookies", `[{"name":"sessionid"}]`))

	b, err := Open(dir)
	require.NoError(t, err)
	v, ok, err := b.Get("cookies")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"name":"sessionid"}]`, v)

	info, err := os.Stat(a.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCorruptFile(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, _, err = s.Get("x")
	assert.Error(t, err)
}

func TestWatchSeesOtherWriters(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := Open(dir)
	require.NoError(t, err)
	writer, err := Open(dir)
	require.NoError(t, err)

	var changes atomic.Int32
	require.NoError(t, watcher.Watch(ctx, func() { changes.Add(1) }))

	require.NoError(t, writer.Set("isAuthenticated", "true"))

	assert.Eventually(t, func() bool { return changes.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConcurrentWritersFromSeparateStores(t *testing.T) {
	dir := t.TempDir()

	stores := make([]*Store, 2)
	for i := range stores {
		s, err := Open(dir)
		require.NoError(t, err)
		stores[i] = s
	}

	var wg sync.WaitGroup
	for i, s := range stores {
		for j := 0; j < 20; j++ {
			wg.Add(1)
			go func(s *Store, key string) {
				defer wg.Done()
				assert.NoError(t, s.Set(key, "v"))
			}(s, fmt.Sprintf("k%d-%d", i, j))
		}
	}
	wg.Wait()

	for i := range stores {
		for j := 0; j < 20; j++ {
			_, ok, err := stores[0].Get(fmt.Sprintf("k%d-%d", i, j))
			require.NoError(t, err)
			assert.True(t, ok, "k%d-%d lost", i, j)
		}
	}
}
