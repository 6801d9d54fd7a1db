package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/storefront/pkg/apperr"
)

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "test:")
	t.Cleanup(func() { s.Close() })
	return s
}

func backends(t *testing.T) map[string]Store {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"redis":  newRedisTestStore(t),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, KeyCart)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, KeyCart, `[{"id":1}]`))
			require.NoError(t, s.Set(ctx, KeyUserToken, "id-token"))
			require.NoError(t, s.Set(ctx, KeyAdminToken, "session"))

			v, ok, err := s.Get(ctx, KeyCart)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[{"id":1}]`, v)

			require.NoError(t, s.Set(ctx, KeyCart, `[]`))
			v, _, _ = s.Get(ctx, KeyCart)
			assert.Equal(t, `[]`, v, "set replaces the whole value")

			require.NoError(t, s.Delete(ctx, KeyUserToken, KeyAdminToken, "missing"))
			_, ok, _ = s.Get(ctx, KeyUserToken)
			assert.False(t, ok)
			_, ok, _ = s.Get(ctx, KeyAdminToken)
			assert.False(t, ok)
			_, ok, _ = s.Get(ctx, KeyCart)
			assert.True(t, ok)
		})
	}
}

func TestFileStoreSharedBetweenInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	a, err := NewFileStore(path)
	require.NoError(t, err)
	b, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, KeyProductsUpdated, "1700000000000"))

	v, ok, err := b.Get(ctx, KeyProductsUpdated)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1700000000000", v)
}

func TestFileStoreConcurrentWritersKeepEveryKey(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	a, err := NewFileStore(path)
	require.NoError(t, err)
	b, err := NewFileStore(path)
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for name, s := range map[string]*FileStore{"a": a, "b": b} {
			wg.Add(1)
			go func(key string, s *FileStore) {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, key, "v"))
			}(fmt.Sprintf("%s-%d", name, i), s)
		}
	}
	wg.Wait()

	for _, name := range []string{"a", "b"} {
		for i := 0; i < n; i++ {
			_, ok, err := a.Get(ctx, fmt.Sprintf("%s-%d", name, i))
			require.NoError(t, err)
			assert.True(t, ok, "%s-%d lost", name, i)
		}
	}
}

func TestFileStoreCorruptFileStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyCart, "[]"))
	v, ok, err := s.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", v)
}

func TestReadJSONMalformed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, KeyCart, "not-json"))

	lines := []string{"keep"}
	err := ReadJSON(ctx, s, KeyCart, &lines)
	require.Error(t, err)
	assert.Equal(t, apperr.KindMalformedCache, apperr.KindOf(err))

	var missing []string
	require.NoError(t, ReadJSON(ctx, s, KeyCachedProducts, &missing))
	assert.Nil(t, missing)
}

func TestWriteThenReadJSON(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := map[string]int{"a": 1}
	require.NoError(t, WriteJSON(ctx, s, KeyUserData, in))

	var out map[string]int
	require.NoError(t, ReadJSON(ctx, s, KeyUserData, &out))
	assert.Equal(t, in, out)
}

func TestNotifiers(t *testing.T) {
	notifiers := map[string]interface {
		Store
		Notifier
	}{
		"memory": NewMemoryStore(),
		"redis":  newRedisTestStore(t),
	}
	for name, n := range notifiers {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			ch, err := n.Subscribe(ctx, ChannelProductsUpdated)
			require.NoError(t, err)

			require.NoError(t, n.Publish(ctx, ChannelProductsUpdated, "42"))

			select {
			case msg := <-ch:
				assert.Equal(t, "42", msg)
			case <-time.After(2 * time.Second):
				t.Fatal("no signal received")
			}
		})
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	_, _, err := s.Get(context.Background(), KeyCart)
	assert.ErrorIs(t, err, ErrClosed)
}
