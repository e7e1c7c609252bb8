package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Credentials{Endpoint: "turn:relay.example.org:3478", User: "lan", Credential: "s3cret"}

func TestComplete(t *testing.T) {
	assert.True(t, sample.Complete())
	assert.False(t, Credentials{Endpoint: "turn:x", User: "u"}.Complete())
	assert.False(t, Credentials{Endpoint: " ", User: "u", Credential: "p"}.Complete())
	assert.False(t, Credentials{}.Complete())
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "turn.json")
	store := NewFile(path)

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, empty)

	require.NoError(t, store.Save(ctx, sample))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"turnUrl"`)
	assert.Contains(t, string(raw), `"turnPass"`)
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turn.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFile(path).Load(context.Background())
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Credentials{})
	require.NoError(t, m.Save(ctx, sample))
	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample, got)
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb, err := ConnectRedis(addr, 15)
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	store := NewRedis(rdb, "loto_turn_config_test")
	defer rdb.Del(ctx, store.Key)
	rdb.Del(ctx, store.Key)

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, empty)

	require.NoError(t, store.Save(ctx, sample))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample, got)
}
