package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/redisclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKV struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = data
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) GetJSON(_ context.Context, key string, dest interface{}) error {
	if m.err != nil {
		return m.err
	}
	data, ok := m.values[key]
	if !ok {
		return redisclient.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryKV) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisStoreLifecycle(t *testing.T) {
	kv := newMemoryKV()
	store := NewRedisStore(kv, 30*time.Minute)
	ctx := context.Background()
	id := NewID()

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	user := &UserContext{CustomerID: 7, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, store.Set(ctx, id, user))
	assert.Equal(t, 30*time.Minute, kv.ttls["session:"+id])

	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	require.NoError(t, store.Destroy(ctx, id))
	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreEmptyID(t *testing.T) {
	store := NewRedisStore(newMemoryKV(), time.Minute)

	got, err := store.Get(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, store.Destroy(context.Background(), ""))
}

func TestRedisStoreBackendError(t *testing.T) {
	kv := newMemoryKV()
	kv.err = errors.New("connection refused")
	store := NewRedisStore(kv, time.Minute)

	_, err := store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, kv.err)
	assert.Error(t, store.Set(context.Background(), "abc", &UserContext{}))
}

func TestNewIDUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
