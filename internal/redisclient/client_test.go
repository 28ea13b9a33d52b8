package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cached struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestJSONRoundTrip(t *testing.T) {
	t.Skip("Integration test - requires redis")

	client, err := NewClient("localhost:6379", "", 15)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	key := "test:product:1"

	require.NoError(t, client.SetJSON(ctx, key, cached{ID: 1, Name: "Mug"}, time.Minute))

	var got cached
	require.NoError(t, client.GetJSON(ctx, key, &got))
	assert.Equal(t, cached{ID: 1, Name: "Mug"}, got)

	require.NoError(t, client.Delete(ctx, key))
	assert.ErrorIs(t, client.GetJSON(ctx, key, &got), ErrCacheMiss)
}

func TestDeleteNoKeys(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.Delete(context.Background()))
}
