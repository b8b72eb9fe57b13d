package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("empty URL disables redis", func(t *testing.T) {
		client, err := New(ctx, Config{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("invalid URL is rejected", func(t *testing.T) {
		_, err := New(ctx, Config{URL: "not-a-url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse redis URL")
	})

	t.Run("connects and reports healthy", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := New(ctx, Config{URL: "redis://" + mr.Addr()})
		require.NoError(t, err)
		require.NotNil(t, client)
		t.Cleanup(func() { _ = client.Close() })

		assert.NoError(t, client.Health(ctx))
	})

	t.Run("unreachable server fails the ping", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := New(ctx, Config{URL: "redis://" + addr})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis ping failed")
	})
}
