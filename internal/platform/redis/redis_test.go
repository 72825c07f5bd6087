package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherblog/internal/config"
)

func TestNew(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := New(context.Background(), config.RedisConfig{Addr: srv.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := srv.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNew_Unreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := New(context.Background(), config.RedisConfig{Addr: addr})
	assert.ErrorContains(t, err, "ping redis")
}
