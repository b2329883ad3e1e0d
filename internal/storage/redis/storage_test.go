package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/z060142/FireNET/internal/storage"
)

func setUpStorage(t *testing.T) *Storage {
	t.Helper()
	mini := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	s := NewWithClient(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorage_SetAndGet(t *testing.T) {
	s := setUpStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, storage.UserKey("nomad"), `<data uid="100001"/>`))

	value, err := s.Get(ctx, storage.UserKey("nomad"))
	require.NoError(t, err)
	require.Equal(t, `<data uid="100001"/>`, value)
}

func TestStorage_GetMissingKey(t *testing.T) {
	s := setUpStorage(t)

	_, err := s.Get(context.Background(), storage.UserKey("ghost"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_SetOverwrites(t *testing.T) {
	s := setUpStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, storage.UIDCounterKey, "100001"))
	require.NoError(t, s.Set(ctx, storage.UIDCounterKey, "100002"))

	value, err := s.Get(ctx, storage.UIDCounterKey)
	require.NoError(t, err)
	require.Equal(t, "100002", value)
}
