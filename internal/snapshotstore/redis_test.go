package snapshotstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedisClient struct {
	data map[string]string
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{data: make(map[string]string)}
}

func (f *fakeRedisClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		return errors.New("unsupported value type")
	}
	return nil
}

func (f *fakeRedisClient) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := newFakeRedisClient()
	store := NewRedisStore(client, "ocpp:snapshot:CP-1")

	require.NoError(t, store.Save(context.Background(), []byte("snapshot-bytes")))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot-bytes"), got)
}

func TestRedisStoreLoadMissingKeyReturnsNil(t *testing.T) {
	client := newFakeRedisClient()
	store := NewRedisStore(client, "ocpp:snapshot:CP-1")

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}
