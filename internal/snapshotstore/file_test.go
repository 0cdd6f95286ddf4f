package snapshotstore

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return hex.EncodeToString(make([]byte, 32))
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.bin")

	store, err := NewFileStore(path, testKey())
	require.NoError(t, err)

	payload := []byte("pretend this is a serialized engine snapshot")
	require.NoError(t, store.Save(context.Background(), payload))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFileStoreLoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "absent.bin"), testKey())
	require.NoError(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewFileStoreRejectsBadKey(t *testing.T) {
	_, err := NewFileStore("/tmp/whatever", "not-hex")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewFileStore("/tmp/whatever", hex.EncodeToString(make([]byte, 16)))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFileStoreRejectsTamperedCiphertext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.bin")

	store, err := NewFileStore(path, testKey())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), []byte("original")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = store.Load(context.Background())
	assert.Error(t, err)
}

func TestFileStoreOverwritesOnSecondSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.bin")
	store, err := NewFileStore(path, testKey())
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), []byte("first")))
	require.NoError(t, store.Save(context.Background(), []byte("second")))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}
