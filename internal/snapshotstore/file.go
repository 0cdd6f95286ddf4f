package snapshotstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidKey is returned when the configured encryption key is not a
// valid chacha20poly1305 key.
var ErrInvalidKey = errors.New("snapshotstore: encryption key must be 32 bytes hex-encoded")

// FileStore persists a snapshot to a local file, encrypted at rest with
// ChaCha20-Poly1305. The key is supplied as a 64-character hex string
// (32 raw bytes).
type FileStore struct {
	path string
	aead chacha20poly1305.AEAD
}

// NewFileStore builds a FileStore writing to path, encrypting with
// hexKey. An empty hexKey is rejected: snapshots contain pending
// transaction payloads and must not be written in plaintext.
func NewFileStore(path, hexKey string) (*FileStore, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: %w", err)
	}
	return &FileStore{path: path, aead: aead}, nil
}

// Save encrypts data and writes it atomically via a temp file + rename.
func (s *FileStore) Save(_ context.Context, data []byte) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("snapshotstore: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, data, nil)

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("snapshotstore: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshotstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshotstore: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("snapshotstore: rename temp file: %w", err)
	}
	return nil
}

// Load reads and decrypts the snapshot file. A missing file is not an
// error: it returns (nil, nil) so the caller starts from an empty engine.
func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: read file: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("snapshotstore: truncated file")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: decrypt: %w", err)
	}
	return plain, nil
}
