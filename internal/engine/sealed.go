package engine

import (
	"context"

	"github.com/ilpi-dev/ilpi-store/internal/vault"
)

// SealedBackend encrypts every value before handing it to the wrapped backend.
type SealedBackend struct {
	inner     Backend
	masterKey []byte
}

// NewSealedBackend wraps inner. masterKey must be 32 bytes.
func NewSealedBackend(inner Backend, masterKey []byte) *SealedBackend {
	return &SealedBackend{inner: inner, masterKey: masterKey}
}

func (s *SealedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	ciphertext, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return vault.Decrypt(string(ciphertext), s.masterKey)
}

func (s *SealedBackend) Put(ctx context.Context, key string, value []byte) error {
	ciphertext, err := vault.Encrypt(value, s.masterKey)
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, key, []byte(ciphertext))
}

func (s *SealedBackend) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *SealedBackend) Close() error {
	return s.inner.Close()
}
