package secretstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dply/pkg/logging"
)

const fileBackend = "file"

// EncryptedFileStore persists secrets as AES-GCM encrypted files under a
// base directory, one file per key, stored as nonce||ciphertext. A fresh
// random nonce is generated on every Store call.
type EncryptedFileStore struct {
	baseDir string
	key     []byte
}

// NewEncryptedFileStore resolves the master key from the provider, validates
// it and creates the base directory. The key is held immutably for the
// lifetime of the store and is never logged.
func NewEncryptedFileStore(baseDir string, keys MasterKeyProvider) (*EncryptedFileStore, error) {
	key, err := keys.Key()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve master key: %w", err)
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create secret directory %s: %w", baseDir, err)
	}
	logging.Info("secretstore", "encrypted file store ready at %s", baseDir)
	return &EncryptedFileStore{baseDir: baseDir, key: key}, nil
}

func (s *EncryptedFileStore) Store(key string, plaintext []byte) (Ref, error) {
	name := key + ".enc"
	blob, err := s.encrypt(plaintext)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to encrypt secret %s: %w", key, err)
	}
	if err := os.WriteFile(filepath.Join(s.baseDir, name), blob, 0o600); err != nil {
		return Ref{}, fmt.Errorf("failed to write secret %s: %w", key, err)
	}
	return Ref{Backend: fileBackend, ID: name}, nil
}

func (s *EncryptedFileStore) Load(ref Ref) ([]byte, error) {
	blob, err := os.ReadFile(filepath.Join(s.baseDir, filepath.Base(ref.ID)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secret %s: %w", ref.ID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read secret %s: %w", ref.ID, err)
	}
	plaintext, err := s.decrypt(blob)
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", ref.ID, err)
	}
	return plaintext, nil
}

func (s *EncryptedFileStore) Delete(ref Ref) error {
	err := os.Remove(filepath.Join(s.baseDir, filepath.Base(ref.ID)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete secret %s: %w", ref.ID, err)
	}
	return nil
}

func (s *EncryptedFileStore) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	// Seal appends ciphertext+tag to the nonce, yielding nonce||ciphertext.
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *EncryptedFileStore) decrypt(blob []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("blob shorter than nonce: %w", ErrIntegrity)
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return plaintext, nil
}
