package secretstore

import (
	"fmt"
	"os"
)

// DefaultMasterKeyEnv is the environment variable the daemon reads the
// master key from unless configured otherwise.
const DefaultMasterKeyEnv = "DPLY_MASTER_KEY"

// EnvMasterKeyProvider reads the AES master key from an environment
// variable. It fails fast when the variable is unset or the key is not a
// valid AES-128/AES-256 length.
type EnvMasterKeyProvider struct {
	// Var is the environment variable name. Empty means DefaultMasterKeyEnv.
	Var string
}

func (p EnvMasterKeyProvider) Key() ([]byte, error) {
	name := p.Var
	if name == "" {
		name = DefaultMasterKeyEnv
	}
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return nil, fmt.Errorf("master key environment variable %s is not set", name)
	}
	key := []byte(raw)
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// ValidateKey checks that key material is a legal AES key length.
func ValidateKey(key []byte) error {
	if len(key) != 16 && len(key) != 32 {
		return fmt.Errorf("master key must be 16 or 32 bytes for AES, got %d", len(key))
	}
	return nil
}

// StaticMasterKeyProvider holds a fixed key. Used in tests and anywhere the
// key is resolved by other means.
type StaticMasterKeyProvider []byte

func (p StaticMasterKeyProvider) Key() ([]byte, error) {
	if err := ValidateKey(p); err != nil {
		return nil, err
	}
	return p, nil
}
