// Package secretstore owns the lifecycle of encrypted credential blobs
// (kubeconfigs). Callers hold only opaque references; the secret material
// itself never leaves the store unencrypted except through Load.
package secretstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Load when no blob exists for the reference.
	ErrNotFound = errors.New("secret not found")
	// ErrIntegrity is returned by Load when the blob exists but fails
	// authentication (tampered data or the wrong master key). Kept distinct
	// from ErrNotFound so callers can tell misconfiguration from absence.
	ErrIntegrity = errors.New("secret failed integrity check")
)

// Ref is an opaque handle to a stored secret. Backend tags which store
// implementation produced it; ID is backend-specific. A Ref never contains
// the secret itself.
type Ref struct {
	Backend string
	ID      string
}

func (r Ref) String() string {
	return r.Backend + ":" + r.ID
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return r.Backend == "" && r.ID == ""
}

// ParseRef parses the serialized form produced by Ref.String.
func ParseRef(s string) (Ref, error) {
	backend, id, ok := strings.Cut(s, ":")
	if !ok || backend == "" || id == "" {
		return Ref{}, fmt.Errorf("malformed secret reference %q", s)
	}
	return Ref{Backend: backend, ID: id}, nil
}

// Store encrypts, decrypts and deletes opaque secret blobs.
type Store interface {
	// Store encrypts plaintext and persists it addressed by key, returning
	// a reference that uniquely identifies the blob.
	Store(key string, plaintext []byte) (Ref, error)
	// Load locates the blob by reference, decrypts and authenticates it.
	Load(ref Ref) ([]byte, error)
	// Delete removes the blob. Absence is not an error.
	Delete(ref Ref) error
}

// MasterKeyProvider supplies the symmetric key used by a Store. The key is
// resolved once at startup and held for the process lifetime.
type MasterKeyProvider interface {
	Key() ([]byte, error)
}
