package testutil

import (
	"crypto/sha256"

	"github.com/roach88/cobs/internal/cob"
)

// Signer is a fake cob.Signer whose public key is a readable name.
//
// Names order the way they read ("alice" < "bob" < "carol"), which makes
// tie-break winners predictable in tests. The signature is a hash of the
// name and payload; nothing verifies it.
//
// Thread-safety: Signer is immutable and safe for concurrent use.
type Signer struct {
	name string
}

// NewSigner creates a fake signer. If name is empty, "test-author" is used.
func NewSigner(name string) Signer {
	if name == "" {
		name = "test-author"
	}
	return Signer{name: name}
}

// PublicKey implements cob.Signer.
func (s Signer) PublicKey() cob.PublicKey {
	return cob.PublicKey(s.name)
}

// Sign implements cob.Signer.
func (s Signer) Sign(payload []byte) ([]byte, error) {
	sum := sha256.Sum256(append([]byte(s.name+":"), payload...))
	return sum[:], nil
}
