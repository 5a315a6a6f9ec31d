// Package identity provides the local node identity: an ed25519 keypair
// that signs actions, and a directory of display aliases for public keys.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/cobs/internal/cob"
)

const pemType = "PRIVATE KEY"

// Keypair is an ed25519 signing identity. It implements cob.Signer; the
// public key is its lowercase hex encoding.
type Keypair struct {
	private ed25519.PrivateKey
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keypair{private: priv}, nil
}

// FromSeed derives a keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// LoadKeypair reads a PEM-encoded PKCS#8 ed25519 private key.
func LoadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemType {
		return nil, fmt.Errorf("load key %s: no %s block", path, pemType)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", path, err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("load key %s: not an ed25519 key (%T)", path, key)
	}
	return &Keypair{private: priv}, nil
}

// Save writes the private key as PEM-encoded PKCS#8 with mode 0600.
// An existing file is never overwritten.
func (k *Keypair) Save(path string) error {
	der, err := x509.MarshalPKCS8PrivateKey(k.private)
	if err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("save key: %s already exists", path)
		}
		return fmt.Errorf("save key: %w", err)
	}
	if err := pem.Encode(f, &pem.Block{Type: pemType, Bytes: der}); err != nil {
		f.Close()
		return fmt.Errorf("save key: %w", err)
	}
	return f.Close()
}

// PublicKey implements cob.Signer.
func (k *Keypair) PublicKey() cob.PublicKey {
	return cob.PublicKey(hex.EncodeToString(k.private.Public().(ed25519.PublicKey)))
}

// Sign implements cob.Signer.
func (k *Keypair) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(k.private, payload), nil
}

// Verify checks an ed25519 signature made by key over payload.
func Verify(key cob.PublicKey, payload, sig []byte) bool {
	raw, err := hex.DecodeString(string(key))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(raw), payload, sig)
}

// VerifyAction checks the signature on an action.
func VerifyAction(a cob.Action) error {
	payload, err := a.Payload()
	if err != nil {
		return fmt.Errorf("verify action %s: %w", a.ID.Short(), err)
	}
	if !Verify(a.Author, payload, a.Signature) {
		return fmt.Errorf("verify action %s: bad signature", a.ID.Short())
	}
	return nil
}
