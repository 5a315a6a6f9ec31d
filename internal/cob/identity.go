package cob

// PublicKey identifies the author of an action. The core treats it as an
// opaque, totally ordered string; keys produced by the identity package are
// hex-encoded ed25519 public keys.
type PublicKey string

// String implements fmt.Stringer.
func (k PublicKey) String() string {
	return string(k)
}

// Short returns an abbreviated form for display.
func (k PublicKey) Short() string {
	if len(k) <= 12 {
		return string(k)
	}
	return string(k[:6]) + "…" + string(k[len(k)-6:])
}

// Signer authorizes actions. The core requires a signature to append but
// never verifies one.
type Signer interface {
	PublicKey() PublicKey
	Sign(payload []byte) ([]byte, error)
}
