package domain

import "context"

// KeyRef identifies a signing key without carrying its material. Signers
// receive a reference and a payload, never raw key bytes, so a hardware or
// remote custody backend can replace the soft manager without any interface
// change.
type KeyRef struct {
	SignerID string
	Alg      string
	Epoch    uint64
}

// KeyManager performs cryptographic operations against keys resolved by
// KeyRef. Sign may block on an external custody call; implementations must
// honor ctx cancellation and deadlines.
type KeyManager interface {
	Sign(ctx context.Context, ref KeyRef, payload []byte) ([]byte, error)
	PublicKey(ctx context.Context, ref KeyRef) ([]byte, error)
}
