package soft

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"settlegate/internal/domain"
)

var mldsaScheme sign.Scheme = mldsa65.Scheme()

var errKeyNotProvisioned = errors.New("private key not provisioned")

type softKey struct {
	alg    string
	ed     ed25519.PrivateKey
	secp   *secp256k1.PrivateKey
	pq     sign.PrivateKey
	public []byte
}

// Manager keeps in-process key material for development and tests. It is the
// soft stand-in behind domain.KeyManager: every operation goes through a
// KeyRef, and nothing outside this package sees private key bytes.
type Manager struct {
	mu   sync.RWMutex
	keys map[string]softKey
}

func NewManager() *Manager {
	return &Manager{keys: make(map[string]softKey)}
}

// ProvisionEpoch generates fresh key material for every algorithm family the
// signer may be asked to use at the given epoch.
func (m *Manager) ProvisionEpoch(signerID string, epoch uint64) error {
	if signerID == "" {
		return errors.New("signer id is required")
	}
	for _, alg := range []string{domain.AlgEd25519, domain.AlgSecp256k1, domain.AlgMLDSA65} {
		ref := domain.KeyRef{SignerID: signerID, Alg: alg, Epoch: epoch}
		key, err := generateKey(alg)
		if err != nil {
			return fmt.Errorf("provision %s epoch %d: %w", alg, epoch, err)
		}
		m.mu.Lock()
		m.keys[refKey(ref)] = key
		m.mu.Unlock()
	}
	return nil
}

func (m *Manager) Sign(ctx context.Context, ref domain.KeyRef, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKeyRef(ref); err != nil {
		return nil, err
	}
	m.mu.RLock()
	key, ok := m.keys[refKey(ref)]
	m.mu.RUnlock()
	if !ok {
		return nil, errKeyNotProvisioned
	}
	switch key.alg {
	case domain.AlgEd25519:
		return ed25519.Sign(key.ed, payload), nil
	case domain.AlgSecp256k1:
		if len(payload) != 32 {
			return nil, errors.New("secp256k1 payload must be a 32-byte hash")
		}
		return secpecdsa.Sign(key.secp, payload).Serialize(), nil
	case domain.AlgMLDSA65:
		return mldsaScheme.Sign(key.pq, payload, nil), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", key.alg)
	}
}

func (m *Manager) PublicKey(ctx context.Context, ref domain.KeyRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKeyRef(ref); err != nil {
		return nil, err
	}
	m.mu.RLock()
	key, ok := m.keys[refKey(ref)]
	m.mu.RUnlock()
	if !ok {
		return nil, errKeyNotProvisioned
	}
	out := make([]byte, len(key.public))
	copy(out, key.public)
	return out, nil
}

func generateKey(alg string) (softKey, error) {
	switch alg {
	case domain.AlgEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return softKey{}, err
		}
		return softKey{alg: alg, ed: priv, public: pub}, nil
	case domain.AlgSecp256k1:
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return softKey{}, err
		}
		return softKey{alg: alg, secp: priv, public: priv.PubKey().SerializeCompressed()}, nil
	case domain.AlgMLDSA65:
		pub, priv, err := mldsaScheme.GenerateKey()
		if err != nil {
			return softKey{}, err
		}
		pubBytes, err := pub.MarshalBinary()
		if err != nil {
			return softKey{}, err
		}
		return softKey{alg: alg, pq: priv, public: pubBytes}, nil
	default:
		return softKey{}, fmt.Errorf("unsupported algorithm %q", alg)
	}
}

func refKey(ref domain.KeyRef) string {
	return fmt.Sprintf("%s|%s|%d", ref.SignerID, ref.Alg, ref.Epoch)
}

func validateKeyRef(ref domain.KeyRef) error {
	if ref.SignerID == "" || ref.Alg == "" {
		return errors.New("key ref is required")
	}
	switch ref.Alg {
	case domain.AlgEd25519, domain.AlgSecp256k1, domain.AlgMLDSA65:
		return nil
	default:
		return fmt.Errorf("unsupported algorithm %q", ref.Alg)
	}
}
