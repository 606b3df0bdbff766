// Package seal is the off-chain sealed-secret provider. It encrypts a claim
// code to a specific recipient so only that recipient can recover it; the
// registry stores the result as opaque bytes and performs no cryptography of
// its own.
//
// The construction is single-shot HPKE (X25519-HKDF-SHA256, HKDF-SHA256,
// ChaCha20-Poly1305). Recipient identities on the ledger are fingerprints of
// the recipient's KEM public key.
package seal

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"
	"golang.org/x/crypto/sha3"

	"xdao.co/claimvault/ledger"
)

const (
	kemID  = hpke.KEM_X25519_HKDF_SHA256
	kdfID  = hpke.KDF_HKDF_SHA256
	aeadID = hpke.AEAD_ChaCha20Poly1305
)

// info binds ciphertexts to this protocol; payloads sealed for any other
// purpose will not open here.
var info = []byte("claimvault/sealed-secret/v1")

// IdentityPrefix tags ledger identities derived from sealing keys.
const IdentityPrefix = "cv1:"

// SealedSecret is an HPKE single-shot payload: the KEM encapsulation plus the
// AEAD ciphertext of the secret.
type SealedSecret struct {
	Enc        []byte `json:"enc"`
	Ciphertext []byte `json:"ct"`
}

// Encode renders the sealed secret as the opaque bytes the registry stores.
func (s *SealedSecret) Encode() ([]byte, error) {
	if s == nil || len(s.Enc) == 0 || len(s.Ciphertext) == 0 {
		return nil, errors.New("seal: incomplete sealed secret")
	}
	return json.Marshal(s)
}

// Decode parses bytes produced by Encode.
func Decode(b []byte) (*SealedSecret, error) {
	var s SealedSecret
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("seal: malformed sealed secret: %w", err)
	}
	if len(s.Enc) == 0 || len(s.Ciphertext) == 0 {
		return nil, errors.New("seal: incomplete sealed secret")
	}
	return &s, nil
}

// Scheme returns the KEM scheme sealing keys are generated under.
func Scheme() kem.Scheme { return kemID.Scheme() }

// GenerateKeyPair returns a fresh recipient keypair.
func GenerateKeyPair() (kem.PublicKey, kem.PrivateKey, error) {
	return Scheme().GenerateKeyPair()
}

// DeriveKeyPair derives a keypair from a seed of Scheme().SeedSize() bytes.
// Deterministic; used by tests and seeded key stores.
func DeriveKeyPair(seed []byte) (kem.PublicKey, kem.PrivateKey, error) {
	scheme := Scheme()
	if len(seed) != scheme.SeedSize() {
		return nil, nil, fmt.Errorf("seal: seed must be %d bytes, got %d", scheme.SeedSize(), len(seed))
	}
	pub, priv := scheme.DeriveKeyPair(seed)
	return pub, priv, nil
}

// Seal encrypts a secret to the recipient public key.
func Seal(secret []byte, to kem.PublicKey) (*SealedSecret, error) {
	if to == nil {
		return nil, errors.New("seal: missing recipient public key")
	}
	suite := hpke.NewSuite(kemID, kdfID, aeadID)
	sender, err := suite.NewSender(to, info)
	if err != nil {
		return nil, fmt.Errorf("seal: sender setup: %w", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("seal: encapsulation: %w", err)
	}
	ct, err := sealer.Seal(secret, nil)
	if err != nil {
		return nil, fmt.Errorf("seal: encryption: %w", err)
	}
	return &SealedSecret{Enc: enc, Ciphertext: ct}, nil
}

// Open decrypts a sealed secret with the recipient private key.
func Open(s *SealedSecret, priv kem.PrivateKey) ([]byte, error) {
	if s == nil || priv == nil {
		return nil, errors.New("seal: missing sealed secret or private key")
	}
	suite := hpke.NewSuite(kemID, kdfID, aeadID)
	receiver, err := suite.NewReceiver(priv, info)
	if err != nil {
		return nil, fmt.Errorf("seal: receiver setup: %w", err)
	}
	opener, err := receiver.Setup(s.Enc)
	if err != nil {
		return nil, fmt.Errorf("seal: decapsulation: %w", err)
	}
	pt, err := opener.Open(s.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("seal: decryption: %w", err)
	}
	return pt, nil
}

// Fingerprint derives the ledger identity for a sealing public key:
// "cv1:" + base64(raw sha3-256 of the marshaled key).
func Fingerprint(pub kem.PublicKey) (ledger.Identity, error) {
	if pub == nil {
		return ledger.Nobody, errors.New("seal: missing public key")
	}
	b, err := pub.MarshalBinary()
	if err != nil {
		return ledger.Nobody, fmt.Errorf("seal: marshal public key: %w", err)
	}
	sum := sha3.Sum256(b)
	return ledger.Identity(IdentityPrefix + base64.RawStdEncoding.EncodeToString(sum[:])), nil
}
