// Package crypto implements the signature and hashing primitives the rest of
// the gatekeeper depends on: ECDSA over secp256k1 with SHA-256 message
// digests, DER signature encoding, and 33-byte compressed public keys.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrCryptoFormat marks inputs that are not well-formed hex, DER, or
// compressed-key bytes. Per spec.md §4.1 these fail loudly rather than being
// folded into a false Verify result.
var ErrCryptoFormat = errors.New("crypto-format")

// PrivateKey wraps a secp256k1 scalar.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 curve point.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GeneratePrivateKey produces a new random secp256k1 keypair.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromHex parses a 32-byte hex-encoded scalar.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes hex", ErrCryptoFormat)
	}
	key := secp256k1.PrivKeyFromBytes(raw)
	return &PrivateKey{key: key}, nil
}

// PubKey returns the associated public key.
func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{key: k.key.PubKey()}
}

// Bytes returns the raw 32-byte scalar.
func (k *PrivateKey) Bytes() []byte {
	return k.key.Serialize()
}

// CompressedHex returns the 33-byte compressed public key as lower-case hex.
func (k *PublicKey) CompressedHex() string {
	return hex.EncodeToString(k.key.SerializeCompressed())
}

// PublicKeyFromCompressedHex parses a 33-byte compressed public key encoded
// as hex. Malformed input (bad hex, wrong length, off-curve point) returns
// ErrCryptoFormat rather than panicking or silently producing a zero key.
func PublicKeyFromCompressedHex(s string) (*PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex public key: %v", ErrCryptoFormat, err)
	}
	if len(raw) != 33 {
		return nil, fmt.Errorf("%w: public key must be 33 bytes compressed, got %d", ErrCryptoFormat, len(raw))
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid compressed public key: %v", ErrCryptoFormat, err)
	}
	return &PublicKey{key: pub}, nil
}

// digest hashes message with SHA-256, the fixed message-to-hash step spec.md
// §4.1 mandates.
func digest(message string) [32]byte {
	return sha256.Sum256([]byte(message))
}

// Sign produces a DER-encoded ECDSA signature over SHA256(message).
func Sign(key *PrivateKey, message string) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil private key", ErrCryptoFormat)
	}
	h := digest(message)
	sig := ecdsa.Sign(key.key, h[:])
	return sig.Serialize(), nil
}

// SignHex is Sign with a hex-encoded result, the wire presentation spec.md
// §6 uses for comment bodies.
func SignHex(key *PrivateKey, message string) (string, error) {
	der, err := Sign(key, message)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(der), nil
}

// Verify reports whether sigHex is a valid DER ECDSA signature over
// SHA256(message) by pubKeyHex. Malformed hex or length mismatches return
// (false, ErrCryptoFormat); a well-formed but cryptographically invalid
// signature returns (false, nil) — Verify never "fails loudly" for the
// latter case, only for the former, per spec.md §4.1.
func Verify(message string, sigHex string, pubKeyHex string) (bool, error) {
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("%w: invalid hex signature: %v", ErrCryptoFormat, err)
	}
	pub, err := PublicKeyFromCompressedHex(pubKeyHex)
	if err != nil {
		return false, err
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false, fmt.Errorf("%w: invalid DER signature: %v", ErrCryptoFormat, err)
	}
	h := digest(message)
	return sig.Verify(h[:], pub.key), nil
}

// GovernanceSignatureMessage builds the canonical message a maintainer signs
// to register a signature on a change request (spec.md §3).
func GovernanceSignatureMessage(signer string) string {
	return "governance-signature:" + signer
}

// VetoSignalMessage builds the canonical message an economic node signs for
// a veto/support/abstain signal (spec.md §4.7).
func VetoSignalMessage(prNumber int64, entityName string) string {
	return fmt.Sprintf("PR #%d veto signal from %s", prNumber, entityName)
}
