package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Fixed wire widths. KEY_LEN and SIG_LEN both come out to 96 hex chars
// because a P-192 public key (X||Y) and an ECDSA signature (R||S) are
// each two 24-byte field elements. NONCE_LEN is the width of the random
// nonce embedded in every transaction, unrelated to curve order but
// fixed for the same reason: every node on a deployment must agree on
// it for wire compatibility.
const (
	KeyLen   = 2 * 2 * fieldByteLen // 96
	SigLen   = 2 * 2 * fieldByteLen // 96
	NonceLen = 64
)

// KeyPair is a generated signing identity. PublicHex is the wire form
// used as sender/receiver identifiers throughout the chain.
type KeyPair struct {
	Private   *ecdsa.PrivateKey
	PublicHex string
}

// GenerateKeyPair creates a fresh P-192 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(P192(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	pubHex, err := encodePublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: priv, PublicHex: pubHex}, nil
}

func encodePublicKey(pub *ecdsa.PublicKey) (string, error) {
	x := leftPad(pub.X.Bytes(), fieldByteLen)
	y := leftPad(pub.Y.Bytes(), fieldByteLen)
	if len(x) != fieldByteLen || len(y) != fieldByteLen {
		return "", fmt.Errorf("crypto: public key coordinate overflow")
	}
	return hex.EncodeToString(append(x, y...)), nil
}

func decodePublicKey(pubHex string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid public key hex: %w", err)
	}
	if len(raw) != 2*fieldByteLen {
		return nil, fmt.Errorf("crypto: public key must be %d bytes, got %d", 2*fieldByteLen, len(raw))
	}
	return &ecdsa.PublicKey{
		Curve: P192(),
		X:     new(big.Int).SetBytes(raw[:fieldByteLen]),
		Y:     new(big.Int).SetBytes(raw[fieldByteLen:]),
	}, nil
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// Sign returns the hex-encoded signature of message under priv.
func Sign(message []byte, priv *ecdsa.PrivateKey) (string, error) {
	digest := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("crypto: sign: %w", err)
	}
	rb := leftPad(r.Bytes(), fieldByteLen)
	sb := leftPad(s.Bytes(), fieldByteLen)
	if len(rb) != fieldByteLen || len(sb) != fieldByteLen {
		return "", fmt.Errorf("crypto: signature scalar overflow")
	}
	return hex.EncodeToString(append(rb, sb...)), nil
}

// Verify reports whether sigHex is a valid signature of message under
// the public key encoded as pubHex. Any malformed input (wrong length,
// bad hex, wrong curve) is treated as a verification failure, never an
// error -- callers only need a boolean.
func Verify(sigHex string, message []byte, pubHex string) bool {
	pub, err := decodePublicKey(pubHex)
	if err != nil {
		return false
	}
	raw, err := hex.DecodeString(sigHex)
	if err != nil || len(raw) != 2*fieldByteLen {
		return false
	}
	r := new(big.Int).SetBytes(raw[:fieldByteLen])
	s := new(big.Int).SetBytes(raw[fieldByteLen:])
	digest := sha256.Sum256(message)
	return ecdsa.Verify(pub, digest[:], r, s)
}

// RandomNonce returns a fresh NONCE_LEN-hex-char random nonce.
func RandomNonce() (string, error) {
	buf := make([]byte, NonceLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto: random nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
