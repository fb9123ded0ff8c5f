package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Hash1 returns the single SHA-256 hash of data, hex-encoded.
func Hash1(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hash2 returns SHA256(SHA256(data)), hex-encoded. The Merkle tree does
// not use it: its leaves and internal nodes are hashed with Hash1.
func Hash2(data []byte) string {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return hex.EncodeToString(second[:])
}

// HashDict returns Hash1 of canonicalJSON, an already-encoded canonical
// JSON document; it does no encoding of its own. Every node
// in the network must use the same encoder (see chainjson.Marshal) so
// that this hash is byte-identical across implementations.
func HashDict(canonicalJSON []byte) string {
	return Hash1(canonicalJSON)
}

// HashLessThanTarget reports whether hash, interpreted as a hex-encoded
// big-endian integer, is strictly less than target. Block headers are
// valid proof-of-work iff this holds.
func HashLessThanTarget(hash string, target *big.Int) (bool, error) {
	h, ok := new(big.Int).SetString(hash, 16)
	if !ok {
		return false, fmt.Errorf("util: not a valid hex integer: %q", hash)
	}
	return h.Cmp(target) < 0, nil
}
