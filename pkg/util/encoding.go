package util

import (
	"encoding/hex"
	"fmt"
)

// HexToBytes decodes a hex string to bytes, returning an error if invalid.
func HexToBytes(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// BytesToHex encodes bytes to a hex string.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// CheckHexLen validates that s is exactly n hex characters. Used to
// enforce the fixed wire widths for keys (96), signatures (96), nonces
// (64) and hashes (64) without depending on where s came from.
func CheckHexLen(field, s string, n int) error {
	if len(s) != n {
		return fmt.Errorf("util: %s must be %d hex chars, got %d", field, n, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("util: %s is not valid hex: %w", field, err)
	}
	return nil
}
