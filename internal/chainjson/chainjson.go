// Package chainjson is the single encoder every hash-producing component
// must go through. All nodes in a deployment must agree byte-for-byte on
// how a transaction or block header serializes, since the serialization
// is what gets hashed; this package is the one place that encoding
// happens.
package chainjson

import (
	"github.com/goccy/go-json"
)

// Marshal encodes v with no extra whitespace and struct fields in their
// declaration order -- the same rule goccy/go-json and encoding/json
// both follow, and the rule every struct in this module is written
// against (field order is chosen to match the canonical key order
// documented alongside each type).
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
