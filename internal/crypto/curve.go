// Package crypto implements the ECDSA oracle the rest of the node treats
// as an opaque primitive: key generation, signing and verification over
// hex-encoded keys/signatures, at the fixed wire widths the wire protocol
// depends on (96 hex char keys and signatures, 48 raw bytes each).
package crypto

import (
	"crypto/elliptic"
	"math/big"
	"sync"
)

// p192 is the NIST P-192 (secp192r1) curve. The standard library does not
// ship it (only P224/256/384/521), so the domain parameters are supplied
// directly to a generic elliptic.CurveParams the same way the curve is
// hand-rolled in decred/dcrd/dcrec rather than imported from a package.
var (
	p192once   sync.Once
	p192params *elliptic.CurveParams
)

func hexBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("crypto: invalid curve constant " + s)
	}
	return n
}

// P192 returns the NIST P-192 curve.
func P192() elliptic.Curve {
	p192once.Do(func() {
		p192params = &elliptic.CurveParams{
			P:       hexBig("fffffffffffffffffffffffffffffffeffffffffffffffff"),
			N:       hexBig("ffffffffffffffffffffffff99def836146bc9b1b4d22831"),
			B:       hexBig("64210519e59c80e70fa7e9ab72243049feb8deecc146b9b1"),
			Gx:      hexBig("188da80eb03090f67cbf20eb43a18800f4ff0afd82ff1012"),
			Gy:      hexBig("07192b95ffc8da78631011ed6b24cdd573f977a11e794811"),
			BitSize: 192,
			Name:    "P-192",
		}
	})
	return p192params
}

// fieldByteLen is the number of bytes needed to hold a P-192 field
// element or scalar (192 bits -> 24 bytes). Public keys are the
// concatenation of two field elements (X, Y); signatures are the
// concatenation of two scalars (R, S) -- each 48 bytes hex-encoded,
// matching KEY_LEN = SIG_LEN = 96.
const fieldByteLen = 24
