// Package field implements modular arithmetic over the BN254 scalar field
// and the Poseidon hash used throughout the commitment, nullifier, and
// Merkle/SMT subsystems.
package field

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Errors returned by this package, matching the taxonomy used across the
// handling design.
var (
	ErrInvalidHex = errors.New("field: invalid hex string")
	ErrOutOfField = errors.New("field: value out of field")
)

// Order is the prime order of the BN254 scalar field (FIELD_ORDER).
var Order = fr.Modulus()

// Elem is a non-negative integer reduced modulo Order. It is carried as a
// *big.Int rather than a fixed-width type so FieldArith operations compose
// without repeated truncation; callers that need a canonical 32-byte
// encoding use ToBytes32Hex.
type Elem = *big.Int

// ModReduce reduces x modulo the field order, returning a new value in
// [0, Order).
func ModReduce(x *big.Int) Elem {
	out := new(big.Int)
	out.Mod(x, Order)
	return out
}

// Zero returns the additive identity.
func Zero() Elem { return big.NewInt(0) }

// FromUint64 lifts a uint64 into the field.
func FromUint64(v uint64) Elem {
	return ModReduce(new(big.Int).SetUint64(v))
}

// Neg returns Order - x mod Order, the field-negation used to encode a
// withdrawal's public amount.
func Neg(x *big.Int) Elem {
	return ModReduce(new(big.Int).Sub(Order, ModReduce(x)))
}

// Add returns a + b mod Order.
func Add(a, b *big.Int) Elem {
	return ModReduce(new(big.Int).Add(a, b))
}

// Sum reduces the sum of xs modulo Order.
func Sum(xs ...*big.Int) Elem {
	acc := new(big.Int)
	for _, x := range xs {
		acc.Add(acc, x)
	}
	return ModReduce(acc)
}

// RandField248 samples a value uniformly random in [0, 2^248) from a
// cryptographic RNG, used as a note blinding factor.
func RandField248() (Elem, error) {
	// 2^248 - 1 as an upper bound: 31 random bytes is exactly 248 bits.
	buf := make([]byte, 31)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(buf), nil
}

// ToBytes32Hex emits 64 hex characters, left-zero-padded, prefixed "0x".
func ToBytes32Hex(x *big.Int) string {
	b := make([]byte, 32)
	x.FillBytes(b)
	return "0x" + hex.EncodeToString(b)
}

// FromBytes32Hex accepts "0x"-prefixed hex and decodes it into a field
// element. Empty string decodes to zero, to tolerate
// encrypted placeholder fields before decryption — this tolerance is
// reserved for the encrypted-note storage adaptor (internal/note); every
// other caller MUST use StrictFromHex.
func FromBytes32Hex(s string) (Elem, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	return StrictFromHex(s)
}

// StrictFromHex decodes a "0x"-prefixed hex string into a field element,
// failing on non-hex characters or an empty string.
func StrictFromHex(s string) (Elem, error) {
	trimmed := s
	if len(trimmed) >= 2 && trimmed[0] == '0' && (trimmed[1] == 'x' || trimmed[1] == 'X') {
		trimmed = trimmed[2:]
	}
	if trimmed == "" {
		return nil, ErrInvalidHex
	}
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, ErrInvalidHex
	}
	v := new(big.Int).SetBytes(b)
	if v.Cmp(Order) >= 0 {
		return nil, ErrOutOfField
	}
	return v, nil
}

// InField reports whether x lies in (0, Order).
func InField(x *big.Int) bool {
	return x.Sign() > 0 && x.Cmp(Order) < 0
}
