// Package keys derives spending/nullifier keys and view keys from a wallet
// signature and PIN, using a PBKDF2-HMAC-SHA512 construction so derivation
// stays deterministic across wallet sessions.
package keys

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/pbkdf2"

	"github.com/duststealth/core/internal/field"
)

// Errors returned by this package.
var (
	ErrKdfFailure  = errors.New("keys: host crypto subsystem unavailable")
	ErrPinRequired = errors.New("keys: pin required")
)

const (
	kdfSalt       = "dust-stealth-v2"
	kdfIterations = 100_000
	kdfKeyLen     = 64
)

// Keys holds the two derived field elements. Neither is ever persisted in
// plaintext; callers hold this value only in memory and drop it on session
// lock (SpendingKey/NullifierKey lifecycle).
type Keys struct {
	SpendingKey  field.Elem
	NullifierKey field.Elem
}

// OwnerPubKey is Poseidon1(SpendingKey) — appears inside every commitment to
// bind a note to its spender.
type OwnerPubKey = field.Elem

// ViewKey grants read-only visibility over owned notes: (OwnerPubKey,
// NullifierKey) with no spending authority.
type ViewKey struct {
	OwnerPubKey  OwnerPubKey
	NullifierKey field.Elem
}

// ScopedViewKey restricts a ViewKey to a block-height window,
// 0 <= StartBlock <= EndBlock.
type ScopedViewKey struct {
	ViewKey
	StartBlock uint64
	EndBlock   uint64
}

// Derive runs PBKDF2-HMAC-SHA512(signature||pin, salt="dust-stealth-v2",
// iterations=100_000, dkLen=64), splits the output into two 32-byte seeds,
// and reduces SHA-256(seed) of each half into a field element. The result is
// deterministic in (signature, pin); neither key alone reveals the other
// because they come from independent SHA-256 pre-images.
func Derive(signature []byte, pin string) (Keys, error) {
	if pin == "" {
		return Keys{}, ErrPinRequired
	}
	password := make([]byte, 0, len(signature)+len(pin))
	password = append(password, signature...)
	password = append(password, pin...)

	out := pbkdf2.Key(password, []byte(kdfSalt), kdfIterations, kdfKeyLen, sha512.New)
	if len(out) != kdfKeyLen {
		return Keys{}, ErrKdfFailure
	}

	seed0, seed1 := out[0:32], out[32:64]
	sk := sha256.Sum256(seed0)
	nk := sha256.Sum256(seed1)

	spendingKey := field.ModReduce(new(big.Int).SetBytes(sk[:]))
	nullifierKey := field.ModReduce(new(big.Int).SetBytes(nk[:]))
	if !field.InField(spendingKey) || !field.InField(nullifierKey) {
		return Keys{}, fmt.Errorf("keys: derived key out of field: %w", field.ErrOutOfField)
	}

	return Keys{SpendingKey: spendingKey, NullifierKey: nullifierKey}, nil
}

// DeriveViewKey returns the read-only view key for a set of spend/nullifier
// keys: (Poseidon1(SpendingKey), NullifierKey).
func DeriveViewKey(k Keys) (ViewKey, error) {
	owner, err := field.Poseidon1(k.SpendingKey)
	if err != nil {
		return ViewKey{}, err
	}
	return ViewKey{OwnerPubKey: owner, NullifierKey: k.NullifierKey}, nil
}
