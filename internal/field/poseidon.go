package field

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// MaxPoseidonArity is the largest input arity Poseidon accepts; the widest
// hasher this repository itself uses is the commitment hasher, Poseidon5.
const MaxPoseidonArity = 6

// Poseidon computes the Poseidon permutation over BN254 for 1 to 6 inputs.
// It is a pure function of its inputs: identical inputs always produce the
// identical output. This package always calls Poseidon_n with n equal to
// the input count, never a nested collapse to a smaller arity, so the
// result matches the deployed verifier key's circuit width exactly.
func Poseidon(inputs ...*big.Int) (Elem, error) {
	if len(inputs) == 0 || len(inputs) > MaxPoseidonArity {
		return nil, fmt.Errorf("field: poseidon arity %d out of range [1,%d]", len(inputs), MaxPoseidonArity)
	}
	reduced := make([]*big.Int, len(inputs))
	for i, in := range inputs {
		reduced[i] = ModReduce(in)
	}
	out, err := poseidon.Hash(reduced)
	if err != nil {
		return nil, fmt.Errorf("field: poseidon: %w", err)
	}
	return ModReduce(out), nil
}

// Poseidon1 is the OwnerPubKey hasher: Poseidon1(spendingKey).
func Poseidon1(a *big.Int) (Elem, error) { return Poseidon(a) }

// Poseidon2 hashes a sibling pair for Merkle/SMT internal nodes.
func Poseidon2(a, b *big.Int) (Elem, error) { return Poseidon(a, b) }

// Poseidon3 is the nullifier hasher: Poseidon3(nullifierKey, commitment, leafIndex).
func Poseidon3(a, b, c *big.Int) (Elem, error) { return Poseidon(a, b, c) }

// Poseidon5 is the commitment hasher: Poseidon5(owner, amount, asset, chainId, blinding).
func Poseidon5(a, b, c, d, e *big.Int) (Elem, error) { return Poseidon(a, b, c, d, e) }
