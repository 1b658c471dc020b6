// Package note implements the UTXO-style note model: commitments,
// nullifiers, dummy notes, and the NoteCommitment ledger entity. Commitments
// and nullifiers use Poseidon5/Poseidon3 circuit hashes so they match the
// deployed verifier key.
package note

import (
	"errors"
	"math/big"
	"time"

	"github.com/duststealth/core/internal/field"
)

// ErrFieldOverflow is returned when constructing a Note whose fields would
// not survive a round trip through the field.
var ErrFieldOverflow = errors.New("note: field overflow")

// ComplianceStatus tracks whether a note's input has cleared the exclusion
// SMT compliance gate.
type ComplianceStatus uint8

const (
	ComplianceUnverified ComplianceStatus = iota
	ComplianceVerified
	ComplianceInherited
)

// Note is a UTXO-style record whose Poseidon hash is a tree leaf.
type Note struct {
	Owner    field.Elem
	Amount   field.Elem
	Asset    field.Elem
	ChainID  field.Elem
	Blinding field.Elem
}

// NoteCommitment is the persisted ledger entry for a Note: the note itself
// plus its tree position and lifecycle flags. leafIndex == -1 means the note
// has not yet been confirmed in the tree.
type NoteCommitment struct {
	Note             Note
	Commitment       field.Elem
	LeafIndex        int64
	Spent            bool
	CreatedAt        time.Time
	BlockNumber      *uint64
	ComplianceStatus ComplianceStatus
}

// AssetID derives the deterministic per-(chain, token) asset identifier.
func AssetID(chainID, tokenAddress *big.Int) (field.Elem, error) {
	return field.Poseidon2(chainID, tokenAddress)
}

// MakeNote draws a fresh 248-bit blinding factor and returns the note.
func MakeNote(owner, amount, asset, chainID *big.Int) (Note, error) {
	for _, v := range []*big.Int{owner, amount, asset, chainID} {
		if v.Sign() < 0 || v.Cmp(field.Order) >= 0 {
			return Note{}, ErrFieldOverflow
		}
	}
	blinding, err := field.RandField248()
	if err != nil {
		return Note{}, err
	}
	return Note{
		Owner:    field.ModReduce(owner),
		Amount:   field.ModReduce(amount),
		Asset:    field.ModReduce(asset),
		ChainID:  field.ModReduce(chainID),
		Blinding: blinding,
	}, nil
}

// Commitment computes Poseidon5(owner, amount, asset, chainId, blinding).
func Commitment(n Note) (field.Elem, error) {
	return field.Poseidon5(n.Owner, n.Amount, n.Asset, n.ChainID, n.Blinding)
}

// DummyNote returns the canonical all-zero placeholder note used to fill
// unused input/output slots. Its commitment is a fixed constant.
func DummyNote() Note {
	z := big.NewInt(0)
	return Note{Owner: z, Amount: z, Asset: z, ChainID: z, Blinding: z}
}

// IsDummy reports whether n is the all-zero dummy note.
func (n Note) IsDummy() bool {
	return n.Owner.Sign() == 0 && n.Amount.Sign() == 0 && n.Asset.Sign() == 0 &&
		n.ChainID.Sign() == 0 && n.Blinding.Sign() == 0
}

// Nullifier computes Poseidon3(nullifierKey, commitment, leafIndex). Callers
// building circuit inputs for a dummy slot MUST substitute 0 regardless of
// what this function would compute — this function itself never special
// cases the dummy note in place of a real one.
func Nullifier(nullifierKey, commitment *big.Int, leafIndex int64) (field.Elem, error) {
	return field.Poseidon3(nullifierKey, commitment, big.NewInt(leafIndex))
}
