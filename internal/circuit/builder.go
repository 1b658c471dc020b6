// Package circuit assembles public/private inputs for the deposit,
// withdraw, transfer, split, and compliance circuits, and decomposes spend
// amounts into denomination chunks.
package circuit

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/duststealth/core/internal/exclusion"
	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/merkle"
	"github.com/duststealth/core/internal/note"
)

// MaxSplitOutputs is the fixed output-slot count of the split circuit.
const MaxSplitOutputs = 8

// Errors returned while assembling circuit inputs.
var (
	ErrAmountExceedsBalance = errors.New("circuit: amount exceeds input note balance")
	ErrTooManyChunks        = errors.New("circuit: too many output chunks for the split circuit")
	ErrInvalidChunkSum      = errors.New("circuit: chunk sum overflows the field")
	ErrFieldOverflow        = errors.New("circuit: output value conservation would overflow the field")
	ErrInvalidAddress       = errors.New("circuit: malformed recipient address")
)

// AddressToField lifts a 20-byte address into the field as a big-endian
// unsigned integer.
func AddressToField(addr common.Address) field.Elem {
	return new(big.Int).SetBytes(addr.Bytes())
}

// ParseAddress validates and decodes a hex address string.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}

func checkConservation(outputs ...field.Elem) error {
	sum := field.Sum(outputs...)
	if sum.Cmp(field.Order) >= 0 {
		return ErrFieldOverflow
	}
	return nil
}

// DepositInput is the input set for the deposit circuit: both input slots
// are dummy, output slot 0 is the real deposited note.
type DepositInput struct {
	PublicAmount      field.Elem
	PublicAsset       field.Elem
	Recipient         field.Elem
	MerkleRoot        field.Elem
	OutputCommitments [2]field.Elem
	Outputs           [2]note.Note
	InputNullifiers   [2]field.Elem
	InputLeafIndices  [2]int64
	InputPaths        [2]*merkle.Proof
}

// BuildDeposit assembles the deposit circuit input for a freshly created
// note n.
func BuildDeposit(n note.Note) (*DepositInput, error) {
	if err := checkConservation(n.Amount, big.NewInt(0)); err != nil {
		return nil, err
	}
	dummy := note.DummyNote()
	c0, err := note.Commitment(n)
	if err != nil {
		return nil, err
	}
	c1, err := note.Commitment(dummy)
	if err != nil {
		return nil, err
	}

	zeroPath := merkle.ZeroPath()
	return &DepositInput{
		PublicAmount:      field.ModReduce(n.Amount),
		PublicAsset:       field.ModReduce(n.Asset),
		Recipient:         big.NewInt(0),
		MerkleRoot:        big.NewInt(0),
		OutputCommitments: [2]field.Elem{c0, c1},
		Outputs:           [2]note.Note{n, dummy},
		InputNullifiers:   [2]field.Elem{big.NewInt(0), big.NewInt(0)},
		InputLeafIndices:  [2]int64{0, 0},
		InputPaths:        [2]*merkle.Proof{zeroPath, zeroPath},
	}, nil
}

// WithdrawInput is the input set for a 1-real-input withdrawal that pays an
// amount out on-chain and returns a change note to the pool.
type WithdrawInput struct {
	PublicAmount      field.Elem
	Recipient         field.Elem
	MerkleRoot        field.Elem
	InputNullifiers   [2]field.Elem
	OutputCommitments [2]field.Elem
	Outputs           [2]note.Note
}

// BuildWithdraw assembles the withdraw circuit input: input's full Merkle
// path (to recompute and attest the historical root), the withdrawn amount,
// and the recipient address.
func BuildWithdraw(input note.NoteCommitment, amount field.Elem, recipient common.Address, nullifierKey field.Elem, path *merkle.Proof) (*WithdrawInput, error) {
	amount = field.ModReduce(amount)
	if amount.Cmp(input.Note.Amount) > 0 {
		return nil, ErrAmountExceedsBalance
	}

	change := note.DummyNote()
	remaining := new(big.Int).Sub(input.Note.Amount, amount)
	if remaining.Sign() > 0 {
		var err error
		change, err = note.MakeNote(input.Note.Owner, remaining, input.Note.Asset, input.Note.ChainID)
		if err != nil {
			return nil, err
		}
	}

	if err := checkConservation(amount, remaining); err != nil {
		return nil, err
	}

	nullifier0, err := note.Nullifier(nullifierKey, input.Commitment, input.LeafIndex)
	if err != nil {
		return nil, err
	}
	changeCommitment, err := note.Commitment(change)
	if err != nil {
		return nil, err
	}
	dummyCommitment, err := note.Commitment(note.DummyNote())
	if err != nil {
		return nil, err
	}
	root, err := merkle.ComputeRoot(input.Commitment, path)
	if err != nil {
		return nil, err
	}

	return &WithdrawInput{
		PublicAmount:      field.Neg(amount),
		Recipient:         AddressToField(recipient),
		MerkleRoot:        root,
		InputNullifiers:   [2]field.Elem{nullifier0, big.NewInt(0)},
		OutputCommitments: [2]field.Elem{changeCommitment, dummyCommitment},
		Outputs:           [2]note.Note{change, note.DummyNote()},
	}, nil
}

// TransferInput is the input set for a fully internal transfer: the amount
// never leaves the pool.
type TransferInput struct {
	PublicAmount      field.Elem
	PublicAsset       field.Elem
	Recipient         field.Elem
	MerkleRoot        field.Elem
	InputNullifiers   [2]field.Elem
	OutputCommitments [2]field.Elem
	Outputs           [2]note.Note
}

// BuildTransfer assembles the transfer circuit input: one recipient note
// and one change note, both internal.
func BuildTransfer(input note.NoteCommitment, recipientOwner, amount field.Elem, nullifierKey field.Elem, path *merkle.Proof) (*TransferInput, error) {
	amount = field.ModReduce(amount)
	if amount.Cmp(input.Note.Amount) > 0 {
		return nil, ErrAmountExceedsBalance
	}

	recipientNote, err := note.MakeNote(recipientOwner, amount, input.Note.Asset, input.Note.ChainID)
	if err != nil {
		return nil, err
	}

	change := note.DummyNote()
	remaining := new(big.Int).Sub(input.Note.Amount, amount)
	if remaining.Sign() > 0 {
		change, err = note.MakeNote(input.Note.Owner, remaining, input.Note.Asset, input.Note.ChainID)
		if err != nil {
			return nil, err
		}
	}

	if err := checkConservation(amount, remaining); err != nil {
		return nil, err
	}

	nullifier0, err := note.Nullifier(nullifierKey, input.Commitment, input.LeafIndex)
	if err != nil {
		return nil, err
	}
	recipientCommitment, err := note.Commitment(recipientNote)
	if err != nil {
		return nil, err
	}
	changeCommitment, err := note.Commitment(change)
	if err != nil {
		return nil, err
	}
	root, err := merkle.ComputeRoot(input.Commitment, path)
	if err != nil {
		return nil, err
	}

	return &TransferInput{
		PublicAmount:      big.NewInt(0),
		PublicAsset:       field.ModReduce(input.Note.Asset),
		Recipient:         big.NewInt(0),
		MerkleRoot:        root,
		InputNullifiers:   [2]field.Elem{nullifier0, big.NewInt(0)},
		OutputCommitments: [2]field.Elem{recipientCommitment, changeCommitment},
		Outputs:           [2]note.Note{recipientNote, change},
	}, nil
}

// SplitInput is the input set for the 2-in-8-out split circuit.
type SplitInput struct {
	PublicAmount      field.Elem
	Recipient         field.Elem
	MerkleRoot        field.Elem
	InputNullifiers   [2]field.Elem
	OutputCommitments [MaxSplitOutputs]field.Elem
	Outputs           [MaxSplitOutputs]note.Note
}

// BuildSplit assembles the split circuit input. chunks must have length at
// most MaxSplitOutputs; each chunk note is owned by recipientOwner (or the
// input's own owner if recipientOwner is nil), any leftover balance becomes a
// change note owned by the input's own owner, and remaining slots are padded
// with dummy notes.
func BuildSplit(input note.NoteCommitment, chunks []field.Elem, recipientOwner field.Elem, nullifierKey field.Elem, path *merkle.Proof) (*SplitInput, error) {
	sum := big.NewInt(0)
	for _, c := range chunks {
		sum.Add(sum, c)
		if sum.Cmp(field.Order) >= 0 {
			return nil, ErrInvalidChunkSum
		}
	}
	if sum.Cmp(input.Note.Amount) > 0 {
		return nil, ErrAmountExceedsBalance
	}

	hasChange := sum.Cmp(input.Note.Amount) < 0
	numOutputs := len(chunks)
	if hasChange {
		numOutputs++
	}
	if numOutputs > MaxSplitOutputs {
		return nil, ErrTooManyChunks
	}

	owner := input.Note.Owner
	if recipientOwner != nil {
		owner = recipientOwner
	}

	var outputs [MaxSplitOutputs]note.Note
	var commitments [MaxSplitOutputs]field.Elem
	slot := 0
	for _, c := range chunks {
		n, err := note.MakeNote(owner, c, input.Note.Asset, input.Note.ChainID)
		if err != nil {
			return nil, err
		}
		outputs[slot] = n
		slot++
	}
	if hasChange {
		remaining := new(big.Int).Sub(input.Note.Amount, sum)
		n, err := note.MakeNote(input.Note.Owner, remaining, input.Note.Asset, input.Note.ChainID)
		if err != nil {
			return nil, err
		}
		outputs[slot] = n
		slot++
	}
	for ; slot < MaxSplitOutputs; slot++ {
		outputs[slot] = note.DummyNote()
	}

	conservationInputs := make([]field.Elem, 0, MaxSplitOutputs)
	for _, o := range outputs {
		conservationInputs = append(conservationInputs, o.Amount)
	}
	if err := checkConservation(conservationInputs...); err != nil {
		return nil, err
	}

	for i, o := range outputs {
		c, err := note.Commitment(o)
		if err != nil {
			return nil, err
		}
		commitments[i] = c
	}

	nullifier0, err := note.Nullifier(nullifierKey, input.Commitment, input.LeafIndex)
	if err != nil {
		return nil, err
	}
	root, err := merkle.ComputeRoot(input.Commitment, path)
	if err != nil {
		return nil, err
	}

	return &SplitInput{
		PublicAmount:      big.NewInt(0),
		Recipient:         big.NewInt(0),
		MerkleRoot:        root,
		InputNullifiers:   [2]field.Elem{nullifier0, big.NewInt(0)},
		OutputCommitments: commitments,
		Outputs:           outputs,
	}, nil
}

// ComplianceInput is the input set for the non-membership compliance
// circuit: two public signals, the rest private.
type ComplianceInput struct {
	ExclusionRoot field.Elem
	Nullifier     field.Elem

	Commitment   field.Elem
	NullifierKey field.Elem
	LeafIndex    int64
	SmtSiblings  [exclusion.Depth]field.Elem
	SmtOldKey    field.Elem
	SmtOldValue  field.Elem
	SmtIsOld0    bool
}

// BuildCompliance assembles the compliance circuit input from a
// non-membership witness previously fetched for commitment.
func BuildCompliance(commitment, nullifierKey field.Elem, leafIndex int64, witness *exclusion.Witness) (*ComplianceInput, error) {
	nullifier, err := note.Nullifier(nullifierKey, commitment, leafIndex)
	if err != nil {
		return nil, err
	}
	return &ComplianceInput{
		ExclusionRoot: witness.ExclusionRoot,
		Nullifier:     nullifier,
		Commitment:    commitment,
		NullifierKey:  nullifierKey,
		LeafIndex:     leafIndex,
		SmtSiblings:   witness.Siblings,
		SmtOldKey:     witness.OldKey,
		SmtOldValue:   witness.OldValue,
		SmtIsOld0:     witness.IsOld0,
	}, nil
}
