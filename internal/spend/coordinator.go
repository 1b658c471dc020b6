// Package spend drives a single wallet's spend lifecycle: compliance
// gating, circuit-input assembly, proof generation, relayer submission, and
// atomic note-store updates, through an explicit state machine.
package spend

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/duststealth/core/internal/circuit"
	"github.com/duststealth/core/internal/compliance"
	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/keys"
	"github.com/duststealth/core/internal/merkle"
	"github.com/duststealth/core/internal/note"
	"github.com/duststealth/core/pkg/collab"
	"github.com/duststealth/core/pkg/proofbackend"
)

// ErrNoNoteForChunk is returned when no unspent note covers a denomination
// chunk a swap decomposed the requested amount into.
var ErrNoNoteForChunk = errors.New("spend: no unspent note large enough for a swap chunk")

// State is a stage in a single spend's lifecycle.
type State string

const (
	StateIdle              State = "IDLE"
	StateSelectingInputs   State = "SELECTING_INPUTS"
	StateProvingCompliance State = "PROVING_COMPLIANCE"
	StateGeneratingProof   State = "GENERATING_PROOF"
	StateSubmitting        State = "SUBMITTING"
	StateConfirming        State = "CONFIRMING"
	StateSavingOutput      State = "SAVING_OUTPUT"
	StateDone              State = "DONE"
	StateError             State = "ERROR"
)

// Coordinator drives spends for one wallet against one chain's pool.
type Coordinator struct {
	wallet  string
	chainID uint64

	store   collab.NoteStore
	relayer collab.RelayerClient
	backend proofbackend.Backend
	orch    *compliance.Orchestrator
	keys    keys.Keys
	log     *logrus.Entry

	mu    sync.Mutex // serializes this wallet's spends, per the single-writer rule
	state State
}

// New constructs a Coordinator for wallet on chainID.
func New(wallet string, chainID uint64, store collab.NoteStore, relayer collab.RelayerClient, backend proofbackend.Backend, orch *compliance.Orchestrator, k keys.Keys, log *logrus.Entry) *Coordinator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Coordinator{
		wallet: wallet, chainID: chainID,
		store: store, relayer: relayer, backend: backend, orch: orch, keys: k,
		log: log, state: StateIdle,
	}
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.state = s
	c.log.WithField("state", s).Debug("spend state transition")
}

func (c *Coordinator) fail(err error) error {
	c.setState(StateError)
	return err
}

// Deposit creates a fresh note and records it as pending; the on-chain
// deposit transaction itself is submitted by the caller's wallet directly
// (it carries no zero-knowledge proof, since nothing about a deposit needs
// hiding from the depositor).
func (c *Coordinator) Deposit(ctx context.Context, amount, asset field.Elem, chainID field.Elem) (*note.NoteCommitment, *circuit.DepositInput, error) {
	owner, err := field.Poseidon1(c.keys.SpendingKey)
	if err != nil {
		return nil, nil, err
	}
	n, err := note.MakeNote(owner, amount, asset, chainID)
	if err != nil {
		return nil, nil, err
	}
	input, err := circuit.BuildDeposit(n)
	if err != nil {
		return nil, nil, err
	}
	commitment, err := note.Commitment(n)
	if err != nil {
		return nil, nil, err
	}
	nc := note.NoteCommitment{Note: n, Commitment: commitment, LeafIndex: -1}
	if err := c.store.SavePending(ctx, c.wallet, nc); err != nil {
		return nil, nil, err
	}
	return &nc, input, nil
}

func (c *Coordinator) fetchPath(ctx context.Context, input note.NoteCommitment) (*merkle.Proof, error) {
	wire, err := c.relayer.MerkleProof(ctx, uint64(input.LeafIndex), c.chainID)
	if err != nil {
		return nil, fmt.Errorf("spend: fetch merkle proof: %w", err)
	}
	p := &merkle.Proof{LeafIndex: uint64(input.LeafIndex)}
	p.PathElements = wire.PathElements
	p.PathIndices = wire.PathIndices
	return p, nil
}

// Withdraw spends input, paying amount to recipient on-chain and returning
// any remainder to the pool as a change note.
func (c *Coordinator) Withdraw(ctx context.Context, input note.NoteCommitment, amount field.Elem, recipient common.Address) (*collab.TxReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(StateSelectingInputs)
	c.setState(StateProvingCompliance)
	if err := c.orch.EnsureProved(ctx, []note.NoteCommitment{input}, c.keys.NullifierKey, c.chainID, nil, nil); err != nil {
		return nil, c.fail(fmt.Errorf("spend: compliance gate: %w", err))
	}

	path, err := c.fetchPath(ctx, input)
	if err != nil {
		return nil, c.fail(err)
	}

	c.setState(StateGeneratingProof)
	built, err := circuit.BuildWithdraw(input, amount, recipient, c.keys.NullifierKey, path)
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: build withdraw input: %w", err))
	}
	proof, err := c.backend.Prove(ctx, proofbackend.CircuitWithdraw, withdrawInputMap(built))
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: prove: %w", err))
	}
	ok, err := c.backend.Verify(ctx, proofbackend.CircuitWithdraw, proof)
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: local verify: %w", err))
	}
	if !ok {
		return nil, c.fail(fmt.Errorf("spend: local verify rejected the withdrawal proof"))
	}

	c.setState(StateSubmitting)
	publicSignals := []field.Elem{built.PublicAmount, built.Recipient, built.MerkleRoot, built.InputNullifiers[0], built.InputNullifiers[1], built.OutputCommitments[0], built.OutputCommitments[1]}
	receipt, err := c.relayer.SubmitWithdrawal(ctx, proof.ProofBytes, publicSignals, c.chainID, "")
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: submit withdrawal: %w", err))
	}

	c.setState(StateConfirming)
	c.setState(StateSavingOutput)
	outputs := []note.NoteCommitment{{Note: built.Outputs[0], Commitment: built.OutputCommitments[0], LeafIndex: -1}}
	if err := c.store.MarkSpentAndSaveOutputs(ctx, c.wallet, field.ToBytes32Hex(input.Commitment), outputs); err != nil {
		return nil, c.fail(fmt.Errorf("spend: persist spend: %w", err))
	}

	c.setState(StateDone)
	return receipt, nil
}

// Transfer spends input entirely within the pool, moving amount to
// recipientOwner and returning any remainder as a change note.
func (c *Coordinator) Transfer(ctx context.Context, input note.NoteCommitment, recipientOwner, amount field.Elem) (*collab.TransferReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(StateSelectingInputs)
	c.setState(StateProvingCompliance)
	if err := c.orch.EnsureProved(ctx, []note.NoteCommitment{input}, c.keys.NullifierKey, c.chainID, nil, nil); err != nil {
		return nil, c.fail(fmt.Errorf("spend: compliance gate: %w", err))
	}

	path, err := c.fetchPath(ctx, input)
	if err != nil {
		return nil, c.fail(err)
	}

	c.setState(StateGeneratingProof)
	built, err := circuit.BuildTransfer(input, recipientOwner, amount, c.keys.NullifierKey, path)
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: build transfer input: %w", err))
	}
	proof, err := c.backend.Prove(ctx, proofbackend.CircuitTransfer, transferInputMap(built))
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: prove: %w", err))
	}
	ok, err := c.backend.Verify(ctx, proofbackend.CircuitTransfer, proof)
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: local verify: %w", err))
	}
	if !ok {
		return nil, c.fail(fmt.Errorf("spend: local verify rejected the transfer proof"))
	}

	c.setState(StateSubmitting)
	publicSignals := []field.Elem{built.PublicAmount, built.PublicAsset, built.Recipient, built.MerkleRoot, built.InputNullifiers[0], built.InputNullifiers[1], built.OutputCommitments[0], built.OutputCommitments[1]}
	receipt, err := c.relayer.SubmitTransfer(ctx, proof.ProofBytes, publicSignals, c.chainID)
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: submit transfer: %w", err))
	}

	c.setState(StateConfirming)
	c.setState(StateSavingOutput)
	outputs := []note.NoteCommitment{
		{Note: built.Outputs[0], Commitment: built.OutputCommitments[0], LeafIndex: -1},
		{Note: built.Outputs[1], Commitment: built.OutputCommitments[1], LeafIndex: -1},
	}
	if err := c.store.MarkSpentAndSaveOutputs(ctx, c.wallet, field.ToBytes32Hex(input.Commitment), outputs); err != nil {
		return nil, c.fail(fmt.Errorf("spend: persist spend: %w", err))
	}

	c.setState(StateDone)
	return receipt, nil
}

// Split spends input into up to 8 output notes.
func (c *Coordinator) Split(ctx context.Context, input note.NoteCommitment, chunks []field.Elem, recipientOwner field.Elem) (*collab.TxReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(StateSelectingInputs)
	c.setState(StateProvingCompliance)
	if err := c.orch.EnsureProved(ctx, []note.NoteCommitment{input}, c.keys.NullifierKey, c.chainID, nil, nil); err != nil {
		return nil, c.fail(fmt.Errorf("spend: compliance gate: %w", err))
	}

	path, err := c.fetchPath(ctx, input)
	if err != nil {
		return nil, c.fail(err)
	}

	c.setState(StateGeneratingProof)
	built, err := circuit.BuildSplit(input, chunks, recipientOwner, c.keys.NullifierKey, path)
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: build split input: %w", err))
	}
	proof, err := c.backend.Prove(ctx, proofbackend.CircuitSplit, splitInputMap(built))
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: prove: %w", err))
	}
	ok, err := c.backend.Verify(ctx, proofbackend.CircuitSplit, proof)
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: local verify: %w", err))
	}
	if !ok {
		return nil, c.fail(fmt.Errorf("spend: local verify rejected the split proof"))
	}

	c.setState(StateSubmitting)
	publicSignals := []field.Elem{built.PublicAmount, built.Recipient, built.MerkleRoot, built.InputNullifiers[0], built.InputNullifiers[1]}
	publicSignals = append(publicSignals, built.OutputCommitments[:]...)
	receipt, err := c.relayer.SubmitSplitWithdrawal(ctx, proof.ProofBytes, publicSignals, c.chainID, "")
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: submit split: %w", err))
	}

	c.setState(StateConfirming)
	c.setState(StateSavingOutput)
	var outputs []note.NoteCommitment
	for i, o := range built.Outputs {
		if o.IsDummy() {
			continue
		}
		outputs = append(outputs, note.NoteCommitment{Note: o, Commitment: built.OutputCommitments[i], LeafIndex: -1})
	}
	if err := c.store.MarkSpentAndSaveOutputs(ctx, c.wallet, field.ToBytes32Hex(input.Commitment), outputs); err != nil {
		return nil, c.fail(fmt.Errorf("spend: persist spend: %w", err))
	}

	c.setState(StateDone)
	return receipt, nil
}

// Swap withdraws amount externally as a batch of denomination-sized external
// withdrawals instead of one withdrawal for the full amount, so the
// on-chain trail never reveals the requested total directly. amount is
// first rounded down to whichever standard-denomination alternative
// decomposes into strictly fewer chunks (SuggestRounded); the rounded total
// is then split into chunks (Decompose), and each chunk is paid out of a
// distinct unspent note at least that large. When rounding actually changed
// the requested total, the batch goes out through the relayer's batch-swap
// surface, since the caller is trading their exact amount for a
// standard-denomination one; when amount already decomposed with no
// rounding, the batch is just several standard-sized withdrawals and goes
// out through the plain batch-withdrawal surface instead.
func (c *Coordinator) Swap(ctx context.Context, amount field.Elem, recipient common.Address, denominations []*big.Int) (*collab.BatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(StateSelectingInputs)

	target := amount
	rounded := false
	if suggestion := circuit.SuggestRounded(amount, denominations, 1); len(suggestion) > 0 {
		target = suggestion[0]
		rounded = true
	}
	chunks := circuit.Decompose(target, denominations, 0)
	if len(chunks) == 0 {
		return nil, c.fail(fmt.Errorf("spend: swap amount must be positive"))
	}

	unspent, err := c.store.UnspentNotes(ctx, c.wallet, c.chainID)
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: list unspent notes: %w", err))
	}
	inputs, err := selectNotesForChunks(unspent, chunks)
	if err != nil {
		return nil, c.fail(err)
	}

	c.setState(StateProvingCompliance)
	if err := c.orch.EnsureProved(ctx, inputs, c.keys.NullifierKey, c.chainID, nil, nil); err != nil {
		return nil, c.fail(fmt.Errorf("spend: compliance gate: %w", err))
	}

	c.setState(StateGeneratingProof)
	batch := make([]collab.SubmissionBatch, 0, len(chunks))
	changeOutputs := make([]note.NoteCommitment, len(chunks))
	for i, chunk := range chunks {
		input := inputs[i]
		path, err := c.fetchPath(ctx, input)
		if err != nil {
			return nil, c.fail(err)
		}
		built, err := circuit.BuildWithdraw(input, chunk, recipient, c.keys.NullifierKey, path)
		if err != nil {
			return nil, c.fail(fmt.Errorf("spend: build swap chunk %d: %w", i, err))
		}
		proof, err := c.backend.Prove(ctx, proofbackend.CircuitWithdraw, withdrawInputMap(built))
		if err != nil {
			return nil, c.fail(fmt.Errorf("spend: prove swap chunk %d: %w", i, err))
		}
		ok, err := c.backend.Verify(ctx, proofbackend.CircuitWithdraw, proof)
		if err != nil {
			return nil, c.fail(fmt.Errorf("spend: local verify swap chunk %d: %w", i, err))
		}
		if !ok {
			return nil, c.fail(fmt.Errorf("spend: local verify rejected swap chunk %d", i))
		}

		publicSignals := []field.Elem{built.PublicAmount, built.Recipient, built.MerkleRoot, built.InputNullifiers[0], built.InputNullifiers[1], built.OutputCommitments[0], built.OutputCommitments[1]}
		batch = append(batch, collab.SubmissionBatch{Proof: proof.ProofBytes, PublicSignals: publicSignals})
		changeOutputs[i] = note.NoteCommitment{Note: built.Outputs[0], Commitment: built.OutputCommitments[0], LeafIndex: -1}
	}

	c.setState(StateSubmitting)
	var result *collab.BatchResult
	if rounded {
		result, err = c.relayer.SubmitBatchSwap(ctx, batch, c.chainID)
	} else {
		result, err = c.relayer.SubmitBatchWithdrawal(ctx, batch, c.chainID)
	}
	if err != nil {
		return nil, c.fail(fmt.Errorf("spend: submit swap batch: %w", err))
	}

	c.setState(StateConfirming)
	c.setState(StateSavingOutput)
	for i, input := range inputs {
		var outputs []note.NoteCommitment
		if !changeOutputs[i].Note.IsDummy() {
			outputs = []note.NoteCommitment{changeOutputs[i]}
		}
		if err := c.store.MarkSpentAndSaveOutputs(ctx, c.wallet, field.ToBytes32Hex(input.Commitment), outputs); err != nil {
			return nil, c.fail(fmt.Errorf("spend: persist swap chunk %d: %w", i, err))
		}
	}

	c.setState(StateDone)
	return result, nil
}

// selectNotesForChunks picks, for each chunk in order, the smallest unspent
// note whose amount covers it, without reusing a note across chunks.
func selectNotesForChunks(unspent []note.NoteCommitment, chunks []*big.Int) ([]note.NoteCommitment, error) {
	used := make(map[int]bool, len(chunks))
	picked := make([]note.NoteCommitment, len(chunks))
	for i, chunk := range chunks {
		best := -1
		for j, n := range unspent {
			if used[j] || n.Note.Amount.Cmp(chunk) < 0 {
				continue
			}
			if best == -1 || n.Note.Amount.Cmp(unspent[best].Note.Amount) < 0 {
				best = j
			}
		}
		if best == -1 {
			return nil, ErrNoNoteForChunk
		}
		used[best] = true
		picked[i] = unspent[best]
	}
	return picked, nil
}

// Retry transitions a coordinator stuck in StateError back to StateIdle so
// the next call can attempt the spend again from the top.
func (c *Coordinator) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateError {
		c.setState(StateIdle)
	}
}

func withdrawInputMap(in *circuit.WithdrawInput) map[string]any {
	return map[string]any{
		"publicAmount": in.PublicAmount.String(),
		"recipient":    in.Recipient.String(),
		"merkleRoot":   in.MerkleRoot.String(),
	}
}

func transferInputMap(in *circuit.TransferInput) map[string]any {
	return map[string]any{
		"publicAmount": in.PublicAmount.String(),
		"publicAsset":  in.PublicAsset.String(),
		"merkleRoot":   in.MerkleRoot.String(),
	}
}

func splitInputMap(in *circuit.SplitInput) map[string]any {
	return map[string]any{
		"publicAmount": in.PublicAmount.String(),
		"merkleRoot":   in.MerkleRoot.String(),
	}
}
