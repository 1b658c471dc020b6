// Package collab defines the narrow collaborator interfaces the core
// consumes: persistent note storage, the relayer's HTTP surface, and the
// on-chain pool contract's read/write surface. Concrete implementations
// (Postgres, HTTP client, JSON-RPC client) live outside this package; tests
// supply in-memory fakes.
package collab

import (
	"context"

	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/note"
)

// NoteStore persists a wallet's notes. MarkSpentAndSaveOutputs MUST be
// atomic: either both the input-spent flag and every output note are
// durably written, or neither is.
type NoteStore interface {
	SavePending(ctx context.Context, wallet string, n note.NoteCommitment) error
	MarkSpentAndSaveOutputs(ctx context.Context, wallet string, inputID string, outputs []note.NoteCommitment) error
	UnspentNotes(ctx context.Context, wallet string, chainID uint64) ([]note.NoteCommitment, error)
	UpdateLeafIndex(ctx context.Context, id string, leafIndex int64) error
	DeleteAll(ctx context.Context, wallet string) error
}

// MerklePath is the wire shape of a relayer-served Merkle proof.
type MerklePath struct {
	PathElements [20]field.Elem
	PathIndices  [20]int
}

// TxReceipt is the common result shape for a submitted on-chain transaction.
type TxReceipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Fee         field.Elem
}

// TransferReceipt is the result shape for a purely internal transfer.
type TransferReceipt struct {
	Success bool
	TxHash  string
}

// BatchResult is the result shape for a batch submission.
type BatchResult struct {
	Results   []TxReceipt
	Errors    []error
	Total     int
	Succeeded int
}

// DepositStatus reports whether a deposit commitment has been confirmed in
// the on-chain queue and, if so, at which leaf index.
type DepositStatus struct {
	Confirmed bool
	LeafIndex int64
}

// ComplianceWitness is the wire shape of a relayer-served SMT
// non-membership witness.
type ComplianceWitness struct {
	ExclusionRoot field.Elem
	Siblings      [20]field.Elem
	OldKey        field.Elem
	OldValue      field.Elem
	IsOld0        bool
}

// ComplianceReceipt is the result of submitting a compliance proof.
type ComplianceReceipt struct {
	TxHash   string
	Verified bool
}

// SubmissionBatch bundles a proof and its public signals for batch relayer
// calls.
type SubmissionBatch struct {
	Proof         []byte
	PublicSignals []field.Elem
	Token         string
}

// RelayerClient is the core's only channel to the off-chain relayer
// service.
type RelayerClient interface {
	TreeRoot(ctx context.Context, chainID uint64) (field.Elem, error)
	MerkleProof(ctx context.Context, leafIndex uint64, chainID uint64) (*MerklePath, error)
	SubmitWithdrawal(ctx context.Context, proof []byte, publicSignals []field.Elem, chainID uint64, token string) (*TxReceipt, error)
	SubmitSplitWithdrawal(ctx context.Context, proof []byte, publicSignals []field.Elem, chainID uint64, token string) (*TxReceipt, error)
	SubmitTransfer(ctx context.Context, proof []byte, publicSignals []field.Elem, chainID uint64) (*TransferReceipt, error)
	SubmitBatchWithdrawal(ctx context.Context, batch []SubmissionBatch, chainID uint64) (*BatchResult, error)
	SubmitBatchSwap(ctx context.Context, batch []SubmissionBatch, chainID uint64) (*BatchResult, error)
	DepositStatus(ctx context.Context, commitment field.Elem, chainID uint64) (*DepositStatus, error)
	ComplianceWitness(ctx context.Context, commitment field.Elem, chainID uint64) (*ComplianceWitness, error)
	SubmitComplianceProof(ctx context.Context, proof []byte, exclusionRoot, nullifier field.Elem, chainID uint64) (*ComplianceReceipt, error)
}

// ChainReader is the core's read-only view of the pool contract, used by
// the compliance gate and the relayer tree manager's sync loop.
type ChainReader interface {
	ComplianceVerifierAddress(ctx context.Context, chainID uint64) (string, error)
	ComplianceVerified(ctx context.Context, nullifier field.Elem, chainID uint64) (bool, error)
	DepositQueuedEvents(ctx context.Context, chainID uint64, fromBlock, toBlock uint64) ([]DepositQueuedEvent, error)
	LatestBlock(ctx context.Context, chainID uint64) (uint64, error)
}

// DepositQueuedEvent is a single on-chain deposit-queue entry, ordered by
// (BlockNumber, LogIndex).
type DepositQueuedEvent struct {
	Commitment  field.Elem
	QueueIndex  uint64
	BlockNumber uint64
	LogIndex    uint64
}

// ChainWriter is the core's write surface on the pool contract, used by
// the relayer tree manager to post roots.
type ChainWriter interface {
	UpdateRoot(ctx context.Context, chainID uint64, root field.Elem) (txHash string, err error)
}
