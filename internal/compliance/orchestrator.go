// Package compliance drives the pre-spend compliance gate: for every input
// note about to be spent, it guarantees a non-membership proof against the
// sanctions exclusion set has been accepted on-chain before the spend
// proceeds.
package compliance

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/duststealth/core/internal/circuit"
	"github.com/duststealth/core/internal/exclusion"
	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/note"
	"github.com/duststealth/core/pkg/collab"
	"github.com/duststealth/core/pkg/proofbackend"
)

func toExclusionWitness(w *collab.ComplianceWitness) *exclusion.Witness {
	return &exclusion.Witness{
		ExclusionRoot: w.ExclusionRoot,
		Siblings:      w.Siblings,
		OldKey:        w.OldKey,
		OldValue:      w.OldValue,
		IsOld0:        w.IsOld0,
	}
}

// Status is a stage in the per-call compliance proof lifecycle.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusFetchingWitness  Status = "fetching-witness"
	StatusGeneratingProof  Status = "generating-proof"
	StatusSubmitting       Status = "submitting"
	StatusDone             Status = "done"
	StatusError            Status = "error"
)

// StatusFunc receives status transitions during EnsureProved.
type StatusFunc func(Status)

// VerifiedFunc is invoked once per note that was actually proved on this
// call (skipped notes do not trigger it).
type VerifiedFunc func(commitmentHex, txHash string)

// Orchestrator drives the compliance gate for a single chain's pool.
type Orchestrator struct {
	chain   collab.ChainReader
	relayer collab.RelayerClient
	backend proofbackend.Backend
	log     *logrus.Entry

	inFlight sync.Map // nullifier decimal string -> struct{}
}

// New constructs an Orchestrator backed by chain, relayer, and backend.
func New(chain collab.ChainReader, relayer collab.RelayerClient, backend proofbackend.Backend, log *logrus.Entry) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{chain: chain, relayer: relayer, backend: backend, log: log}
}

// EnsureProved walks notes in order and, for each one not already verified
// on-chain or locally, fetches a non-membership witness, builds and proves
// the compliance circuit, verifies locally, and submits to the relayer. Any
// step failure on any note aborts the whole call; nullifiers already
// accepted on-chain before the failure remain valid.
func (o *Orchestrator) EnsureProved(ctx context.Context, notes []note.NoteCommitment, nullifierKey field.Elem, chainID uint64, onStatus StatusFunc, onVerified VerifiedFunc) error {
	verifierAddr, err := o.chain.ComplianceVerifierAddress(ctx, chainID)
	if err != nil {
		return fmt.Errorf("compliance: query verifier address: %w", err)
	}
	if verifierAddr == "" || isZeroAddress(verifierAddr) {
		return nil
	}

	for _, n := range notes {
		if n.LeafIndex < 0 {
			continue
		}
		if err := o.ensureOne(ctx, n, nullifierKey, chainID, onStatus, onVerified); err != nil {
			emit(onStatus, StatusError)
			return err
		}
	}
	emit(onStatus, StatusDone)
	return nil
}

func (o *Orchestrator) ensureOne(ctx context.Context, n note.NoteCommitment, nullifierKey field.Elem, chainID uint64, onStatus StatusFunc, onVerified VerifiedFunc) error {
	if n.ComplianceStatus == note.ComplianceVerified || n.ComplianceStatus == note.ComplianceInherited {
		return nil
	}

	nullifier, err := note.Nullifier(nullifierKey, n.Commitment, n.LeafIndex)
	if err != nil {
		return err
	}
	if nullifier.Sign() == 0 {
		return nil
	}

	key := nullifier.String()
	if _, loaded := o.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return nil
	}
	defer o.inFlight.Delete(key)

	verified, err := o.chain.ComplianceVerified(ctx, nullifier, chainID)
	if err != nil {
		return fmt.Errorf("compliance: query verified status: %w", err)
	}
	if verified {
		return nil
	}

	emit(onStatus, StatusFetchingWitness)
	witness, err := o.relayer.ComplianceWitness(ctx, n.Commitment, chainID)
	if err != nil {
		return fmt.Errorf("compliance: fetch witness: %w", err)
	}

	input, err := circuit.BuildCompliance(n.Commitment, nullifierKey, n.LeafIndex, toExclusionWitness(witness))
	if err != nil {
		return fmt.Errorf("compliance: build circuit input: %w", err)
	}

	emit(onStatus, StatusGeneratingProof)
	proof, err := o.backend.Prove(ctx, proofbackend.CircuitCompliance, complianceInputMap(input))
	if err != nil {
		return fmt.Errorf("compliance: prove: %w", err)
	}
	ok, err := o.backend.Verify(ctx, proofbackend.CircuitCompliance, proof)
	if err != nil {
		return fmt.Errorf("compliance: local verify: %w", err)
	}
	if !ok {
		return fmt.Errorf("compliance: local verify rejected the proof for nullifier %s", nullifier)
	}

	emit(onStatus, StatusSubmitting)
	receipt, err := o.relayer.SubmitComplianceProof(ctx, proof.ProofBytes, input.ExclusionRoot, nullifier, chainID)
	if err != nil {
		return fmt.Errorf("compliance: submit: %w", err)
	}
	o.log.WithFields(logrus.Fields{
		"nullifier": nullifier.String(),
		"txHash":    receipt.TxHash,
	}).Info("compliance proof submitted")

	if onVerified != nil {
		onVerified(field.ToBytes32Hex(n.Commitment), receipt.TxHash)
	}
	return nil
}

func emit(f StatusFunc, s Status) {
	if f != nil {
		f(s)
	}
}

func isZeroAddress(addr string) bool {
	for _, c := range addr {
		if c != '0' && c != 'x' && c != 'X' {
			return false
		}
	}
	return true
}

func complianceInputMap(in *circuit.ComplianceInput) map[string]any {
	return map[string]any{
		"exclusionRoot": in.ExclusionRoot.String(),
		"nullifier":     in.Nullifier.String(),
		"commitment":    in.Commitment.String(),
		"nullifierKey":  in.NullifierKey.String(),
		"leafIndex":     in.LeafIndex,
		"smtOldKey":     in.SmtOldKey.String(),
		"smtOldValue":   in.SmtOldValue.String(),
		"smtIsOld0":     in.SmtIsOld0,
	}
}
