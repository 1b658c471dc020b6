package proofbackend

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// MockBackend is a deterministic stand-in ProofBackend for tests: Prove
// hashes the circuit id and inputs into a fixed-size "proof" whose single
// public signal is the circuit id, and Verify accepts any proof whose first
// public signal equals the circuit id; the proof bytes are not checked.
type MockBackend struct {
	FailProve  error
	FailVerify error
}

// NewMockBackend returns a MockBackend that always succeeds.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) Prove(ctx context.Context, circuit CircuitID, inputs map[string]any) (*Proof, error) {
	if m.FailProve != nil {
		return nil, m.FailProve
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%v", circuit, inputs)))
	return &Proof{
		ProofBytes:    digest[:],
		PublicSignals: []string{string(circuit)},
	}, nil
}

func (m *MockBackend) Verify(ctx context.Context, circuit CircuitID, proof *Proof) (bool, error) {
	if m.FailVerify != nil {
		return false, m.FailVerify
	}
	if proof == nil || len(proof.PublicSignals) == 0 {
		return false, nil
	}
	return proof.PublicSignals[0] == string(circuit), nil
}
