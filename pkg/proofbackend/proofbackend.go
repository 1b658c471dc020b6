// Package proofbackend defines the polymorphic interface the core uses to
// generate and verify zero-knowledge proofs, without depending on any
// particular prover. CircuitID selects which of the five circuits an input
// targets.
package proofbackend

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// CircuitID names one of the five circuits a ProofBackend can be asked to
// prove or verify.
type CircuitID string

const (
	CircuitDeposit    CircuitID = "deposit"
	CircuitWithdraw   CircuitID = "withdraw"
	CircuitTransfer   CircuitID = "transfer"
	CircuitSplit      CircuitID = "split"
	CircuitCompliance CircuitID = "compliance"
)

// ErrCancelled is returned when a caller-initiated cancellation aborted an
// in-flight proof generation.
var ErrCancelled = errors.New("proofbackend: proof generation cancelled")

// Proof is the backend-opaque output of a successful prove call.
type Proof struct {
	ProofBytes    []byte
	PublicSignals []string // decimal-string field elements, backend's wire format
}

// Backend is polymorphic over {Prove, Verify}; the FFLONK wrapper around
// the native prover and a mock used in tests both satisfy it.
type Backend interface {
	Prove(ctx context.Context, circuit CircuitID, inputs map[string]any) (*Proof, error)
	Verify(ctx context.Context, circuit CircuitID, proof *Proof) (bool, error)
}

var hexRun = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// PublicSignalCount returns the number of public signals a circuit exposes,
// used to split an FFLONK calldata blob into proof vs. public-signal parts.
func PublicSignalCount(circuit CircuitID) int {
	switch circuit {
	case CircuitCompliance:
		return 2
	case CircuitDeposit, CircuitWithdraw, CircuitTransfer:
		return 9
	case CircuitSplit:
		return 15
	default:
		return 0
	}
}

// ParseFFLONKCalldata extracts all 0x-prefixed hex runs from calldata, takes
// the first 24 as the FFLONK proof blob (concatenated, unprefixed), and the
// next signalCount as the public signals, returned as the 0x-prefixed hex
// strings found in calldata (callers that need field elements parse them
// with field.StrictFromHex).
func ParseFFLONKCalldata(calldata string, signalCount int) (proofHex string, publicSignals []string, err error) {
	matches := hexRun.FindAllString(calldata, -1)
	const proofFieldCount = 24
	if len(matches) < proofFieldCount+signalCount {
		return "", nil, errors.New("proofbackend: calldata has fewer hex fields than expected")
	}

	var sb strings.Builder
	for _, m := range matches[:proofFieldCount] {
		sb.WriteString(strings.TrimPrefix(m, "0x"))
	}
	return sb.String(), matches[proofFieldCount : proofFieldCount+signalCount], nil
}
