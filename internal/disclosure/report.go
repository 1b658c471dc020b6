// Package disclosure builds and verifies selective-disclosure reports over
// a wallet's owned notes, for compliance audits and tax reporting.
package disclosure

import (
	"fmt"
	"math/big"
	"time"

	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/keys"
	"github.com/duststealth/core/internal/note"
)

// ReportVersion is the only disclosure report schema version currently
// understood by VerifyReport.
const ReportVersion = 1

// DisclosedNote is a single note entry inside a Report.
type DisclosedNote struct {
	Commitment field.Elem
	Amount     field.Elem
	Asset      field.Elem
	ChainID    uint64
	Blinding   field.Elem
	LeafIndex  int64 // -1 for pending
	Spent      bool
	CreatedAt  time.Time
}

// DateRange filters disclosed notes by CreatedAt, inclusive on both ends.
type DateRange struct {
	From time.Time
	To   time.Time
}

// BlockRange filters disclosed notes by BlockNumber, inclusive on both
// ends. Any candidate note without a block number is rejected outright when
// a BlockRange is in effect.
type BlockRange struct {
	StartBlock uint64
	EndBlock   uint64
}

// Options configures GenerateReport filtering.
type Options struct {
	DateRange  *DateRange
	BlockRange *BlockRange
}

// Report is the persisted, shareable disclosure artifact.
type Report struct {
	Version        int
	OwnerPubKey    field.Elem
	ChainID        uint64
	Notes          []DisclosedNote
	TotalDeposited field.Elem
	TotalSpent     field.Elem
	TotalUnspent   field.Elem
	DateRange      *DateRange
	BlockRange     *BlockRange
	GeneratedAt    time.Time
}

// GenerateReport filters notes to those owned by viewKey, excludes dummy
// notes, applies the optional date/block filters, and summarizes totals.
func GenerateReport(notes []note.NoteCommitment, viewKey keys.ViewKey, chainID uint64, opts Options, generatedAt time.Time) (*Report, error) {
	r := &Report{
		Version:        ReportVersion,
		OwnerPubKey:    viewKey.OwnerPubKey,
		ChainID:        chainID,
		DateRange:      opts.DateRange,
		BlockRange:     opts.BlockRange,
		TotalDeposited: big.NewInt(0),
		TotalSpent:     big.NewInt(0),
		TotalUnspent:   big.NewInt(0),
		GeneratedAt:    generatedAt,
	}

	for _, nc := range notes {
		if nc.Note.IsDummy() {
			continue
		}
		if nc.Note.Owner.Cmp(viewKey.OwnerPubKey) != 0 {
			continue
		}
		if opts.DateRange != nil {
			if nc.CreatedAt.Before(opts.DateRange.From) || nc.CreatedAt.After(opts.DateRange.To) {
				continue
			}
		}
		if opts.BlockRange != nil {
			if nc.BlockNumber == nil {
				continue
			}
			bn := *nc.BlockNumber
			if bn < opts.BlockRange.StartBlock || bn > opts.BlockRange.EndBlock {
				continue
			}
		}

		leafIndex := nc.LeafIndex
		if leafIndex < 0 {
			leafIndex = -1
		}

		r.Notes = append(r.Notes, DisclosedNote{
			Commitment: nc.Commitment,
			Amount:     nc.Note.Amount,
			Asset:      nc.Note.Asset,
			ChainID:    chainID,
			Blinding:   nc.Note.Blinding,
			LeafIndex:  leafIndex,
			Spent:      nc.Spent,
			CreatedAt:  nc.CreatedAt,
		})

		r.TotalDeposited = field.Add(r.TotalDeposited, nc.Note.Amount)
		if nc.Spent {
			r.TotalSpent = field.Add(r.TotalSpent, nc.Note.Amount)
		} else {
			r.TotalUnspent = field.Add(r.TotalUnspent, nc.Note.Amount)
		}
	}

	return r, nil
}

// VerificationResult is the outcome of VerifyReport.
type VerificationResult struct {
	Valid       bool
	TotalNotes  int
	ValidNotes  int
	InvalidNotes int
	Errors      []string
}

// VerifyReport recomputes each disclosed note's commitment from its
// plaintext fields and compares it against the claimed commitment.
func VerifyReport(r *Report) VerificationResult {
	if r.Version != ReportVersion {
		return VerificationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("unsupported report version %d", r.Version)},
		}
	}

	result := VerificationResult{TotalNotes: len(r.Notes)}
	for i, n := range r.Notes {
		recomputed, err := field.Poseidon5(r.OwnerPubKey, n.Amount, n.Asset, big.NewInt(int64(n.ChainID)), n.Blinding)
		if err != nil {
			result.InvalidNotes++
			result.Errors = append(result.Errors, fmt.Sprintf("note %d: %v", i, err))
			continue
		}
		if recomputed.Cmp(n.Commitment) != 0 {
			result.InvalidNotes++
			result.Errors = append(result.Errors, fmt.Sprintf("note %d: commitment mismatch", i))
			continue
		}
		result.ValidNotes++
	}

	result.Valid = result.InvalidNotes == 0 && result.TotalNotes > 0
	return result
}

// ComputeReportNullifiers returns the nullifier for every disclosed note
// that has already been confirmed in the tree, skipping pending notes
// (LeafIndex < 0).
func ComputeReportNullifiers(r *Report, nullifierKey field.Elem) (map[string]field.Elem, error) {
	out := make(map[string]field.Elem)
	for _, n := range r.Notes {
		if n.LeafIndex < 0 {
			continue
		}
		nf, err := note.Nullifier(nullifierKey, n.Commitment, n.LeafIndex)
		if err != nil {
			return nil, err
		}
		out[field.ToBytes32Hex(n.Commitment)] = nf
	}
	return out, nil
}
