package disclosure

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/keys"
	"github.com/duststealth/core/internal/note"
)

func mustNC(t *testing.T, owner, amount, asset, chainID int64, spent bool, leafIndex int64) note.NoteCommitment {
	t.Helper()
	n, err := note.MakeNote(big.NewInt(owner), big.NewInt(amount), big.NewInt(asset), big.NewInt(chainID))
	if err != nil {
		t.Fatalf("MakeNote: %v", err)
	}
	c, err := note.Commitment(n)
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	return note.NoteCommitment{Note: n, Commitment: c, Spent: spent, LeafIndex: leafIndex, CreatedAt: time.Now()}
}

func TestGenerateReportTotalsAndTamperDetection(t *testing.T) {
	owner := big.NewInt(0x42)
	vk := keys.ViewKey{OwnerPubKey: owner, NullifierKey: big.NewInt(0x99)}

	notes := []note.NoteCommitment{
		mustNC(t, 0x42, 1_000_000_000_000_000_000, 0, 1, false, 1),
		mustNC(t, 0x42, 500_000_000_000_000_000, 0, 1, true, 2),
		mustNC(t, 0x42, 250_000_000_000_000_000, 0, 1, false, 3),
	}

	r, err := GenerateReport(notes, vk, 1, Options{}, time.Now())
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if len(r.Notes) != 3 {
		t.Fatalf("expected 3 disclosed notes, got %d", len(r.Notes))
	}
	if r.TotalDeposited.Cmp(big.NewInt(1_750_000_000_000_000_000)) != 0 {
		t.Fatalf("totalDeposited mismatch: got %s", r.TotalDeposited)
	}
	if r.TotalSpent.Cmp(big.NewInt(500_000_000_000_000_000)) != 0 {
		t.Fatalf("totalSpent mismatch: got %s", r.TotalSpent)
	}
	if r.TotalUnspent.Cmp(big.NewInt(1_250_000_000_000_000_000)) != 0 {
		t.Fatalf("totalUnspent mismatch: got %s", r.TotalUnspent)
	}

	verified := VerifyReport(r)
	if !verified.Valid || verified.InvalidNotes != 0 {
		t.Fatalf("expected a valid report, got %+v", verified)
	}

	r.Notes[0].Amount = big.NewInt(999)
	tampered := VerifyReport(r)
	if tampered.Valid {
		t.Fatal("expected tampered report to be invalid")
	}
	if tampered.InvalidNotes != 1 {
		t.Fatalf("expected exactly 1 invalid note, got %d", tampered.InvalidNotes)
	}
	found := false
	for _, e := range tampered.Errors {
		if strings.Contains(e, "commitment mismatch") {
			found = true
		}
	}
	if !found {
		t.Fatal(`expected an error containing "commitment mismatch"`)
	}
}

func TestGenerateReportExcludesOtherOwnersAndDummies(t *testing.T) {
	owner := big.NewInt(1)
	vk := keys.ViewKey{OwnerPubKey: owner, NullifierKey: big.NewInt(2)}

	notes := []note.NoteCommitment{
		mustNC(t, 1, 100, 0, 1, false, 0),
		mustNC(t, 2, 100, 0, 1, false, 0), // different owner
		{Note: note.DummyNote(), CreatedAt: time.Now()},
	}

	r, err := GenerateReport(notes, vk, 1, Options{}, time.Now())
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if len(r.Notes) != 1 {
		t.Fatalf("expected 1 disclosed note, got %d", len(r.Notes))
	}
}

func TestVerifyReportRejectsUnsupportedVersion(t *testing.T) {
	r := &Report{Version: 2}
	result := VerifyReport(r)
	if result.Valid {
		t.Fatal("expected an unsupported version to be invalid")
	}
}

func TestComputeReportNullifiersSkipsPending(t *testing.T) {
	owner := big.NewInt(1)
	vk := keys.ViewKey{OwnerPubKey: owner, NullifierKey: big.NewInt(7)}
	notes := []note.NoteCommitment{
		mustNC(t, 1, 100, 0, 1, false, -1),
		mustNC(t, 1, 200, 0, 1, false, 5),
	}
	r, err := GenerateReport(notes, vk, 1, Options{}, time.Now())
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	nfs, err := ComputeReportNullifiers(r, big.NewInt(7))
	if err != nil {
		t.Fatalf("ComputeReportNullifiers: %v", err)
	}
	if len(nfs) != 1 {
		t.Fatalf("expected 1 nullifier (pending note skipped), got %d", len(nfs))
	}
}

func TestJSONRoundTrip(t *testing.T) {
	owner := big.NewInt(0x42)
	vk := keys.ViewKey{OwnerPubKey: owner, NullifierKey: big.NewInt(0x99)}
	notes := []note.NoteCommitment{mustNC(t, 0x42, 100, 0, 1, false, 0)}

	r, err := GenerateReport(notes, vk, 1, Options{}, time.Now())
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	data, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var r2 Report
	if err := r2.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if len(r2.Notes) != 1 || r2.Notes[0].Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatal("round trip should preserve note amounts")
	}
	if field.ToBytes32Hex(r2.OwnerPubKey) != field.ToBytes32Hex(r.OwnerPubKey) {
		t.Fatal("round trip should preserve ownerPubKey")
	}
}

func TestExportCSVHasHeaderAndSummary(t *testing.T) {
	owner := big.NewInt(1)
	vk := keys.ViewKey{OwnerPubKey: owner, NullifierKey: big.NewInt(2)}
	notes := []note.NoteCommitment{mustNC(t, 1, 1_000_000_000_000_000_000, 0, 1, false, 0)}

	r, err := GenerateReport(notes, vk, 1, Options{}, time.Now())
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	csv := ExportCSV(r)

	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if lines[0] != "Date,Type,Amount (raw),Amount (human),Asset,Commitment,Leaf Index,Status" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	// 1 header + 1 note row + 1 blank + 7 summary lines = 10
	if len(lines) != 10 {
		t.Fatalf("expected 10 lines, got %d:\n%s", len(lines), csv)
	}
	if lines[2] != "" {
		t.Fatalf("expected a blank separator line, got %q", lines[2])
	}
}
