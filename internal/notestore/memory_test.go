package notestore

import (
	"context"
	"math/big"
	"testing"

	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/note"
	"github.com/duststealth/core/pkg/collab"
)

var _ collab.NoteStore = (*InMemoryNoteStore)(nil)
var _ collab.NoteStore = (*PostgresNoteStore)(nil)

func mustNote(t *testing.T, owner, amount, chainID int64) note.NoteCommitment {
	t.Helper()
	n, err := note.MakeNote(big.NewInt(owner), big.NewInt(amount), big.NewInt(0), big.NewInt(chainID))
	if err != nil {
		t.Fatalf("MakeNote: %v", err)
	}
	c, err := note.Commitment(n)
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	return note.NoteCommitment{Note: n, Commitment: c, LeafIndex: -1}
}

func TestSavePendingThenUnspentNotes(t *testing.T) {
	store := NewInMemoryNoteStore()
	ctx := context.Background()

	n := mustNote(t, 1, 100, 1)
	if err := store.SavePending(ctx, "wallet-a", n); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	notes, err := store.UnspentNotes(ctx, "wallet-a", 1)
	if err != nil {
		t.Fatalf("UnspentNotes: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 unspent note, got %d", len(notes))
	}
	if notes[0].Commitment.Cmp(n.Commitment) != 0 {
		t.Fatal("returned note commitment does not match saved note")
	}
}

func TestMarkSpentAndSaveOutputsIsAtomic(t *testing.T) {
	store := NewInMemoryNoteStore()
	ctx := context.Background()

	input := mustNote(t, 1, 100, 1)
	if err := store.SavePending(ctx, "wallet-a", input); err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	inputID := field.ToBytes32Hex(input.Commitment)

	output := mustNote(t, 1, 60, 1)
	if err := store.MarkSpentAndSaveOutputs(ctx, "wallet-a", inputID, []note.NoteCommitment{output}); err != nil {
		t.Fatalf("MarkSpentAndSaveOutputs: %v", err)
	}

	notes, err := store.UnspentNotes(ctx, "wallet-a", 1)
	if err != nil {
		t.Fatalf("UnspentNotes: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected the spent input to drop out and the output to remain, got %d unspent notes", len(notes))
	}
	if notes[0].Commitment.Cmp(output.Commitment) != 0 {
		t.Fatal("remaining unspent note is not the output note")
	}
}

func TestMarkSpentUnknownInputFails(t *testing.T) {
	store := NewInMemoryNoteStore()
	err := store.MarkSpentAndSaveOutputs(context.Background(), "wallet-a", "0xdoesnotexist", nil)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnspentNotesFiltersByChain(t *testing.T) {
	store := NewInMemoryNoteStore()
	ctx := context.Background()

	n1 := mustNote(t, 1, 100, 1)
	n2 := mustNote(t, 1, 200, 137)
	if err := store.SavePending(ctx, "wallet-a", n1); err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	if err := store.SavePending(ctx, "wallet-a", n2); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	notes, err := store.UnspentNotes(ctx, "wallet-a", 1)
	if err != nil {
		t.Fatalf("UnspentNotes: %v", err)
	}
	if len(notes) != 1 || notes[0].Commitment.Cmp(n1.Commitment) != 0 {
		t.Fatalf("expected only chain-1 note to be returned, got %d notes", len(notes))
	}
}

func TestDeleteAllRemovesOnlyThatWallet(t *testing.T) {
	store := NewInMemoryNoteStore()
	ctx := context.Background()

	if err := store.SavePending(ctx, "wallet-a", mustNote(t, 1, 100, 1)); err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	if err := store.SavePending(ctx, "wallet-b", mustNote(t, 2, 100, 1)); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	if err := store.DeleteAll(ctx, "wallet-a"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	aNotes, _ := store.UnspentNotes(ctx, "wallet-a", 1)
	bNotes, _ := store.UnspentNotes(ctx, "wallet-b", 1)
	if len(aNotes) != 0 {
		t.Fatalf("expected wallet-a notes to be gone, got %d", len(aNotes))
	}
	if len(bNotes) != 1 {
		t.Fatalf("expected wallet-b notes to remain, got %d", len(bNotes))
	}
}
