package merkle

import (
	"context"
	"math/big"
	"testing"
)

func TestInsertAndVerifyProof(t *testing.T) {
	ctx := context.Background()
	tree, err := New(ctx, NewInMemoryStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var leaves []*big.Int
	for i := 0; i < 10; i++ {
		leaves = append(leaves, big.NewInt(int64(i+1)*7))
	}

	for i, leaf := range leaves {
		idx, err := tree.Insert(ctx, leaf)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if idx != uint64(i) {
			t.Fatalf("expected leaf index %d, got %d", i, idx)
		}
	}

	root := tree.Root()
	for i, leaf := range leaves {
		proof, err := tree.ProofFor(ctx, uint64(i))
		if err != nil {
			t.Fatalf("ProofFor(%d): %v", i, err)
		}
		if !VerifyProof(leaf, proof, root) {
			t.Fatalf("proof for leaf %d failed to verify", i)
		}
	}
}

func TestLeafIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	tree, _ := New(ctx, NewInMemoryStore())
	if _, err := tree.ProofFor(ctx, 0); err != ErrLeafIndexOutOfRange {
		t.Fatalf("expected ErrLeafIndexOutOfRange, got %v", err)
	}
}

func TestKnownRootHistory(t *testing.T) {
	ctx := context.Background()
	tree, _ := New(ctx, NewInMemoryStore())

	var roots []*big.Int
	for i := 0; i < 5; i++ {
		if _, err := tree.Insert(ctx, big.NewInt(int64(i+1))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		roots = append(roots, tree.Root())
	}

	for _, r := range roots {
		if !tree.IsKnownRoot(r) {
			t.Fatalf("root %s should be known", r)
		}
	}
	if tree.IsKnownRoot(big.NewInt(999999)) {
		t.Fatal("unrelated value should not be a known root")
	}
}

func TestLeafIndexMonotonic(t *testing.T) {
	ctx := context.Background()
	tree, _ := New(ctx, NewInMemoryStore())
	for i := 0; i < 20; i++ {
		idx, err := tree.Insert(ctx, big.NewInt(int64(i)))
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if idx != uint64(i) {
			t.Fatalf("leaf index should increase monotonically from 0, got %d at step %d", idx, i)
		}
	}
}
