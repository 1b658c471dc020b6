package relayertree

import (
	"context"
	"math/big"
	"testing"

	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/pkg/collab"
)

type fakeChain struct {
	events []collab.DepositQueuedEvent
	latest uint64
}

func (f *fakeChain) ComplianceVerifierAddress(ctx context.Context, chainID uint64) (string, error) {
	return "", nil
}
func (f *fakeChain) ComplianceVerified(ctx context.Context, nullifier *big.Int, chainID uint64) (bool, error) {
	return false, nil
}
func (f *fakeChain) DepositQueuedEvents(ctx context.Context, chainID uint64, fromBlock, toBlock uint64) ([]collab.DepositQueuedEvent, error) {
	return f.events, nil
}
func (f *fakeChain) LatestBlock(ctx context.Context, chainID uint64) (uint64, error) {
	return f.latest, nil
}

type fakeWriter struct {
	calls int
	root  field.Elem
}

func (w *fakeWriter) UpdateRoot(ctx context.Context, chainID uint64, root field.Elem) (string, error) {
	w.calls++
	w.root = root
	return "0xroot", nil
}

func TestSyncInsertsInBlockAndLogOrder(t *testing.T) {
	chain := &fakeChain{
		latest: 100,
		events: []collab.DepositQueuedEvent{
			{Commitment: big.NewInt(30), QueueIndex: 2, BlockNumber: 10, LogIndex: 1},
			{Commitment: big.NewInt(10), QueueIndex: 0, BlockNumber: 5, LogIndex: 0},
			{Commitment: big.NewInt(20), QueueIndex: 1, BlockNumber: 10, LogIndex: 0},
		},
	}
	writer := &fakeWriter{}
	mgr := NewManager(chain, writer)

	size, err := mgr.Sync(context.Background(), 1)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if size != 3 {
		t.Fatalf("expected 3 leaves synced, got %d", size)
	}

	idx0, err := mgr.LeafIndexOf(context.Background(), 1, big.NewInt(10))
	if err != nil || idx0 != 0 {
		t.Fatalf("expected commitment 10 at leaf 0, got %d err=%v", idx0, err)
	}
	idx1, err := mgr.LeafIndexOf(context.Background(), 1, big.NewInt(20))
	if err != nil || idx1 != 1 {
		t.Fatalf("expected commitment 20 at leaf 1, got %d err=%v", idx1, err)
	}
	idx2, err := mgr.LeafIndexOf(context.Background(), 1, big.NewInt(30))
	if err != nil || idx2 != 2 {
		t.Fatalf("expected commitment 30 at leaf 2, got %d err=%v", idx2, err)
	}
}

func TestSyncDetectsQueueIndexGap(t *testing.T) {
	chain := &fakeChain{
		latest: 10,
		events: []collab.DepositQueuedEvent{
			{Commitment: big.NewInt(10), QueueIndex: 0, BlockNumber: 1, LogIndex: 0},
			{Commitment: big.NewInt(20), QueueIndex: 2, BlockNumber: 2, LogIndex: 0}, // gap: missing index 1
		},
	}
	writer := &fakeWriter{}
	mgr := NewManager(chain, writer)

	_, err := mgr.Sync(context.Background(), 1)
	if err == nil {
		t.Fatal("expected a gap-detection error")
	}
}

func TestSyncIsIdempotentAcrossCalls(t *testing.T) {
	chain := &fakeChain{
		latest: 10,
		events: []collab.DepositQueuedEvent{
			{Commitment: big.NewInt(10), QueueIndex: 0, BlockNumber: 1, LogIndex: 0},
		},
	}
	writer := &fakeWriter{}
	mgr := NewManager(chain, writer)

	if _, err := mgr.Sync(context.Background(), 1); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	size, err := mgr.Sync(context.Background(), 1)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if size != 1 {
		t.Fatalf("expected size to remain 1 on a repeat sync with no new events, got %d", size)
	}
}

func TestPostRootIfNeededSkipsWhenRootsMatch(t *testing.T) {
	chain := &fakeChain{latest: 0}
	writer := &fakeWriter{}
	mgr := NewManager(chain, writer)

	root, err := mgr.Root(context.Background(), 1)
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	posted, _, err := mgr.PostRootIfNeeded(context.Background(), 1, root)
	if err != nil {
		t.Fatalf("PostRootIfNeeded: %v", err)
	}
	if posted {
		t.Fatal("expected no post when the on-chain root already matches")
	}
	if writer.calls != 0 {
		t.Fatalf("expected 0 writer calls, got %d", writer.calls)
	}
}

func TestPostRootIfNeededPostsWhenRootsDiffer(t *testing.T) {
	chain := &fakeChain{
		latest: 10,
		events: []collab.DepositQueuedEvent{
			{Commitment: big.NewInt(10), QueueIndex: 0, BlockNumber: 1, LogIndex: 0},
		},
	}
	writer := &fakeWriter{}
	mgr := NewManager(chain, writer)

	if _, err := mgr.Sync(context.Background(), 1); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	posted, txHash, err := mgr.PostRootIfNeeded(context.Background(), 1, big.NewInt(999))
	if err != nil {
		t.Fatalf("PostRootIfNeeded: %v", err)
	}
	if !posted || txHash != "0xroot" {
		t.Fatalf("expected a posted root with tx hash 0xroot, got posted=%v txHash=%s", posted, txHash)
	}
	if writer.calls != 1 {
		t.Fatalf("expected 1 writer call, got %d", writer.calls)
	}
}

func TestLeafIndexOfUnknownCommitmentFails(t *testing.T) {
	chain := &fakeChain{latest: 0}
	writer := &fakeWriter{}
	mgr := NewManager(chain, writer)

	_, err := mgr.LeafIndexOf(context.Background(), 1, big.NewInt(777))
	if err != ErrCommitmentNotFound {
		t.Fatalf("expected ErrCommitmentNotFound, got %v", err)
	}
}
