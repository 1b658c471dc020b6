// Package relayertree keeps a server-side Merkle tree in sync with a pool
// contract's DepositQueued event stream, one tree per chain, and posts
// the tree's root on-chain when the on-chain root differs from it.
package relayertree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/merkle"
	"github.com/duststealth/core/pkg/collab"
)

// Errors returned by this package.
var (
	ErrEventGapDetected   = errors.New("relayertree: deposit queue index gap detected")
	ErrRpcUnavailable     = errors.New("relayertree: chain reader unavailable")
	ErrPostRootReverted   = errors.New("relayertree: updateRoot transaction reverted")
	ErrCommitmentNotFound = errors.New("relayertree: commitment not present in the synced tree")
)

// maxBlockRange caps the width of a single DepositQueuedEvents scan, mirroring
// the eth_getLogs block-range limits most RPC providers enforce (Alchemy,
// Infura, and most self-hosted geth/erigon nodes all reject much wider
// ranges). Sync chunks its scan into windows of at most this many blocks.
const maxBlockRange = 2000

// Manager owns one Merkle tree per chain and keeps each synced with its
// pool contract's deposit queue.
type Manager struct {
	chain  collab.ChainReader
	writer collab.ChainWriter

	mu     sync.Mutex
	trees  map[uint64]*merkle.Tree
	synced map[uint64]uint64 // chainID -> last block scanned (inclusive)
	leafOf map[uint64]map[string]uint64
	sf     singleflight.Group
}

// NewManager constructs a Manager backed by chain (for reading events) and
// writer (for posting roots).
func NewManager(chain collab.ChainReader, writer collab.ChainWriter) *Manager {
	return &Manager{
		chain:  chain,
		writer: writer,
		trees:  make(map[uint64]*merkle.Tree),
		synced: make(map[uint64]uint64),
		leafOf: make(map[uint64]map[string]uint64),
	}
}

func (m *Manager) treeFor(ctx context.Context, chainID uint64) (*merkle.Tree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trees[chainID]
	if ok {
		return t, nil
	}
	t, err := merkle.New(ctx, merkle.NewInMemoryStore())
	if err != nil {
		return nil, err
	}
	m.trees[chainID] = t
	m.leafOf[chainID] = make(map[string]uint64)
	return t, nil
}

// Sync fetches any DepositQueued events emitted since the last sync and
// inserts their commitments into chainID's tree, in (BlockNumber, LogIndex)
// order regardless of the order the chain reader returned them in. Multiple
// concurrent Sync calls for the same chain share one underlying sync, which
// makes one LatestBlock call and one DepositQueuedEvents call per window.
func (m *Manager) Sync(ctx context.Context, chainID uint64) (uint64, error) {
	key := fmt.Sprintf("%d", chainID)
	v, err, _ := m.sf.Do(key, func() (interface{}, error) {
		return m.syncOnce(ctx, chainID)
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

func (m *Manager) syncOnce(ctx context.Context, chainID uint64) (uint64, error) {
	tree, err := m.treeFor(ctx, chainID)
	if err != nil {
		return 0, err
	}

	latest, err := m.chain.LatestBlock(ctx, chainID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRpcUnavailable, err)
	}

	m.mu.Lock()
	fromBlock := m.synced[chainID]
	m.mu.Unlock()

	for fromBlock <= latest {
		toBlock := fromBlock + maxBlockRange - 1
		if toBlock > latest {
			toBlock = latest
		}

		events, err := m.chain.DepositQueuedEvents(ctx, chainID, fromBlock, toBlock)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRpcUnavailable, err)
		}

		sort.Slice(events, func(i, j int) bool {
			if events[i].BlockNumber != events[j].BlockNumber {
				return events[i].BlockNumber < events[j].BlockNumber
			}
			return events[i].LogIndex < events[j].LogIndex
		})

		if err := m.insertEvents(ctx, chainID, tree, events); err != nil {
			return 0, err
		}

		m.mu.Lock()
		m.synced[chainID] = toBlock
		m.mu.Unlock()

		if toBlock == latest {
			break
		}
		fromBlock = toBlock + 1
	}

	return tree.Size(), nil
}

// insertEvents inserts a chunk's events into chainID's tree in queue-index
// order, skipping any queue index already inserted by a prior chunk or a
// prior sync.
func (m *Manager) insertEvents(ctx context.Context, chainID uint64, tree *merkle.Tree, events []collab.DepositQueuedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	leafOf := m.leafOf[chainID]
	nextQueueIndex := tree.Size()
	for _, ev := range events {
		if ev.QueueIndex < nextQueueIndex {
			continue // already inserted in a prior chunk or sync
		}
		if ev.QueueIndex != nextQueueIndex {
			return fmt.Errorf("%w: chain %d expected queue index %d, got %d", ErrEventGapDetected, chainID, nextQueueIndex, ev.QueueIndex)
		}
		idx, err := tree.Insert(ctx, ev.Commitment)
		if err != nil {
			return err
		}
		leafOf[field.ModReduce(ev.Commitment).String()] = idx
		nextQueueIndex++
	}
	return nil
}

// PostRootIfNeeded posts chainID's current tree root via the chain writer if
// it differs from onChainRoot, or if onChainRoot is nil; onChainRoot is
// supplied by the caller since reading it is a RelayerClient concern, not a
// ChainReader one.
func (m *Manager) PostRootIfNeeded(ctx context.Context, chainID uint64, onChainRoot field.Elem) (posted bool, txHash string, err error) {
	tree, err := m.treeFor(ctx, chainID)
	if err != nil {
		return false, "", err
	}
	current := tree.Root()
	if onChainRoot != nil && field.ModReduce(onChainRoot).Cmp(current) == 0 {
		return false, "", nil
	}
	txHash, err = m.writer.UpdateRoot(ctx, chainID, current)
	if err != nil {
		return false, "", fmt.Errorf("%w: %v", ErrPostRootReverted, err)
	}
	return true, txHash, nil
}

// ProofFor returns the Merkle proof for leafIndex in chainID's tree.
func (m *Manager) ProofFor(ctx context.Context, chainID uint64, leafIndex uint64) (*merkle.Proof, error) {
	tree, err := m.treeFor(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return tree.ProofFor(ctx, leafIndex)
}

// LeafCount returns the number of leaves synced into chainID's tree so far.
func (m *Manager) LeafCount(ctx context.Context, chainID uint64) (uint64, error) {
	tree, err := m.treeFor(ctx, chainID)
	if err != nil {
		return 0, err
	}
	return tree.Size(), nil
}

// LeafIndexOf returns the leaf index assigned to commitment in chainID's
// tree, or ErrCommitmentNotFound if it has not been synced yet.
func (m *Manager) LeafIndexOf(ctx context.Context, chainID uint64, commitment field.Elem) (uint64, error) {
	if _, err := m.treeFor(ctx, chainID); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.leafOf[chainID][field.ModReduce(commitment).String()]
	if !ok {
		return 0, ErrCommitmentNotFound
	}
	return idx, nil
}

// Root returns chainID's current synced root.
func (m *Manager) Root(ctx context.Context, chainID uint64) (field.Elem, error) {
	tree, err := m.treeFor(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}
