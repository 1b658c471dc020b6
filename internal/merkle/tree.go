// Package merkle implements the append-only Poseidon commitment Merkle
// tree used for deposits: a fixed-depth tree with a Store-backed
// node cache, Poseidon2 as the pair hash, and a rolling "known root"
// history of the last 100 roots so proofs generated against a
// recent-but-not-current root remain valid.
package merkle

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/duststealth/core/internal/field"
)

// Depth is the fixed depth of the deposit commitment tree.
const Depth = 20

// KnownRootHistory is the size of the rolling buffer of recent roots.
const KnownRootHistory = 100

// Errors returned by this package.
var (
	ErrTreeFull          = errors.New("merkle: tree is full")
	ErrLeafIndexOutOfRange = errors.New("merkle: leaf index out of range")
)

// Store is the persistence interface for tree nodes, mirroring the
// teacher's TreeStore contract.
type Store interface {
	GetNode(ctx context.Context, level int, index uint64) (field.Elem, bool, error)
	SetNode(ctx context.Context, level int, index uint64, value field.Elem) error
	GetSize(ctx context.Context) (uint64, error)
	SetSize(ctx context.Context, size uint64) error
}

// Proof is a sibling path from a leaf to the root.
type Proof struct {
	PathElements [Depth]field.Elem
	// PathIndices[i] is 0 if the node at level i is a left child, 1 if right.
	PathIndices [Depth]int
	LeafIndex   uint64
}

var (
	zeroHashesOnce sync.Once
	zeroHashes     [Depth + 1]field.Elem
)

func zeroHash(level int) field.Elem {
	zeroHashesOnce.Do(func() {
		zeroHashes[0] = big.NewInt(0)
		for i := 1; i <= Depth; i++ {
			h, err := field.Poseidon2(zeroHashes[i-1], zeroHashes[i-1])
			if err != nil {
				panic(err)
			}
			zeroHashes[i] = h
		}
	})
	return zeroHashes[level]
}

// Tree is an append-only Poseidon Merkle tree of fixed depth Depth, with a
// rolling known-root history.
type Tree struct {
	mu sync.RWMutex

	store Store
	size  uint64
	root  field.Elem

	knownRoots [KnownRootHistory]field.Elem
	knownSet   map[string]struct{}
}

// New constructs a tree backed by store; the store's persisted size (if any)
// seeds the in-memory count.
func New(ctx context.Context, store Store) (*Tree, error) {
	size, err := store.GetSize(ctx)
	if err != nil {
		size = 0
	}
	t := &Tree{
		store:    store,
		size:     size,
		root:     zeroHash(Depth),
		knownSet: make(map[string]struct{}, KnownRootHistory),
	}
	if size == 0 {
		t.pushKnownRoot(t.root)
		return t, nil
	}
	root, err := t.computeRootLocked(ctx)
	if err != nil {
		return nil, err
	}
	t.root = root
	t.pushKnownRoot(root)
	return t, nil
}

func (t *Tree) computeRootLocked(ctx context.Context) (field.Elem, error) {
	// Recompute the root from the last inserted leaf's ancestor chain.
	if t.size == 0 {
		return zeroHash(Depth), nil
	}
	return t.ancestorAt(ctx, Depth, t.lastNodeIndex(Depth))
}

func (t *Tree) lastNodeIndex(level int) uint64 {
	idx := t.size - 1
	return idx >> uint(level)
}

func (t *Tree) ancestorAt(ctx context.Context, level int, index uint64) (field.Elem, error) {
	v, ok, err := t.store.GetNode(ctx, level, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return zeroHash(level), nil
	}
	return v, nil
}

// Insert appends a leaf, updates all ancestor hashes, and returns the
// assigned leaf index. Insertion order MUST match the on-chain deposit
// queue index.
func (t *Tree) Insert(ctx context.Context, leaf field.Elem) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxLeaves := uint64(1) << uint(Depth)
	if t.size >= maxLeaves {
		return 0, ErrTreeFull
	}

	index := t.size
	if err := t.store.SetNode(ctx, 0, index, field.ModReduce(leaf)); err != nil {
		return 0, err
	}

	current := field.ModReduce(leaf)
	idx := index
	for level := 0; level < Depth; level++ {
		siblingIdx := idx ^ 1
		sibling, err := t.ancestorAt(ctx, level, siblingIdx)
		if err != nil {
			return 0, err
		}

		var parent field.Elem
		if idx%2 == 0 {
			parent, err = field.Poseidon2(current, sibling)
		} else {
			parent, err = field.Poseidon2(sibling, current)
		}
		if err != nil {
			return 0, err
		}

		idx /= 2
		current = parent
		if err := t.store.SetNode(ctx, level+1, idx, current); err != nil {
			return 0, err
		}
	}

	t.size = index + 1
	t.root = current
	if err := t.store.SetSize(ctx, t.size); err != nil {
		return 0, err
	}
	t.pushKnownRoot(current)

	return index, nil
}

func (t *Tree) pushKnownRoot(root field.Elem) {
	slot := t.size % KnownRootHistory
	old := t.knownRoots[slot]
	if old != nil {
		delete(t.knownSet, old.String())
	}
	t.knownRoots[slot] = root
	t.knownSet[root.String()] = struct{}{}
}

// Root returns the current tree root.
func (t *Tree) Root() field.Elem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Size returns the number of leaves inserted so far.
func (t *Tree) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// IsKnownRoot reports whether r is in the rolling buffer of recent roots.
func (t *Tree) IsKnownRoot(r field.Elem) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.knownSet[field.ModReduce(r).String()]
	return ok
}

// ProofFor returns the sibling path from leafIndex to the root.
func (t *Tree) ProofFor(ctx context.Context, leafIndex uint64) (*Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if leafIndex >= t.size {
		return nil, ErrLeafIndexOutOfRange
	}

	p := &Proof{LeafIndex: leafIndex}
	idx := leafIndex
	for level := 0; level < Depth; level++ {
		siblingIdx := idx ^ 1
		sibling, err := t.ancestorAt(ctx, level, siblingIdx)
		if err != nil {
			return nil, err
		}
		p.PathElements[level] = sibling
		if idx%2 == 1 {
			p.PathIndices[level] = 1
		}
		idx /= 2
	}
	return p, nil
}

// ComputeRoot folds leaf up through proof's siblings and returns the
// resulting root, without comparing it against any expected value. Circuit
// builders use this to recompute the historical root a withdrawal or
// transfer attests to.
func ComputeRoot(leaf field.Elem, proof *Proof) (field.Elem, error) {
	current := field.ModReduce(leaf)
	for i := 0; i < Depth; i++ {
		var err error
		if proof.PathIndices[i] == 1 {
			current, err = field.Poseidon2(proof.PathElements[i], current)
		} else {
			current, err = field.Poseidon2(current, proof.PathElements[i])
		}
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// VerifyProof checks that leaf, combined with proof's siblings, hashes to
// expectedRoot using the same Poseidon2 combiner used at insertion time.
func VerifyProof(leaf field.Elem, proof *Proof, expectedRoot field.Elem) bool {
	root, err := ComputeRoot(leaf, proof)
	if err != nil {
		return false
	}
	return root.Cmp(field.ModReduce(expectedRoot)) == 0
}

// ZeroPath returns the Depth-length proof whose sibling at each level is that
// level's empty-subtree hash, used for dummy input slots, which don't need a
// valid Merkle proof.
func ZeroPath() *Proof {
	p := &Proof{}
	for i := 0; i < Depth; i++ {
		p.PathElements[i] = zeroHash(i)
	}
	return p
}

// InMemoryStore is a map-backed Store for tests and single-process relayers.
type InMemoryStore struct {
	mu    sync.RWMutex
	nodes map[int]map[uint64]field.Elem
	size  uint64
}

// NewInMemoryStore constructs an empty in-memory tree store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nodes: make(map[int]map[uint64]field.Elem)}
}

func (s *InMemoryStore) GetNode(ctx context.Context, level int, index uint64) (field.Elem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lvl, ok := s.nodes[level]
	if !ok {
		return nil, false, nil
	}
	v, ok := lvl[index]
	return v, ok, nil
}

func (s *InMemoryStore) SetNode(ctx context.Context, level int, index uint64, value field.Elem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodes[level] == nil {
		s.nodes[level] = make(map[uint64]field.Elem)
	}
	s.nodes[level][index] = value
	return nil
}

func (s *InMemoryStore) GetSize(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size, nil
}

func (s *InMemoryStore) SetSize(ctx context.Context, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
	return nil
}
