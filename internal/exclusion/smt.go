// Package exclusion implements the sanctions exclusion set as a Sparse
// Merkle Tree of flagged commitments, producing non-membership witnesses
// consumed by the compliance circuit. Nodes are content-addressed by hash
// and leaves compress along shared prefixes, the way circuit-compatible
// SMTs are built.
package exclusion

import (
	"errors"
	"math/big"
	"sync"

	"github.com/duststealth/core/internal/field"
)

// Depth is the fixed depth of the exclusion SMT.
const Depth = 20

// Errors returned by this package.
var (
	ErrCannotProveExclusion = errors.New("exclusion: key is flagged, cannot prove non-membership")
	ErrSmtCorruption        = errors.New("exclusion: smt path exceeded fixed depth without resolving")
)

type nodeKind uint8

const (
	kindEmpty nodeKind = iota
	kindLeaf
	kindMiddle
)

type smtNode struct {
	kind   nodeKind
	key    *big.Int // leaf only
	value  *big.Int // leaf only
	childL *big.Int // middle only: hash of left child
	childR *big.Int // middle only: hash of right child
}

func (n *smtNode) hash() (field.Elem, error) {
	switch n.kind {
	case kindEmpty:
		return big.NewInt(0), nil
	case kindLeaf:
		return field.Poseidon3(n.key, n.value, big.NewInt(1))
	case kindMiddle:
		return field.Poseidon2(n.childL, n.childR)
	}
	return nil, ErrSmtCorruption
}

var emptyHash = big.NewInt(0)

// Witness is a non-membership proof for a single key, suitable for the
// compliance circuit's SMT verifier.
type Witness struct {
	ExclusionRoot field.Elem
	Siblings      [Depth]field.Elem
	OldKey        field.Elem
	OldValue      field.Elem
	IsOld0        bool
}

// SMT is a Sparse Merkle Tree of (commitment -> 1) flags.
type SMT struct {
	mu    sync.RWMutex
	nodes map[string]*smtNode // keyed by hash.String()
	root  field.Elem
	flags map[string]struct{} // flagged keys, decimal string, for checkpointing
}

// New constructs an empty exclusion set.
func New() *SMT {
	return &SMT{
		nodes: make(map[string]*smtNode),
		root:  big.NewInt(0),
		flags: make(map[string]struct{}),
	}
}

func (s *SMT) store(n *smtNode) (field.Elem, error) {
	h, err := n.hash()
	if err != nil {
		return nil, err
	}
	s.nodes[h.String()] = n
	return h, nil
}

func (s *SMT) lookup(h field.Elem) *smtNode {
	if h.Sign() == 0 {
		return &smtNode{kind: kindEmpty}
	}
	n, ok := s.nodes[h.String()]
	if !ok {
		return &smtNode{kind: kindEmpty}
	}
	return n
}

// Root returns the current SMT root.
func (s *SMT) Root() field.Elem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// IsFlagged reports whether commitment is in the flagged set.
func (s *SMT) IsFlagged(commitment *big.Int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flags[field.ModReduce(commitment).String()]
	return ok
}

// InsertFlag adds commitment to the flagged set. Idempotent: re-inserting an
// already-flagged key leaves the root unchanged.
func (s *SMT) InsertFlag(commitment *big.Int) (field.Elem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := field.ModReduce(commitment)
	newRoot, err := s.insert(s.root, key, big.NewInt(1), 0)
	if err != nil {
		return nil, err
	}
	s.root = newRoot
	s.flags[key.String()] = struct{}{}
	return s.root, nil
}

func (s *SMT) insert(current field.Elem, key, value *big.Int, level int) (field.Elem, error) {
	node := s.lookup(current)

	switch node.kind {
	case kindEmpty:
		return s.store(&smtNode{kind: kindLeaf, key: key, value: value})

	case kindLeaf:
		if node.key.Cmp(key) == 0 {
			if node.value.Cmp(value) == 0 {
				return current, nil // idempotent
			}
			return s.store(&smtNode{kind: kindLeaf, key: key, value: value})
		}
		if level >= Depth {
			return nil, ErrSmtCorruption
		}
		return s.pushDown(node, key, value, level)

	case kindMiddle:
		bit := key.Bit(level)
		if bit == 0 {
			newL, err := s.insert(node.childL, key, value, level+1)
			if err != nil {
				return nil, err
			}
			return s.store(&smtNode{kind: kindMiddle, childL: newL, childR: node.childR})
		}
		newR, err := s.insert(node.childR, key, value, level+1)
		if err != nil {
			return nil, err
		}
		return s.store(&smtNode{kind: kindMiddle, childL: node.childL, childR: newR})
	}
	return nil, ErrSmtCorruption
}

// pushDown resolves a collision between an existing leaf and a new
// key/value by descending both one bit at a time until they diverge,
// building the necessary middle nodes.
func (s *SMT) pushDown(oldLeaf *smtNode, newKey, newValue *big.Int, level int) (field.Elem, error) {
	if level >= Depth {
		return nil, ErrSmtCorruption
	}

	oldBit := oldLeaf.key.Bit(level)
	newBit := newKey.Bit(level)

	if oldBit == newBit {
		var childHash field.Elem
		var err error
		if level+1 >= Depth {
			return nil, ErrSmtCorruption
		}
		childHash, err = s.pushDown(oldLeaf, newKey, newValue, level+1)
		if err != nil {
			return nil, err
		}
		if oldBit == 0 {
			return s.store(&smtNode{kind: kindMiddle, childL: childHash, childR: emptyHash})
		}
		return s.store(&smtNode{kind: kindMiddle, childL: emptyHash, childR: childHash})
	}

	oldLeafHash, err := s.store(&smtNode{kind: kindLeaf, key: oldLeaf.key, value: oldLeaf.value})
	if err != nil {
		return nil, err
	}
	newLeafHash, err := s.store(&smtNode{kind: kindLeaf, key: newKey, value: newValue})
	if err != nil {
		return nil, err
	}
	if newBit == 0 {
		return s.store(&smtNode{kind: kindMiddle, childL: newLeafHash, childR: oldLeafHash})
	}
	return s.store(&smtNode{kind: kindMiddle, childL: oldLeafHash, childR: newLeafHash})
}

// RemoveFlag removes commitment from the flagged set. Idempotent on absent
// keys.
func (s *SMT) RemoveFlag(commitment *big.Int) (field.Elem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := field.ModReduce(commitment)
	if _, ok := s.flags[key.String()]; !ok {
		return s.root, nil // idempotent on absent key
	}

	newRoot, removed, err := s.remove(s.root, key, 0)
	if err != nil {
		return nil, err
	}
	if !removed {
		return s.root, nil
	}
	s.root = newRoot
	delete(s.flags, key.String())
	return s.root, nil
}

func (s *SMT) remove(current field.Elem, key *big.Int, level int) (field.Elem, bool, error) {
	node := s.lookup(current)
	switch node.kind {
	case kindEmpty:
		return current, false, nil
	case kindLeaf:
		if node.key.Cmp(key) != 0 {
			return current, false, nil
		}
		return emptyHash, true, nil
	case kindMiddle:
		bit := key.Bit(level)
		var newL, newR field.Elem
		var removed bool
		var err error
		if bit == 0 {
			newL, removed, err = s.remove(node.childL, key, level+1)
			newR = node.childR
		} else {
			newR, removed, err = s.remove(node.childR, key, level+1)
			newL = node.childL
		}
		if err != nil || !removed {
			return current, removed, err
		}
		return s.collapse(newL, newR)
	}
	return current, false, ErrSmtCorruption
}

// collapse rebuilds the middle node at (l, r), pulling a lone remaining leaf
// child up in place of the middle node to keep the tree canonical (so the
// root depends only on the flagged set, not on insertion/removal order).
func (s *SMT) collapse(l, r field.Elem) (field.Elem, bool, error) {
	lNode, rNode := s.lookup(l), s.lookup(r)
	if lNode.kind == kindEmpty && rNode.kind == kindLeaf {
		h, err := s.store(&smtNode{kind: kindLeaf, key: rNode.key, value: rNode.value})
		return h, true, err
	}
	if rNode.kind == kindEmpty && lNode.kind == kindLeaf {
		h, err := s.store(&smtNode{kind: kindLeaf, key: lNode.key, value: lNode.value})
		return h, true, err
	}
	h, err := s.store(&smtNode{kind: kindMiddle, childL: l, childR: r})
	return h, true, err
}

// NonMembershipWitness returns the smallest witness recognized by the SMT
// circuit for commitment. Fails with ErrCannotProveExclusion if commitment
// is flagged.
func (s *SMT) NonMembershipWitness(commitment *big.Int) (*Witness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := field.ModReduce(commitment)
	w := &Witness{ExclusionRoot: s.root, OldKey: big.NewInt(0), OldValue: big.NewInt(0)}
	for i := range w.Siblings {
		w.Siblings[i] = big.NewInt(0)
	}

	current := s.root
	for level := 0; level < Depth; level++ {
		node := s.lookup(current)
		switch node.kind {
		case kindEmpty:
			w.IsOld0 = true
			return w, nil
		case kindLeaf:
			if node.key.Cmp(key) == 0 {
				return nil, ErrCannotProveExclusion
			}
			w.OldKey = node.key
			w.OldValue = node.value
			w.IsOld0 = false
			return w, nil
		case kindMiddle:
			bit := key.Bit(level)
			if bit == 0 {
				w.Siblings[level] = node.childR
				current = node.childL
			} else {
				w.Siblings[level] = node.childL
				current = node.childR
			}
		}
	}
	return nil, ErrSmtCorruption
}
