package notestore

import (
	"context"
	"sync"

	"github.com/duststealth/core/internal/field"
	"github.com/duststealth/core/internal/note"
)

type memRecord struct {
	wallet string
	note   note.NoteCommitment
}

// InMemoryNoteStore is a map-backed collab.NoteStore for tests and
// single-process development.
type InMemoryNoteStore struct {
	mu      sync.Mutex
	records map[string]*memRecord // commitment hex -> record
}

// NewInMemoryNoteStore constructs an empty store.
func NewInMemoryNoteStore() *InMemoryNoteStore {
	return &InMemoryNoteStore{records: make(map[string]*memRecord)}
}

func (s *InMemoryNoteStore) SavePending(ctx context.Context, wallet string, n note.NoteCommitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := field.ToBytes32Hex(n.Commitment)
	if _, exists := s.records[key]; exists {
		return nil
	}
	s.records[key] = &memRecord{wallet: wallet, note: n}
	return nil
}

func (s *InMemoryNoteStore) MarkSpentAndSaveOutputs(ctx context.Context, wallet string, inputID string, outputs []note.NoteCommitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[inputID]
	if !ok || rec.wallet != wallet {
		return ErrNotFound
	}
	rec.note.Spent = true

	for _, o := range outputs {
		key := field.ToBytes32Hex(o.Commitment)
		s.records[key] = &memRecord{wallet: wallet, note: o}
	}
	return nil
}

func (s *InMemoryNoteStore) UnspentNotes(ctx context.Context, wallet string, chainID uint64) ([]note.NoteCommitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []note.NoteCommitment
	for _, rec := range s.records {
		if rec.wallet != wallet || rec.note.Spent {
			continue
		}
		if rec.note.Note.ChainID.Cmp(field.FromUint64(chainID)) != 0 {
			continue
		}
		out = append(out, rec.note)
	}
	return out, nil
}

func (s *InMemoryNoteStore) UpdateLeafIndex(ctx context.Context, id string, leafIndex int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.note.LeafIndex = leafIndex
	return nil
}

func (s *InMemoryNoteStore) DeleteAll(ctx context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.records {
		if rec.wallet == wallet {
			delete(s.records, key)
		}
	}
	return nil
}
