package exclusion

import (
	"fmt"
	"math/big"

	bolt "go.etcd.io/bbolt"
)

var flagsBucket = []byte("flagged_commitments")

// SaveCheckpoint persists only the flagged-key set to a bbolt database at
// path. The tree itself is never serialized; LoadCheckpoint rebuilds it by
// replaying InsertFlag for every key in the set.
func (s *SMT) SaveCheckpoint(path string) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.flags))
	for k := range s.flags {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return fmt.Errorf("exclusion: open checkpoint: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(flagsBucket)
		if err != nil {
			return err
		}
		if err := b.ForEach(func(k, v []byte) error {
			return b.Delete(k)
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Put([]byte(k), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadCheckpoint rebuilds the exclusion set from a bbolt checkpoint written
// by SaveCheckpoint. Cost is proportional to the size of the flagged set,
// not to the tree's fixed depth.
func LoadCheckpoint(path string) (*SMT, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("exclusion: open checkpoint: %w", err)
	}
	defer db.Close()

	s := New()
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(flagsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			key, ok := new(big.Int).SetString(string(k), 10)
			if !ok {
				return ErrSmtCorruption
			}
			_, err := s.InsertFlag(key)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
