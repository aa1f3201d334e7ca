package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/mosaic/internal/mosaic/service/history/domain/entity"
	"github.com/kiosk404/mosaic/pkg/utils/json"
)

// InvocationStore is a BoltDB-backed invocation journal. Keys are the
// bucket sequence in big-endian, so cursor order is append order.
type InvocationStore struct {
	db *bolt.DB
}

// NewInvocationStore creates a new InvocationStore.
func NewInvocationStore(db *DB) *InvocationStore {
	return &InvocationStore{db: db.Bolt()}
}

func (s *InvocationStore) Append(_ context.Context, inv *entity.Invocation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInvocationStore)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		data, err := json.Marshal(inv)
		if err != nil {
			return fmt.Errorf("failed to marshal invocation: %w", err)
		}
		return b.Put(seqKey(seq), data)
	})
}

func (s *InvocationStore) List(_ context.Context, q entity.Query) ([]*entity.Invocation, error) {
	var result []*entity.Invocation
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketInvocationStore).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var inv entity.Invocation
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("failed to unmarshal invocation: %w", err)
			}
			if !q.Match(&inv) {
				continue
			}
			result = append(result, &inv)
			if q.Limit > 0 && len(result) == q.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	return result, nil
}

func (s *InvocationStore) Count(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketInvocationStore).Stats().KeyN
		return nil
	})
	return n, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
