package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerSnapshotStore keeps snapshots in an embedded badger database under
// the key agents/<agent_id>/working_context_snapshot.
type BadgerSnapshotStore struct {
	db *badger.DB
}

func NewBadgerSnapshotStore(dir string) (*BadgerSnapshotStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger snapshot store: %w", err)
	}
	return &BadgerSnapshotStore{db: db}, nil
}

func badgerSnapshotKey(agentID string) []byte {
	return []byte("agents/" + agentID + "/working_context_snapshot")
}

func (s *BadgerSnapshotStore) Close() error {
	return s.db.Close()
}

func (s *BadgerSnapshotStore) Exists(ctx context.Context, agentID string) (bool, error) {
	if err := validateAgentID(agentID); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerSnapshotKey(agentID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger snapshot lookup: %w", err)
	}
	return true, nil
}

func (s *BadgerSnapshotStore) Read(ctx context.Context, agentID string) (map[string]interface{}, error) {
	if err := validateAgentID(agentID); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerSnapshotKey(agentID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger snapshot read: %w", err)
	}
	return decodeSnapshotPayload(data)
}

func (s *BadgerSnapshotStore) Write(ctx context.Context, agentID string, payload map[string]interface{}) error {
	if err := validateAgentID(agentID); err != nil {
		return err
	}
	data, err := encodeSnapshotPayload(payload)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerSnapshotKey(agentID), data)
	}); err != nil {
		return fmt.Errorf("badger snapshot write: %w", err)
	}
	return nil
}
