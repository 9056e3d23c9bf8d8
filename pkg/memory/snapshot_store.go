package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const snapshotFileName = "working_context_snapshot.json"

// Snapshot store backends.
const (
	SnapshotBackendFile   = "file"
	SnapshotBackendBadger = "badger"
	SnapshotBackendRedis  = "redis"
)

// SnapshotStoreOptions selects and configures a snapshot backend.
type SnapshotStoreOptions struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// ClosableSnapshotStore is a SnapshotStore holding a connection or handle.
type ClosableSnapshotStore interface {
	SnapshotStore
	Close() error
}

// OpenSnapshotStore builds the backend named in opts. Dir is the memory base
// directory; badger keeps its files under Dir/snapshots.
func OpenSnapshotStore(opts SnapshotStoreOptions) (ClosableSnapshotStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", SnapshotBackendFile:
		return NewFileSnapshotStore(opts.Dir), nil
	case SnapshotBackendBadger:
		return NewBadgerSnapshotStore(filepath.Join(opts.Dir, "snapshots"))
	case SnapshotBackendRedis:
		return NewRedisSnapshotStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", opts.Backend)
	}
}

// FileSnapshotStore keeps one JSON file per agent at
// <base>/agents/<agent_id>/working_context_snapshot.json.
type FileSnapshotStore struct {
	baseDir string
}

func NewFileSnapshotStore(baseDir string) *FileSnapshotStore {
	return &FileSnapshotStore{baseDir: baseDir}
}

func (s *FileSnapshotStore) Close() error { return nil }

func (s *FileSnapshotStore) Path(agentID string) (string, error) {
	if err := validateAgentID(agentID); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, "agents", agentID, snapshotFileName), nil
}

func (s *FileSnapshotStore) Exists(ctx context.Context, agentID string) (bool, error) {
	path, err := s.Path(agentID)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat snapshot: %w", err)
}

func (s *FileSnapshotStore) Read(ctx context.Context, agentID string) (map[string]interface{}, error) {
	path, err := s.Path(agentID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decodeSnapshotPayload(data)
}

// Write replaces the snapshot atomically through a temp file and rename.
func (s *FileSnapshotStore) Write(ctx context.Context, agentID string, payload map[string]interface{}) error {
	path, err := s.Path(agentID)
	if err != nil {
		return err
	}
	data, err := encodeSnapshotPayload(payload)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	success = true
	return nil
}

func validateAgentID(agentID string) error {
	if strings.TrimSpace(agentID) == "" {
		return fmt.Errorf("agent id is required")
	}
	if strings.ContainsAny(agentID, `/\`) || agentID == "." || agentID == ".." {
		return fmt.Errorf("invalid agent id %q", agentID)
	}
	return nil
}

func encodeSnapshotPayload(payload map[string]interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshotPayload parses stored bytes. Corrupt data maps to
// ErrInvalidSnapshot so callers can fall back to a rebuild.
func decodeSnapshotPayload(data []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return payload, nil
}
