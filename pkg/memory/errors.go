package memory

import "errors"

var (
	// ErrSummaryFailed wraps any failure of the summarization step during
	// compaction. Nothing is written to the store when it is returned.
	ErrSummaryFailed = errors.New("memory summary failed")

	// ErrSnapshotNotFound is returned by snapshot stores when no snapshot
	// exists for the requested agent.
	ErrSnapshotNotFound = errors.New("working context snapshot not found")

	// ErrInvalidSnapshot marks a persisted payload that fails validation.
	ErrInvalidSnapshot = errors.New("invalid working context snapshot")

	// ErrImmutableItem is returned when a write would overwrite an existing
	// memory item.
	ErrImmutableItem = errors.New("memory items are immutable")
)
