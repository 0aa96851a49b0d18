package ports

import "go.trai.ch/cook/internal/core/domain"

// CommandLog is the persistent map from output path to its last-known
// fingerprint. Implementations serialize the whole table on Close and
// serialize concurrent access from other processes via an advisory lock
// acquired at construction.
//
//go:generate go run go.uber.org/mock/mockgen -source=commandlog.go -destination=mocks/mock_commandlog.go -package=mocks
type CommandLog interface {
	// Entry returns the stored entry for path, and whether one exists.
	Entry(path string) (domain.CommandLogEntry, bool)
	// SetEntry replaces the stored entry for path.
	SetEntry(path string, entry domain.CommandLogEntry)
	// Close flushes the table to disk and releases the advisory lock.
	Close() error
}
