// Package commandlog implements the persistent output-path -> fingerprint
// table backing the state engine's freshness decisions. The table is
// loaded in full on open and rewritten in full on close; concurrent
// processes sharing a cache directory are serialized with an advisory
// flock held for the store's lifetime.
package commandlog

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/zerr"
)

// FileName is the fixed basename of the command log inside a cache directory.
const FileName = ".cook_log"

// Path returns the command log path for the given cache directory.
func Path(cacheDir string) string {
	return filepath.Join(cacheDir, FileName)
}

// Store implements ports.CommandLog by keeping the full table in memory
// between Open and Close, backed by a flat text file on disk.
type Store struct {
	file *os.File

	mu      sync.Mutex
	entries map[string]domain.CommandLogEntry
}

// Open acquires an advisory exclusive lock on <cacheDir>/.cook_log,
// creating the cache directory and the log file if needed, and loads any
// existing entries.
func Open(cacheDir string) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create cache directory")
	}

	f, err := os.OpenFile(Path(cacheDir), os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // log is not sensitive
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open command log")
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, zerr.Wrap(err, "failed to lock command log")
	}

	s := &Store{file: f, entries: make(map[string]domain.CommandLogEntry)}
	if err := s.load(); err != nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		return nil, err
	}

	return s, nil
}

// load reads the existing table. A truncated or otherwise malformed tail is
// treated as the end of the table rather than an error: a partial log may
// force extra rebuilds but must never corrupt caching.
func (s *Store) load() error {
	data, err := io.ReadAll(s.file)
	if err != nil {
		return zerr.Wrap(err, "failed to read command log")
	}
	if len(data) == 0 {
		return nil
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	i := 0
	for i < len(lines) {
		header := strings.Split(lines[i], "\t")
		if len(header) != 4 {
			break
		}

		mtimeNanos, errMTime := strconv.ParseInt(header[1], 10, 64)
		hash, errHash := strconv.ParseUint(header[2], 16, 64)
		depCount, errCount := strconv.Atoi(header[3])
		if errMTime != nil || errHash != nil || errCount != nil || depCount < 0 || i+depCount >= len(lines) {
			break
		}

		deps := make([]string, depCount)
		copy(deps, lines[i+1:i+1+depCount])

		s.entries[header[0]] = domain.CommandLogEntry{
			MTime:   time.Unix(0, mtimeNanos),
			CmdHash: hash,
			Deps:    deps,
		}
		i += 1 + depCount
	}

	return nil
}

// Entry returns the stored entry for path, and whether one exists.
func (s *Store) Entry(path string) (domain.CommandLogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[path]
	return e, ok
}

// SetEntry replaces the stored entry for path.
func (s *Store) SetEntry(path string, entry domain.CommandLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[path] = entry
}

// Close writes the full table back to disk and releases the advisory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for path, e := range s.entries {
		b.WriteString(path)
		b.WriteByte('\t')
		b.WriteString(strconv.FormatInt(e.MTime.UnixNano(), 10))
		b.WriteByte('\t')
		b.WriteString(strconv.FormatUint(e.CmdHash, 16))
		b.WriteByte('\t')
		b.WriteString(strconv.Itoa(len(e.Deps)))
		b.WriteByte('\n')
		for _, d := range e.Deps {
			b.WriteString(d)
			b.WriteByte('\n')
		}
	}

	writeErr := s.rewrite(b.String())

	unlockErr := unix.Flock(int(s.file.Fd()), unix.LOCK_UN)
	closeErr := s.file.Close()

	if writeErr != nil {
		return writeErr
	}
	if unlockErr != nil {
		return zerr.Wrap(unlockErr, "failed to release command log lock")
	}
	return closeErr
}

func (s *Store) rewrite(content string) error {
	if err := s.file.Truncate(0); err != nil {
		return zerr.Wrap(err, "failed to truncate command log")
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return zerr.Wrap(err, "failed to seek command log")
	}
	if _, err := s.file.WriteString(content); err != nil {
		return zerr.Wrap(err, "failed to write command log")
	}
	return s.file.Sync()
}
