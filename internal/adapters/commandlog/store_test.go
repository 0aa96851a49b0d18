package commandlog_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/cook/internal/adapters/commandlog"
	"go.trai.ch/cook/internal/core/domain"
)

func TestStore_SetAndGet(t *testing.T) {
	dir := t.TempDir()

	s, err := commandlog.Open(dir)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, ok := s.Entry("obj/a.o")
	assert.False(t, ok)

	want := domain.CommandLogEntry{
		MTime:   time.Unix(1000, 0),
		CmdHash: 0xdeadbeef,
		Deps:    []string{"src/a.c", "include/a.h"},
	}
	s.SetEntry("obj/a.o", want)

	got, ok := s.Entry("obj/a.o")
	require.True(t, ok)
	assert.Equal(t, want.CmdHash, got.CmdHash)
	assert.Equal(t, want.Deps, got.Deps)
	assert.True(t, want.MTime.Equal(got.MTime))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s1, err := commandlog.Open(dir)
	require.NoError(t, err)
	s1.SetEntry("out/lib.a", domain.CommandLogEntry{
		MTime:   time.Unix(2000, 0),
		CmdHash: 42,
		Deps:    []string{"obj/a.o", "obj/b.o"},
	})
	require.NoError(t, s1.Close())

	s2, err := commandlog.Open(dir)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	got, ok := s2.Entry("out/lib.a")
	require.True(t, ok)
	assert.Equal(t, uint64(42), got.CmdHash)
	assert.Equal(t, []string{"obj/a.o", "obj/b.o"}, got.Deps)
	assert.True(t, time.Unix(2000, 0).Equal(got.MTime))
}

func TestStore_EntryWithNoDeps(t *testing.T) {
	dir := t.TempDir()

	s, err := commandlog.Open(dir)
	require.NoError(t, err)
	s.SetEntry("out/gen.txt", domain.CommandLogEntry{MTime: time.Unix(1, 0), CmdHash: 7})
	require.NoError(t, s.Close())

	s2, err := commandlog.Open(dir)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	got, ok := s2.Entry("out/gen.txt")
	require.True(t, ok)
	assert.Empty(t, got.Deps)
}

func TestOpen_CreatesCacheDirAndLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	s, err := commandlog.Open(dir)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.FileExists(t, commandlog.Path(dir))
}
