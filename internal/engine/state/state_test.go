package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/cook/internal/engine/state"
)

// fakeLog is an in-memory ports.CommandLog for engine tests.
type fakeLog struct {
	entries map[string]domain.CommandLogEntry
}

func newFakeLog() *fakeLog {
	return &fakeLog{entries: make(map[string]domain.CommandLogEntry)}
}

func (f *fakeLog) Entry(path string) (domain.CommandLogEntry, bool) {
	e, ok := f.entries[path]
	return e, ok
}

func (f *fakeLog) SetEntry(path string, entry domain.CommandLogEntry) {
	f.entries[path] = entry
}

func (f *fakeLog) Close() error { return nil }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func buildGraph(t *testing.T, dir string) (*domain.Recipe, *domain.Graph) {
	t.Helper()
	recipe := &domain.Recipe{
		Rules: []domain.Rule{
			{Name: "cc", Command: "cc -c -o $out $in", Jobs: 1},
		},
		Builds: []domain.Build{
			{
				RuleName: "cc",
				Inputs:   []string{filepath.Join(dir, "a.c")},
				Outputs:  []string{filepath.Join(dir, "a.o")},
			},
		},
	}
	g, err := domain.BuildGraph(recipe)
	require.NoError(t, err)
	return recipe, g
}

func TestCheckState_PrimaryInputMissingIsFatal(t *testing.T) {
	dir := t.TempDir()
	recipe, g := buildGraph(t, dir)

	eng := state.NewEngine(g, newFakeLog(), recipe.Bindings)
	input := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.c"))]

	err := eng.CheckStateIfNeeded(input)
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrMissingPrimaryInput.Error())
}

func TestCheckState_OutputNotExist(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "int main(){}")
	recipe, g := buildGraph(t, dir)

	eng := state.NewEngine(g, newFakeLog(), recipe.Bindings)
	output := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.o"))]

	require.NoError(t, eng.CheckStateIfNeeded(output))
	assert.Equal(t, domain.NodeNotExist, output.State)
	assert.True(t, output.NeedsRebuild())
}

func TestCheckState_NoLogEntryIsDirty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "int main(){}")
	writeFile(t, filepath.Join(dir, "a.o"), "stale binary")
	recipe, g := buildGraph(t, dir)

	eng := state.NewEngine(g, newFakeLog(), recipe.Bindings)
	output := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.o"))]

	require.NoError(t, eng.CheckStateIfNeeded(output))
	assert.Equal(t, domain.NodeDirty, output.State)
}

func TestCheckState_UpToDateWhenHashAndMTimeMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "int main(){}")
	writeFile(t, filepath.Join(dir, "a.o"), "compiled")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.c"), past, past))

	recipe, g := buildGraph(t, dir)
	log := newFakeLog()
	eng := state.NewEngine(g, log, recipe.Bindings)

	edge := g.Edges[0]
	hash, err := eng.CommandHash(edge)
	require.NoError(t, err)

	outputInfo, err := os.Stat(filepath.Join(dir, "a.o"))
	require.NoError(t, err)
	log.SetEntry(filepath.Join(dir, "a.o"), domain.CommandLogEntry{
		MTime:   outputInfo.ModTime(),
		CmdHash: hash,
	})

	output := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.o"))]
	require.NoError(t, eng.CheckStateIfNeeded(output))
	assert.Equal(t, domain.NodeUpToDate, output.State)
	assert.False(t, output.NeedsRebuild())
}

func TestCheckState_DirtyWhenInputNewerThanLogEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.o"), "compiled")

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.o"), old, old))
	writeFile(t, filepath.Join(dir, "a.c"), "int main(){}")

	recipe, g := buildGraph(t, dir)
	log := newFakeLog()
	eng := state.NewEngine(g, log, recipe.Bindings)

	edge := g.Edges[0]
	hash, err := eng.CommandHash(edge)
	require.NoError(t, err)
	log.SetEntry(filepath.Join(dir, "a.o"), domain.CommandLogEntry{MTime: old, CmdHash: hash})

	output := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.o"))]
	require.NoError(t, eng.CheckStateIfNeeded(output))
	assert.Equal(t, domain.NodeDirty, output.State)
}

func TestCheckState_DirtyWhenCommandHashChanged(t *testing.T) {
	dir := t.TempDir()
	past := time.Now().Add(-time.Hour)
	writeFile(t, filepath.Join(dir, "a.c"), "int main(){}")
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.c"), past, past))
	writeFile(t, filepath.Join(dir, "a.o"), "compiled")

	recipe, g := buildGraph(t, dir)
	log := newFakeLog()
	eng := state.NewEngine(g, log, recipe.Bindings)

	outputInfo, err := os.Stat(filepath.Join(dir, "a.o"))
	require.NoError(t, err)
	log.SetEntry(filepath.Join(dir, "a.o"), domain.CommandLogEntry{
		MTime:   outputInfo.ModTime(),
		CmdHash: 0xffffffff, // stale hash from a different command line
	})

	output := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.o"))]
	require.NoError(t, eng.CheckStateIfNeeded(output))
	assert.Equal(t, domain.NodeDirty, output.State)
}

func TestCheckState_RegistersDiscoveredDepsAndTheyGateFreshness(t *testing.T) {
	dir := t.TempDir()
	past := time.Now().Add(-time.Hour)
	writeFile(t, filepath.Join(dir, "a.c"), "int main(){}")
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.c"), past, past))
	writeFile(t, filepath.Join(dir, "a.h"), "header")
	writeFile(t, filepath.Join(dir, "a.o"), "compiled")

	recipe, g := buildGraph(t, dir)
	log := newFakeLog()
	eng := state.NewEngine(g, log, recipe.Bindings)

	edge := g.Edges[0]
	hash, err := eng.CommandHash(edge)
	require.NoError(t, err)

	outputInfo, err := os.Stat(filepath.Join(dir, "a.o"))
	require.NoError(t, err)
	log.SetEntry(filepath.Join(dir, "a.o"), domain.CommandLogEntry{
		MTime:   outputInfo.ModTime(),
		CmdHash: hash,
		Deps:    []string{filepath.Join(dir, "a.h")},
	})

	output := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.o"))]
	require.NoError(t, eng.CheckStateIfNeeded(output))
	assert.Equal(t, domain.NodeUpToDate, output.State)
	assert.Contains(t, edge.ImplicitInputs, domain.NewInternedString(filepath.Join(dir, "a.h")))

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.h"), future, future))

	output2 := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.o"))]
	output2.State = domain.NodeUnknown
	// discovered header node must also be reclassified for the newer mtime to register
	for _, in := range edge.ImplicitInputs {
		g.Nodes[in].State = domain.NodeUnknown
	}
	require.NoError(t, eng.CheckStateIfNeeded(output2))
	assert.Equal(t, domain.NodeDirty, output2.State)
}

func TestPostBuild_WritesLogEntryAndMarksUpToDate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "int main(){}")
	writeFile(t, filepath.Join(dir, "a.o"), "compiled")

	recipe, g := buildGraph(t, dir)
	log := newFakeLog()
	eng := state.NewEngine(g, log, recipe.Bindings)

	edge := g.Edges[0]
	output := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.o"))]

	require.NoError(t, eng.PostBuild(output, edge, []string{filepath.Join(dir, "a.h")}))
	assert.Equal(t, domain.NodeUpToDate, output.State)

	entry, ok := log.Entry(filepath.Join(dir, "a.o"))
	require.True(t, ok)
	assert.Equal(t, []string{filepath.Join(dir, "a.h")}, entry.Deps)

	hash, err := eng.CommandHash(edge)
	require.NoError(t, err)
	assert.Equal(t, hash, entry.CmdHash)
}

func TestPostBuild_MissingOutputIsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "int main(){}")
	recipe, g := buildGraph(t, dir)
	eng := state.NewEngine(g, newFakeLog(), recipe.Bindings)

	edge := g.Edges[0]
	output := g.Nodes[domain.NewInternedString(filepath.Join(dir, "a.o"))]

	err := eng.PostBuild(output, edge, nil)
	require.Error(t, err)
}
