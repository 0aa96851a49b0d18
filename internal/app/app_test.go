package app_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/cook/internal/adapters/recipe"
	"go.trai.ch/cook/internal/app"
	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/cook/internal/core/ports"
)

type fakeRunner struct{}

func (f *fakeRunner) Run(_ context.Context, rule ports.CmdRule) (ports.RunResult, error) {
	fields := strings.Fields(rule.Command)
	for i, tok := range fields {
		if tok == "-o" && i+1 < len(fields) {
			path := fields[i+1]
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return ports.RunResult{}, err
			}
			if err := os.WriteFile(path, []byte("built"), 0o644); err != nil {
				return ports.RunResult{}, err
			}
		}
	}
	return ports.RunResult{ExitCode: 0}, nil
}

type fakeDepfileReader struct{}

func (f *fakeDepfileReader) Read(string, string) ([]string, error) { return nil, nil }

type fakeLogger struct {
	infos  []string
	errors []error
}

func (f *fakeLogger) Info(msg string) { f.infos = append(f.infos, msg) }
func (f *fakeLogger) Warn(string)     {}
func (f *fakeLogger) Error(err error) { f.errors = append(f.errors, err) }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestApp_Run_BuildsGraphAndWritesLog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src/a.c"), "int main(){}")

	recipeText := "rule cc\n" +
		"\tcommand cc -c -o $out $in\n" +
		"\tjobs 1\n\n" +
		"build cc\n" +
		"\tinput src/a.c\n" +
		"\toutput obj/a.o\n\n"
	recipePath := filepath.Join(dir, "cook.recipe")
	writeFile(t, recipePath, recipeText)

	logger := &fakeLogger{}
	a := app.New(recipe.NewLoader(), &fakeRunner{}, &fakeDepfileReader{}, nil, logger)

	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(oldwd) }()

	require.NoError(t, a.Run(context.Background(), "cook.recipe", nil))
	assert.FileExists(t, filepath.Join(dir, "obj/a.o"))
	assert.FileExists(t, filepath.Join(dir, ".cook_log"))
}

func TestApp_Run_MissingRecipeIsPlainError(t *testing.T) {
	a := app.New(recipe.NewLoader(), &fakeRunner{}, &fakeDepfileReader{}, nil, &fakeLogger{})
	err := a.Run(context.Background(), "/nonexistent/cook.recipe", nil)
	require.Error(t, err)
}

func TestApp_Clean_RemovesOutputsAndLog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src/a.c"), "int main(){}")
	writeFile(t, filepath.Join(dir, "obj/a.o"), "stale")
	writeFile(t, filepath.Join(dir, ".cook_log"), "obj/a.o\t1\t1\t0\n")

	recipeText := "rule cc\n" +
		"\tcommand cc -c -o $out $in\n" +
		"\tjobs 1\n\n" +
		"build cc\n" +
		"\tinput src/a.c\n" +
		"\toutput obj/a.o\n\n"
	recipePath := filepath.Join(dir, "cook.recipe")
	writeFile(t, recipePath, recipeText)

	a := app.New(recipe.NewLoader(), &fakeRunner{}, &fakeDepfileReader{}, nil, &fakeLogger{})

	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(oldwd) }()

	require.NoError(t, a.Clean(context.Background(), "cook.recipe"))
	assert.NoFileExists(t, filepath.Join(dir, "obj/a.o"))
	assert.NoFileExists(t, filepath.Join(dir, ".cook_log"))
	assert.NoDirExists(t, filepath.Join(dir, "obj"))
}

func TestApp_Clean_RefusesOutputOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "project")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeFile(t, filepath.Join(dir, "src/a.c"), "int main(){}")

	outside := filepath.Join(parent, "evil.o")
	writeFile(t, outside, "should survive")

	recipeText := "rule cc\n" +
		"\tcommand cc -c -o $out $in\n" +
		"\tjobs 1\n\n" +
		"build cc\n" +
		"\tinput src/a.c\n" +
		"\toutput ../evil.o\n\n"
	recipePath := filepath.Join(dir, "cook.recipe")
	writeFile(t, recipePath, recipeText)

	a := app.New(recipe.NewLoader(), &fakeRunner{}, &fakeDepfileReader{}, nil, &fakeLogger{})

	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(oldwd) }()

	err = a.Clean(context.Background(), "cook.recipe")
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrOutputPathOutsideRoot.Error())
	assert.FileExists(t, outside)
}
