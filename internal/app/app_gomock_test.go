package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/cook/internal/adapters/recipe"
	"go.trai.ch/cook/internal/app"
	"go.trai.ch/cook/internal/core/ports"
	"go.trai.ch/cook/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

// TestApp_Run_InvokesCommandRunnerForDirtyEdge exercises App.Run against a
// gomock-recorded CommandRunner and Logger rather than the hand-written
// fakes in app_test.go, matching the call exactly once.
func TestApp_Run_InvokesCommandRunnerForDirtyEdge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src/a.c"), "int main(){}")

	recipeText := "rule cc\n" +
		"\tcommand cc -c -o $out $in\n" +
		"\tjobs 1\n\n" +
		"build cc\n" +
		"\tinput src/a.c\n" +
		"\toutput obj/a.o\n\n"
	writeFile(t, filepath.Join(dir, "cook.recipe"), recipeText)

	mockRunner := mocks.NewMockCommandRunner(ctrl)
	mockRunner.EXPECT().
		Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rule ports.CmdRule) (ports.RunResult, error) {
			require.NoError(t, os.MkdirAll(filepath.Join(dir, "obj"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "obj/a.o"), []byte("built"), 0o644))
			return ports.RunResult{ExitCode: 0}, nil
		}).
		Times(1)

	mockLogger := mocks.NewMockLogger(ctrl)

	a := app.New(recipe.NewLoader(), mockRunner, &fakeDepfileReader{}, nil, mockLogger)

	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(oldwd) }()

	require.NoError(t, a.Run(context.Background(), "cook.recipe", nil))
}
