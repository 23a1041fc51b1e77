package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	finishWelcome = "../harness/testdata/scenarios/finish_welcome.yaml"
	resumeNextDay = "../harness/testdata/scenarios/resume_next_day.yaml"
	welcomeGolden = "../harness/testdata/golden/finish_welcome.golden"
)

// failingScenario expects a streak the run never reaches.
func failingScenario(t *testing.T) string {
	t.Helper()
	regPath, err := filepath.Abs("../harness/testdata/registry.yaml")
	require.NoError(t, err)
	return writeFile(t, t.TempDir(), "wrong_streak.yaml", `name: wrong_streak
registry: `+regPath+`
steps:
  - tick: 2
expect:
  streak: 3
`)
}

func TestScenario_Pass(t *testing.T) {
	out, err := executeRoot(t, "scenario", finishWelcome, resumeNextDay)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ finish_welcome (13 ticks)")
	assert.Contains(t, out, "✓ resume_next_day")
	assert.True(t, strings.HasSuffix(out, "\n2 passed, 0 failed, 2 total\n"))
}

func TestScenario_Fail(t *testing.T) {
	out, err := executeRoot(t, "scenario", failingScenario(t), finishWelcome)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "1 of 2 scenarios failed", err.Error())
	assert.Contains(t, out, "✗ wrong_streak\n  streak: expected 3, got 0\n")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestScenario_JSON(t *testing.T) {
	out, err := executeRoot(t, "scenario", finishWelcome, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	sr := resp.Data.Scenarios[0]
	assert.Equal(t, "finish_welcome", sr.Name)
	assert.Equal(t, int64(13), sr.Ticks)
	assert.Len(t, sr.Trace, 14)
}

func TestScenario_VerboseTrace(t *testing.T) {
	out, err := executeRoot(t, "scenario", finishWelcome, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "    [1] ")
	assert.Contains(t, out, "1000002 open")
}

func TestScenario_Golden(t *testing.T) {
	out, err := executeRoot(t, "scenario", finishWelcome, "--golden", welcomeGolden)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ finish_welcome")
}

func TestScenario_GoldenMismatch(t *testing.T) {
	golden := writeFile(t, t.TempDir(), "stale.golden", `{}`)

	out, err := executeRoot(t, "scenario", finishWelcome, "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "final snapshot differs from "+golden)
}

func TestScenario_GoldenUpdate(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden", "finish_welcome.golden")

	_, err := executeRoot(t, "scenario", finishWelcome, "--golden", golden, "--update")
	require.NoError(t, err)

	got, err := os.ReadFile(golden)
	require.NoError(t, err)
	want, err := os.ReadFile(welcomeGolden)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestScenario_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"golden with two scenarios", []string{finishWelcome, resumeNextDay, "--golden", welcomeGolden}, "--golden takes exactly one scenario"},
		{"update without golden", []string{finishWelcome, "--update"}, "--update requires --golden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRoot(t, append([]string{"scenario"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScenario_InvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "name: bad\nsteps: []\n")

	out, err := executeRoot(t, "scenario", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_SCENARIO]")
	assert.Contains(t, err.Error(), "invalid scenario")
}
