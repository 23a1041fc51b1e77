package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/testutil"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "finish_welcome.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "finish_welcome", scenario.Name)
	assert.Equal(t, filepath.Join("testdata", "registry.yaml"), scenario.Registry)
	assert.Empty(t, scenario.Initial)
	require.Len(t, scenario.Steps, 14)

	assert.Equal(t, StepTick, scenario.Steps[0].Kind())
	assert.Equal(t, 1, scenario.Steps[0].Tick)

	set := scenario.Steps[2].Interact
	require.NotNil(t, set)
	assert.EqualValues(t, testutil.SettingsPanel, set.Component)
	assert.Equal(t, "set", set.Action)
	assert.Equal(t, map[string]any{"key": "theme", "value": "dark"}, set.Args)

	assert.Equal(t, StepAdvance, scenario.Steps[5].Kind())
	assert.Equal(t, time.Minute, scenario.Steps[5].Advance)

	assert.True(t, scenario.Steps[10].Interact.Reject)
	assert.Equal(t, &View{Entity: testutil.LessonWelcome, Page: 1}, scenario.Steps[11].Navigate)

	assert.Equal(t, []model.ImmutableID{testutil.LessonWelcome}, scenario.Expect.LessonsCompleted)
	assert.NotNil(t, scenario.Expect.DomainsCompleted)
	assert.Empty(t, scenario.Expect.DomainsCompleted)
	require.NotNil(t, scenario.Expect.Streak)
	assert.EqualValues(t, 1, *scenario.Expect.Streak)
	assert.Equal(t, true, scenario.Expect.Components[testutil.WelcomeTask]["complete"])
}

func TestLoadScenario_ResolvesInitialBundle(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "resume_next_day.yaml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata", "bundles", "welcome_done.json"), scenario.Initial)
	assert.Equal(t, &View{Entity: testutil.LessonNext}, scenario.Start)
}

func TestLoadScenario_AbsolutePathsUnchanged(t *testing.T) {
	dir := t.TempDir()
	reg, err := filepath.Abs(filepath.Join("testdata", "registry.yaml"))
	require.NoError(t, err)

	path := filepath.Join(dir, "abs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: abs\nregistry: "+reg+"\nsteps:\n  - tick: 1\n"), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, reg, scenario.Registry)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
registry: r.yaml
step:
  - tick: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "registry: r.yaml\nsteps: [{tick: 1}]",
			wantErr: "name is required",
		},
		{
			name:    "missing registry",
			yaml:    "name: x\nsteps: [{tick: 1}]",
			wantErr: "registry is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\nregistry: r.yaml\nsteps: []",
			wantErr: "steps list is required",
		},
		{
			name:    "empty step",
			yaml:    "name: x\nregistry: r.yaml\nsteps: [{}]",
			wantErr: "steps[0]: one of tick, advance, interact or navigate is required",
		},
		{
			name:    "two kinds in one step",
			yaml:    "name: x\nregistry: r.yaml\nsteps: [{tick: 1, advance: 1s}]",
			wantErr: "steps[0]: only one of",
		},
		{
			name:    "negative tick",
			yaml:    "name: x\nregistry: r.yaml\nsteps: [{tick: -1}]",
			wantErr: "steps[0]: tick must be positive",
		},
		{
			name:    "interact on a lesson id",
			yaml:    "name: x\nregistry: r.yaml\nsteps: [{tick: 1}, {interact: {component: 100, action: click}}]",
			wantErr: "steps[1]: interact: 100 is not a component id",
		},
		{
			name:    "interact without action",
			yaml:    "name: x\nregistry: r.yaml\nsteps: [{interact: {component: 1000001}}]",
			wantErr: "steps[0]: interact: action is required",
		},
		{
			name:    "navigate to a component",
			yaml:    "name: x\nregistry: r.yaml\nsteps: [{navigate: {entity: 1000001, page: 0}}]",
			wantErr: "steps[0]: navigate: 1000001 is not a menu or lesson id",
		},
		{
			name:    "unknown setting",
			yaml:    "name: x\nregistry: r.yaml\nsteps: [{tick: 1}]\nexpect: {settings: {colour: red}}",
			wantErr: `expect.settings: unknown key "colour"`,
		},
		{
			name:    "component expectation on a domain",
			yaml:    "name: x\nregistry: r.yaml\nsteps: [{tick: 1}]\nexpect: {components: {100000: {read: true}}}",
			wantErr: "expect.components: 100000 is not a component id",
		},
		{
			name:    "negative streak",
			yaml:    "name: x\nregistry: r.yaml\nsteps: [{tick: 1}]\nexpect: {streak: -1}",
			wantErr: "expect.streak must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
