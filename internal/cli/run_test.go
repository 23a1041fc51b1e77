package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/testutil"
)

const testOwner = "https://learner.example/profile#me"

// writeConfig writes a config using in-memory stores and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(regPath, []byte(testutil.FixtureYAML), 0o644))

	cfg := fmt.Sprintf(`owner: %q
registry: %q
local:
  driver: memory
remote:
  driver: memory
engine:
  tickInterval: 5ms
  persistInterval: 50ms
save:
  pollInterval: 5ms
%s`, testOwner, regPath, extra)

	path := filepath.Join(dir, "mera.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func TestRunMissingConfigFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{}) // Missing --config flag

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "config")
}

func TestRunNonExistentConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Contains(t, buf.String(), "Error [E_CONFIG]")
}

func TestRunInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mera.yaml")
	require.NoError(t, os.WriteFile(path, []byte("owner: alice\nremote:\n  driver: ftp\n"), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRunInvalidRegistry(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(regPath, []byte("menus: [\n"), 0o644))
	cfgPath := filepath.Join(dir, "mera.yaml")
	cfg := fmt.Sprintf("owner: alice\nregistry: %q\nlocal:\n  driver: memory\nremote:\n  driver: memory\n", regPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", cfgPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load registry")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfgPath := writeConfig(t, "")

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--config", cfgPath})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Session ")
	assert.Contains(t, out.String(), "started (fresh progress).")
	assert.Contains(t, out.String(), "Press Ctrl-C to stop.")
	assert.Contains(t, out.String(), "stopped after")
	assert.Contains(t, errOut.String(), "registry loaded")
}

func TestRunJSONSummary(t *testing.T) {
	cfgPath := writeConfig(t, "")

	out := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	opts := &RunOptions{RootOptions: rootOpts, Config: cfgPath, IDGenerator: testutil.NewFixedIDGenerator("session-1")}

	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	cmd.SetContext(ctx)

	require.NoError(t, runSession(opts, cmd))

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Report struct {
				SessionID string `json:"sessionId"`
				Fresh     bool   `json:"fresh"`
			} `json:"report"`
			Ticks int64 `json:"ticks"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "session-1", resp.Data.Report.SessionID)
	assert.True(t, resp.Data.Report.Fresh)
	assert.Positive(t, resp.Data.Ticks)
}

func TestRunVerboseLogsAtDebug(t *testing.T) {
	cfgPath := writeConfig(t, "log:\n  level: error\n  format: text\n")

	errOut := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true, LogFormat: "json"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--config", cfgPath})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, cmd.ExecuteContext(ctx))
	// --verbose overrides the configured level and --log-format the format.
	assert.Contains(t, errOut.String(), `"msg":"registry loaded"`)
}

func TestRunMetricsAddrInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	cfgPath := writeConfig(t, fmt.Sprintf("metrics:\n  addr: %s\n", busy.Addr().String()))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", cfgPath})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to start metrics endpoint")
}
