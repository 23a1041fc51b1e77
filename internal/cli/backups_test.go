package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/save"
	"github.com/mera-platform/mera/internal/storage/fs"
	"github.com/mera-platform/mera/internal/testutil"
)

// backupsFixture writes n backups one hour apart into an fs remote store and
// returns the config path and the keys, oldest first.
func backupsFixture(t *testing.T, n int, retain int) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	remote := filepath.Join(dir, "remote")

	store, err := fs.Open(remote)
	require.NoError(t, err)
	defer store.Close()

	keys := make([]string, 0, n)
	for i := range n {
		key := save.BackupName(model.RuntimeVersion, testutil.Epoch.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.Save(context.Background(), key, []byte(`{}`)))
		keys = append(keys, key)
	}
	// Not a backup; must be ignored.
	require.NoError(t, store.Save(context.Background(), "mera.progress.json", []byte(`{}`)))

	cfg := fmt.Sprintf(`owner: %q
registry: %q
remote:
  driver: fs
  path: %q
backups:
  retain: %d
`, testOwner, filepath.Join(dir, "registry.yaml"), remote, retain)
	cfgPath := filepath.Join(dir, "mera.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, keys
}

func TestBackupsList(t *testing.T) {
	cfgPath, keys := backupsFixture(t, 3, 20)

	out, err := executeRoot(t, "backups", "list", "--config", cfgPath)
	require.NoError(t, err)

	assert.Equal(t,
		"2024-01-01T02:00:00Z  1.0.0  "+keys[2]+"\n"+
			"2024-01-01T01:00:00Z  1.0.0  "+keys[1]+"\n"+
			"2024-01-01T00:00:00Z  1.0.0  "+keys[0]+"\n",
		out)
}

func TestBackupsList_Empty(t *testing.T) {
	cfgPath, _ := backupsFixture(t, 0, 20)

	out, err := executeRoot(t, "backups", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "No backups found.\n", out)
}

func TestBackupsList_JSON(t *testing.T) {
	cfgPath, keys := backupsFixture(t, 2, 20)

	out, err := executeRoot(t, "backups", "list", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []BackupEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, keys[1], resp.Data[0].Key)
	assert.Equal(t, "1.0.0", resp.Data[0].Version)
	assert.True(t, resp.Data[1].Time.Equal(testutil.Epoch))
}

func TestBackupsPrune_ConfiguredRetain(t *testing.T) {
	cfgPath, keys := backupsFixture(t, 4, 3)

	out, err := executeRoot(t, "backups", "prune", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "Deleted 1 backups, keeping the newest 3.\n  "+keys[0]+"\n", out)

	out, err = executeRoot(t, "backups", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, out, keys[0])
	assert.Contains(t, out, keys[1])
}

func TestBackupsPrune_RetainFlagOverrides(t *testing.T) {
	cfgPath, keys := backupsFixture(t, 4, 3)

	out, err := executeRoot(t, "backups", "prune", "--config", cfgPath, "--retain", "1", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data PruneResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Retain)
	assert.Equal(t, []string{keys[2], keys[1], keys[0]}, resp.Data.Deleted)
}

func TestBackupsPrune_NothingToDelete(t *testing.T) {
	cfgPath, _ := backupsFixture(t, 2, 5)

	out, err := executeRoot(t, "backups", "prune", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data PruneResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{}, resp.Data.Deleted)
}

func TestBackups_MissingConfig(t *testing.T) {
	_, err := executeRoot(t, "backups", "list", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
