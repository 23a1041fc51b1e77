package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/storage"
	"github.com/mera-platform/mera/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, "mera.bundle.json", []byte{byte(i)}))
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mera.bundle.json", entries[0].Name())

	info, err := os.Stat(filepath.Join(root, "mera.bundle.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestList_IgnoresDirectoriesAndTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(root, "nested.json"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, tempPrefix+"123"), []byte("x"), 0o600))
	require.NoError(t, s.Save(context.Background(), "a.json", []byte("{}")))

	got, err := s.List(context.Background(), "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json"}, got)
}

func TestSave_RejectsReservedPrefix(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Save(context.Background(), tempPrefix+"x", []byte("v")))
}

func TestOpen_RequiresRoot(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
