// Package storagetest is the conformance suite every storage driver runs.
package storagetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/storage"
)

// Run exercises the storage.Store contract against stores built by open.
// Each subtest gets a fresh, empty store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	ctx := context.Background()

	t.Run("SaveLoad", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Save(ctx, "mera.bundle.json", []byte(`{"a":1}`)))

		got, err := s.Load(ctx, "mera.bundle.json")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"a":1}`), got)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Save(ctx, "k", []byte("one")))
		require.NoError(t, s.Save(ctx, "k", []byte("two")))

		got, err := s.Load(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})

	t.Run("LoadMissing", func(t *testing.T) {
		s := open(t)
		_, err := s.Load(ctx, "absent")
		assert.True(t, storage.IsNotFound(err), "got %v", err)
	})

	t.Run("EmptyValue", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Save(ctx, "empty", []byte{}))
		got, err := s.Load(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("LoadReturnsCopy", func(t *testing.T) {
		s := open(t)
		value := []byte("abc")
		require.NoError(t, s.Save(ctx, "k", value))
		value[0] = 'X'

		got, err := s.Load(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)
	})

	t.Run("List", func(t *testing.T) {
		s := open(t)
		for _, k := range []string{
			"mera.1.0.0.ehb.1700000000002.json",
			"mera.1.0.0.ehb.1700000000001.json",
			"mera.bundle.json",
			"other.txt",
		} {
			require.NoError(t, s.Save(ctx, k, []byte(k)))
		}

		got, err := s.List(ctx, "mera.*.ehb.*.json")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"mera.1.0.0.ehb.1700000000001.json",
			"mera.1.0.0.ehb.1700000000002.json",
		}, got)

		all, err := s.List(ctx, "*")
		require.NoError(t, err)
		assert.Len(t, all, 4)

		none, err := s.List(ctx, "nothing-*")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ListBadPattern", func(t *testing.T) {
		s := open(t)
		_, err := s.List(ctx, "[")
		assert.Error(t, err)
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Save(ctx, "k", []byte("v")))
		require.NoError(t, s.Delete(ctx, "k"))

		_, err := s.Load(ctx, "k")
		assert.True(t, storage.IsNotFound(err))
		assert.NoError(t, s.Delete(ctx, "k"), "deleting a missing key")
	})

	t.Run("InvalidKeys", func(t *testing.T) {
		s := open(t)
		for _, k := range []string{"", " ", "a/b", `a\b`, "..", "bad\x00key"} {
			assert.Error(t, s.Save(ctx, k, []byte("v")), "key %q", k)
		}
	})

	t.Run("ManyKeys", func(t *testing.T) {
		s := open(t)
		const n = 25
		for i := 0; i < n; i++ {
			require.NoError(t, s.Save(ctx, fmt.Sprintf("k.%03d", i), []byte{byte(i)}))
		}
		got, err := s.List(ctx, "k.*")
		require.NoError(t, err)
		require.Len(t, got, n)
		assert.Equal(t, "k.000", got[0])
		assert.Equal(t, "k.024", got[n-1])
	})
}
