package jsonfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func TestStoreGetSetDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get("contacts")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("contacts", `[{"id":1}]`))

	data, err := os.ReadFile(filepath.Join(dir, "contacts.json"))
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(data))

	v, ok, err := s.Get("contacts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, v)

	require.NoError(t, s.Delete("contacts"))
	require.NoError(t, s.Delete("contacts"))
	_, ok, _ = s.Get("contacts")
	assert.False(t, ok)
}

func TestStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Set("contacts", "[]"))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "contacts.json", entries[0].Name())
}

func TestStoreKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)

	require.NoError(t, s.Set("support_tickets", "[]"))
	require.NoError(t, s.Set("contacts", "[]"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"contacts", "support_tickets"}, keys)
}

func TestStoreRejectsUnsafeKeys(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "a/b", "Contacts"} {
		assert.ErrorIs(t, s.Set(key, "[]"), ErrInvalidKey, "key %q", key)
	}
}

func TestStoreClosed(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err = s.Get("contacts")
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	assert.ErrorIs(t, s.Set("contacts", "[]"), types.ErrStoreClosed)
	assert.ErrorIs(t, s.Delete("contacts"), types.ErrStoreClosed)
}
