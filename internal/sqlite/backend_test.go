// Tests for the SQLite key/value backend.
package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func attach(t *testing.T, dir string) *Backend {
	t.Helper()
	b := NewBackend(zaptest.NewLogger(t))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()
	b := attach(t, tmpDir)

	// Verify database file created
	dbPath := filepath.Join(tmpDir, dbFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("%s not created", dbFileName)
	}

	// Verify double attach fails
	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: tmpDir})
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend(nil)
	err := b.Attach(types.Config{Backend: "postgres"})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend(nil)
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	require.NoError(t, b.Detach())
	// Verify idempotent
	require.NoError(t, b.Detach())

	// Verify operations fail after detach
	_, _, err := b.Get("contacts")
	assert.ErrorIs(t, err, types.ErrDetached)
	assert.ErrorIs(t, b.Set("contacts", "[]"), types.ErrDetached)
	assert.ErrorIs(t, b.Delete("contacts"), types.ErrDetached)
	_, err = b.Keys()
	assert.ErrorIs(t, err, types.ErrDetached)
}

func TestBackend_GetSetDelete(t *testing.T) {
	b := attach(t, t.TempDir())

	_, ok, err := b.Get("contacts")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set("contacts", `[{"id":1}]`))
	v, ok, err := b.Get("contacts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, v)

	require.NoError(t, b.Set("contacts", `[]`))
	v, _, _ = b.Get("contacts")
	assert.Equal(t, `[]`, v)

	require.NoError(t, b.Set("support_tickets", `[]`))
	keys, err := b.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"contacts", "support_tickets"}, keys)

	require.NoError(t, b.Delete("contacts"))
	require.NoError(t, b.Delete("contacts"))
	_, ok, _ = b.Get("contacts")
	assert.False(t, ok)
}

func TestBackend_PersistsAcrossReattach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend(nil)
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	require.NoError(t, b.Attach(cfg))
	require.NoError(t, b.Set("contacts", `[{"id":7}]`))
	require.NoError(t, b.Detach())

	b2 := attach(t, dir)
	v, ok, err := b2.Get("contacts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":7}]`, v)
}
