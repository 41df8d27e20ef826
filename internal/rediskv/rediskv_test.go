package rediskv

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// newTestStore connects to REDIS_HOST:REDIS_PORT and skips when unset or
// unreachable. Each test gets its own key prefix.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set")
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	opts = append([]Option{WithPrefix(fmt.Sprintf("crudkit-test:%s:", uuid.NewString()))}, opts...)
	s := Dial(host+":"+port, opts...)
	if err := s.Ping(); err != nil {
		s.Close()
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreGetSetDelete(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Get("contacts")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("contacts", `[{"id":1}]`))
	v, ok, err := s.Get("contacts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, v)

	require.NoError(t, s.Delete("contacts"))
	_, ok, err = s.Get("contacts")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreExpiration(t *testing.T) {
	s := newTestStore(t, WithExpiration(50*time.Millisecond))

	require.NoError(t, s.Set("contacts", "[]"))
	time.Sleep(150 * time.Millisecond)

	_, ok, err := s.Get("contacts")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreClosed(t *testing.T) {
	s := Dial("127.0.0.1:0")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err := s.Get("contacts")
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	assert.ErrorIs(t, s.Set("contacts", "[]"), types.ErrStoreClosed)
	assert.ErrorIs(t, s.Delete("contacts"), types.ErrStoreClosed)
}
