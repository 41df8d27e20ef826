package hydrate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/internal/testentity"
	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

type contact = testentity.Contact

func TestHydrateArrayEmpty(t *testing.T) {
	out, err := hydrate.HydrateArray[contact]([]types.Record{})

	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestHydrateArrayPreservesOrder(t *testing.T) {
	out, err := hydrate.HydrateArray[contact]([]types.Record{
		{"id": 2, "name": "b"},
		{"id": 1, "name": "a"},
	})

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Name)
	assert.Equal(t, "a", out[1].Name)
}

func TestHydrateArrayDoesNotLeakCollections(t *testing.T) {
	out, err := hydrate.HydrateArray[contact]([]types.Record{
		{"id": 1, "tags": []any{"vip", "west"}},
		{"id": 2},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"vip", "west"}, out[0].Tags)
	assert.Equal(t, []string{}, out[1].Tags)
	assert.NotSame(t, out[0], out[1])
}

func TestHydrateArrayMissingFieldsUseDefaults(t *testing.T) {
	out, err := hydrate.HydrateArray[contact]([]types.Record{{}})

	require.NoError(t, err)
	want := &contact{Tags: []string{}}
	if diff := cmp.Diff(want, out[0]); diff != "" {
		t.Errorf("defaulted contact mismatch (-want +got):\n%s", diff)
	}
}

func TestHydrateArrayReportsBadItemsButKeepsThem(t *testing.T) {
	out, err := hydrate.HydrateArray[contact]([]types.Record{
		{"id": 1},
		{"id": "x", "name": "bad"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "bad", out[1].Name)
	var he *types.HydrationError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "[1].id", he.Fields[0].Field)
}

func TestHydrateOverlaysPresentFields(t *testing.T) {
	c := &contact{ID: 5, Name: "Ada", Email: "ada@example.com", Tags: []string{"a"}}
	held := c

	err := hydrate.Hydrate(c, types.Record{"email": "ada@lovelace.dev"})

	require.NoError(t, err)
	assert.Same(t, held, c)
	assert.Equal(t, int64(5), c.ID)
	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, "ada@lovelace.dev", c.Email)
	assert.Equal(t, []string{"a"}, c.Tags)
}

func TestHydrateKeepsUIOnlyFields(t *testing.T) {
	c := &contact{ID: 5, Name: "Ada", Selected: true}

	require.NoError(t, hydrate.Hydrate(c, types.Record{"name": "Grace"}))

	assert.Equal(t, "Grace", c.Name)
	assert.True(t, c.Selected)
}

func TestHydrateMismatchKeepsCurrentValue(t *testing.T) {
	c := &contact{ID: 5, Name: "Ada"}

	err := hydrate.Hydrate(c, types.Record{"id": "x", "email": "a@b.c"})

	var he *types.HydrationError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "id", he.Fields[0].Field)
	assert.Equal(t, int64(5), c.ID)
	assert.Equal(t, "a@b.c", c.Email)
}

func TestHydrateNil(t *testing.T) {
	assert.ErrorIs(t, hydrate.Hydrate(nil, types.Record{}), types.ErrNilEntity)
}

func TestInitIsIdempotent(t *testing.T) {
	c := &contact{}
	rec := types.Record{"id": 3, "name": "x", "tags": []any{"t"}}
	require.NoError(t, c.Init(rec))
	first := *c
	require.NoError(t, c.Init(rec))
	if diff := cmp.Diff(first, *c); diff != "" {
		t.Errorf("second Init changed the entity (-first +second):\n%s", diff)
	}
}

func TestClone(t *testing.T) {
	c := &contact{ID: 1, Name: "n", Tags: []string{"a"}, Selected: true}
	cp, err := hydrate.Clone(c)

	require.NoError(t, err)
	assert.NotSame(t, c, cp)
	assert.Equal(t, "n", cp.Name)
	assert.False(t, cp.Selected, "UI-only fields are not carried")
	cp.Tags[0] = "b"
	assert.Equal(t, "a", c.Tags[0])
}
