package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageDefaults(t *testing.T) {
	p := NewPage[*note]()

	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 1, p.PerPage)
	assert.Equal(t, 1, p.From)
	assert.Equal(t, 1, p.To)
	assert.Equal(t, 1, p.Total)
	assert.Equal(t, 1, p.LastPage)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
}

func TestPageRemoveByIdentity(t *testing.T) {
	a := &note{Text: "a"}
	b := &note{Text: "b"}
	twin := &note{Text: "a"}
	p := NewPage[*note]()
	p.Items = []*note{a, b}

	assert.False(t, p.Remove(twin), "equal value with different identity must not match")
	assert.Len(t, p.Items, 2)

	assert.True(t, p.Remove(a))
	assert.Equal(t, []*note{b}, p.Items)
}

func TestPageRemoveAll(t *testing.T) {
	a, b, c := &note{ID: 1}, &note{ID: 2}, &note{ID: 3}
	p := NewPage[*note]()
	p.Items = []*note{a, b, c}

	n := p.RemoveAll([]*note{a, c, &note{ID: 9}})

	assert.Equal(t, 2, n)
	assert.Equal(t, []*note{b}, p.Items)
}

func TestPageReplaceWithKeepsPointer(t *testing.T) {
	p := NewPage[*note]()
	held := p

	src := &Page[*note]{CurrentPage: 2, PerPage: 10, From: 11, To: 12, Total: 12, LastPage: 2,
		Items: []*note{{ID: 11}, {ID: 12}}}
	p.ReplaceWith(src)

	assert.Same(t, held, p)
	assert.Equal(t, 2, held.CurrentPage)
	assert.Len(t, held.Items, 2)

	src.Items[0] = &note{ID: 99}
	assert.Equal(t, int64(11), held.Items[0].ID, "items slice must not alias the source")
}

func TestPageNavigation(t *testing.T) {
	p := &Page[*note]{CurrentPage: 2, LastPage: 3}
	assert.True(t, p.HasNext())
	assert.True(t, p.HasPrev())

	p.CurrentPage = 3
	assert.False(t, p.HasNext())

	p.CurrentPage = 1
	assert.False(t, p.HasPrev())
}
