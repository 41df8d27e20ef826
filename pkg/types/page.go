package types

// Page is the pagination state of one page of results plus the entities
// materialized for it. Callers hold a *Page; the proxy mutates Items in
// place and refreshes the metadata through the same pointer, so every holder
// observes the change.
type Page[P Entity] struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	From        int `json:"from"`
	To          int `json:"to"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
	Items       []P `json:"data"`
}

// Page descriptor keys on the wire.
const (
	PageKeyCurrentPage = "current_page"
	PageKeyPerPage     = "per_page"
	PageKeyFrom        = "from"
	PageKeyTo          = "to"
	PageKeyTotal       = "total"
	PageKeyLastPage    = "last_page"
	PageKeyData        = "data"
)

// PageMetaKeys lists the metadata keys that default to 1 when falsy.
var PageMetaKeys = []string{
	PageKeyCurrentPage,
	PageKeyPerPage,
	PageKeyFrom,
	PageKeyTo,
	PageKeyTotal,
	PageKeyLastPage,
}

// NewPage returns an empty page whose metadata is all 1.
func NewPage[P Entity]() *Page[P] {
	return &Page[P]{
		CurrentPage: 1,
		PerPage:     1,
		From:        1,
		To:          1,
		Total:       1,
		LastPage:    1,
		Items:       []P{},
	}
}

// Remove splices e out of Items by identity. Returns false if e is not on
// the page.
func (p *Page[P]) Remove(e P) bool {
	for i, item := range p.Items {
		if Entity(item) == Entity(e) {
			p.Items = append(p.Items[:i], p.Items[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAll splices every entity in es out of Items and returns how many
// were removed.
func (p *Page[P]) RemoveAll(es []P) int {
	n := 0
	for _, e := range es {
		if p.Remove(e) {
			n++
		}
	}
	return n
}

// ReplaceWith overwrites p with the metadata and items of src, keeping p's
// identity for callers holding the pointer.
func (p *Page[P]) ReplaceWith(src *Page[P]) {
	if src == nil {
		return
	}
	items := src.Items
	*p = *src
	p.Items = append(p.Items[:0:0], items...)
}

// HasNext reports whether a page after the current one exists.
func (p *Page[P]) HasNext() bool {
	return p.CurrentPage < p.LastPage
}

// HasPrev reports whether a page before the current one exists.
func (p *Page[P]) HasPrev() bool {
	return p.CurrentPage > 1
}
