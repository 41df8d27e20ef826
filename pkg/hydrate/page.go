package hydrate

import (
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// NewPage builds fresh pagination state from a raw page descriptor. Falsy
// metadata (absent, null, zero, NaN, empty string) becomes 1. Items are the
// hydrated entries of rec["data"], or empty when data is absent.
func NewPage[T any, P types.EntityPtr[T]](rec types.Record) (*types.Page[P], error) {
	page := types.NewPage[P]()
	var he types.HydrationError
	if err := HydratePage(page, rec); err != nil {
		he.Merge("", err)
	}

	raw, ok := rec[types.PageKeyData]
	if ok && raw != nil {
		recs, err := Records(raw)
		if err != nil {
			he.Merge(types.PageKeyData, err)
		}
		items, err := HydrateArray[T, P](recs)
		if err != nil {
			he.Merge(types.PageKeyData, err)
		}
		page.Items = items
	}
	return page, he.OrNil()
}

// HydratePage overlays the metadata present in rec onto page. Keys missing
// from rec are left untouched; keys present with a falsy value become 1.
// Items are not touched.
func HydratePage[P types.Entity](page *types.Page[P], rec types.Record) error {
	m := Map(rec)
	fields := map[string]*int{
		types.PageKeyCurrentPage: &page.CurrentPage,
		types.PageKeyPerPage:     &page.PerPage,
		types.PageKeyFrom:        &page.From,
		types.PageKeyTo:          &page.To,
		types.PageKeyTotal:       &page.Total,
		types.PageKeyLastPage:    &page.LastPage,
	}
	for _, key := range types.PageMetaKeys {
		if !m.Has(key) {
			continue
		}
		n := m.Int(key, 1)
		if n == 0 {
			n = 1
		}
		*fields[key] = n
	}
	return m.Err()
}
