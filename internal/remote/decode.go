package remote

import (
	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// unwrapObject returns the entity object of a response, accepting both a
// bare object and {"data": {...}}.
func unwrapObject(v any) (types.Record, bool) {
	rec, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	if inner, ok := rec[types.PageKeyData].(map[string]any); ok {
		return inner, true
	}
	return rec, true
}

// unwrapPage returns the page descriptor of a response, accepting both a
// bare descriptor and one nested under "data".
func unwrapPage(v any) (types.Record, bool) {
	rec, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	if inner, ok := rec[types.PageKeyData].(map[string]any); ok {
		if _, isPage := inner[types.PageKeyData]; isPage {
			return inner, true
		}
	}
	return rec, true
}

// unwrapList returns the item list of a response, accepting a bare array or
// {"data": [...]}.
func unwrapList(v any) (any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case map[string]any:
		if inner, ok := x[types.PageKeyData].([]any); ok {
			return inner, true
		}
	}
	return nil, false
}

// savedID extracts the server-assigned id from a save response: a bare
// number, {"id": n} or {"data": {"id": n}}. Anything else is 0.
func savedID(v any) int64 {
	if rec, ok := unwrapObject(v); ok {
		return hydrate.Map(rec).Int64("id", 0)
	}
	return hydrate.Map(types.Record{"id": v}).Int64("id", 0)
}

// deletedCount interprets a delete response. A bool is 1 or 0 for a single
// delete and fallback for a batch; numbers are taken as counts; objects are
// searched for deleted, count or success.
func deletedCount(v any, fallback int) int {
	switch x := v.(type) {
	case nil:
		return fallback
	case bool:
		if x {
			return fallback
		}
		return 0
	case map[string]any:
		m := hydrate.Map(x)
		for _, key := range []string{"deleted", "count"} {
			if m.Has(key) {
				return deletedCount(x[key], fallback)
			}
		}
		if m.Has("success") {
			return deletedCount(m.Bool("success", false), fallback)
		}
		if inner, ok := x[types.PageKeyData]; ok {
			return deletedCount(inner, fallback)
		}
		return 0
	default:
		return hydrate.Map(types.Record{"n": v}).Int("n", 0)
	}
}
