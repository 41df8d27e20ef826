package hydrate

import (
	"fmt"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Hydrate overlays the fields present in rec onto target, in place. Fields
// that rec does not carry keep their current value on target; target keeps
// its identity, so callers holding the pointer observe the update.
func Hydrate(target types.Entity, rec types.Record) error {
	if target == nil {
		return types.ErrNilEntity
	}
	return target.Assign(rec)
}

// HydrateArray converts recs into entities of type P, one fresh instance per
// record, preserving order. An empty input yields an empty, non-nil slice.
// Every record produces an entity; fields that could not be mapped are
// reported together in a *types.HydrationError.
func HydrateArray[T any, P types.EntityPtr[T]](recs []types.Record) ([]P, error) {
	out := make([]P, 0, len(recs))
	var he types.HydrationError
	for i, rec := range recs {
		e := P(new(T))
		if err := e.Init(rec); err != nil {
			he.Merge(fmt.Sprintf("[%d]", i), err)
		}
		out = append(out, e)
	}
	return out, he.OrNil()
}

// One converts a single record into a fresh entity of type P.
func One[T any, P types.EntityPtr[T]](rec types.Record) (P, error) {
	e := P(new(T))
	err := e.Init(rec)
	return e, err
}

// Clone returns a new entity carrying the saved projection of e.
func Clone[T any, P types.EntityPtr[T]](e P) (P, error) {
	return One[T, P](e.PrepareForSave())
}
