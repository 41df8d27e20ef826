// Package crud drives list and edit screens on top of a data access proxy:
// paging, selection, deletion, validation before save and boolean toggles.
package crud

import (
	"context"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// DataAccess is the part of *proxy.Proxy the list and edit controllers use.
type DataAccess[P types.Entity] interface {
	Policy() types.Policy
	GetOne(ctx context.Context, id int64) (P, error)
	GetAll(ctx context.Context, page int) (*types.Page[P], error)
	Save(ctx context.Context, e P) (int64, error)
	Delete(ctx context.Context, e P, page *types.Page[P]) (*types.Page[P], error)
	DeleteMultiple(ctx context.Context, es []P, page *types.Page[P]) (*types.Page[P], error)
	Search(ctx context.Context, criteria types.Record, page int) (*types.Page[P], error)
	RegisterObserver(ctx context.Context, field string, fn func([]P)) error
}
