package proxy

import (
	"context"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// LocalStore is the local cache the proxy mirrors local-policy entities
// into. *localstore.Store satisfies it.
type LocalStore[P types.Entity] interface {
	ReadAll() []P
	ReadAllSortedBy(field string) []P
	ReadAllSortedByDesc(field string) []P
	FindByID(id int64) P
	Lookup(id int64) (P, bool)
	Save(e P, assignedID int64) error
	Delete(e P) (bool, error)
	ReplaceAll(items []P) error
	Watch() (<-chan types.ChangeEvent, func())
}

// RemoteStore is the HTTP API the proxy treats as the source of identity.
// *remote.Store satisfies it.
type RemoteStore[P types.Entity] interface {
	GetOne(ctx context.Context, id int64) (P, error)
	GetAll(ctx context.Context, page int) (*types.Page[P], error)
	GetPage(ctx context.Context, page *types.Page[P]) (*types.Page[P], error)
	Save(ctx context.Context, e P) (int64, error)
	Delete(ctx context.Context, e P) (bool, error)
	DeleteMultiple(ctx context.Context, es []P) (int, error)
	Search(ctx context.Context, criteria types.Record, page int) (*types.Page[P], error)
	SearchWithoutPaginate(ctx context.Context, criteria types.Record) ([]P, error)
	SendFiles(ctx context.Context, e P, files []types.File) (types.Record, error)
}
