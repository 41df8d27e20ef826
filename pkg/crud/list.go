package crud

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// ListOption configures a List.
type ListOption func(*listOptions)

type listOptions struct {
	logger *zap.Logger
}

// WithListLogger sets the logger.
func WithListLogger(l *zap.Logger) ListOption {
	return func(o *listOptions) { o.logger = l }
}

// List is the state behind a list screen: the current page and the set of
// selected entities. The page pointer is stable for the List's lifetime so
// a view can hold it.
type List[T any, P types.EntityPtr[T]] struct {
	da     DataAccess[P]
	logger *zap.Logger

	mu       sync.Mutex
	page     *types.Page[P]
	selected map[P]struct{}
	criteria types.Record
}

// NewList returns an empty List over da.
func NewList[T any, P types.EntityPtr[T]](da DataAccess[P], opts ...ListOption) *List[T, P] {
	var o listOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &List[T, P]{
		da:       da,
		logger:   o.logger,
		page:     types.NewPage[P](),
		selected: map[P]struct{}{},
	}
}

// Page returns the page the list renders.
func (l *List[T, P]) Page() *types.Page[P] {
	return l.page
}

// Items returns a copy of the current items.
func (l *List[T, P]) Items() []P {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]P(nil), l.page.Items...)
}

// Load fetches page n and clears the selection and any search.
func (l *List[T, P]) Load(ctx context.Context, n int) error {
	pg, err := l.da.GetAll(ctx, n)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.criteria = nil
	l.show(pg)
	return nil
}

// Search fetches page n of the matches for criteria. Next and Prev keep
// paging through the same search until Load is called.
func (l *List[T, P]) Search(ctx context.Context, criteria types.Record, n int) error {
	pg, err := l.da.Search(ctx, criteria, n)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.criteria = criteria
	l.show(pg)
	return nil
}

// show replaces the page contents. The caller must hold l.mu.
func (l *List[T, P]) show(pg *types.Page[P]) {
	l.page.ReplaceWith(pg)
	clear(l.selected)
}

// Next loads the following page and reports whether there was one.
func (l *List[T, P]) Next(ctx context.Context) (bool, error) {
	l.mu.Lock()
	has, n, criteria := l.page.HasNext(), l.page.CurrentPage+1, l.criteria
	l.mu.Unlock()
	if !has {
		return false, nil
	}
	return true, l.goTo(ctx, n, criteria)
}

// Prev loads the preceding page and reports whether there was one.
func (l *List[T, P]) Prev(ctx context.Context) (bool, error) {
	l.mu.Lock()
	has, n, criteria := l.page.HasPrev(), l.page.CurrentPage-1, l.criteria
	l.mu.Unlock()
	if !has {
		return false, nil
	}
	return true, l.goTo(ctx, n, criteria)
}

func (l *List[T, P]) goTo(ctx context.Context, n int, criteria types.Record) error {
	if criteria != nil {
		return l.Search(ctx, criteria, n)
	}
	return l.Load(ctx, n)
}

// Toggle flips the selection of e and reports whether it is now selected.
func (l *List[T, P]) Toggle(e P) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.selected[e]; ok {
		delete(l.selected, e)
		return false
	}
	l.selected[e] = struct{}{}
	return true
}

// SelectAll selects every item on the page, or clears the selection when
// everything is already selected.
func (l *List[T, P]) SelectAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.selected) == len(l.page.Items) {
		clear(l.selected)
		return
	}
	for _, e := range l.page.Items {
		l.selected[e] = struct{}{}
	}
}

// Selected returns the selected items in page order.
func (l *List[T, P]) Selected() []P {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selectedLocked()
}

func (l *List[T, P]) selectedLocked() []P {
	out := make([]P, 0, len(l.selected))
	for _, e := range l.page.Items {
		if _, ok := l.selected[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Delete removes e through the proxy, which updates the page in place.
func (l *List[T, P]) Delete(ctx context.Context, e P) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.da.Delete(ctx, e, l.page); err != nil {
		return err
	}
	delete(l.selected, e)
	return nil
}

// DeleteSelected removes every selected item in one batch.
func (l *List[T, P]) DeleteSelected(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sel := l.selectedLocked()
	if len(sel) == 0 {
		return nil
	}
	if _, err := l.da.DeleteMultiple(ctx, sel, l.page); err != nil {
		return err
	}
	clear(l.selected)
	return nil
}

// Watch keeps the page filled with the local cache sorted by field until ctx
// is done. It blocks and only works for local-policy types.
func (l *List[T, P]) Watch(ctx context.Context, field string) error {
	return l.da.RegisterObserver(ctx, field, func(items []P) {
		l.mu.Lock()
		defer l.mu.Unlock()
		pg := types.NewPage[P]()
		pg.Items = items
		l.show(pg)
		l.logger.Debug("list refreshed", zap.Int("items", len(items)))
	})
}
