package proxy

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Watch returns the change stream of the local cache and its cancel func.
// Under remote policy the returned channel is already closed.
func (p *Proxy[T, P]) Watch() (<-chan types.ChangeEvent, func()) {
	if !p.isLocal() {
		ch := make(chan types.ChangeEvent)
		close(ch)
		return ch, func() {}
	}
	return p.local.Watch()
}

// RegisterObserver calls fn with the cache sorted by field once now and again
// after every change, until ctx is done. It blocks; run it in its own
// goroutine.
func (p *Proxy[T, P]) RegisterObserver(ctx context.Context, field string, fn func([]P)) error {
	if !p.isLocal() {
		return fmt.Errorf("observe %s: %w", p.policy, types.ErrNotLocal)
	}
	events, cancel := p.local.Watch()
	defer cancel()

	fn(p.GetAllSortedBy(field, false))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.logger.Debug("refreshing observer",
				zap.String("kind", string(ev.Kind)), zap.Int64("id", ev.ID))
			fn(p.GetAllSortedBy(field, false))
		}
	}
}

// MaxSyncPages bounds the last_page a Sync will follow.
const MaxSyncPages = 10000

// Sync replaces the local cache with every entity the API lists. The first
// page reveals the page count; the rest are fetched concurrently. The cache
// is untouched when any page fails or when the API reports more than
// MaxSyncPages pages.
func (p *Proxy[T, P]) Sync(ctx context.Context) (int, error) {
	if !p.isLocal() {
		return 0, fmt.Errorf("sync %s: %w", p.policy, types.ErrNotLocal)
	}
	defer p.busy(SpinnerSync)()

	first, err := p.remote.GetAll(ctx, 1)
	if err != nil {
		return 0, p.fail("sync", err)
	}
	if first.LastPage > MaxSyncPages {
		return 0, p.fail("sync", fmt.Errorf("last_page %d exceeds %d", first.LastPage, MaxSyncPages))
	}
	pages := make([][]P, max(first.LastPage, 1))
	pages[0] = first.Items

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.syncN)
	for n := 2; n <= len(pages); n++ {
		g.Go(func() error {
			pg, err := p.remote.GetAll(gctx, n)
			if err != nil {
				return fmt.Errorf("page %d: %w", n, err)
			}
			mu.Lock()
			pages[n-1] = pg.Items
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, p.fail("sync", err)
	}

	var all []P
	for _, items := range pages {
		all = append(all, items...)
	}
	if all == nil {
		all = []P{}
	}
	if err := p.local.ReplaceAll(all); err != nil {
		return 0, p.fail("sync", err)
	}
	p.logger.Info("synced", zap.Int("pages", len(pages)), zap.Int("items", len(all)))
	return len(all), nil
}
