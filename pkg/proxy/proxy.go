// Package proxy routes CRUD operations for one entity type to the local
// cache, the remote API, or both, and keeps the caller's page in step with
// what the stores hold.
//
// The policy of the entity type decides the route. Under types.PolicyRemote
// the API serves everything. Under types.PolicyLocal reads come from the
// local cache and writes go to the API first; the local copy is updated only
// after the API accepts the write, so identities are always assigned by the
// server.
package proxy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// ErrNoLocalStore is returned by New for a local-policy type without a
// local store.
var ErrNoLocalStore = errors.New("local policy requires a local store")

// ErrNoRemoteStore is returned by New when no remote store is given.
var ErrNoRemoteStore = errors.New("remote store is required")

// Spinner names used around remote calls.
const (
	SpinnerLoad   = "load"
	SpinnerSave   = "save"
	SpinnerDelete = "delete"
	SpinnerSearch = "search"
	SpinnerUpload = "upload"
	SpinnerSync   = "sync"
)

// Option configures a Proxy.
type Option func(*options)

type options struct {
	notifier        types.Notifier
	spinner         types.Spinner
	logger          *zap.Logger
	syncConcurrency int
	policy          types.Policy
}

// WithNotifier sets the notification sink for save and delete outcomes.
func WithNotifier(n types.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithSpinner sets the busy indicator toggled around remote calls.
func WithSpinner(s types.Spinner) Option {
	return func(o *options) { o.spinner = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPolicy overrides the policy declared by the entity type. It is meant
// for runtime-configured types such as document.Document.
func WithPolicy(policy types.Policy) Option {
	return func(o *options) { o.policy = policy }
}

// WithSyncConcurrency bounds how many pages Sync fetches at once.
func WithSyncConcurrency(n int) Option {
	return func(o *options) { o.syncConcurrency = n }
}

// Proxy is the data access proxy for entities of type P.
type Proxy[T any, P types.EntityPtr[T]] struct {
	local    LocalStore[P]
	remote   RemoteStore[P]
	policy   types.Policy
	notifier types.Notifier
	spinner  types.Spinner
	logger   *zap.Logger
	syncN    int
}

// New returns a proxy over local and remote. local may be nil for a
// remote-policy type.
func New[T any, P types.EntityPtr[T]](local LocalStore[P], remote RemoteStore[P], opts ...Option) (*Proxy[T, P], error) {
	o := options{
		notifier:        types.NopNotifier{},
		spinner:         types.NopSpinner{},
		syncConcurrency: 4,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	blank := types.Blank[T, P]()
	policy := blank.Policy()
	if o.policy != "" {
		policy = o.policy
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%s: unknown policy %q", blank.TypeName(), policy)
	}
	if remote == nil {
		return nil, ErrNoRemoteStore
	}
	if policy == types.PolicyLocal && local == nil {
		return nil, fmt.Errorf("%s: %w", blank.TypeName(), ErrNoLocalStore)
	}

	return &Proxy[T, P]{
		local:    local,
		remote:   remote,
		policy:   policy,
		notifier: o.notifier,
		spinner:  o.spinner,
		logger: o.logger.With(
			zap.String("type", blank.TypeName()),
			zap.String("policy", string(policy))),
		syncN: max(o.syncConcurrency, 1),
	}, nil
}

// Policy returns the policy the proxy routes by.
func (p *Proxy[T, P]) Policy() types.Policy {
	return p.policy
}

func (p *Proxy[T, P]) isLocal() bool {
	return p.policy == types.PolicyLocal
}

// busy turns the named spinner on and returns the func that turns it off.
func (p *Proxy[T, P]) busy(name string) func() {
	p.spinner.On(name)
	return func() { p.spinner.Off(name) }
}

func (p *Proxy[T, P]) fail(op string, err error) error {
	p.logger.Warn(op+" failed", zap.Error(err))
	p.notifier.Add("Error", err.Error(), types.NotifyError)
	return err
}

// GetOne returns the entity with id. Under local policy a miss yields a
// defaulted entity whose ID is 0; use Lookup to tell a miss apart.
func (p *Proxy[T, P]) GetOne(ctx context.Context, id int64) (P, error) {
	if p.isLocal() {
		return p.local.FindByID(id), nil
	}
	defer p.busy(SpinnerLoad)()
	return p.remote.GetOne(ctx, id)
}

// Lookup is GetOne with an explicit found result. Under remote policy a 404
// is reported as not found rather than as an error.
func (p *Proxy[T, P]) Lookup(ctx context.Context, id int64) (P, bool, error) {
	if p.isLocal() {
		e, ok := p.local.Lookup(id)
		return e, ok, nil
	}
	e, err := p.GetOne(ctx, id)
	if errors.Is(err, types.ErrRemoteNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// GetAll returns one page. Under local policy the page holds every cached
// entity and its metadata is all 1; page is ignored.
func (p *Proxy[T, P]) GetAll(ctx context.Context, page int) (*types.Page[P], error) {
	if p.isLocal() {
		pg := types.NewPage[P]()
		pg.Items = p.local.ReadAll()
		return pg, nil
	}
	defer p.busy(SpinnerLoad)()
	return p.remote.GetAll(ctx, page)
}

// GetAllSortedBy returns every cached entity ordered by field with numeric
// aware collation. Under remote policy it returns nil.
func (p *Proxy[T, P]) GetAllSortedBy(field string, desc bool) []P {
	if !p.isLocal() {
		return nil
	}
	if desc {
		return p.local.ReadAllSortedByDesc(field)
	}
	return p.local.ReadAllSortedBy(field)
}

// Save writes e to the API and returns the ID the API assigned. A nil e is a
// no-op returning 0. A response without an ID is a failed write and returns
// types.ErrInvalidID. Under local policy a successful write is mirrored into
// the cache with that ID. A newly created e has its ID set.
func (p *Proxy[T, P]) Save(ctx context.Context, e P) (int64, error) {
	if e == nil {
		return 0, nil
	}
	off := p.busy(SpinnerSave)
	id, err := p.remote.Save(ctx, e)
	off()
	if err != nil {
		return 0, p.fail("save", err)
	}
	if id == 0 {
		return 0, p.fail("save", fmt.Errorf("no id in response: %w", types.ErrInvalidID))
	}

	if p.isLocal() {
		if err := p.local.Save(e, id); err != nil {
			return id, p.fail("save", fmt.Errorf("mirror %d: %w", id, err))
		}
	}
	if e.GetID() == 0 {
		e.SetID(id)
	}
	p.logger.Debug("saved", zap.Int64("id", id))
	p.notifier.Add("Success", "Saved", types.NotifySuccess)
	return id, nil
}

// Delete removes e and brings page in line. A nil e returns page untouched.
// An e never persisted (ID 0) is spliced out of page without contacting
// any store. Otherwise the API delete runs first; only when it confirms is
// the cache updated and page refreshed from the API (local policy) or e
// spliced out (remote policy). On failure page is left as it was.
func (p *Proxy[T, P]) Delete(ctx context.Context, e P, page *types.Page[P]) (*types.Page[P], error) {
	if e == nil {
		return page, nil
	}
	if e.GetID() == 0 {
		if page != nil {
			page.Remove(e)
		}
		return page, nil
	}

	off := p.busy(SpinnerDelete)
	ok, err := p.remote.Delete(ctx, e)
	off()
	if err != nil {
		return page, p.fail("delete", err)
	}
	if !ok {
		p.logger.Info("delete not confirmed", zap.Int64("id", e.GetID()))
		return page, nil
	}

	if err := p.afterDelete(ctx, []P{e}, page); err != nil {
		return page, err
	}
	p.notifier.Add("Success", "Deleted", types.NotifySuccess)
	return page, nil
}

// DeleteMultiple is Delete for a batch sent in one API request. Entities
// with ID 0 are spliced out first; the rest are removed only when the API
// reports at least one deletion.
func (p *Proxy[T, P]) DeleteMultiple(ctx context.Context, es []P, page *types.Page[P]) (*types.Page[P], error) {
	persisted := make([]P, 0, len(es))
	for _, e := range es {
		switch {
		case e == nil:
		case e.GetID() == 0:
			if page != nil {
				page.Remove(e)
			}
		default:
			persisted = append(persisted, e)
		}
	}
	if len(persisted) == 0 {
		return page, nil
	}

	off := p.busy(SpinnerDelete)
	n, err := p.remote.DeleteMultiple(ctx, persisted)
	off()
	if err != nil {
		return page, p.fail("delete multiple", err)
	}
	if n == 0 {
		p.logger.Info("batch delete not confirmed", zap.Int("count", len(persisted)))
		return page, nil
	}

	if err := p.afterDelete(ctx, persisted, page); err != nil {
		return page, err
	}
	p.notifier.Add("Success", fmt.Sprintf("Deleted %d", n), types.NotifySuccess)
	return page, nil
}

// afterDelete reconciles the cache and page once the API confirmed.
func (p *Proxy[T, P]) afterDelete(ctx context.Context, deleted []P, page *types.Page[P]) error {
	if !p.isLocal() {
		if page != nil {
			page.RemoveAll(deleted)
		}
		return nil
	}

	for _, e := range deleted {
		if _, err := p.local.Delete(e); err != nil {
			return p.fail("delete", fmt.Errorf("local delete %d: %w", e.GetID(), err))
		}
	}
	if page == nil {
		return nil
	}
	off := p.busy(SpinnerLoad)
	fresh, err := p.remote.GetPage(ctx, page)
	off()
	if err != nil {
		// The delete went through; fall back to splicing so page matches.
		p.logger.Warn("refresh after delete failed", zap.Error(err))
		page.RemoveAll(deleted)
		return nil
	}
	page.ReplaceWith(fresh)
	return nil
}

// Search posts criteria to the API and returns the requested page.
func (p *Proxy[T, P]) Search(ctx context.Context, criteria types.Record, page int) (*types.Page[P], error) {
	defer p.busy(SpinnerSearch)()
	return p.remote.Search(ctx, criteria, page)
}

// SearchWithoutPaginate posts criteria to the API and returns every match.
func (p *Proxy[T, P]) SearchWithoutPaginate(ctx context.Context, criteria types.Record) ([]P, error) {
	defer p.busy(SpinnerSearch)()
	return p.remote.SearchWithoutPaginate(ctx, criteria)
}

// SendFiles uploads files attached to e.
func (p *Proxy[T, P]) SendFiles(ctx context.Context, e P, files []types.File) (types.Record, error) {
	off := p.busy(SpinnerUpload)
	rec, err := p.remote.SendFiles(ctx, e, files)
	off()
	if err != nil {
		return nil, p.fail("upload", err)
	}
	p.notifier.Add("Success", "Uploaded", types.NotifySuccess)
	return rec, nil
}
