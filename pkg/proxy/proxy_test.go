package proxy_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/crudkit/internal/fakeapi"
	"github.com/mesh-intelligence/crudkit/internal/jsonfile"
	"github.com/mesh-intelligence/crudkit/internal/localstore"
	"github.com/mesh-intelligence/crudkit/internal/remote"
	"github.com/mesh-intelligence/crudkit/internal/testentity"
	"github.com/mesh-intelligence/crudkit/pkg/proxy"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

type (
	contact = testentity.Contact
	ticket  = testentity.Ticket
)

// recorder is a Notifier and Spinner that remembers what it was told.
type recorder struct {
	mu      sync.Mutex
	notes   []types.NotifyKind
	spinner map[string]int
}

func newRecorder() *recorder { return &recorder{spinner: map[string]int{}} }

func (r *recorder) Add(_, _ string, kind types.NotifyKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, kind)
}

func (r *recorder) On(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spinner[name]++
}

func (r *recorder) Off(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spinner[name]--
}

func (r *recorder) kinds() []types.NotifyKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.NotifyKind(nil), r.notes...)
}

type contactEnv struct {
	api   *fakeapi.Server
	local *localstore.Store[contact, *contact]
	proxy *proxy.Proxy[contact, *contact]
	rec   *recorder
}

func newContactEnv(t *testing.T) *contactEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	api := fakeapi.New(t)

	kv, err := jsonfile.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	local := localstore.New[contact](kv, localstore.WithLogger(logger))
	t.Cleanup(local.Close)

	rs, err := remote.New[contact](api.URL, api.Client(), remote.WithLogger(logger))
	require.NoError(t, err)

	rec := newRecorder()
	p, err := proxy.New[contact](local, rs,
		proxy.WithLogger(logger), proxy.WithNotifier(rec), proxy.WithSpinner(rec))
	require.NoError(t, err)
	return &contactEnv{api: api, local: local, proxy: p, rec: rec}
}

func newTicketProxy(t *testing.T, api *fakeapi.Server) *proxy.Proxy[ticket, *ticket] {
	t.Helper()
	rs, err := remote.New[ticket](api.URL, api.Client())
	require.NoError(t, err)
	p, err := proxy.New[ticket](nil, rs, proxy.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return p
}

func TestNew_LocalPolicyNeedsLocalStore(t *testing.T) {
	api := fakeapi.New(t)
	rs, err := remote.New[contact](api.URL, api.Client())
	require.NoError(t, err)

	_, err = proxy.New[contact](nil, rs)
	assert.ErrorIs(t, err, proxy.ErrNoLocalStore)

	_, err = proxy.New[contact](nil, nil)
	assert.Error(t, err)
}

func TestSave_LocalPolicyMirrorsServerID(t *testing.T) {
	env := newContactEnv(t)
	env.api.Seed("contacts", types.Record{"id": 41, "name": "seed"})
	ctx := context.Background()

	c := &contact{Name: "Ada", Tags: []string{"x"}}
	id, err := env.proxy.Save(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), c.ID)

	all := env.local.ReadAll()
	require.Len(t, all, 1)
	assert.Equal(t, int64(42), all[0].ID)

	found, err := env.proxy.GetOne(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Ada", found.Name)

	missing, err := env.proxy.GetOne(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, missing.ID)

	_, ok, err := env.proxy.Lookup(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []types.NotifyKind{types.NotifySuccess}, env.rec.kinds())
	assert.Zero(t, env.rec.spinner[proxy.SpinnerSave])
}

func TestSave_Nil(t *testing.T) {
	env := newContactEnv(t)
	id, err := env.proxy.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Empty(t, env.api.Calls())
}

func TestSave_RemoteFailureLeavesCache(t *testing.T) {
	env := newContactEnv(t)
	env.api.FailNext(1, http.StatusInternalServerError, `{"message":"down"}`)

	c := &contact{Name: "Ada"}
	_, err := env.proxy.Save(context.Background(), c)
	assert.ErrorIs(t, err, types.ErrServer)
	assert.Zero(t, c.ID)
	assert.Empty(t, env.local.ReadAll())
	assert.Equal(t, []types.NotifyKind{types.NotifyError}, env.rec.kinds())
}

func TestSave_ResponseWithoutIDFails(t *testing.T) {
	env := newContactEnv(t)
	env.api.FailNext(1, http.StatusOK, `{"id":0}`)

	c := &contact{Name: "Ada"}
	id, err := env.proxy.Save(context.Background(), c)
	assert.ErrorIs(t, err, types.ErrInvalidID)
	assert.Zero(t, id)
	assert.Zero(t, c.ID)
	assert.Empty(t, env.local.ReadAll())
	assert.Equal(t, []types.NotifyKind{types.NotifyError}, env.rec.kinds())
}

func TestDelete_UnsavedEntityNeverCallsBackend(t *testing.T) {
	env := newContactEnv(t)
	a, b := &contact{Name: "a"}, &contact{Name: "b"}
	page := types.NewPage[*contact]()
	page.Items = append(page.Items, a, b)

	got, err := env.proxy.Delete(context.Background(), a, page)
	require.NoError(t, err)
	assert.Same(t, page, got)
	require.Len(t, page.Items, 1)
	assert.Same(t, b, page.Items[0])
	assert.Empty(t, env.api.Calls())
}

func TestDelete_NilReturnsPage(t *testing.T) {
	env := newContactEnv(t)
	page := types.NewPage[*contact]()
	got, err := env.proxy.Delete(context.Background(), nil, page)
	require.NoError(t, err)
	assert.Same(t, page, got)
}

func TestDelete_LocalPolicyRefreshesPage(t *testing.T) {
	env := newContactEnv(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		_, err := env.proxy.Save(ctx, &contact{Name: name})
		require.NoError(t, err)
	}
	page, err := env.proxy.GetAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	env.api.ResetCalls()

	_, err = env.proxy.Delete(ctx, page.Items[1], page)
	require.NoError(t, err)

	assert.Equal(t, []string{"DELETE /contacts/2", "GET /contacts?page=1"}, env.api.Calls())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "a", page.Items[0].Name)
	assert.Equal(t, "c", page.Items[1].Name)
	assert.Equal(t, 2, page.Total)

	_, ok := env.local.Lookup(2)
	assert.False(t, ok)
	assert.Len(t, env.local.ReadAll(), 2)
}

func TestDelete_RemotePolicySplices(t *testing.T) {
	api := fakeapi.New(t)
	api.Seed("tickets", types.Record{"subject": "a"}, types.Record{"subject": "b"})
	p := newTicketProxy(t, api)
	ctx := context.Background()

	page, err := p.GetAll(ctx, 1)
	require.NoError(t, err)
	first, second := page.Items[0], page.Items[1]
	api.ResetCalls()

	_, err = p.Delete(ctx, first, page)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Same(t, second, page.Items[0])
	assert.Equal(t, []string{"DELETE /tickets/1"}, api.Calls())
}

func TestDelete_FailureLeavesPage(t *testing.T) {
	api := fakeapi.New(t)
	api.Seed("tickets", types.Record{"subject": "a"})
	p := newTicketProxy(t, api)
	ctx := context.Background()

	page, err := p.GetAll(ctx, 1)
	require.NoError(t, err)
	api.FailNext(1, http.StatusForbidden, `{}`)

	_, err = p.Delete(ctx, page.Items[0], page)
	assert.ErrorIs(t, err, types.ErrForbidden)
	assert.Len(t, page.Items, 1)
}

func TestDeleteMultiple_FailureLeavesPageAndCache(t *testing.T) {
	env := newContactEnv(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		_, err := env.proxy.Save(ctx, &contact{Name: name})
		require.NoError(t, err)
	}
	page, err := env.proxy.GetAll(ctx, 1)
	require.NoError(t, err)
	items := append([]*contact(nil), page.Items...)

	env.api.FailNext(1, http.StatusInternalServerError, `{}`)
	_, err = env.proxy.DeleteMultiple(ctx, items, page)
	require.Error(t, err)
	assert.Equal(t, items, page.Items)
	assert.Len(t, env.local.ReadAll(), 2)
}

func TestDeleteMultiple_ZeroDeletedLeavesPageAndCache(t *testing.T) {
	env := newContactEnv(t)
	ctx := context.Background()
	// Cached locally but unknown to the API, so the API deletes nothing.
	require.NoError(t, env.local.Save(&contact{Name: "a"}, 10))
	require.NoError(t, env.local.Save(&contact{Name: "b"}, 11))
	page, err := env.proxy.GetAll(ctx, 1)
	require.NoError(t, err)
	items := append([]*contact(nil), page.Items...)

	_, err = env.proxy.DeleteMultiple(ctx, items, page)
	require.NoError(t, err)
	assert.Equal(t, items, page.Items)
	assert.Len(t, env.local.ReadAll(), 2)
	assert.Equal(t, []string{"POST /contacts/delete-multiple"}, env.api.Calls())
}

func TestDeleteMultiple_SplicesUnsavedFirst(t *testing.T) {
	api := fakeapi.New(t)
	api.Seed("tickets", types.Record{"subject": "a"}, types.Record{"subject": "b"})
	p := newTicketProxy(t, api)
	ctx := context.Background()

	page, err := p.GetAll(ctx, 1)
	require.NoError(t, err)
	draft := &ticket{Subject: "draft"}
	page.Items = append(page.Items, draft)
	api.ResetCalls()

	_, err = p.DeleteMultiple(ctx, []*ticket{page.Items[0], draft}, page)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "b", page.Items[0].Subject)
	assert.Len(t, api.Items("tickets"), 1)
	assert.Equal(t, []string{"POST /tickets/delete-multiple"}, api.Calls())
}

func TestRemotePolicyRoundTrip(t *testing.T) {
	api := fakeapi.New(t)
	p := newTicketProxy(t, api)
	ctx := context.Background()

	sent := &ticket{Subject: "printer on fire", Closed: true}
	id, err := p.Save(ctx, sent)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := p.GetOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sent, got)

	_, ok, err := p.Lookup(ctx, id+100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	api := fakeapi.New(t)
	api.Seed("tickets", types.Record{"subject": "a", "closed": true}, types.Record{"subject": "b"})
	p := newTicketProxy(t, api)
	ctx := context.Background()

	page, err := p.Search(ctx, types.Record{"subject": "b"}, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	all, err := p.SearchWithoutPaginate(ctx, types.Record{"closed": true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].Subject)
}

func TestGetAllSortedBy(t *testing.T) {
	env := newContactEnv(t)
	for i, name := range []string{"item 10", "item 2", "item 1"} {
		require.NoError(t, env.local.Save(&contact{Name: name}, int64(i+1)))
	}

	names := func(cs []*contact) []string {
		out := make([]string, len(cs))
		for i, c := range cs {
			out[i] = c.Name
		}
		return out
	}
	assert.Equal(t, []string{"item 1", "item 2", "item 10"}, names(env.proxy.GetAllSortedBy("name", false)))
	assert.Equal(t, []string{"item 10", "item 2", "item 1"}, names(env.proxy.GetAllSortedBy("name", true)))
}

func TestSync_ReplacesCacheWithEveryPage(t *testing.T) {
	env := newContactEnv(t)
	env.api.SetPerPage(10)
	for range 25 {
		env.api.Seed("contacts", types.Record{"name": "remote"})
	}
	require.NoError(t, env.local.Save(&contact{Name: "stale"}, 500))

	n, err := env.proxy.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	all := env.local.ReadAllSortedBy("id")
	require.Len(t, all, 25)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(25), all[24].ID)
}

func TestSync_FailureLeavesCache(t *testing.T) {
	env := newContactEnv(t)
	env.api.FailNext(1, http.StatusBadRequest, `{}`)
	require.NoError(t, env.local.Save(&contact{Name: "kept"}, 1))

	_, err := env.proxy.Sync(context.Background())
	require.Error(t, err)
	assert.Len(t, env.local.ReadAll(), 1)
}

func TestSync_RejectsHugeLastPage(t *testing.T) {
	env := newContactEnv(t)
	env.api.FailNext(1, http.StatusOK,
		`{"current_page":1,"per_page":10,"total":5,"last_page":1000000000,"data":[]}`)
	require.NoError(t, env.local.Save(&contact{Name: "kept"}, 1))

	_, err := env.proxy.Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last_page")
	assert.Len(t, env.local.ReadAll(), 1)
	assert.Len(t, env.api.Calls(), 1)
}

func TestSync_RemotePolicy(t *testing.T) {
	p := newTicketProxy(t, fakeapi.New(t))
	_, err := p.Sync(context.Background())
	assert.ErrorIs(t, err, types.ErrNotLocal)
}

func TestRegisterObserver(t *testing.T) {
	env := newContactEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan int, 8)
	done := make(chan error, 1)
	go func() {
		done <- env.proxy.RegisterObserver(ctx, "name", func(cs []*contact) {
			updates <- len(cs)
		})
	}()

	select {
	case n := <-updates:
		assert.Zero(t, n)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial observer call")
	}

	_, err := env.proxy.Save(ctx, &contact{Name: "Ada"})
	require.NoError(t, err)
	select {
	case n := <-updates:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("observer not refreshed after save")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("observer did not stop")
	}
}

func TestWatch_RemotePolicyIsClosed(t *testing.T) {
	p := newTicketProxy(t, fakeapi.New(t))
	ch, cancel := p.Watch()
	defer cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestSendFiles(t *testing.T) {
	api := fakeapi.New(t)
	p := newTicketProxy(t, api)
	rec, err := p.SendFiles(context.Background(), &ticket{ID: 1}, []types.File{{Name: "a.txt"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a.txt"}, rec["uploaded"])
}
