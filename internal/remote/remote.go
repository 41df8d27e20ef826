// Package remote implements the remote store: HTTP CRUD, pagination, search
// and file upload for one entity type.
//
// Nothing is sent until a method is called, and every method produces
// exactly one result. Authentication and content headers are the business of
// the injected types.Doer. Failed responses are turned into typed errors by
// the configured types.ErrorHandler; this package does not interpret status
// codes beyond deciding whether an idempotent GET is worth retrying.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 32 << 20

// Option configures a Store.
type Option func(*options)

type options struct {
	endpoint     string
	errorHandler types.ErrorHandler
	retries      uint
	initialDelay time.Duration
	logger       *zap.Logger
}

// WithEndpoint overrides the resource name taken from the entity type.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithErrorHandler sets the mapper for failed responses. The default is
// DefaultErrorHandler.
func WithErrorHandler(h types.ErrorHandler) Option {
	return func(o *options) { o.errorHandler = h }
}

// WithRetries sets how many times a failed GET is retried after the first
// attempt. Transport errors, 429 and 5xx responses are retried; other
// failures are not. Writes are never retried.
func WithRetries(n int, initialDelay time.Duration) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.retries = uint(n)
		o.initialDelay = initialDelay
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Store is the remote store for entities of type P.
type Store[T any, P types.EntityPtr[T]] struct {
	base     *url.URL
	endpoint string
	client   types.Doer
	opts     options
	logger   *zap.Logger
}

// New returns a Store sending requests for P's endpoint to baseURL through
// client. A nil client means http.DefaultClient.
func New[T any, P types.EntityPtr[T]](baseURL string, client types.Doer, opts ...Option) (*Store[T, P], error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}

	o := options{
		errorHandler: DefaultErrorHandler{},
		initialDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	endpoint := o.endpoint
	if endpoint == "" {
		endpoint = types.Blank[T, P]().Endpoint()
	}

	return &Store[T, P]{
		base:     base,
		endpoint: endpoint,
		client:   client,
		opts:     o,
		logger:   o.logger.With(zap.String("endpoint", endpoint)),
	}, nil
}

// Endpoint returns the resource name requests are sent to.
func (s *Store[T, P]) Endpoint() string {
	return s.endpoint
}

func (s *Store[T, P]) url(query url.Values, elem ...string) string {
	u := s.base.JoinPath(append([]string{s.endpoint}, elem...)...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// request describes one HTTP exchange.
type request struct {
	method      string
	url         string
	body        io.Reader
	contentType string
}

func jsonRequest(method, u string, payload any) (request, error) {
	r := request{method: method, url: u}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return r, fmt.Errorf("encode request: %w", err)
		}
		r.body = bytes.NewReader(data)
		r.contentType = "application/json"
	}
	return r, nil
}

// do performs r and returns the decoded JSON response, or nil for an empty
// body. GETs are retried per WithRetries.
func (s *Store[T, P]) do(ctx context.Context, r request) (any, error) {
	if r.method != http.MethodGet || s.opts.retries == 0 {
		return s.once(ctx, r)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.opts.initialDelay
	attempt := 0
	return backoff.Retry(ctx, func() (any, error) {
		attempt++
		v, err := s.once(ctx, r)
		if err == nil {
			return v, nil
		}
		var he *types.HTTPError
		if errors.As(err, &he) && !retryable(he.Status) {
			return nil, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		s.logger.Debug("retrying request",
			zap.String("url", r.url), zap.Int("attempt", attempt), zap.Error(err))
		return nil, err
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(s.opts.retries+1))
}

func (s *Store[T, P]) once(ctx context.Context, r request) (any, error) {
	if seeker, ok := r.body.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", r.method, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, r.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", r.url, err)
	}
	s.logger.Debug("remote request",
		zap.String("method", r.method),
		zap.String("url", r.url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, s.opts.errorHandler.Handle(ctx, resp, body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	v, err := hydrate.DecodeAny(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", r.url, err)
	}
	return v, nil
}

// warnPartial logs hydration field failures without failing the call.
func (s *Store[T, P]) warnPartial(op string, err error) {
	if err != nil {
		s.logger.Warn("response hydrated with defaults", zap.String("op", op), zap.Error(err))
	}
}

// GetOne fetches the entity with the given id.
func (s *Store[T, P]) GetOne(ctx context.Context, id int64) (P, error) {
	r, _ := jsonRequest(http.MethodGet, s.url(nil, strconv.FormatInt(id, 10)), nil)
	v, err := s.do(ctx, r)
	if err != nil {
		return nil, err
	}
	rec, ok := unwrapObject(v)
	if !ok {
		return nil, fmt.Errorf("get %s/%d: unexpected response %T", s.endpoint, id, v)
	}
	e, err := hydrate.One[T, P](rec)
	s.warnPartial("get", err)
	return e, nil
}

// GetAll fetches one page of entities. Pages below 1 are treated as 1.
func (s *Store[T, P]) GetAll(ctx context.Context, page int) (*types.Page[P], error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{"page": {strconv.Itoa(page)}}
	return s.fetchPage(ctx, "list", s.url(q))
}

// GetPage re-fetches the page described by page, keeping its page size. A
// page size of 1 is the defaulted value and is not sent.
func (s *Store[T, P]) GetPage(ctx context.Context, page *types.Page[P]) (*types.Page[P], error) {
	current, perPage := 1, 0
	if page != nil {
		current, perPage = max(page.CurrentPage, 1), page.PerPage
	}
	q := url.Values{"page": {strconv.Itoa(current)}}
	if perPage > 1 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	return s.fetchPage(ctx, "page", s.url(q))
}

func (s *Store[T, P]) fetchPage(ctx context.Context, op, u string) (*types.Page[P], error) {
	r, _ := jsonRequest(http.MethodGet, u, nil)
	v, err := s.do(ctx, r)
	if err != nil {
		return nil, err
	}
	return s.decodePage(op, v)
}

func (s *Store[T, P]) decodePage(op string, v any) (*types.Page[P], error) {
	rec, ok := unwrapPage(v)
	if !ok {
		return nil, fmt.Errorf("%s %s: unexpected response %T", op, s.endpoint, v)
	}
	page, err := hydrate.NewPage[T, P](rec)
	s.warnPartial(op, err)
	return page, nil
}

// Save creates e (ID 0) or updates it, and returns the ID the server
// reports, or 0 when the response carries none.
func (s *Store[T, P]) Save(ctx context.Context, e P) (int64, error) {
	if e == nil {
		return 0, types.ErrNilEntity
	}
	u := s.url(nil)
	if e.GetID() != 0 {
		u = s.url(nil, strconv.FormatInt(e.GetID(), 10))
	}
	r, err := jsonRequest(http.MethodPost, u, e.PrepareForSave())
	if err != nil {
		return 0, err
	}
	v, err := s.do(ctx, r)
	if err != nil {
		return 0, err
	}
	id := savedID(v)
	if id == 0 && e.GetID() != 0 && v == nil {
		id = e.GetID()
	}
	return id, nil
}

// Delete removes e and reports whether the server confirmed it.
func (s *Store[T, P]) Delete(ctx context.Context, e P) (bool, error) {
	if e == nil {
		return false, types.ErrNilEntity
	}
	if e.GetID() == 0 {
		return false, types.ErrNotPersisted
	}
	r, _ := jsonRequest(http.MethodDelete, s.url(nil, strconv.FormatInt(e.GetID(), 10)), nil)
	v, err := s.do(ctx, r)
	if err != nil {
		return false, err
	}
	return deletedCount(v, 1) > 0, nil
}

// DeleteMultiple removes es in one request and returns how many the server
// reports deleted.
func (s *Store[T, P]) DeleteMultiple(ctx context.Context, es []P) (int, error) {
	ids := make([]int64, 0, len(es))
	for _, e := range es {
		if e != nil && e.GetID() != 0 {
			ids = append(ids, e.GetID())
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	r, err := jsonRequest(http.MethodPost, s.url(nil, "delete-multiple"), map[string]any{"ids": ids})
	if err != nil {
		return 0, err
	}
	v, err := s.do(ctx, r)
	if err != nil {
		return 0, err
	}
	return deletedCount(v, len(ids)), nil
}

// Search posts criteria and returns the requested page of matches.
func (s *Store[T, P]) Search(ctx context.Context, criteria types.Record, page int) (*types.Page[P], error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{"page": {strconv.Itoa(page)}}
	r, err := jsonRequest(http.MethodPost, s.url(q, "search"), nonNil(criteria))
	if err != nil {
		return nil, err
	}
	v, err := s.do(ctx, r)
	if err != nil {
		return nil, err
	}
	return s.decodePage("search", v)
}

// SearchWithoutPaginate posts criteria and returns every match.
func (s *Store[T, P]) SearchWithoutPaginate(ctx context.Context, criteria types.Record) ([]P, error) {
	q := url.Values{"paginate": {"off"}}
	r, err := jsonRequest(http.MethodPost, s.url(q, "search"), nonNil(criteria))
	if err != nil {
		return nil, err
	}
	v, err := s.do(ctx, r)
	if err != nil {
		return nil, err
	}
	list, ok := unwrapList(v)
	if !ok {
		return nil, fmt.Errorf("search %s: unexpected response %T", s.endpoint, v)
	}
	recs, err := hydrate.Records(list)
	s.warnPartial("search", err)
	items, err := hydrate.HydrateArray[T, P](recs)
	s.warnPartial("search", err)
	return items, nil
}

func nonNil(rec types.Record) types.Record {
	if rec == nil {
		return types.Record{}
	}
	return rec
}
