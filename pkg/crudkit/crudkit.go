// Package crudkit wires the stores and the proxy together from a
// types.Config: it opens the configured key/value backend, builds an HTTP
// client for the API and returns a ready proxy for an entity type.
package crudkit

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/mesh-intelligence/crudkit/internal/jsonfile"
	"github.com/mesh-intelligence/crudkit/internal/localstore"
	"github.com/mesh-intelligence/crudkit/internal/rediskv"
	"github.com/mesh-intelligence/crudkit/internal/remote"
	"github.com/mesh-intelligence/crudkit/internal/sqlite"
	"github.com/mesh-intelligence/crudkit/pkg/proxy"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Version is the crudkit release.
const Version = "0.3.0"

// ErrNoAPI is returned by NewService when the config has no api_base_url.
var ErrNoAPI = errors.New("api_base_url is not configured")

// OpenKV opens the key/value backend named by cfg.Backend. The caller closes
// it.
func OpenKV(cfg types.Config, logger *zap.Logger) (types.KVStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case types.BackendSQLite:
		b := sqlite.NewBackend(logger)
		if err := b.Attach(cfg); err != nil {
			return nil, fmt.Errorf("attach sqlite: %w", err)
		}
		return b, nil
	case types.BackendFile:
		s, err := jsonfile.Open(cfg.DataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("open file backend: %w", err)
		}
		return s, nil
	case types.BackendRedis:
		s := rediskv.Dial(cfg.RedisAddr, rediskv.WithLogger(logger))
		if err := s.Ping(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrBackendUnknown, cfg.Backend)
	}
}

// Option configures NewService.
type Option func(*options)

type options struct {
	endpoint string
	key      string
	policy   types.Policy
	locale   language.Tag
	client   types.Doer
	notifier types.Notifier
	spinner  types.Spinner
	handler  types.ErrorHandler
	logger   *zap.Logger
}

// WithEndpoint overrides the API resource name of the entity type.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithKey overrides the local cache key of the entity type.
func WithKey(key string) Option {
	return func(o *options) { o.key = key }
}

// WithPolicy overrides the policy of the entity type.
func WithPolicy(p types.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithLocale sets the collation locale for sorted local reads.
func WithLocale(tag language.Tag) Option {
	return func(o *options) { o.locale = tag }
}

// WithClient replaces the HTTP client built from the config.
func WithClient(c types.Doer) Option {
	return func(o *options) { o.client = c }
}

// WithNotifier sets the notification sink.
func WithNotifier(n types.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithSpinner sets the busy indicator.
func WithSpinner(s types.Spinner) Option {
	return func(o *options) { o.spinner = s }
}

// WithErrorHandler sets the mapper for failed API responses.
func WithErrorHandler(h types.ErrorHandler) Option {
	return func(o *options) { o.handler = h }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Service is a proxy for one entity type together with the local store it
// owns.
type Service[T any, P types.EntityPtr[T]] struct {
	*proxy.Proxy[T, P]
	local *localstore.Store[T, P]
}

// Close ends the watch subscriptions of the local store. The key/value
// backend is not closed.
func (s *Service[T, P]) Close() {
	if s.local != nil {
		s.local.Close()
	}
}

// NewService builds the remote store, the local store over kv (when the
// policy is local) and the proxy for P. kv may be nil for remote policy.
func NewService[T any, P types.EntityPtr[T]](cfg types.Config, kv types.KVStore, opts ...Option) (*Service[T, P], error) {
	o := options{locale: language.Und}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if cfg.APIBaseURL == "" {
		return nil, ErrNoAPI
	}
	if o.client == nil {
		o.client = NewClient(cfg, o.logger)
	}

	policy := o.policy
	if policy == "" {
		policy = types.Blank[T, P]().Policy()
	}

	remoteOpts := []remote.Option{
		remote.WithLogger(o.logger),
		remote.WithRetries(cfg.Retries, defaultRetryDelay),
	}
	if o.endpoint != "" {
		remoteOpts = append(remoteOpts, remote.WithEndpoint(o.endpoint))
	}
	if o.handler != nil {
		remoteOpts = append(remoteOpts, remote.WithErrorHandler(o.handler))
	}
	rs, err := remote.New[T, P](cfg.APIBaseURL, o.client, remoteOpts...)
	if err != nil {
		return nil, err
	}

	svc := &Service[T, P]{}
	var local proxy.LocalStore[P]
	if policy == types.PolicyLocal {
		if kv == nil {
			return nil, proxy.ErrNoLocalStore
		}
		localOpts := []localstore.Option{
			localstore.WithLogger(o.logger),
			localstore.WithLocale(o.locale),
		}
		if o.key != "" {
			localOpts = append(localOpts, localstore.WithKey(o.key))
		}
		svc.local = localstore.New[T, P](kv, localOpts...)
		local = svc.local
	}

	proxyOpts := []proxy.Option{proxy.WithLogger(o.logger), proxy.WithPolicy(policy)}
	if o.notifier != nil {
		proxyOpts = append(proxyOpts, proxy.WithNotifier(o.notifier))
	}
	if o.spinner != nil {
		proxyOpts = append(proxyOpts, proxy.WithSpinner(o.spinner))
	}
	p, err := proxy.New[T, P](local, rs, proxyOpts...)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Proxy = p
	return svc, nil
}
