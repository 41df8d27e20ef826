package crudkit

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = 250 * time.Millisecond
)

// NewClient returns an HTTP client for the API in cfg. Every request gets a
// fresh X-Request-ID and, when cfg.APIToken is set, a bearer token.
func NewClient(cfg types.Config, logger *zap.Logger) *http.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &transport{
			base:   http.DefaultTransport,
			token:  cfg.APIToken,
			logger: logger,
		},
	}
}

// transport decorates requests with auth and correlation headers.
type transport struct {
	base   http.RoundTripper
	token  string
	logger *zap.Logger
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	id := req.Header.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
		req.Header.Set(HeaderRequestID, id)
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	t.logger.Debug("http request",
		zap.String("request_id", id),
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()))
	return t.base.RoundTrip(req)
}
