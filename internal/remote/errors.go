package remote

import (
	"context"
	"net/http"

	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// DefaultErrorHandler maps HTTP status codes to the types.Err* kinds and
// extracts the message and field errors from a JSON error body of the form
// {"message": "...", "errors": {"field": ["..."]}}.
type DefaultErrorHandler struct{}

var _ types.ErrorHandler = DefaultErrorHandler{}

// Handle implements types.ErrorHandler.
func (DefaultErrorHandler) Handle(_ context.Context, resp *http.Response, body []byte) error {
	he := &types.HTTPError{Status: resp.StatusCode}

	var rec types.Record
	if len(body) > 0 {
		rec, _ = hydrate.Decode(body)
	}
	m := hydrate.Map(rec)
	he.Message = m.String("message", "")
	if he.Message == "" {
		he.Message = m.String("error", "")
	}
	if errs := m.Record("errors"); len(errs) > 0 {
		he.Fields = make(map[string][]string, len(errs))
		fm := hydrate.Map(errs)
		for field := range errs {
			msgs := fm.Strings(field)
			if len(msgs) == 0 {
				msgs = []string{fm.String(field, "")}
			}
			he.Fields[field] = msgs
		}
	}

	he.Kind = kindFor(resp.StatusCode, he)
	return he
}

func kindFor(status int, he *types.HTTPError) error {
	switch {
	case status == http.StatusBadRequest:
		return types.ErrBadRequest
	case status == http.StatusUnauthorized:
		return types.ErrUnauthorized
	case status == http.StatusForbidden:
		return types.ErrForbidden
	case status == http.StatusNotFound:
		return types.ErrRemoteNotFound
	case status == http.StatusMethodNotAllowed:
		return types.ErrMethodNotAllowed
	case status == http.StatusUnprocessableEntity:
		if len(he.Fields) > 0 {
			return types.ErrAppValidation
		}
		return types.ErrUnprocessable
	case status == http.StatusFailedDependency, status == http.StatusBadGateway:
		return types.ErrThirdParty
	case status >= 500:
		return types.ErrServer
	default:
		return types.ErrAPIMessage
	}
}

// retryable reports whether a failed status is worth retrying.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
