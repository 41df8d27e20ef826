package types

import (
	"context"
	"net/http"
)

// KVStore is the durable key/value blob the local cache is stored in.
// Get reports ok=false for an absent key.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Doer sends HTTP requests. *http.Client satisfies it; an application wraps
// it to attach bearer tokens and content headers.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NotifyKind is the severity of a user-visible notification.
type NotifyKind string

// Notification severities.
const (
	NotifySuccess NotifyKind = "success"
	NotifyInfo    NotifyKind = "info"
	NotifyWarning NotifyKind = "warning"
	NotifyError   NotifyKind = "error"
)

// Notifier shows a notification to the user.
type Notifier interface {
	Add(title, message string, kind NotifyKind)
}

// Spinner toggles a named busy indicator.
type Spinner interface {
	On(name string)
	Off(name string)
}

// Validator checks a record against the rules of an entity type and returns
// the names of the invalid fields.
type Validator interface {
	Validate(rec Record) (ok bool, invalidFields []string)
}

// ErrorHandler maps a failed HTTP exchange to a typed error.
type ErrorHandler interface {
	Handle(ctx context.Context, resp *http.Response, body []byte) error
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Add implements Notifier.
func (NopNotifier) Add(string, string, NotifyKind) {}

// NopSpinner ignores spinner toggles.
type NopSpinner struct{}

// On implements Spinner.
func (NopSpinner) On(string) {}

// Off implements Spinner.
func (NopSpinner) Off(string) {}
