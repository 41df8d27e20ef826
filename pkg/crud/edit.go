package crud

import (
	"context"
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// EditOption configures an Edit.
type EditOption func(*editOptions)

type editOptions struct {
	validator types.Validator
	notifier  types.Notifier
	logger    *zap.Logger
}

// WithValidator sets the validator run before every save.
func WithValidator(v types.Validator) EditOption {
	return func(o *editOptions) { o.validator = v }
}

// WithEditNotifier sets where validation failures are reported.
func WithEditNotifier(n types.Notifier) EditOption {
	return func(o *editOptions) { o.notifier = n }
}

// WithEditLogger sets the logger.
func WithEditLogger(l *zap.Logger) EditOption {
	return func(o *editOptions) { o.logger = l }
}

// Edit is the state behind an edit form for one entity.
type Edit[T any, P types.EntityPtr[T]] struct {
	da        DataAccess[P]
	validator types.Validator
	notifier  types.Notifier
	logger    *zap.Logger
	entity    P
}

// NewEdit returns an Edit holding a blank entity.
func NewEdit[T any, P types.EntityPtr[T]](da DataAccess[P], opts ...EditOption) *Edit[T, P] {
	o := editOptions{notifier: types.NopNotifier{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Edit[T, P]{
		da:        da,
		validator: o.validator,
		notifier:  o.notifier,
		logger:    o.logger,
		entity:    types.Blank[T, P](),
	}
}

// Entity returns the entity being edited.
func (e *Edit[T, P]) Entity() P {
	return e.entity
}

// Load fetches the entity with id. Id 0 starts a new blank entity.
func (e *Edit[T, P]) Load(ctx context.Context, id int64) (P, error) {
	if id == 0 {
		e.entity = types.Blank[T, P]()
		return e.entity, nil
	}
	ent, err := e.da.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	e.entity = ent
	return ent, nil
}

// Set overlays rec onto the entity being edited.
func (e *Edit[T, P]) Set(rec types.Record) error {
	return hydrate.Hydrate(e.entity, rec)
}

// Validate runs the validator over the entity's saved projection.
func (e *Edit[T, P]) Validate() error {
	if e.validator == nil {
		return nil
	}
	ok, fields := e.validator.Validate(e.entity.PrepareForSave())
	if ok {
		return nil
	}
	return &types.ValidationError{Fields: fields}
}

// Save validates and saves the entity. An invalid entity is not sent and
// the failure is both notified and returned as a *types.ValidationError.
func (e *Edit[T, P]) Save(ctx context.Context) (int64, error) {
	if err := e.Validate(); err != nil {
		e.notifier.Add("Invalid", err.Error(), types.NotifyError)
		return 0, err
	}
	return e.da.Save(ctx, e.entity)
}

// Toggle flips the boolean field and saves. When the save fails the field is
// restored, so the form never shows a value the store does not hold.
func (e *Edit[T, P]) Toggle(ctx context.Context, field string) error {
	raw, ok := e.entity.PrepareForSave()[field]
	if !ok {
		return fmt.Errorf("toggle %s: no such field", field)
	}
	old, err := cast.ToBoolE(raw)
	if err != nil {
		return fmt.Errorf("toggle %s: %w", field, err)
	}
	if err := hydrate.Hydrate(e.entity, types.Record{field: !old}); err != nil {
		return fmt.Errorf("toggle %s: %w", field, err)
	}

	if _, err := e.da.Save(ctx, e.entity); err != nil {
		if rerr := hydrate.Hydrate(e.entity, types.Record{field: old}); rerr != nil {
			e.logger.Error("toggle revert failed", zap.String("field", field), zap.Error(rerr))
		}
		return err
	}
	return nil
}
