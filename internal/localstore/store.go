// Package localstore implements the local cache store: one durable JSON blob
// per entity type, kept in a types.KVStore, with CRUD, field lookup,
// filtering, locale-aware sorting and change notifications.
//
// The blob is re-read and re-parsed on every call; the parsed mirror is never
// trusted across calls. A mutex serializes each read-modify-write cycle.
package localstore

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mesh-intelligence/crudkit/internal/notify"
	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *zap.Logger
	locale language.Tag
	key    string
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLocale sets the collation locale used by the sorted reads. The default
// is the root locale.
func WithLocale(tag language.Tag) Option {
	return func(o *options) { o.locale = tag }
}

// WithKey overrides the cache key derived from the entity type name.
func WithKey(key string) Option {
	return func(o *options) { o.key = key }
}

// Store is the local cache store for entities of type P.
type Store[T any, P types.EntityPtr[T]] struct {
	mu       sync.Mutex
	kv       types.KVStore
	key      string
	mirror   []P
	collator *collate.Collator
	bus      *notify.Broadcaster
	logger   *zap.Logger
}

// New returns a Store for entity type P over kv.
func New[T any, P types.EntityPtr[T]](kv types.KVStore, opts ...Option) *Store[T, P] {
	o := options{locale: language.Und}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	key := o.key
	if key == "" {
		key = KeyFor(types.Blank[T, P]().TypeName())
	}
	return &Store[T, P]{
		kv:       kv,
		key:      key,
		mirror:   []P{},
		collator: collate.New(o.locale, collate.Numeric),
		bus:      notify.New(o.logger),
		logger:   o.logger.With(zap.String("key", key)),
	}
}

// Key returns the cache key this store reads and writes.
func (s *Store[T, P]) Key() string {
	return s.key
}

// ReadAll parses the stored blob and returns its entities. An absent key or
// a blob that cannot be parsed yields an empty slice; ReadAll never fails.
func (s *Store[T, P]) ReadAll() []P {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// readLocked re-parses the blob into a fresh mirror. The caller must hold s.mu.
func (s *Store[T, P]) readLocked() []P {
	s.mirror = []P{}

	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		s.logger.Warn("local cache read failed", zap.Error(err))
		return s.mirror
	}
	if !ok || raw == "" {
		return s.mirror
	}

	v, err := hydrate.DecodeAny([]byte(raw))
	if err != nil {
		s.logger.Warn("local cache blob is not valid JSON", zap.Error(err))
		return s.mirror
	}
	recs, err := hydrate.Records(v)
	if err != nil {
		s.logger.Warn("local cache blob has malformed records", zap.Error(err))
		if _, isList := v.([]any); !isList {
			return s.mirror
		}
	}
	items, err := hydrate.HydrateArray[T, P](recs)
	if err != nil {
		s.logger.Warn("local cache records hydrated with defaults", zap.Error(err))
	}
	s.mirror = items
	return s.mirror
}

// persistLocked writes the mirror back to the blob. The caller must hold s.mu.
func (s *Store[T, P]) persistLocked() error {
	recs := make([]types.Record, len(s.mirror))
	for i, e := range s.mirror {
		recs[i] = e.PrepareForSave()
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.kv.Set(s.key, string(data)); err != nil {
		return fmt.Errorf("persist %s: %w", s.key, err)
	}
	return nil
}

// ReadAllSortedBy returns every entity ordered by field using numeric-aware
// collation, so "2" sorts before "10". The mirror is sorted in place and
// returned.
func (s *Store[T, P]) ReadAllSortedBy(field string) []P {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readLocked()
	s.sortLocked(field)
	return s.mirror
}

// ReadAllSortedByDesc is ReadAllSortedBy reversed.
func (s *Store[T, P]) ReadAllSortedByDesc(field string) []P {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readLocked()
	s.sortLocked(field)
	slices.Reverse(s.mirror)
	return s.mirror
}

func (s *Store[T, P]) sortLocked(field string) {
	type keyed struct {
		key  string
		item P
	}
	ks := make([]keyed, len(s.mirror))
	for i, e := range s.mirror {
		ks[i] = keyed{key: fieldString(e.PrepareForSave()[field]), item: e}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		return s.collator.CompareString(a.key, b.key)
	})
	for i, k := range ks {
		s.mirror[i] = k.item
	}
}

// FindByID returns the entity with the given id. On a miss it returns a
// freshly defaulted entity whose GetID() is 0, never nil; use Lookup to tell
// a miss apart explicitly.
func (s *Store[T, P]) FindByID(id int64) P {
	if e, ok := s.Lookup(id); ok {
		return e
	}
	return types.Blank[T, P]()
}

// Lookup returns the entity with the given id and whether it was found.
func (s *Store[T, P]) Lookup(id int64) (P, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.readLocked() {
		if e.GetID() == id {
			return e, true
		}
	}
	return nil, false
}

// FindByField returns the first entity whose field equals value exactly
// (case-sensitive, compared in string form).
func (s *Store[T, P]) FindByField(field string, value any) (P, bool) {
	want := fieldString(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.readLocked() {
		if v, ok := e.PrepareForSave()[field]; ok && fieldString(v) == want {
			return e, true
		}
	}
	return nil, false
}

// FilterByField returns every entity whose field equals value. The result is
// empty, not nil, when nothing matches.
func (s *Store[T, P]) FilterByField(field string, value any) []P {
	want := fieldString(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []P{}
	for _, e := range s.readLocked() {
		if v, ok := e.PrepareForSave()[field]; ok && fieldString(v) == want {
			out = append(out, e)
		}
	}
	return out
}

// Save writes e into the cache. An unsaved entity (ID 0) is appended as a
// copy carrying assignedID; a persisted one replaces the cached entry with
// the same ID, or is appended when no entry matches.
func (s *Store[T, P]) Save(e P, assignedID int64) error {
	if e == nil {
		return types.ErrNilEntity
	}

	s.mu.Lock()
	s.readLocked()
	ev := types.ChangeEvent{Key: s.key}
	if e.GetID() == 0 {
		if assignedID == 0 {
			s.mu.Unlock()
			return fmt.Errorf("save %s: %w", s.key, types.ErrInvalidID)
		}
		cp, err := hydrate.Clone[T, P](e)
		if err != nil {
			s.logger.Warn("cloned entity hydrated with defaults", zap.Error(err))
		}
		cp.SetID(assignedID)
		s.mirror = append(s.mirror, cp)
		ev.Kind, ev.ID = types.ChangeCreated, assignedID
	} else {
		idx := slices.IndexFunc(s.mirror, func(m P) bool { return m.GetID() == e.GetID() })
		if idx >= 0 {
			s.mirror[idx] = e
			ev.Kind = types.ChangeUpdated
		} else {
			s.mirror = append(s.mirror, e)
			ev.Kind = types.ChangeCreated
		}
		ev.ID = e.GetID()
	}
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("local cache saved", zap.Int64("id", ev.ID), zap.String("kind", string(ev.Kind)))
	s.bus.Publish(ev)
	return nil
}

// Delete removes e, matched by identity or ID, and reports true. A nil
// entity is a no-op that reports false.
func (s *Store[T, P]) Delete(e P) (bool, error) {
	if e == nil {
		return false, nil
	}

	s.mu.Lock()
	s.readLocked()
	s.mirror = slices.DeleteFunc(s.mirror, func(m P) bool {
		return types.Entity(m) == types.Entity(e) || (e.GetID() != 0 && m.GetID() == e.GetID())
	})
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	s.logger.Debug("local cache deleted", zap.Int64("id", e.GetID()))
	s.bus.Publish(types.ChangeEvent{Kind: types.ChangeDeleted, Key: s.key, ID: e.GetID()})
	return true, nil
}

// ReplaceAll overwrites the cache with items.
func (s *Store[T, P]) ReplaceAll(items []P) error {
	s.mu.Lock()
	s.mirror = slices.DeleteFunc(slices.Clone(items), func(m P) bool { return m == nil })
	err := s.persistLocked()
	n := len(s.mirror)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("local cache replaced", zap.Int("count", n))
	s.bus.Publish(types.ChangeEvent{Kind: types.ChangeReplaced, Key: s.key})
	return nil
}

// Watch subscribes to change events. Every successful mutation emits one
// event after it has been persisted. Call cancel to unsubscribe.
func (s *Store[T, P]) Watch() (<-chan types.ChangeEvent, func()) {
	return s.bus.Subscribe()
}

// Close ends every Watch subscription. The underlying KVStore is owned by
// the caller and is not closed.
func (s *Store[T, P]) Close() {
	s.bus.Close()
}

// fieldString renders a field value for comparison and collation.
func fieldString(v any) string {
	if v == nil {
		return ""
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
