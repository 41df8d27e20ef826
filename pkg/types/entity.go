package types

// Record is the plain, JSON-shaped form of an entity as it travels over the
// wire or sits in the local cache.
type Record = map[string]any

// Policy selects where an entity type is served from.
type Policy string

// Persistence policies.
const (
	// PolicyLocal serves reads from the local cache; writes go to the remote
	// API first and are mirrored locally once the server assigns an ID.
	PolicyLocal Policy = "local"

	// PolicyRemote makes the remote API authoritative for every operation.
	PolicyRemote Policy = "remote"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyLocal || p == PolicyRemote
}

// Entity is a typed record with identity, a persistence policy and explicit
// init/save projections.
type Entity interface {
	// GetID returns the numeric identifier. Zero means not yet persisted.
	GetID() int64

	// SetID assigns the identifier, typically the one returned by the server.
	SetID(id int64)

	// Policy returns the persistence policy of the entity type.
	Policy() Policy

	// Endpoint returns the remote resource name, e.g. "contacts".
	Endpoint() string

	// TypeName returns the Title-case type name used to derive the local
	// cache key, e.g. "ContactMessage".
	TypeName() string

	// Init maps rec onto the entity field by field. Fields absent from rec
	// take their declared default so no field is left unset. A value of the
	// wrong type also takes the default and is reported through a
	// *HydrationError; the entity is still usable. Init is idempotent.
	Init(rec Record) error

	// Assign overlays the keys present in rec onto the entity. Fields that
	// rec does not name, UI-only fields included, keep their current value.
	// Mismatched values keep the current value and are reported like Init.
	Assign(rec Record) error

	// PrepareForSave projects the entity into the record sent to the remote
	// API and stored in the local cache. UI-only fields are dropped.
	PrepareForSave() Record
}

// EntityPtr constrains a type parameter to a pointer to T that implements
// Entity, so generic code can build a fresh instance per item with P(new(T)).
type EntityPtr[T any] interface {
	*T
	Entity
}

// Blank returns a freshly defaulted entity of type P.
func Blank[T any, P EntityPtr[T]]() P {
	e := P(new(T))
	_ = e.Init(Record{})
	return e
}
