package types

// ChangeKind identifies the mutation behind a ChangeEvent.
type ChangeKind string

// Change kinds.
const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeReplaced ChangeKind = "replaced"
)

// ChangeEvent describes a mutation of a local cache entry. ID is zero for
// ChangeReplaced, where the whole collection was rewritten.
type ChangeEvent struct {
	Kind ChangeKind `json:"kind"`
	Key  string     `json:"key"`
	ID   int64      `json:"id"`
}
