// Package document provides Document, a schemaless entity for resources
// whose fields are not known at compile time. The command-line tool uses it
// to work with any REST resource.
//
// Document declares the "documents" endpoint and remote policy. Callers
// serving another resource override them when building the stores and the
// proxy: remote.WithEndpoint, localstore.WithKey and proxy.WithPolicy.
package document

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Default resource names.
const (
	DefaultEndpoint = "documents"
	DefaultTypeName = "Document"
)

// Document is a record with a numeric id and arbitrary other fields.
type Document struct {
	ID     int64
	Fields types.Record
}

var _ types.Entity = (*Document)(nil)

// New returns a Document holding a copy of fields.
func New(fields types.Record) *Document {
	d := &Document{}
	_ = d.Init(fields)
	return d
}

func (d *Document) GetID() int64         { return d.ID }
func (d *Document) SetID(id int64)       { d.ID = id }
func (d *Document) Policy() types.Policy { return types.PolicyRemote }
func (d *Document) Endpoint() string     { return DefaultEndpoint }
func (d *Document) TypeName() string     { return DefaultTypeName }

// Init takes id from rec and keeps every other key as a field.
func (d *Document) Init(rec types.Record) error {
	d.ID = 0
	d.Fields = make(types.Record, len(rec))
	return d.Assign(rec)
}

// Assign sets the keys present in rec and keeps the other fields.
func (d *Document) Assign(rec types.Record) error {
	m := hydrate.Map(rec)
	d.ID = m.Int64("id", d.ID)
	if d.Fields == nil {
		d.Fields = make(types.Record, len(rec))
	}
	for k, v := range rec {
		if k != "id" {
			d.Fields[k] = v
		}
	}
	return m.Err()
}

// PrepareForSave returns the fields plus id.
func (d *Document) PrepareForSave() types.Record {
	out := make(types.Record, len(d.Fields)+1)
	maps.Copy(out, d.Fields)
	out["id"] = d.ID
	return out
}

// Get returns the value of field, or nil.
func (d *Document) Get(field string) any {
	if field == "id" {
		return d.ID
	}
	return d.Fields[field]
}

// Set assigns field. Setting "id" changes the ID.
func (d *Document) Set(field string, v any) error {
	if field == "id" {
		m := hydrate.Map(types.Record{"id": v})
		d.ID = m.Int64("id", d.ID)
		return m.Err()
	}
	if d.Fields == nil {
		d.Fields = types.Record{}
	}
	d.Fields[field] = v
	return nil
}

// Keys returns the field names in sorted order, id first.
func (d *Document) Keys() []string {
	keys := slices.Sorted(maps.Keys(d.Fields))
	return append([]string{"id"}, keys...)
}

// MarshalJSON encodes the saved projection.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.PrepareForSave())
}

// UnmarshalJSON decodes a JSON object, keeping numbers exact.
func (d *Document) UnmarshalJSON(data []byte) error {
	rec, err := hydrate.Decode(data)
	if err != nil {
		return err
	}
	return d.Init(rec)
}
