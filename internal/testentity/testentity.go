// Package testentity provides small entity types used by the crudkit tests:
// Contact is cached locally, Ticket is served straight from the remote API.
package testentity

import (
	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Contact is a locally cached entity with a collection field.
type Contact struct {
	ID       int64
	Name     string
	Email    string
	Tags     []string
	Active   bool
	Selected bool // UI-only, never saved
}

func (c *Contact) GetID() int64         { return c.ID }
func (c *Contact) SetID(id int64)       { c.ID = id }
func (c *Contact) Policy() types.Policy { return types.PolicyLocal }
func (c *Contact) Endpoint() string     { return "contacts" }
func (c *Contact) TypeName() string     { return "Contact" }

func (c *Contact) Init(rec types.Record) error {
	*c = Contact{Tags: []string{}}
	return c.Assign(rec)
}

func (c *Contact) Assign(rec types.Record) error {
	m := hydrate.Map(rec)
	c.ID = m.Int64("id", c.ID)
	c.Name = m.String("name", c.Name)
	c.Email = m.String("email", c.Email)
	if m.Has("tags") {
		c.Tags = m.Strings("tags")
	}
	c.Active = m.Bool("active", c.Active)
	return m.Err()
}

func (c *Contact) PrepareForSave() types.Record {
	tags := make([]any, len(c.Tags))
	for i, t := range c.Tags {
		tags[i] = t
	}
	return types.Record{
		"id":     c.ID,
		"name":   c.Name,
		"email":  c.Email,
		"tags":   tags,
		"active": c.Active,
	}
}

// Ticket is a remote-authoritative entity.
type Ticket struct {
	ID      int64
	Subject string
	Closed  bool
}

func (t *Ticket) GetID() int64         { return t.ID }
func (t *Ticket) SetID(id int64)       { t.ID = id }
func (t *Ticket) Policy() types.Policy { return types.PolicyRemote }
func (t *Ticket) Endpoint() string     { return "tickets" }
func (t *Ticket) TypeName() string     { return "SupportTicket" }

func (t *Ticket) Init(rec types.Record) error {
	*t = Ticket{}
	return t.Assign(rec)
}

func (t *Ticket) Assign(rec types.Record) error {
	m := hydrate.Map(rec)
	t.ID = m.Int64("id", t.ID)
	t.Subject = m.String("subject", t.Subject)
	t.Closed = m.Bool("closed", t.Closed)
	return m.Err()
}

func (t *Ticket) PrepareForSave() types.Record {
	return types.Record{
		"id":      t.ID,
		"subject": t.Subject,
		"closed":  t.Closed,
	}
}
