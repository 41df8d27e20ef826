package types

// note is a minimal entity for exercising Page.
type note struct {
	ID   int64
	Text string
}

func (n *note) GetID() int64        { return n.ID }
func (n *note) SetID(id int64)      { n.ID = id }
func (n *note) Policy() Policy      { return PolicyRemote }
func (n *note) Endpoint() string    { return "notes" }
func (n *note) TypeName() string    { return "Note" }
func (n *note) Init(Record) error   { return nil }
func (n *note) Assign(Record) error { return nil }
func (n *note) PrepareForSave() Record {
	return Record{"id": n.ID, "text": n.Text}
}
