// Package hydrate turns raw JSON-shaped records into live typed entities and
// pagination state.
//
// Entities map their own fields explicitly in Init using a Mapper, which
// coerces each raw value to the field type and falls back to the declared
// default when the value is absent, null or of the wrong type. Wrong-typed
// values are collected into a *types.HydrationError so callers can log them
// without losing the rest of the record:
//
//	func (c *Contact) Init(rec types.Record) error {
//		m := hydrate.Map(rec)
//		c.ID = m.Int64("id", 0)
//		c.Name = m.String("name", "")
//		c.Tags = m.Strings("tags")
//		return m.Err()
//	}
//
// Assign is the overlay form: it passes the current value as the default, so
// keys absent from the record leave the field alone. Hydrate goes through it.
//
// HydrateArray builds one fresh entity per record, so no state can leak from
// one item into the next.
package hydrate
