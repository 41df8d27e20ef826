package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Mapper reads typed fields out of a raw record and remembers every field
// that had to fall back to its default because of a type mismatch.
type Mapper struct {
	rec  types.Record
	errs types.HydrationError
}

// Map returns a Mapper over rec. A nil rec behaves as an empty record.
func Map(rec types.Record) *Mapper {
	if rec == nil {
		rec = types.Record{}
	}
	return &Mapper{rec: rec}
}

// Has reports whether key is present in the record, even with a null value.
func (m *Mapper) Has(key string) bool {
	_, ok := m.rec[key]
	return ok
}

// lookup returns the raw value for key and whether it is usable. Absent keys
// and null values are not usable and never produce an error.
func (m *Mapper) lookup(key string) (any, bool) {
	v, ok := m.rec[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (m *Mapper) fail(key string, v any, want string) {
	m.errs.Add(key, fmt.Errorf("cannot use %T %v as %s", v, v, want))
}

// Int64 returns key as an int64, or def.
func (m *Mapper) Int64(key string, def int64) int64 {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return def
		}
		if math.IsInf(x, 0) {
			m.fail(key, v, "int64")
			return def
		}
	case string:
		if x == "" {
			return def
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, err := x.Float64()
		if err != nil {
			m.fail(key, v, "int64")
			return def
		}
		return int64(f)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		m.fail(key, v, "int64")
		return def
	}
	return n
}

// Int returns key as an int, or def.
func (m *Mapper) Int(key string, def int) int {
	return int(m.Int64(key, int64(def)))
}

// Float64 returns key as a float64, or def.
func (m *Mapper) Float64(key string, def float64) float64 {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	if num, isNumber := v.(json.Number); isNumber {
		v = string(num)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		m.fail(key, v, "float64")
		return def
	}
	return f
}

// String returns key as a string, or def. Scalars are formatted; maps and
// slices are rejected.
func (m *Mapper) String(key string, def string) string {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	switch v.(type) {
	case map[string]any, []any:
		m.fail(key, v, "string")
		return def
	}
	if num, isNumber := v.(json.Number); isNumber {
		return num.String()
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		m.fail(key, v, "string")
		return def
	}
	return s
}

// Bool returns key as a bool, or def. Accepts booleans, 0/1 and the usual
// string spellings.
func (m *Mapper) Bool(key string, def bool) bool {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	if num, isNumber := v.(json.Number); isNumber {
		f, err := num.Float64()
		if err != nil {
			m.fail(key, v, "bool")
			return def
		}
		return f != 0
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		m.fail(key, v, "bool")
		return def
	}
	return b
}

// Strings returns key as a fresh string slice. The default is an empty,
// non-nil slice.
func (m *Mapper) Strings(key string) []string {
	v, ok := m.lookup(key)
	if !ok {
		return []string{}
	}
	ss, err := cast.ToStringSliceE(v)
	if err != nil {
		m.fail(key, v, "[]string")
		return []string{}
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}

// Int64s returns key as a fresh int64 slice, empty by default.
func (m *Mapper) Int64s(key string) []int64 {
	v, ok := m.lookup(key)
	if !ok {
		return []int64{}
	}
	raw, isSlice := v.([]any)
	if !isSlice {
		m.fail(key, v, "[]int64")
		return []int64{}
	}
	out := make([]int64, 0, len(raw))
	for _, item := range raw {
		var n int64
		var err error
		if num, isNumber := item.(json.Number); isNumber {
			n, err = num.Int64()
		} else {
			n, err = cast.ToInt64E(item)
		}
		if err != nil {
			m.fail(key, v, "[]int64")
			return []int64{}
		}
		out = append(out, n)
	}
	return out
}

// Time returns key parsed as a timestamp, or def. RFC 3339 strings and unix
// seconds are accepted.
func (m *Mapper) Time(key string, def time.Time) time.Time {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	if s, isString := v.(string); isString && s == "" {
		return def
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		m.fail(key, v, "time")
		return def
	}
	return t
}

// Record returns key as a copied nested record, empty by default.
func (m *Mapper) Record(key string) types.Record {
	v, ok := m.lookup(key)
	if !ok {
		return types.Record{}
	}
	src, err := cast.ToStringMapE(v)
	if err != nil {
		m.fail(key, v, "record")
		return types.Record{}
	}
	out := make(types.Record, len(src))
	for k, val := range src {
		out[k] = val
	}
	return out
}

// Raw returns the value for key untouched, or def.
func (m *Mapper) Raw(key string, def any) any {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	return v
}

// Err returns a *types.HydrationError listing the mismatched fields, or nil.
func (m *Mapper) Err() error {
	return m.errs.OrNil()
}

// Records converts a decoded JSON array into records. Elements that are not
// objects are reported and skipped.
func Records(v any) ([]types.Record, error) {
	switch arr := v.(type) {
	case nil:
		return []types.Record{}, nil
	case []types.Record:
		return arr, nil
	case []any:
		var he types.HydrationError
		out := make([]types.Record, 0, len(arr))
		for i, item := range arr {
			rec, ok := item.(map[string]any)
			if !ok {
				he.Add(fmt.Sprintf("[%d]", i), fmt.Errorf("cannot use %T as record", item))
				continue
			}
			out = append(out, rec)
		}
		return out, he.OrNil()
	default:
		return []types.Record{}, fmt.Errorf("cannot use %T as record list", v)
	}
}

// Decode parses JSON into a record, keeping numbers as json.Number so large
// IDs survive intact.
func Decode(data []byte) (types.Record, error) {
	var rec types.Record
	if err := unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DecodeAny parses JSON into a generic value with json.Number numbers.
func DecodeAny(data []byte) (any, error) {
	var v any
	if err := unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
