package engine

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Kind identifies a Value variant. The set is closed: matching and
// generation dispatch on it exhaustively.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindDecimal
	KindString
	KindBytes
	KindSequence
	KindSet
	KindMapping
	KindTemporal
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindSequence:
		return "sequence"
	case KindSet:
		return "set"
	case KindMapping:
		return "mapping"
	case KindTemporal:
		return "temporal"
	case KindRecord:
		return "record"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is the closed variant over everything that can appear in an
// interaction body, header, path or query. Trees are finite and acyclic;
// FromHost guarantees this by construction.
type Value interface {
	Kind() Kind
	value()
}

type Null struct{}

type Bool bool

type Integer int64

// Decimal wraps shopspring decimals so JSON numbers survive matching
// without float round-trips.
type Decimal struct{ D decimal.Decimal }

type String string

type Bytes []byte

type Sequence []Value

// Set compares order-insensitively and serializes in canonical order.
type Set []Value

// Mapping preserves insertion order for serialization; equality ignores it.
// Keys must be scalar values.
type Mapping struct {
	keys  []Value
	vals  []Value
	index map[string]int
}

// TemporalUnit distinguishes date, time and datetime values.
type TemporalUnit int

const (
	UnitDate TemporalUnit = iota
	UnitTime
	UnitDateTime
)

// Temporal is an instant plus the format it is serialized in. Format uses
// SimpleDateFormat notation ("yyyy-MM-dd"), the notation pact files carry.
// Two temporals are equal when the parsed instants are equal, whatever the
// formats.
type Temporal struct {
	Instant time.Time
	Format  string
	Unit    TemporalUnit
}

// Record is a named bundle of fields, for domain-model host values.
type Record struct {
	Name   string
	Fields *Mapping
}

func (Null) Kind() Kind     { return KindNull }
func (Bool) Kind() Kind     { return KindBool }
func (Integer) Kind() Kind  { return KindInteger }
func (Decimal) Kind() Kind  { return KindDecimal }
func (String) Kind() Kind   { return KindString }
func (Bytes) Kind() Kind    { return KindBytes }
func (Sequence) Kind() Kind { return KindSequence }
func (Set) Kind() Kind      { return KindSet }
func (*Mapping) Kind() Kind { return KindMapping }
func (Temporal) Kind() Kind { return KindTemporal }
func (*Record) Kind() Kind  { return KindRecord }

func (Null) value()     {}
func (Bool) value()     {}
func (Integer) value()  {}
func (Decimal) value()  {}
func (String) value()   {}
func (Bytes) value()    {}
func (Sequence) value() {}
func (Set) value()      {}
func (*Mapping) value() {}
func (Temporal) value() {}
func (*Record) value()  {}

// NewDecimal builds a Decimal value from its string form.
func NewDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, errors.Wrapf(err, "invalid decimal %q", s)
	}
	return Decimal{D: d}, nil
}

func NewMapping() *Mapping {
	return &Mapping{index: map[string]int{}}
}

// Set stores val under key, replacing any existing entry. Keys must be
// scalar; container keys are not serializable in pact documents.
func (m *Mapping) Set(key, val Value) error {
	ck, ok := canonicalKey(key)
	if !ok {
		return &UnsupportedTypeError{Value: key, Reason: fmt.Sprintf("%s cannot be a mapping key", key.Kind())}
	}
	if i, exists := m.index[ck]; exists {
		m.vals[i] = val
		return nil
	}
	m.index[ck] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
	return nil
}

func (m *Mapping) Get(key Value) (Value, bool) {
	ck, ok := canonicalKey(key)
	if !ok {
		return nil, false
	}
	i, exists := m.index[ck]
	if !exists {
		return nil, false
	}
	return m.vals[i], true
}

// GetString looks up a string key.
func (m *Mapping) GetString(key string) (Value, bool) {
	return m.Get(String(key))
}

func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Entries visits key/value pairs in insertion order. The visitor must not
// mutate the mapping.
func (m *Mapping) Entries(fn func(key, val Value) bool) {
	if m == nil {
		return
	}
	for i := range m.keys {
		if !fn(m.keys[i], m.vals[i]) {
			return
		}
	}
}

func (m *Mapping) Keys() []Value {
	out := make([]Value, len(m.keys))
	copy(out, m.keys)
	return out
}

// canonicalKey renders a scalar value as a stable lookup key.
func canonicalKey(v Value) (string, bool) {
	switch val := v.(type) {
	case Null:
		return "null", true
	case Bool:
		return strconv.FormatBool(bool(val)), true
	case Integer:
		return strconv.FormatInt(int64(val), 10), true
	case Decimal:
		return val.D.String(), true
	case String:
		return string(val), true
	case Temporal:
		return val.Instant.UTC().Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

// UnsupportedTypeError reports a host value with no Value variant.
type UnsupportedTypeError struct {
	Value  interface{}
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported value: %s", e.Reason)
	}
	return fmt.Sprintf("unsupported value of type %T", e.Value)
}

// FromHost converts an arbitrary host value into a Value tree. Conversion is
// total over nil, booleans, integer and float types, strings, byte slices,
// time.Time, decimals, slices, string-keyed maps and plain structs; anything
// else fails with UnsupportedTypeError.
func FromHost(v interface{}) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Integer(val), nil
	case int8:
		return Integer(val), nil
	case int16:
		return Integer(val), nil
	case int32:
		return Integer(val), nil
	case int64:
		return Integer(val), nil
	case uint:
		return Integer(val), nil
	case uint8:
		return Integer(val), nil
	case uint16:
		return Integer(val), nil
	case uint32:
		return Integer(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, &UnsupportedTypeError{Value: v, Reason: "uint64 overflows integer"}
		}
		return Integer(val), nil
	case float32:
		return fromFloat(float64(val)), nil
	case float64:
		return fromFloat(val), nil
	case string:
		return String(val), nil
	case []byte:
		return Bytes(append([]byte(nil), val...)), nil
	case decimal.Decimal:
		return Decimal{D: val}, nil
	case time.Time:
		return Temporal{Instant: val, Format: "yyyy-MM-dd'T'HH:mm:ssXXX", Unit: UnitDateTime}, nil
	case []interface{}:
		seq := make(Sequence, 0, len(val))
		for _, item := range val {
			converted, err := FromHost(item)
			if err != nil {
				return nil, err
			}
			seq = append(seq, converted)
		}
		return seq, nil
	case map[string]interface{}:
		return fromStringMap(val)
	}
	return fromReflected(v)
}

// fromFloat keeps integral JSON numbers as integers, matching how pact
// documents distinguish 3 from 3.1 rather than how encoding/json decodes.
func fromFloat(f float64) Value {
	d := decimal.NewFromFloat(f)
	if d.IsInteger() {
		return Integer(d.IntPart())
	}
	return Decimal{D: d}
}

// fromStringMap sorts keys so conversion of Go maps is deterministic.
func fromStringMap(src map[string]interface{}) (Value, error) {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := NewMapping()
	for _, k := range keys {
		converted, err := FromHost(src[k])
		if err != nil {
			return nil, err
		}
		if err := m.Set(String(k), converted); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func fromReflected(v interface{}) (Value, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return Null{}, nil
		}
		return FromHost(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		seq := make(Sequence, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			converted, err := FromHost(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			seq = append(seq, converted)
		}
		return seq, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &UnsupportedTypeError{Value: v, Reason: fmt.Sprintf("map key type %s", rv.Type().Key())}
		}
		plain := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			plain[iter.Key().String()] = iter.Value().Interface()
		}
		return fromStringMap(plain)
	case reflect.Struct:
		return fromStruct(rv)
	}
	return nil, &UnsupportedTypeError{Value: v}
}

// fromStruct converts an exported-field struct into a Record, honouring json
// tags the way the rest of the ecosystem serializes domain models.
func fromStruct(rv reflect.Value) (Value, error) {
	fields := NewMapping()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
		}
		converted, err := FromHost(rv.Field(i).Interface())
		if err != nil {
			return nil, err
		}
		if err := fields.Set(String(name), converted); err != nil {
			return nil, err
		}
	}
	return &Record{Name: rt.Name(), Fields: fields}, nil
}

// Equal is structural value equality with no matcher applied: sequences
// elementwise in order, sets by membership, mappings by key set plus per-key
// values, temporals by instant.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		// Integral decimals and integers denote the same JSON number.
		return numericEqual(a, b)
	}
	switch av := a.(type) {
	case Null:
		return true
	case Bool:
		return av == b.(Bool)
	case Integer:
		return av == b.(Integer)
	case Decimal:
		return av.D.Equal(b.(Decimal).D)
	case String:
		return av == b.(String)
	case Bytes:
		bv := b.(Bytes)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case Sequence:
		bv := b.(Sequence)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Set:
		return setEqual(av, b.(Set))
	case *Mapping:
		return mappingEqual(av, b.(*Mapping))
	case Temporal:
		return av.Instant.Equal(b.(Temporal).Instant)
	case *Record:
		bv := b.(*Record)
		return av.Name == bv.Name && mappingEqual(av.Fields, bv.Fields)
	}
	return false
}

func numericEqual(a, b Value) bool {
	ad, ok := toDecimal(a)
	if !ok {
		return false
	}
	bd, ok := toDecimal(b)
	if !ok {
		return false
	}
	return ad.Equal(bd)
}

func toDecimal(v Value) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case Integer:
		return decimal.NewFromInt(int64(val)), true
	case Decimal:
		return val.D, true
	}
	return decimal.Decimal{}, false
}

func setEqual(a, b Set) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, av := range a {
		for i, bv := range b {
			if !used[i] && Equal(av, bv) {
				used[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}

func mappingEqual(a, b *Mapping) bool {
	if a.Len() != b.Len() {
		return false
	}
	equal := true
	a.Entries(func(key, val Value) bool {
		other, ok := b.Get(key)
		if !ok || !Equal(val, other) {
			equal = false
			return false
		}
		return true
	})
	return equal
}

// ToInterface renders a Value as plain Go data ready for encoding/json.
// The form is lossless for every variant except Bytes, which round-trips
// through standard base64, and Mapping, whose insertion order encoding/json
// does not preserve (MarshalValue does).
func ToInterface(v Value) interface{} {
	switch val := v.(type) {
	case Null:
		return nil
	case Bool:
		return bool(val)
	case Integer:
		return int64(val)
	case Decimal:
		f, _ := val.D.Float64()
		return f
	case String:
		return string(val)
	case Bytes:
		return base64.StdEncoding.EncodeToString(val)
	case Sequence:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = ToInterface(item)
		}
		return out
	case Set:
		sorted := canonicalOrder(val)
		out := make([]interface{}, len(sorted))
		for i, item := range sorted {
			out[i] = ToInterface(item)
		}
		return out
	case *Mapping:
		out := make(map[string]interface{}, val.Len())
		val.Entries(func(key, v Value) bool {
			ck, _ := canonicalKey(key)
			out[ck] = ToInterface(v)
			return true
		})
		return out
	case Temporal:
		return formatTemporal(val)
	case *Record:
		out := make(map[string]interface{}, val.Fields.Len())
		val.Fields.Entries(func(key, v Value) bool {
			ck, _ := canonicalKey(key)
			out[ck] = ToInterface(v)
			return true
		})
		return out
	}
	return nil
}

func formatTemporal(t Temporal) string {
	if t.Format != "" {
		if s, err := formatInstant(t.Format, t.Instant); err == nil {
			return s
		}
	}
	switch t.Unit {
	case UnitDate:
		return t.Instant.Format("2006-01-02")
	case UnitTime:
		return t.Instant.Format("15:04:05")
	}
	return t.Instant.Format(time.RFC3339)
}

// canonicalOrder sorts set elements by their serialized form so exports are
// deterministic.
func canonicalOrder(s Set) []Value {
	out := make([]Value, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := MarshalValue(out[i])
		b, _ := MarshalValue(out[j])
		return string(a) < string(b)
	})
	return out
}
