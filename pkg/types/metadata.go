package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reserved metadata keys written by the ingestion pipeline
const (
	MetaSource      = "source"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaTitle       = "title"
	MetaTags        = "tags"
	MetaError       = "error"
)

// ValueKind identifies which variant a metadata Value holds
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a single metadata value. It is one of: string, number, bool or
// list of strings. The zero Value is invalid.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
}

// StringValue returns a string metadata value
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue returns a numeric metadata value
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// IntValue returns a numeric metadata value from an int
func IntValue(n int) Value {
	return Value{kind: KindNumber, num: float64(n)}
}

// BoolValue returns a boolean metadata value
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// ListValue returns a string-list metadata value
func ListValue(items ...string) Value {
	list := make([]string, len(items))
	copy(list, items)
	return Value{kind: KindList, list: list}
}

// Kind reports the variant held by v
func (v Value) Kind() ValueKind { return v.kind }

// IsValid reports whether v holds one of the supported variants
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsList returns a copy of the list held by v
func (v Value) AsList() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]string, len(v.list))
	copy(out, v.list)
	return out, true
}

// String renders v as plain text, suitable for keyword indexing and display
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// Equal reports whether two values hold the same variant and content
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != other.list[i] {
				return false
			}
		}
		return true
	}
	return true
}

// MarshalJSON encodes v as a native JSON scalar or array
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return nil, fmt.Errorf("%w: cannot encode invalid metadata value", ErrValidation)
	}
}

// UnmarshalJSON decodes a JSON string, number, bool or array of strings
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// ValueOf converts a decoded JSON or YAML value into a metadata Value.
// Nested objects, nulls and mixed lists are rejected.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case Value:
		return x, nil
	case string:
		return StringValue(x), nil
	case bool:
		return BoolValue(x), nil
	case float64:
		return NumberValue(x), nil
	case float32:
		return NumberValue(float64(x)), nil
	case int:
		return IntValue(x), nil
	case int64:
		return NumberValue(float64(x)), nil
	case []string:
		return ListValue(x...), nil
	case []any:
		items := make([]string, 0, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("%w: list element %d is %T, want string", ErrValidation, i, item)
			}
			items = append(items, s)
		}
		return ListValue(items...), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported metadata value type %T", ErrValidation, raw)
	}
}

// Metadata is a string-keyed map of metadata values attached to a chunk
type Metadata map[string]Value

// MetadataFromMap converts loosely typed input (JSON arguments, YAML) into Metadata
func MetadataFromMap(m map[string]any) (Metadata, error) {
	if len(m) == 0 {
		return Metadata{}, nil
	}
	md := make(Metadata, len(m))
	for k, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("metadata key %q: %w", k, err)
		}
		md[k] = v
	}
	return md, nil
}

// Clone returns a deep copy of m
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		if v.kind == KindList {
			v = ListValue(v.list...)
		}
		out[k] = v
	}
	return out
}

// Merge returns a copy of m with every entry of other applied on top
func (m Metadata) Merge(other Metadata) Metadata {
	out := m.Clone()
	for k, v := range other.Clone() {
		out[k] = v
	}
	return out
}

// GetString returns the string form of key, or "" when absent
func (m Metadata) GetString(key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return v.String()
}

// GetInt returns the numeric value of key truncated to int
func (m Metadata) GetInt(key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, ok := v.AsNumber()
	return int(n), ok
}

// GetList returns key as a list. A string value is split on commas.
func (m Metadata) GetList(key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	if list, ok := v.AsList(); ok {
		return list
	}
	if s, ok := v.AsString(); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}

// Keys returns the keys of m in sorted order
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalJSON decodes a JSON object, rejecting values of unsupported shape
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata(raw)
	return nil
}
