package assetconfig

import "encoding/json"

// MaybeKind distinguishes the three states of a Maybe value: a field that
// was absent from the JSON document, one explicitly set to null, and one
// holding a concrete value. This tri-state is what lets a descendant rule
// clear a header set by an ancestor (null) without that being
// indistinguishable from simply never mentioning the header (absent).
type MaybeKind int

const (
	Absent MaybeKind = iota
	Null
	Value
)

// Maybe is a tri-state optional field, used for every AssetConfig field;
// for the "headers" config key an explicit null erases an inherited value.
type Maybe[T any] struct {
	Kind MaybeKind
	Val  T
}

// UnmarshalJSON implements the Absent/Null/Value distinction: UnmarshalJSON
// is only invoked by encoding/json when the key is present in the source
// object, so Absent is the zero value never touched by unmarshalling.
func (m *Maybe[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		m.Kind = Null
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.Kind = Value
	m.Val = v
	return nil
}

// MarshalJSON renders Value as its content and both Null and Absent as
// JSON null; callers that need to omit Absent fields entirely should check Kind before
// marshalling the containing struct.
func (m Maybe[T]) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case Null:
		return []byte("null"), nil
	case Value:
		return json.Marshal(m.Val)
	default:
		return []byte("null"), nil
	}
}

// IsAbsent reports whether the field was never mentioned.
func (m Maybe[T]) IsAbsent() bool { return m.Kind == Absent }

// IsNull reports whether the field was explicitly cleared.
func (m Maybe[T]) IsNull() bool { return m.Kind == Null }

// Some constructs a present Maybe value.
func Some[T any](v T) Maybe[T] { return Maybe[T]{Kind: Value, Val: v} }
