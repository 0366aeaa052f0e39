// Package requestid computes the canonical 32-byte request identifier used
// as the authentication anchor for every call into the asset state machine.
//
// The algorithm walks an arbitrary value as a tagged tree (struct, map,
// sequence, string/bytes, unsigned integer, optional, or a named byte-blob
// type) and folds it into a single SHA-256 digest: every (key, value) pair
// at the root is hashed independently, the 64-byte key-hash‖value-hash pairs
// are sorted, and the sorted sequence is hashed again. See the worked
// example in TestWorkedExampleDigest.
package requestid

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ID is a 32-byte request identifier.
type ID [32]byte

// String returns the lowercase hex encoding of the identifier.
func (id ID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// Kind names the reflected shape of a value rejected by the encoder.
type Kind string

const (
	KindBool         Kind = "bool"
	KindInt8         Kind = "i8"
	KindInt16        Kind = "i16"
	KindInt32        Kind = "i32"
	KindInt64        Kind = "i64"
	KindFloat32      Kind = "f32"
	KindFloat64      Kind = "f64"
	KindChar         Kind = "char"
	KindUnit         Kind = "unit"
	KindTuple        Kind = "tuple"
	KindTupleStruct  Kind = "tuple_struct"
	KindTupleVariant Kind = "tuple_variant"
	KindStructVariant Kind = "struct_variant"
	KindUnitVariant  Kind = "unit_variant"
	KindNewtypeVariant Kind = "newtype_variant"
	KindNestedStruct Kind = "nested_struct"
)

// Error is the error type returned by To and by the encoder, per §4.1/§7.
type Error struct {
	// Kind is set for UnsupportedType<Kind> errors.
	Kind Kind
	// Msg carries EmptySerializer, InvalidState, and Custom(msg) variants.
	Msg string
	// Variant distinguishes the three non-UnsupportedType error forms.
	Variant string // "unsupported_type" | "empty_serializer" | "invalid_state" | "custom"
}

func (e *Error) Error() string {
	switch e.Variant {
	case "unsupported_type":
		return fmt.Sprintf("unsupported type: %s", e.Kind)
	case "empty_serializer":
		return "request id serializer produced no root struct/map"
	case "invalid_state":
		return fmt.Sprintf("invalid serializer state: %s", e.Msg)
	default:
		return fmt.Sprintf("request id serializer: %s", e.Msg)
	}
}

func unsupportedType(k Kind) error {
	return &Error{Kind: k, Variant: "unsupported_type"}
}

func invalidState(msg string) error {
	return &Error{Msg: msg, Variant: "invalid_state"}
}

func emptySerializer() error {
	return &Error{Variant: "empty_serializer"}
}

func custom(msg string) error {
	return &Error{Msg: msg, Variant: "custom"}
}

// Blob is a byte-blob newtype: the only unit-struct-like wrapper the
// encoder accepts. Any other named wrapper around a non-struct value is
// rejected with UnsupportedTypeNewtypeStruct equivalent behavior.
type Blob []byte

// Value is the tagged-tree shape the encoder walks. Exactly one of the
// fields is meaningful for a given node; callers build trees with the
// Struct/Map/Seq/Bytes/String/Uint/Some/None/Blob constructors below.
type Value struct {
	kind  valueKind
	str   string
	bytes []byte
	u64   uint64
	seq   []Value
	// fields holds ordered (key, value) pairs for Struct/Map nodes. Map and
	// Struct are distinguished only for root-shape validation (§4.1 step 1
	// requires the root be a struct or map); nested struct/map is rejected.
	fields []Field
	inner  *Value // for Some(x)
}

// Field is one (key, value) entry of a Struct or Map value.
type Field struct {
	Key   string
	Value Value
}

type valueKind int

const (
	kindStruct valueKind = iota
	kindMap
	kindSeq
	kindBytes
	kindString
	kindUint
	kindSome
	kindNone
	kindBlob
)

// Struct builds a named-struct node from ordered fields.
func Struct(fields ...Field) Value { return Value{kind: kindStruct, fields: fields} }

// Map builds a map node from ordered (key, value) pairs; duplicate keys
// are allowed and the last one wins, matching the BTreeMap-overwrite
// behavior of the source serializer.
func Map(fields ...Field) Value { return Value{kind: kindMap, fields: fields} }

// Seq builds a sequence node; its elements are concatenated and hashed as
// one value, per §4.1 step 2.
func Seq(elems ...Value) Value { return Value{kind: kindSeq, seq: elems} }

// Bytes builds a raw-bytes leaf.
func Bytes(b []byte) Value { return Value{kind: kindBytes, bytes: b} }

// String builds a UTF-8 string leaf, encoded as its raw bytes.
func String(s string) Value { return Value{kind: kindString, str: s} }

// Uint builds an unsigned-integer leaf, LEB128-encoded into a 32-byte
// zero-padded buffer exactly as the source implementation does.
func Uint(v uint64) Value { return Value{kind: kindUint, u64: v} }

// Some builds an optional-present leaf wrapping x.
func Some(x Value) Value { return Value{kind: kindSome, inner: &x} }

// None builds an optional-absent leaf, encoded as the empty byte string.
func None() Value { return Value{kind: kindNone} }

// BlobValue builds a byte-blob newtype leaf.
func BlobValue(b Blob) Value { return Value{kind: kindBlob, bytes: b} }

// To reduces v to its canonical 32-byte request identifier.
func To(v Value) (ID, error) {
	if v.kind != kindStruct && v.kind != kindMap {
		return ID{}, emptySerializer()
	}
	fields := v.fields
	if v.kind == kindMap {
		last := map[string]int{}
		for i, f := range fields {
			last[f.Key] = i
		}
		fields = nil
		for i, f := range v.fields {
			if last[f.Key] == i {
				fields = append(fields, f)
			}
		}
	}
	entries, err := hashFields(fields, false)
	if err != nil {
		return ID{}, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return lessBytes(entries[i][:], entries[j][:])
	})
	h := sha256.New()
	for _, e := range entries {
		h.Write(e[:])
	}
	var out ID
	copy(out[:], h.Sum(nil))
	return out, nil
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// hashFields hashes every (key, value) pair of a struct/map node and
// returns the 64-byte key-hash‖value-hash concatenations, unsorted.
func hashFields(fields []Field, nested bool) ([][64]byte, error) {
	if nested {
		return nil, unsupportedType(KindNestedStruct)
	}
	out := make([][64]byte, 0, len(fields))
	for _, f := range fields {
		kh, err := hashValue(String(f.Key))
		if err != nil {
			return nil, err
		}
		vh, err := hashValue(f.Value)
		if err != nil {
			return nil, err
		}
		var kv [64]byte
		copy(kv[:32], kh[:])
		copy(kv[32:], vh[:])
		out = append(out, kv)
	}
	return out, nil
}

// hashValue hashes a single leaf/sequence/struct value into a 32-byte
// digest per the encode rules of §4.1 step 2. A struct/map reached here is
// always nested — the document root is hashed directly by To via
// hashFields, never through hashValue — so it is always rejected.
func hashValue(v Value) ([32]byte, error) {
	h := sha256.New()
	if err := writeValue(h, v); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

type byteWriter interface {
	Write([]byte) (int, error)
}

func writeValue(w byteWriter, v Value) error {
	switch v.kind {
	case kindStruct, kindMap:
		// A struct/map nested as a *value* inside another struct/map is
		// the "UnsupportedStructInsideStruct" condition from the source:
		// only the document root may be a struct or map.
		return unsupportedType(KindNestedStruct)
	case kindSeq:
		for _, elem := range v.seq {
			if err := writeValue(w, elem); err != nil {
				return err
			}
		}
		return nil
	case kindBytes:
		_, err := w.Write(v.bytes)
		return err
	case kindBlob:
		_, err := w.Write(v.bytes)
		return err
	case kindString:
		_, err := w.Write([]byte(v.str))
		return err
	case kindUint:
		buf := leb128Pad32(v.u64)
		_, err := w.Write(buf)
		return err
	case kindSome:
		return writeValue(w, *v.inner)
	case kindNone:
		return nil
	default:
		return invalidState("unrecognized value kind")
	}
}

// leb128Pad32 encodes v as unsigned LEB128 into a 32-byte zero-padded
// buffer, reproducing the source's write-into-fixed-buffer behavior
// exactly: the LEB128 bytes occupy a prefix of the 32-byte buffer and the
// remaining bytes are zero (and ARE included in the hash input, since the
// source hashes the whole 32-byte `buffer`, not just the written prefix).
func leb128Pad32(v uint64) []byte {
	buf := make([]byte, 32)
	i := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf[i] = b | 0x80
		} else {
			buf[i] = b
			break
		}
		i++
	}
	return buf
}
