package canisterclient

import (
	"encoding/json"
	"fmt"

	"canister-assets/internal/assetstate"
)

// WireOp is the JSON-over-HTTP encoding of an assetstate.Operation: a
// tagged union keyed by "type", matching §6's "Field names are normative
// and stable" for the operation set.
type WireOp struct {
	Type           string              `json:"type"`
	Key            string              `json:"key,omitempty"`
	ContentType    string              `json:"content_type,omitempty"`
	MaxAge         *uint64             `json:"max_age,omitempty"`
	Headers        map[string]string   `json:"headers,omitempty"`
	EnableAliasing *bool               `json:"enable_aliasing,omitempty"`
	AllowRawAccess *bool               `json:"allow_raw_access,omitempty"`
	Encoding       string              `json:"encoding,omitempty"`
	ChunkIDs       []uint64            `json:"chunk_ids,omitempty"`
	Sha256         string              `json:"sha256,omitempty"`
	MaxAgeOp       *DoubleOptionWire   `json:"max_age_op,omitempty"`
	HeadersOp      *DoubleOptionWire   `json:"headers_op,omitempty"`
	AllowRawOp     *DoubleOptionWire   `json:"allow_raw_access_op,omitempty"`
	IsAliasedOp    *DoubleOptionWire   `json:"is_aliased_op,omitempty"`
}

// DoubleOptionWire distinguishes untouched/cleared/set over the wire:
// Touched=false means the field is absent from the JSON body entirely
// (omitempty on the containing pointer handles that); Touched=true with
// Value=nil means explicitly cleared.
type DoubleOptionWire struct {
	Touched bool            `json:"touched"`
	Value   json.RawMessage `json:"value,omitempty"`
}

func EncodeOps(ops []assetstate.Operation) ([]WireOp, error) {
	out := make([]WireOp, 0, len(ops))
	for _, op := range ops {
		w, err := encodeOp(op)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func encodeOp(op assetstate.Operation) (WireOp, error) {
	switch o := op.(type) {
	case assetstate.CreateAssetOp:
		return WireOp{Type: "create_asset", Key: o.Key, ContentType: o.ContentType, MaxAge: o.MaxAge, Headers: o.Headers, EnableAliasing: o.EnableAliasing, AllowRawAccess: o.AllowRawAccess}, nil
	case assetstate.SetAssetContentOp:
		w := WireOp{Type: "set_asset_content", Key: o.Key, Encoding: string(o.Encoding), ChunkIDs: o.ChunkIDs}
		if o.Sha256 != nil {
			w.Sha256 = fmt.Sprintf("%x", *o.Sha256)
		}
		return w, nil
	case assetstate.UnsetAssetContentOp:
		return WireOp{Type: "unset_asset_content", Key: o.Key, Encoding: string(o.Encoding)}, nil
	case assetstate.DeleteAssetOp:
		return WireOp{Type: "delete_asset", Key: o.Key}, nil
	case assetstate.ClearOp:
		return WireOp{Type: "clear"}, nil
	case assetstate.SetAssetPropertiesOp:
		w := WireOp{Type: "set_asset_properties", Key: o.Key}
		w.MaxAgeOp = encodeDoubleOption(o.MaxAge)
		w.HeadersOp = encodeDoubleOption(o.Headers)
		w.AllowRawOp = encodeDoubleOption(o.AllowRawAccess)
		w.IsAliasedOp = encodeDoubleOption(o.IsAliased)
		return w, nil
	default:
		return WireOp{}, fmt.Errorf("unsupported operation type %T", op)
	}
}

func encodeDoubleOption[T any](d assetstate.DoubleOption[T]) *DoubleOptionWire {
	if !d.Touched {
		return nil
	}
	w := &DoubleOptionWire{Touched: true}
	if d.Value != nil {
		b, _ := json.Marshal(*d.Value)
		w.Value = b
	}
	return w
}

func decodeDoubleOption[T any](w *DoubleOptionWire) (assetstate.DoubleOption[T], error) {
	if w == nil {
		return assetstate.Untouched[T](), nil
	}
	if w.Value == nil {
		return assetstate.Clear[T](), nil
	}
	var v T
	if err := json.Unmarshal(w.Value, &v); err != nil {
		return assetstate.DoubleOption[T]{}, err
	}
	return assetstate.SetTo(v), nil
}

func DecodeOps(in []WireOp) ([]assetstate.Operation, error) {
	out := make([]assetstate.Operation, 0, len(in))
	for _, w := range in {
		op, err := decodeOp(w)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func decodeOp(w WireOp) (assetstate.Operation, error) {
	switch w.Type {
	case "create_asset":
		return assetstate.CreateAssetOp{Key: w.Key, ContentType: w.ContentType, MaxAge: w.MaxAge, Headers: w.Headers, EnableAliasing: w.EnableAliasing, AllowRawAccess: w.AllowRawAccess}, nil
	case "set_asset_content":
		op := assetstate.SetAssetContentOp{Key: w.Key, Encoding: assetstate.Encoding(w.Encoding), ChunkIDs: w.ChunkIDs}
		if w.Sha256 != "" {
			var raw []byte
			if _, err := fmt.Sscanf(w.Sha256, "%x", &raw); err != nil {
				return nil, fmt.Errorf("decode sha256: %w", err)
			}
			if len(raw) != 32 {
				return nil, fmt.Errorf("decode sha256: got %d bytes, want 32", len(raw))
			}
			var sum [32]byte
			copy(sum[:], raw)
			op.Sha256 = &sum
		}
		return op, nil
	case "unset_asset_content":
		return assetstate.UnsetAssetContentOp{Key: w.Key, Encoding: assetstate.Encoding(w.Encoding)}, nil
	case "delete_asset":
		return assetstate.DeleteAssetOp{Key: w.Key}, nil
	case "clear":
		return assetstate.ClearOp{}, nil
	case "set_asset_properties":
		op := assetstate.SetAssetPropertiesOp{Key: w.Key}
		var err error
		if op.MaxAge, err = decodeDoubleOption[uint64](w.MaxAgeOp); err != nil {
			return nil, err
		}
		if op.Headers, err = decodeDoubleOption[map[string]string](w.HeadersOp); err != nil {
			return nil, err
		}
		if op.AllowRawAccess, err = decodeDoubleOption[bool](w.AllowRawOp); err != nil {
			return nil, err
		}
		if op.IsAliased, err = decodeDoubleOption[bool](w.IsAliasedOp); err != nil {
			return nil, err
		}
		return op, nil
	default:
		return nil, fmt.Errorf("unknown wire operation type %q", w.Type)
	}
}
