package assetstate

// Operation is one entry of a commit_batch operation list. The set is
// exactly {CreateAsset, SetAssetContent, UnsetAssetContent, DeleteAsset,
// Clear, SetAssetProperties} per §6's "Batch-operation wire format".
type Operation interface{ isOperation() }

// CreateAssetOp registers a new key with no content yet.
type CreateAssetOp struct {
	Key            string
	ContentType    string
	MaxAge         *uint64
	Headers        map[string]string
	EnableAliasing *bool
	AllowRawAccess *bool
}

func (CreateAssetOp) isOperation() {}

// SetAssetContentOp attaches one encoding's chunks (already uploaded via
// CreateChunk) to an existing asset.
type SetAssetContentOp struct {
	Key      string
	Encoding Encoding
	ChunkIDs []uint64
	Sha256   *[32]byte
}

func (SetAssetContentOp) isOperation() {}

// UnsetAssetContentOp removes one encoding from an asset, leaving the
// asset itself (and its other encodings) intact.
type UnsetAssetContentOp struct {
	Key      string
	Encoding Encoding
}

func (UnsetAssetContentOp) isOperation() {}

// DeleteAssetOp removes a key entirely.
type DeleteAssetOp struct{ Key string }

func (DeleteAssetOp) isOperation() {}

// ClearOp removes every asset.
type ClearOp struct{}

func (ClearOp) isOperation() {}

// DoubleOption models a field that is either untouched (Touched=false),
// explicitly cleared (Touched=true, Value=nil), or explicitly set
// (Touched=true, Value!=nil) — the "outer option = touch or not, inner
// option = none or some" shape SetAssetProperties needs (§4.2, §9).
type DoubleOption[T any] struct {
	Touched bool
	Value   *T
}

// Untouched is the zero value: leave the field as it is.
func Untouched[T any]() DoubleOption[T] { return DoubleOption[T]{} }

// Clear explicitly sets the field to "none".
func Clear[T any]() DoubleOption[T] { return DoubleOption[T]{Touched: true} }

// SetTo explicitly sets the field to v.
func SetTo[T any](v T) DoubleOption[T] { return DoubleOption[T]{Touched: true, Value: &v} }

// SetAssetPropertiesOp is the double-option partial update described in
// §4.2's `set_asset_properties`.
type SetAssetPropertiesOp struct {
	Key            string
	MaxAge         DoubleOption[uint64]
	Headers        DoubleOption[map[string]string]
	AllowRawAccess DoubleOption[bool]
	IsAliased      DoubleOption[bool]
}

func (SetAssetPropertiesOp) isOperation() {}
