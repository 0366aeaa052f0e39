package assetstate

import "errors"

// These errors carry the stable string prefixes called out in §7, so a
// caller can match on error text the same way the original canister's
// callers do.
var (
	ErrAssetNotFound      = errors.New("asset not found")
	ErrNoSuchEncoding     = errors.New("no such encoding")
	ErrBatchNotFound      = errors.New("batch not found")
	ErrSha256Mismatch     = errors.New("sha256 mismatch")
	ErrChunkIndexOOB      = errors.New("chunk index out of bounds")
	ErrEncodingEmpty      = errors.New("encoding must have at least one chunk")
	ErrContentTypeMismatch = errors.New("create_asset: content type mismatch")
	ErrInvalidSha256      = errors.New("invalid SHA-256")
	ErrNotAuthorized      = errors.New("caller is not authorized")
)
