// Package assetstate implements the canister-side certified asset store:
// batched chunk/asset lifecycle, a shared v1/v2 Merkle certification tree,
// and the certified HTTP-like responder built on top of it.
package assetstate

import "time"

// Encoding is a content-encoding name. CertificationOrder lists every
// encoding this store understands, in certification priority order.
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingGzip     Encoding = "gzip"
	EncodingCompress Encoding = "compress"
	EncodingDeflate  Encoding = "deflate"
	EncodingBr       Encoding = "br"
)

// CertificationOrder is the encoding-selection priority used to decide
// which single encoding of an asset gets marked certified: the first
// entry that the asset actually has wins.
var CertificationOrder = []Encoding{EncodingIdentity, EncodingGzip, EncodingCompress, EncodingDeflate, EncodingBr}

// BatchExpiry is the default TTL for an open batch from its last touch.
const BatchExpiry = 300 * time.Second

// IndexFile is the fallback asset served for a directory-style request.
const IndexFile = "/index.html"

// AssetEncoding holds one content-encoding's bytes (split into chunks)
// plus the certification metadata derived from them.
type AssetEncoding struct {
	ModifiedAt      time.Time
	Chunks          [][]byte
	TotalLength     int
	Certified       bool
	Sha256          [32]byte
	CertExpr        string // v2 ic_certificate_expression
	CertExprHash    [32]byte
	ResponseHash    [32]byte
}

// Content returns the concatenated bytes of every chunk.
func (e *AssetEncoding) Content() []byte {
	out := make([]byte, 0, e.TotalLength)
	for _, c := range e.Chunks {
		out = append(out, c...)
	}
	return out
}

// Asset is one served key's full state: content-type plus one
// AssetEncoding per content-encoding it has been uploaded with.
type Asset struct {
	Key             string
	ContentType     string
	Encodings       map[Encoding]*AssetEncoding
	MaxAge          *uint64
	Headers         map[string]string
	IsAliased       *bool // nil means "use default (true)"
	AllowRawAccess  *bool // nil means "use default (false) at the asset layer"
}

func (a *Asset) isAliased() bool {
	if a.IsAliased == nil {
		return true
	}
	return *a.IsAliased
}

func (a *Asset) allowRawAccess() bool {
	if a.AllowRawAccess == nil {
		return false
	}
	return *a.AllowRawAccess
}

// sortedEncodings returns the asset's present encodings in certification
// priority order, for deterministic iteration.
func (a *Asset) sortedEncodings() []Encoding {
	var out []Encoding
	for _, e := range CertificationOrder {
		if _, ok := a.Encodings[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Chunk is one staged byte buffer awaiting a commit_batch, scoped to its
// owning batch.
type Chunk struct {
	ID      uint64
	BatchID uint64
	Content []byte
}

// Batch is a staging area for chunk uploads, expired by TTL.
type Batch struct {
	ID        uint64
	ExpiresAt time.Time
}

// AssetDetails is the read-only inventory entry returned by List, used by
// the uploader's diff planner.
type AssetDetails struct {
	Key         string
	ContentType string
	Encodings   map[Encoding]EncodingDetails
}

// EncodingDetails is the per-encoding summary exposed by List.
type EncodingDetails struct {
	Sha256      [32]byte
	TotalLength int
}

// AssetProperties is the read-only property triple returned by
// get_asset_properties.
type AssetProperties struct {
	MaxAge         *uint64
	Headers        map[string]string
	AllowRawAccess *bool
	IsAliased      *bool
}

// StableState is the snapshot form persisted across restarts: chunks and
// batches are NOT included, per §4.2.4.
type StableState struct {
	Authorized []string `json:"authorized"`
	Assets     []Asset  `json:"assets"`
}
