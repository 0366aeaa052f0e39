// Package assetsync walks a local source tree, applies the nested
// .ic-assets.json(5) configuration rules found along the way, diffs the
// result against a canister's current asset inventory, and drives the
// upload of whatever changed through a canisterclient.Client.
package assetsync

import (
	"canister-assets/internal/assetstate"
)

// EncodingUpload is one encoding's pending or already-satisfied upload
// state for a single project asset.
type EncodingUpload struct {
	Encoding      assetstate.Encoding
	ChunkIDs      []uint64
	Sha256        [32]byte
	AlreadyInPlace bool
}

// ProjectAsset is a local file's descriptor plus its per-encoding upload
// state, built by the chunker before the diff planner ever runs.
type ProjectAsset struct {
	Key            string
	ContentType    string
	MaxAge         *uint64
	Headers        map[string]string
	EnableAliasing *bool
	AllowRawAccess *bool
	Encodings      map[assetstate.Encoding]*EncodingUpload
}

func (p *ProjectAsset) sortedEncodings() []assetstate.Encoding {
	out := make([]assetstate.Encoding, 0, len(p.Encodings))
	for _, enc := range assetstate.CertificationOrder {
		if _, ok := p.Encodings[enc]; ok {
			out = append(out, enc)
		}
	}
	return out
}

// AssetSource is a local file discovered during traversal, with its asset
// key and content type; its effective configuration is resolved later, by
// BuildProjectAsset.
type AssetSource struct {
	Key         string
	AbsPath     string
	ContentType string
}
