package assetsync

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"os"

	"canister-assets/internal/assetconfig"
	"canister-assets/internal/assetstate"
	"canister-assets/pkg/canisterclient"
)

// MaxChunkSize bounds a single create_chunk payload, matching the ~1.9 MiB
// ceiling used by the reference uploader.
const MaxChunkSize = 1900 * 1024

// BuildProjectAsset reads src's content, resolves its effective
// configuration, computes each encoding the configuration lists (identity
// alone when no encodings are configured; only identity and gzip are
// supported), and uploads whatever chunks are not already
// present on the canister for a matching sha256+content-type, returning a
// fully-populated ProjectAsset ready for diffing.
func BuildProjectAsset(ctx context.Context, client canisterclient.Client, batchID uint64, maxConcurrency int, tree *assetconfig.Tree, src AssetSource, canisterAssets map[string]assetstate.AssetDetails) (*ProjectAsset, error) {
	cfg, err := tree.GetAssetConfig(src.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config for %s: %w", src.Key, err)
	}

	content, err := os.ReadFile(src.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.AbsPath, err)
	}

	allowRaw := cfg.ResolvedAllowRawAccess()
	p := &ProjectAsset{
		Key:            src.Key,
		ContentType:    src.ContentType,
		EnableAliasing: maybeBool(cfg.EnableAliasing),
		AllowRawAccess: &allowRaw,
		Headers:        cfg.CombinedHeaders(false),
		Encodings:      map[assetstate.Encoding]*EncodingUpload{},
	}
	if cfg.Cache.Kind == assetconfig.Value && cfg.Cache.Val.MaxAge != nil {
		maxAge := *cfg.Cache.Val.MaxAge
		p.MaxAge = &maxAge
	}

	wanted := wantedEncodings(cfg)
	existing := canisterAssets[src.Key]

	for _, enc := range wanted {
		payload, err := encode(content, enc)
		if err != nil {
			return nil, fmt.Errorf("encode %s as %s: %w", src.Key, enc, err)
		}
		sum := sha256.Sum256(payload)

		upload := &EncodingUpload{Encoding: enc, Sha256: sum}
		if alreadyInPlace(existing, enc, sum, src.ContentType) {
			upload.AlreadyInPlace = true
		} else {
			chunkIDs, err := uploadChunks(ctx, client, batchID, maxConcurrency, payload)
			if err != nil {
				return nil, fmt.Errorf("upload %s (%s): %w", src.Key, enc, err)
			}
			upload.ChunkIDs = chunkIDs
		}
		p.Encodings[enc] = upload
	}

	return p, nil
}

func maybeBool(m assetconfig.Maybe[bool]) *bool {
	if m.Kind != assetconfig.Value {
		return nil
	}
	v := m.Val
	return &v
}

func wantedEncodings(cfg assetconfig.AssetConfig) []assetstate.Encoding {
	if cfg.Encodings.Kind != assetconfig.Value {
		return []assetstate.Encoding{assetstate.EncodingIdentity}
	}
	out := make([]assetstate.Encoding, 0, len(cfg.Encodings.Val))
	for _, name := range cfg.Encodings.Val {
		out = append(out, assetstate.Encoding(name))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func encode(content []byte, enc assetstate.Encoding) ([]byte, error) {
	if enc == assetstate.EncodingIdentity {
		return content, nil
	}
	if enc == assetstate.EncodingGzip {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported encoding %q for on-the-fly compression", enc)
}

func alreadyInPlace(existing assetstate.AssetDetails, enc assetstate.Encoding, sum [32]byte, contentType string) bool {
	if existing.ContentType != contentType {
		return false
	}
	detail, ok := existing.Encodings[enc]
	if !ok {
		return false
	}
	return detail.Sha256 == sum
}

// uploadChunks splits payload on MaxChunkSize boundaries and uploads every
// piece through a bounded worker pool: completion order does not matter
// because each chunk's slot in ids is fixed by its byte offset, not by
// which create_chunk call returns first.
func uploadChunks(ctx context.Context, client canisterclient.Client, batchID uint64, maxConcurrency int, payload []byte) ([]uint64, error) {
	if len(payload) == 0 {
		id, err := createChunkWithRetry(ctx, client, batchID, nil)
		if err != nil {
			return nil, err
		}
		return []uint64{id}, nil
	}

	type slice struct {
		index int
		data  []byte
	}
	var slices []slice
	for offset, i := 0, 0; offset < len(payload); offset, i = offset+MaxChunkSize, i+1 {
		end := offset + MaxChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		slices = append(slices, slice{index: i, data: payload[offset:end]})
	}

	ids := make([]uint64, len(slices))
	err := runBounded(slices, maxConcurrency, func(s slice) error {
		id, err := createChunkWithRetry(ctx, client, batchID, s.data)
		if err != nil {
			return err
		}
		ids[s.index] = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
