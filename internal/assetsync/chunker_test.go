package assetsync

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"canister-assets/internal/assetconfig"
	"canister-assets/internal/assetstate"
	"canister-assets/internal/testutil"
	"canister-assets/pkg/canisterclient"
)

func TestBuildProjectAssetUploadsNewContent(t *testing.T) {
	sb, err := testutil.NewSandbox()
	require.NoError(t, err)
	defer sb.Cleanup()

	path := sb.Path("a.html")
	require.NoError(t, os.WriteFile(path, []byte("<html>hi</html>"), 0644))
	tree, err := assetconfig.Load(sb.Root)
	require.NoError(t, err)

	state := assetstate.New(nil)
	client := canisterclient.NewInProcess(state)
	batchID := state.CreateBatch()

	src := AssetSource{Key: "/a.html", AbsPath: path, ContentType: "text/html"}
	pa, err := BuildProjectAsset(context.Background(), client, batchID, 4, tree, src, map[string]assetstate.AssetDetails{})
	require.NoError(t, err)

	enc := pa.Encodings[assetstate.EncodingIdentity]
	require.NotNil(t, enc)
	require.False(t, enc.AlreadyInPlace)
	require.Len(t, enc.ChunkIDs, 1)
}

func TestBuildProjectAssetSkipsAlreadyInPlace(t *testing.T) {
	sb, err := testutil.NewSandbox()
	require.NoError(t, err)
	defer sb.Cleanup()

	path := sb.Path("a.html")
	content := []byte("<html>hi</html>")
	require.NoError(t, os.WriteFile(path, content, 0644))
	tree, err := assetconfig.Load(sb.Root)
	require.NoError(t, err)

	state := assetstate.New(nil)
	client := canisterclient.NewInProcess(state)
	batchID := state.CreateBatch()

	sum := sha256.Sum256(content)
	canisterAssets := map[string]assetstate.AssetDetails{
		"/a.html": {
			Key:         "/a.html",
			ContentType: "text/html",
			Encodings: map[assetstate.Encoding]assetstate.EncodingDetails{
				assetstate.EncodingIdentity: {Sha256: sum, TotalLength: len(content)},
			},
		},
	}

	src := AssetSource{Key: "/a.html", AbsPath: path, ContentType: "text/html"}
	pa, err := BuildProjectAsset(context.Background(), client, batchID, 4, tree, src, canisterAssets)
	require.NoError(t, err)

	enc := pa.Encodings[assetstate.EncodingIdentity]
	require.True(t, enc.AlreadyInPlace)
	require.Empty(t, enc.ChunkIDs)
}

func TestBuildProjectAssetSplitsLargeContentAcrossChunks(t *testing.T) {
	sb, err := testutil.NewSandbox()
	require.NoError(t, err)
	defer sb.Cleanup()

	path := sb.Path("big.bin")
	content := make([]byte, MaxChunkSize*2+10)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, content, 0644))
	tree, err := assetconfig.Load(sb.Root)
	require.NoError(t, err)

	state := assetstate.New(nil)
	client := canisterclient.NewInProcess(state)
	batchID := state.CreateBatch()

	src := AssetSource{Key: "/big.bin", AbsPath: path, ContentType: "application/octet-stream"}
	pa, err := BuildProjectAsset(context.Background(), client, batchID, 4, tree, src, map[string]assetstate.AssetDetails{})
	require.NoError(t, err)

	enc := pa.Encodings[assetstate.EncodingIdentity]
	require.Len(t, enc.ChunkIDs, 3)
}

func TestBuildProjectAssetZeroByteAssetStillUploadsOneChunk(t *testing.T) {
	sb, err := testutil.NewSandbox()
	require.NoError(t, err)
	defer sb.Cleanup()

	path := sb.Path("empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	tree, err := assetconfig.Load(sb.Root)
	require.NoError(t, err)

	state := assetstate.New(nil)
	client := canisterclient.NewInProcess(state)
	batchID := state.CreateBatch()

	src := AssetSource{Key: "/empty.txt", AbsPath: path, ContentType: "text/plain"}
	pa, err := BuildProjectAsset(context.Background(), client, batchID, 4, tree, src, map[string]assetstate.AssetDetails{})
	require.NoError(t, err)

	enc := pa.Encodings[assetstate.EncodingIdentity]
	require.Len(t, enc.ChunkIDs, 1)
}

func TestDiscoverSourcesSkipsConfigFiles(t *testing.T) {
	sb, err := testutil.NewSandbox()
	require.NoError(t, err)
	defer sb.Cleanup()

	require.NoError(t, os.WriteFile(sb.Path(".ic-assets.json"), []byte(`[]`), 0644))
	require.NoError(t, os.WriteFile(sb.Path("a.html"), []byte("hi"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(sb.Root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sb.Root, "sub", "b.txt"), []byte("b"), 0644))

	tree, err := assetconfig.Load(sb.Root)
	require.NoError(t, err)

	sources, err := DiscoverSources(sb.Root, tree)
	require.NoError(t, err)
	require.Len(t, sources, 2)
}
