package assetsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"canister-assets/internal/assetstate"
)

func TestPlanCreationThenSetEncoding(t *testing.T) {
	sum := [32]byte{1, 2, 3}
	project := map[string]*ProjectAsset{
		"/a.html": {
			Key:         "/a.html",
			ContentType: "text/html",
			Headers:     map[string]string{},
			Encodings: map[assetstate.Encoding]*EncodingUpload{
				assetstate.EncodingIdentity: {Encoding: assetstate.EncodingIdentity, ChunkIDs: []uint64{1}, Sha256: sum},
			},
		},
	}

	ops := Plan(project, map[string]assetstate.AssetDetails{}, map[string]assetstate.AssetProperties{}, true)
	require.Len(t, ops, 2)

	create, ok := ops[0].(assetstate.CreateAssetOp)
	require.True(t, ok)
	require.Equal(t, "/a.html", create.Key)

	setEnc, ok := ops[1].(assetstate.SetAssetContentOp)
	require.True(t, ok)
	require.Equal(t, assetstate.EncodingIdentity, setEnc.Encoding)
}

func TestPlanNoOpWhenIdenticalOnBothSides(t *testing.T) {
	sum := [32]byte{9, 9, 9}
	project := map[string]*ProjectAsset{
		"/a.html": {
			Key:         "/a.html",
			ContentType: "text/html",
			Headers:     map[string]string{},
			Encodings: map[assetstate.Encoding]*EncodingUpload{
				assetstate.EncodingIdentity: {Encoding: assetstate.EncodingIdentity, Sha256: sum, AlreadyInPlace: true},
			},
		},
	}
	canister := map[string]assetstate.AssetDetails{
		"/a.html": {
			Key:         "/a.html",
			ContentType: "text/html",
			Encodings: map[assetstate.Encoding]assetstate.EncodingDetails{
				assetstate.EncodingIdentity: {Sha256: sum, TotalLength: 3},
			},
		},
	}
	props := map[string]assetstate.AssetProperties{
		"/a.html": {},
	}

	ops := Plan(project, canister, props, true)
	require.Empty(t, ops, "identical project and canister state must produce zero operations")
}

func TestPlanDeletesObsoleteWhenClearObsolete(t *testing.T) {
	canister := map[string]assetstate.AssetDetails{
		"/old.html": {Key: "/old.html", ContentType: "text/html"},
	}
	ops := Plan(map[string]*ProjectAsset{}, canister, map[string]assetstate.AssetProperties{}, true)
	require.Len(t, ops, 1)
	del, ok := ops[0].(assetstate.DeleteAssetOp)
	require.True(t, ok)
	require.Equal(t, "/old.html", del.Key)
}

func TestPlanKeepsObsoleteWhenNotClearing(t *testing.T) {
	canister := map[string]assetstate.AssetDetails{
		"/old.html": {Key: "/old.html", ContentType: "text/html"},
	}
	ops := Plan(map[string]*ProjectAsset{}, canister, map[string]assetstate.AssetProperties{}, false)
	require.Empty(t, ops)
}

func TestPlanUnsetsDroppedEncoding(t *testing.T) {
	project := map[string]*ProjectAsset{
		"/a.html": {
			Key:         "/a.html",
			ContentType: "text/html",
			Headers:     map[string]string{},
			Encodings: map[assetstate.Encoding]*EncodingUpload{
				assetstate.EncodingIdentity: {Encoding: assetstate.EncodingIdentity, AlreadyInPlace: true},
			},
		},
	}
	canister := map[string]assetstate.AssetDetails{
		"/a.html": {
			Key:         "/a.html",
			ContentType: "text/html",
			Encodings: map[assetstate.Encoding]assetstate.EncodingDetails{
				assetstate.EncodingIdentity: {},
				assetstate.EncodingGzip:     {},
			},
		},
	}
	ops := Plan(project, canister, map[string]assetstate.AssetProperties{}, true)
	require.Len(t, ops, 1)
	unset, ok := ops[0].(assetstate.UnsetAssetContentOp)
	require.True(t, ok)
	require.Equal(t, assetstate.EncodingGzip, unset.Encoding)
}

func TestPlanPropertyUpdateOnlyWhenDiffering(t *testing.T) {
	maxAge := uint64(600)
	project := map[string]*ProjectAsset{
		"/a.html": {Key: "/a.html", ContentType: "text/html", Headers: map[string]string{}, MaxAge: &maxAge, Encodings: map[assetstate.Encoding]*EncodingUpload{}},
	}
	canister := map[string]assetstate.AssetDetails{
		"/a.html": {Key: "/a.html", ContentType: "text/html"},
	}
	props := map[string]assetstate.AssetProperties{
		"/a.html": {},
	}

	ops := Plan(project, canister, props, true)
	require.Len(t, ops, 1)
	set, ok := ops[0].(assetstate.SetAssetPropertiesOp)
	require.True(t, ok)
	require.Equal(t, uint64(600), *set.MaxAge.Value)
}
