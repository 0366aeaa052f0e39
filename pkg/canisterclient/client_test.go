package canisterclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"canister-assets/internal/assetstate"
)

func TestInProcessRoundTrip(t *testing.T) {
	state := assetstate.New(nil)
	client := NewInProcess(state)
	ctx := context.Background()

	batchID, err := client.CreateBatch(ctx)
	require.NoError(t, err)

	chunkID, err := client.CreateChunk(ctx, batchID, []byte("hello"))
	require.NoError(t, err)

	err = client.CommitBatch(ctx, batchID, []assetstate.Operation{
		assetstate.CreateAssetOp{Key: "/a.html", ContentType: "text/html"},
		assetstate.SetAssetContentOp{Key: "/a.html", Encoding: assetstate.EncodingIdentity, ChunkIDs: []uint64{chunkID}},
	})
	require.NoError(t, err)

	list, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "/a.html", list[0].Key)

	props, err := client.GetAssetProperties(ctx, "/a.html")
	require.NoError(t, err)
	require.Nil(t, props.MaxAge)
}

// TestHTTPClientAgainstInProcessServer spins up a minimal HTTP handler that
// forwards to an InProcess state, exercising the wire encode/decode path
// end to end without requiring the full cmd/assetserver binary.
func TestHTTPClientAgainstInProcessServer(t *testing.T) {
	state := assetstate.New(nil)
	backing := NewInProcess(state)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/batches", func(w http.ResponseWriter, r *http.Request) {
		id, err := backing.CreateBatch(r.Context())
		require.NoError(t, err)
		writeJSON(w, CreateBatchResponse{BatchID: id})
	})
	mux.HandleFunc("/api/v1/chunks", func(w http.ResponseWriter, r *http.Request) {
		var req CreateChunkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		id, err := backing.CreateChunk(r.Context(), req.BatchID, req.Content)
		require.NoError(t, err)
		writeJSON(w, CreateChunkResponse{ChunkID: id})
	})
	mux.HandleFunc("/api/v1/commit", func(w http.ResponseWriter, r *http.Request) {
		var req CommitBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		ops, err := DecodeOps(req.Operations)
		require.NoError(t, err)
		err = backing.CommitBatch(r.Context(), req.BatchID, ops)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, APIError{Error: err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v1/list", func(w http.ResponseWriter, r *http.Request) {
		list, err := backing.List(r.Context())
		require.NoError(t, err)
		writeJSON(w, list)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewHTTP(server.URL, server.Client())
	ctx := context.Background()

	batchID, err := client.CreateBatch(ctx)
	require.NoError(t, err)

	chunkID, err := client.CreateChunk(ctx, batchID, []byte("over the wire"))
	require.NoError(t, err)

	err = client.CommitBatch(ctx, batchID, []assetstate.Operation{
		assetstate.CreateAssetOp{Key: "/wire.html", ContentType: "text/html"},
		assetstate.SetAssetContentOp{Key: "/wire.html", Encoding: assetstate.EncodingIdentity, ChunkIDs: []uint64{chunkID}},
	})
	require.NoError(t, err)

	list, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "/wire.html", list[0].Key)
}

func TestEncodeDecodeOpsRoundTrip(t *testing.T) {
	maxAge := uint64(3600)
	sha := [32]byte{1, 2, 3}
	ops := []assetstate.Operation{
		assetstate.CreateAssetOp{Key: "/a", ContentType: "text/plain", MaxAge: &maxAge},
		assetstate.SetAssetContentOp{Key: "/a", Encoding: assetstate.EncodingGzip, ChunkIDs: []uint64{1, 2}, Sha256: &sha},
		assetstate.UnsetAssetContentOp{Key: "/a", Encoding: assetstate.EncodingGzip},
		assetstate.DeleteAssetOp{Key: "/b"},
		assetstate.ClearOp{},
		assetstate.SetAssetPropertiesOp{
			Key:            "/c",
			MaxAge:         assetstate.SetTo[uint64](100),
			Headers:        assetstate.Clear[map[string]string](),
			AllowRawAccess: assetstate.Untouched[bool](),
			IsAliased:      assetstate.SetTo(true),
		},
	}

	wireOps, err := EncodeOps(ops)
	require.NoError(t, err)

	decoded, err := DecodeOps(wireOps)
	require.NoError(t, err)
	require.Len(t, decoded, len(ops))

	setContent, ok := decoded[1].(assetstate.SetAssetContentOp)
	require.True(t, ok)
	require.Equal(t, sha, *setContent.Sha256)

	props, ok := decoded[5].(assetstate.SetAssetPropertiesOp)
	require.True(t, ok)
	require.True(t, props.MaxAge.Touched)
	require.Equal(t, uint64(100), *props.MaxAge.Value)
	require.True(t, props.Headers.Touched)
	require.Nil(t, props.Headers.Value)
	require.False(t, props.AllowRawAccess.Touched)
	require.True(t, props.IsAliased.Touched)
	require.True(t, *props.IsAliased.Value)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
