package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"canister-assets/internal/assetstate"
	"canister-assets/pkg/canisterclient"
)

func newTestServer() *server {
	return &server{
		state: assetstate.New(nil),
		log:   logrus.NewEntry(logrus.StandardLogger()),
	}
}

func TestCreateBatchAndChunkAndCommit(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.router())
	defer ts.Close()

	var batchResp canisterclient.CreateBatchResponse
	doJSON(t, ts.URL+"/api/v1/batches", nil, &batchResp)
	require.NotZero(t, batchResp.BatchID)

	var chunkResp canisterclient.CreateChunkResponse
	doJSON(t, ts.URL+"/api/v1/chunks", canisterclient.CreateChunkRequest{BatchID: batchResp.BatchID, Content: []byte("hello")}, &chunkResp)
	require.NotZero(t, chunkResp.ChunkID)

	ops, err := canisterclient.EncodeOps([]assetstate.Operation{
		assetstate.CreateAssetOp{Key: "/a.html", ContentType: "text/html"},
		assetstate.SetAssetContentOp{Key: "/a.html", Encoding: assetstate.EncodingIdentity, ChunkIDs: []uint64{chunkResp.ChunkID}},
	})
	require.NoError(t, err)

	body, _ := json.Marshal(canisterclient.CommitBatchRequest{BatchID: batchResp.BatchID, Operations: ops})
	resp, err := http.Post(ts.URL+"/api/v1/commit", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var list []assetstate.AssetDetails
	doJSONGet(t, ts.URL+"/api/v1/list", &list)
	require.Len(t, list, 1)
	require.Equal(t, "/a.html", list[0].Key)
}

func TestAssetRequestCatchAll(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.router())
	defer ts.Close()

	batch := s.state.CreateBatch()
	chunkID, err := s.state.CreateChunk(batch, []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, s.state.CommitBatch(batch, []assetstate.Operation{
		assetstate.CreateAssetOp{Key: "/a.html", ContentType: "text/html"},
		assetstate.SetAssetContentOp{Key: "/a.html", Encoding: assetstate.EncodingIdentity, ChunkIDs: []uint64{chunkID}},
	}))

	resp, err := http.Get(ts.URL + "/a.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func doJSON(t *testing.T, url string, body, out any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	resp, err := http.Post(url, "application/json", reader)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func doJSONGet(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
