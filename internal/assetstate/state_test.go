package assetstate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestState() *State {
	return New(nil)
}

func createSimpleAsset(t *testing.T, s *State, key, contentType string, content []byte) {
	t.Helper()
	batch := s.CreateBatch()
	chunkID, err := s.CreateChunk(batch, content)
	require.NoError(t, err)
	err = s.CommitBatch(batch, []Operation{
		CreateAssetOp{Key: key, ContentType: contentType},
		SetAssetContentOp{Key: key, Encoding: EncodingIdentity, ChunkIDs: []uint64{chunkID}},
	})
	require.NoError(t, err)
}

func TestBatchExpirySweep(t *testing.T) {
	s := newTestState()
	old := nowFunc
	defer func() { nowFunc = old }()

	base := time.Now()
	nowFunc = func() time.Time { return base }
	batch := s.CreateBatch()

	nowFunc = func() time.Time { return base.Add(BatchExpiry + time.Second) }
	_, err := s.CreateChunk(batch, []byte("x"))
	require.ErrorIs(t, err, ErrBatchNotFound)
}

func TestCommitBatchAllOrNothing(t *testing.T) {
	s := newTestState()
	createSimpleAsset(t, s, "/a.html", "text/html", []byte("hello"))

	batch := s.CreateBatch()
	err := s.CommitBatch(batch, []Operation{
		CreateAssetOp{Key: "/b.html", ContentType: "text/html"},
		DeleteAssetOp{Key: "/does-not-exist"},
	})
	require.Error(t, err)

	_, ok := s.assets["/b.html"]
	require.False(t, ok, "partial mutation must not survive a failed commit")
}

func TestRoundTripHash(t *testing.T) {
	s := newTestState()
	content := []byte("<!DOCTYPE html><html></html>")
	createSimpleAsset(t, s, "/a.html", "text/html", content)

	chunk, err := s.GetChunk("/a.html", EncodingIdentity, 0, nil)
	require.NoError(t, err)
	require.Equal(t, content, chunk)

	expected := shaSum(content)
	require.Equal(t, expected, s.assets["/a.html"].Encodings[EncodingIdentity].Sha256)
}

func TestDoubleOptionPropertyUpdate(t *testing.T) {
	s := newTestState()
	createSimpleAsset(t, s, "/a.html", "text/html", []byte("hi"))
	err := s.SetAssetProperties(SetAssetPropertiesOp{
		Key:     "/a.html",
		Headers: SetTo(map[string]string{"X": "1"}),
	})
	require.NoError(t, err)

	err = s.SetAssetProperties(SetAssetPropertiesOp{
		Key:            "/a.html",
		MaxAge:         SetTo[uint64](604800),
		Headers:        Clear[map[string]string](),
		AllowRawAccess: Untouched[bool](),
		IsAliased:      Untouched[bool](),
	})
	require.NoError(t, err)

	props, err := s.GetAssetProperties("/a.html")
	require.NoError(t, err)
	require.NotNil(t, props.MaxAge)
	require.Equal(t, uint64(604800), *props.MaxAge)
	require.Empty(t, props.Headers)
	require.Nil(t, props.AllowRawAccess)
	require.Nil(t, props.IsAliased)
}

func TestStreamingTwoChunks(t *testing.T) {
	s := newTestState()
	batch := s.CreateBatch()
	c1, err := s.CreateChunk(batch, []byte("<!DOCTYPE html>"))
	require.NoError(t, err)
	c2, err := s.CreateChunk(batch, []byte("<html>Index</html>"))
	require.NoError(t, err)
	err = s.CommitBatch(batch, []Operation{
		CreateAssetOp{Key: "/big.html", ContentType: "text/html"},
		SetAssetContentOp{Key: "/big.html", Encoding: EncodingIdentity, ChunkIDs: []uint64{c1, c2}},
	})
	require.NoError(t, err)

	resp := s.HandleHTTPRequest(Request{Method: "GET", URL: "/big.html"})
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, []byte("<!DOCTYPE html>"), resp.Body)
	require.NotNil(t, resp.Streaming)
	require.EqualValues(t, 1, resp.Streaming.Token.Index)

	body, next, err := s.HandleStreamingCallback(resp.Streaming.Token)
	require.NoError(t, err)
	require.Equal(t, []byte("<html>Index</html>"), body)
	require.Nil(t, next)
}

func TestCertified404(t *testing.T) {
	s := newTestState()
	resp := s.HandleHTTPRequest(Request{Method: "GET", URL: "/nope.txt"})
	require.Equal(t, 404, resp.StatusCode)

	var header string
	for _, h := range resp.Headers {
		if h.Name == "IC-Certificate" {
			header = h.Value
		}
	}
	require.NotEmpty(t, header, "404 response must carry a certificate header")
	require.True(t, strings.HasPrefix(header, "version=2"), "404 must certify under v2, not just v1: %s", header)

	// The witness must be the same absence proof buildResponse/
	// respondWithIndexFallback would compute for this key: the v1 leaf and
	// the v2 "<$>" root, both pruned-but-provably-absent, combined in one
	// tree and rendered through the same v2 header formatter.
	want := s.certificateHeaderV2(s.tree.Witness(v1Path("/nope.txt"), v2RootPath("/nope.txt")), "/nope.txt", nil)
	require.Equal(t, want, header)
}

func TestInvalidPercentEncoding(t *testing.T) {
	s := newTestState()
	resp := s.HandleHTTPRequest(Request{Method: "GET", URL: "/has%percent.txt"})
	require.Equal(t, 400, resp.StatusCode)
}

func TestRawDomainRedirect(t *testing.T) {
	s := newTestState()
	s.SetApex("ic0.app")
	no := false
	err := s.CreateAsset(CreateAssetOp{Key: "/secret.txt", ContentType: "text/plain", AllowRawAccess: &no})
	require.NoError(t, err)
	batch := s.CreateBatch()
	chunkID, err := s.CreateChunk(batch, []byte("shh"))
	require.NoError(t, err)
	require.NoError(t, s.CommitBatch(batch, []Operation{
		SetAssetContentOp{Key: "/secret.txt", Encoding: EncodingIdentity, ChunkIDs: []uint64{chunkID}},
	}))

	resp := s.HandleHTTPRequest(Request{
		Method:  "GET",
		URL:     "/secret.txt",
		Headers: []Header{{Name: "Host", Value: "abc123.raw.ic0.app"}},
	})
	require.Equal(t, 308, resp.StatusCode)
	loc, ok := "", false
	for _, h := range resp.Headers {
		if h.Name == "Location" {
			loc, ok = h.Value, true
		}
	}
	require.True(t, ok)
	require.Equal(t, "https://abc123.ic0.app/secret.txt", loc)
}

func TestAliasSemantics(t *testing.T) {
	s := newTestState()
	createSimpleAsset(t, s, "/contents.html", "text/html", []byte("contents"))
	createSimpleAsset(t, s, "/index.html", "text/html", []byte("root index"))
	createSimpleAsset(t, s, "/subdirectory/index.html", "text/html", []byte("sub index"))

	cases := map[string]string{
		"/contents":          "contents",
		"/":                  "root index",
		"":                   "root index",
		"/subdirectory":      "sub index",
		"/subdirectory/":     "sub index",
		"/subdirectory/index": "sub index",
	}
	for path, want := range cases {
		resp := s.HandleHTTPRequest(Request{Method: "GET", URL: path})
		require.Equal(t, 200, resp.StatusCode, "path %q", path)
		require.Equal(t, want, string(resp.Body), "path %q", path)
	}

	createSimpleAsset(t, s, "/contents", "text/plain", []byte("real contents asset"))
	resp := s.HandleHTTPRequest(Request{Method: "GET", URL: "/contents"})
	require.Equal(t, "real contents asset", string(resp.Body))

	require.NoError(t, s.DeleteAsset("/contents"))
	resp = s.HandleHTTPRequest(Request{Method: "GET", URL: "/contents"})
	require.Equal(t, "contents", string(resp.Body))
}

func TestDiffNoOpSnapshotRestore(t *testing.T) {
	s := newTestState()
	createSimpleAsset(t, s, "/a.html", "text/html", []byte("x"))

	snap := s.Snapshot()
	require.Len(t, snap.Assets, 1)

	s2 := newTestState()
	s2.Restore(snap)
	props, err := s2.GetAssetProperties("/a.html")
	require.NoError(t, err)
	require.Nil(t, props.MaxAge)

	list := s2.List()
	require.Len(t, list, 1)
	require.Equal(t, s.assets["/a.html"].Encodings[EncodingIdentity].Sha256, list[0].Encodings[EncodingIdentity].Sha256)
}
