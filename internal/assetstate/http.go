package assetstate

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Header is one (name, value) HTTP header pair, preserving the exact
// casing a client sent or a server wants to send.
type Header struct{ Name, Value string }

// Request is the HTTP-like request shape of §4.2.3.
type Request struct {
	Method  string
	URL     string
	Headers []Header
	Body    []byte
}

func (r Request) header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// StreamingToken is the continuation token for chunked responses.
type StreamingToken struct {
	Key             string
	ContentEncoding Encoding
	Index           uint64
	Sha256          [32]byte
}

// StreamingStrategy names the callback a client should invoke with Token
// to fetch subsequent chunks.
type StreamingStrategy struct {
	Callback string
	Token    StreamingToken
}

// Response is the HTTP-like response shape of §4.2.3.
type Response struct {
	StatusCode int
	Headers    []Header
	Body       []byte
	Streaming  *StreamingStrategy
}

// SetApex records the domain suffix used to detect and rewrite
// "*.raw.<apex>" hosts (§4.2.3 step 6). An empty apex disables the
// raw-domain redirect check.
func (s *State) SetApex(apex string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apex = apex
}

// decodePercent strictly percent-decodes path: any "%" not followed by
// two valid hex digits is an error, "+" is left as a literal plus (not
// treated as space), and "%%" decodes to a single "%" (i.e. "%25").
func decodePercent(path string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(path) && path[i+1] == '%' {
			b.WriteByte('%')
			i++
			continue
		}
		if i+2 >= len(path) {
			return "", fmt.Errorf("invalid percent-encoding at offset %d", i)
		}
		v, err := strconv.ParseUint(path[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("invalid percent-encoding at offset %d", i)
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}

func stripQuery(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		return path[:idx]
	}
	return path
}

func parseAcceptEncodings(req Request) []string {
	var out []string
	if v, ok := req.header("Accept-Encoding"); ok {
		for _, part := range strings.Split(v, ",") {
			out = append(out, strings.TrimSpace(part))
		}
	}
	out = append(out, string(EncodingIdentity))
	return out
}

// HandleHTTPRequest implements §4.2.3's algorithm end to end.
func (s *State) HandleHTTPRequest(req Request) Response {
	decoded, err := decodePercent(req.URL)
	if err != nil {
		return Response{StatusCode: 400, Body: []byte("invalid percent-encoding: " + err.Error())}
	}
	path := stripQuery(decoded)

	s.mu.Lock()
	defer s.mu.Unlock()

	if host, ok := req.header("Host"); ok && s.apex != "" {
		if id, isRaw := rawHost(host, s.apex); isRaw {
			if a, found := s.lookupDirect(path); found && !a.allowRawAccess() {
				location := fmt.Sprintf("https://%s.%s%s", id, s.apex, req.URL)
				return Response{StatusCode: 308, Headers: []Header{{Name: "Location", Value: location}}}
			}
		}
	}

	servingKey, asset, found := s.resolveAlias(path)
	if !found {
		if idx, ok := s.assets[IndexFile]; ok {
			return s.respondWithIndexFallback(path, idx)
		}
		return s.respond404(path)
	}

	encodings := parseAcceptEncodings(req)
	chosen, certified, ok := s.chooseEncoding(asset, encodings)
	if !ok {
		return s.respond404(path)
	}
	return s.buildResponse(servingKey, asset, chosen, certified, 200)
}

func (s *State) lookupDirect(path string) (*Asset, bool) {
	_, a, ok := s.resolveAlias(path)
	return a, ok
}

// chooseEncoding picks the first requested encoding the asset actually
// has. If that encoding isn't certified but identity is, the resolved
// Open Question (§9/SPEC_FULL §12) has this degrade to serving identity
// bytes under the identity witness rather than serving the requested
// encoding's bytes under a certificate that does not cover them.
func (s *State) chooseEncoding(a *Asset, requested []string) (chosen Encoding, servedAsCertified Encoding, ok bool) {
	for _, want := range requested {
		enc := Encoding(want)
		e, has := a.Encodings[enc]
		if !has {
			continue
		}
		if e.Certified {
			return enc, enc, true
		}
		if id, hasIdentity := a.Encodings[EncodingIdentity]; hasIdentity && id.Certified {
			return EncodingIdentity, EncodingIdentity, true
		}
		return enc, "", true
	}
	return "", "", false
}

func (s *State) buildResponse(key string, a *Asset, encoding, certifiedEncoding Encoding, status int) Response {
	e := a.Encodings[encoding]
	headers := []Header{{Name: "Content-Type", Value: a.ContentType}}
	for k, v := range a.Headers {
		headers = append(headers, Header{Name: k, Value: v})
	}
	if encoding != EncodingIdentity {
		headers = append(headers, Header{Name: "Content-Encoding", Value: string(encoding)})
	}
	if certifiedEncoding != "" {
		certEnc := a.Encodings[certifiedEncoding]
		witness := s.tree.Witness(v2ExprPath(key, certEnc.CertExprHash, certEnc.ResponseHash), v1Path(key))
		headers = append(headers, Header{Name: "IC-Certificate", Value: s.certificateHeaderV2(witness, key, certEnc)})
	}

	body := e.Chunks[0]
	resp := Response{StatusCode: status, Headers: headers, Body: body}
	if len(e.Chunks) > 1 {
		token := StreamingToken{Key: key, ContentEncoding: encoding, Index: 1, Sha256: e.Sha256}
		resp.Streaming = &StreamingStrategy{Callback: "http_request_streaming_callback", Token: token}
	}
	return resp
}

func (s *State) respondWithIndexFallback(requestedPath string, idx *Asset) Response {
	present := idx.sortedEncodings()
	if len(present) == 0 {
		return s.respond404(requestedPath)
	}
	certEnc := present[0]
	e := idx.Encodings[certEnc]
	// Combined witness: proves absence at requestedPath AND index.html's
	// certified hash, in one tree — §4.2.3 step 4.
	witness := s.tree.Witness(v1Path(requestedPath), v2ExprPath(IndexFile, e.CertExprHash, e.ResponseHash))

	headers := []Header{{Name: "Content-Type", Value: idx.ContentType}}
	for k, v := range idx.Headers {
		headers = append(headers, Header{Name: k, Value: v})
	}
	if certEnc != EncodingIdentity {
		headers = append(headers, Header{Name: "Content-Encoding", Value: string(certEnc)})
	}
	headers = append(headers, Header{Name: "IC-Certificate", Value: s.certificateHeaderV2(witness, IndexFile, e)})

	body := e.Chunks[0]
	resp := Response{StatusCode: 200, Headers: headers, Body: body}
	if len(e.Chunks) > 1 {
		token := StreamingToken{Key: IndexFile, ContentEncoding: certEnc, Index: 1, Sha256: e.Sha256}
		resp.Streaming = &StreamingStrategy{Callback: "http_request_streaming_callback", Token: token}
	}
	return resp
}

// respond404 proves the absence of path under both certification layouts:
// the v1 leaf at http_assets/<path> and the v2 "<$>" node at
// http_expr/<path-segments>/<$>, combined into one witness. Only a v2-
// formatted header is emitted, matching buildResponse/respondWithIndexFallback
// (the v1 leaf still rides along inside the combined witness, exactly as it
// does on those success paths, even though no v1 header text is produced).
func (s *State) respond404(path string) Response {
	witness := s.tree.Witness(v1Path(path), v2RootPath(path))
	return Response{
		StatusCode: 404,
		Headers:    []Header{{Name: "IC-Certificate", Value: s.certificateHeaderV2(witness, path, nil)}},
		Body:       []byte("asset not found: " + path),
	}
}

func (s *State) certificateHeaderV2(witness Node, key string, e *AssetEncoding) string {
	treeCBOR, _ := EncodeWitness(witness)
	exprPath, _ := EncodeExprPath(append(v2Prefix(key)[1:], "<$>"))
	return fmt.Sprintf("version=2, certificate=:%s:, tree=:%s:, expr_path=:%s:",
		base64.StdEncoding.EncodeToString(nil),
		base64.StdEncoding.EncodeToString(treeCBOR),
		base64.StdEncoding.EncodeToString(exprPath))
}

// HandleStreamingCallback implements http_request_streaming_callback:
// returns the next chunk and a refreshed token, or nil when finished.
func (s *State) HandleStreamingCallback(token StreamingToken) ([]byte, *StreamingToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[token.Key]
	if !ok {
		return nil, nil, ErrAssetNotFound
	}
	e, ok := a.Encodings[token.ContentEncoding]
	if !ok {
		return nil, nil, ErrNoSuchEncoding
	}
	if e.Sha256 != token.Sha256 {
		return nil, nil, fmt.Errorf("invalid token on streaming: %w", ErrSha256Mismatch)
	}
	if token.Index >= uint64(len(e.Chunks)) {
		return nil, nil, fmt.Errorf("invalid token on streaming: %w", ErrChunkIndexOOB)
	}
	chunk := e.Chunks[token.Index]
	next := token.Index + 1
	if next >= uint64(len(e.Chunks)) {
		return chunk, nil, nil
	}
	return chunk, &StreamingToken{Key: token.Key, ContentEncoding: token.ContentEncoding, Index: next, Sha256: e.Sha256}, nil
}

// rawHost reports whether host is of the form "<id>.raw.<apex>" and, if
// so, returns <id>.
func rawHost(host, apex string) (string, bool) {
	suffix := ".raw." + apex
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	return strings.TrimSuffix(host, suffix), true
}

// CertifiedTree returns a self-describing CBOR encoding of the whole
// hash tree, paired with the externally supplied certificate, for the
// `certified_tree` operation.
func (s *State) CertifiedTree(certificate []byte) (certOut, treeCBOR []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	full := toNode(s.treeRoot(), nil)
	treeCBOR, err = EncodeWitness(full)
	return certificate, treeCBOR, err
}

func (s *State) treeRoot() *trieNode { return s.tree.root }
