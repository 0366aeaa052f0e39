package assetstate

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// hashHeaderMap computes the "representation independent hash" of a
// header set: each (lowercased key, value) pair is hashed independently,
// the key‖value digest pairs are sorted, and the sorted sequence is
// hashed again. This is the same shape internal/requestid uses for
// struct fields — both come from the same certification-domain source —
// kept as an independent implementation here since the two hash
// different logical things (headers vs. an arbitrary request record) and
// tying them together would make an unrelated change to one silently
// affect the other.
func hashHeaderMap(headers map[string]string) [32]byte {
	type pair struct{ kh, vh [32]byte }
	pairs := make([]pair, 0, len(headers))
	for k, v := range headers {
		pairs = append(pairs, pair{
			kh: sha256.Sum256([]byte(strings.ToLower(k))),
			vh: sha256.Sum256([]byte(v)),
		})
	}
	concatenated := make([][]byte, 0, len(pairs))
	for _, p := range pairs {
		buf := make([]byte, 64)
		copy(buf[:32], p.kh[:])
		copy(buf[32:], p.vh[:])
		concatenated = append(concatenated, buf)
	}
	sort.Slice(concatenated, func(i, j int) bool {
		return string(concatenated[i]) < string(concatenated[j])
	})
	h := sha256.New()
	for _, c := range concatenated {
		h.Write(c)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// servedHeaders returns the exact header set that will accompany a
// response for asset/encoding, plus the synthetic ":ic-cert-status" entry
// §4.2.2 requires be folded into the v2 response hash.
func servedHeaders(a *Asset, status int) map[string]string {
	out := make(map[string]string, len(a.Headers)+2)
	for k, v := range a.Headers {
		out[strings.ToLower(k)] = v
	}
	out["content-type"] = a.ContentType
	out[":ic-cert-status"] = fmt.Sprintf("%d", status)
	return out
}

// certExpression builds the canonical ic_certificate_expression string for
// one (asset, encoding): a deterministic summary of what is certified,
// which is all a v2 witness needs to name unambiguously.
func certExpression(a *Asset, encoding Encoding) string {
	keys := make([]string, 0, len(a.Headers))
	for k := range a.Headers {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)
	return fmt.Sprintf("default_certification(ValidationArgs{no_request_certification:Empty{},response_certification:ResponseCertification{response_header_exclusions:ResponseHeaderList{headers:%v}}}) encoding=%s",
		keys, encoding)
}

// sha256Sum wraps crypto/sha256.Sum256 as the indirection point for
// shaSum in state.go.
func sha256Sum(b []byte) [32]byte { return sha256.Sum256(b) }

// recertifyEncoding recomputes the CertExpr/CertExprHash/Sha256/ResponseHash
// fields of one encoding; Certified is set by the caller once the
// encoding-priority selection is known.
func recertifyEncoding(a *Asset, encoding Encoding) {
	enc := a.Encodings[encoding]
	content := enc.Content()
	enc.Sha256 = sha256.Sum256(content)
	enc.CertExpr = certExpression(a, encoding)
	enc.CertExprHash = sha256.Sum256([]byte(enc.CertExpr))

	headers := servedHeaders(a, 200)
	repHash := hashHeaderMap(headers)
	h := sha256.New()
	h.Write(repHash[:])
	h.Write(enc.Sha256[:])
	var respHash [32]byte
	copy(respHash[:], h.Sum(nil))
	enc.ResponseHash = respHash
}
