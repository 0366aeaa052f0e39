package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"canister-assets/internal/assetstate"
	"canister-assets/pkg/canisterclient"
)

func (s *server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	id := s.state.CreateBatch()
	writeJSON(w, http.StatusOK, canisterclient.CreateBatchResponse{BatchID: id})
}

func (s *server) handleCreateChunk(w http.ResponseWriter, r *http.Request) {
	var req canisterclient.CreateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.state.CreateChunk(req.BatchID, req.Content)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, canisterclient.CreateChunkResponse{ChunkID: id})
}

func (s *server) handleCommitBatch(w http.ResponseWriter, r *http.Request) {
	var req canisterclient.CommitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ops, err := canisterclient.DecodeOps(req.Operations)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.state.CommitBatch(req.BatchID, ops); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.List())
}

func (s *server) handleGetProperties(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	props, err := s.state.GetAssetProperties(key)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

// handleAssetRequest adapts a live net/http request into the certified
// responder's own request/response shape and writes the result back.
func (s *server) handleAssetRequest(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}
	req := assetstate.Request{
		Method:  r.Method,
		URL:     r.URL.RequestURI(),
		Headers: append(headersToPairs(r.Header), assetstate.Header{Name: "Host", Value: r.Host}),
		Body:    body,
	}
	resp := s.state.HandleHTTPRequest(req)

	for _, h := range resp.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func statusForError(err error) int {
	switch err {
	case assetstate.ErrAssetNotFound, assetstate.ErrBatchNotFound, assetstate.ErrNoSuchEncoding:
		return http.StatusNotFound
	case assetstate.ErrNotAuthorized:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, canisterclient.APIError{Error: err.Error()})
}

func headersToPairs(h http.Header) []assetstate.Header {
	out := make([]assetstate.Header, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			out = append(out, assetstate.Header{Name: name, Value: v})
		}
	}
	return out
}
