package canisterclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"canister-assets/internal/assetstate"
)

// HTTP talks to a remotely hosted cmd/assetserver over the JSON API it
// exposes under /api/v1. It is the out-of-process twin of InProcess: the
// sync engine is written against the Client interface and does not care
// which one it got.
type HTTP struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTP returns a Client that issues requests against baseURL (e.g.
// "http://localhost:8080"). A zero-value http.Client with a sane timeout
// is used if client is nil.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{BaseURL: baseURL, HTTPClient: client}
}

type CreateBatchResponse struct {
	BatchID uint64 `json:"batch_id"`
}

func (c *HTTP) CreateBatch(ctx context.Context) (uint64, error) {
	var resp CreateBatchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/batches", nil, &resp); err != nil {
		return 0, err
	}
	return resp.BatchID, nil
}

type CreateChunkRequest struct {
	BatchID uint64 `json:"batch_id"`
	Content []byte `json:"content"`
}

type CreateChunkResponse struct {
	ChunkID uint64 `json:"chunk_id"`
}

func (c *HTTP) CreateChunk(ctx context.Context, batchID uint64, content []byte) (uint64, error) {
	var resp CreateChunkResponse
	req := CreateChunkRequest{BatchID: batchID, Content: content}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/chunks", req, &resp); err != nil {
		return 0, err
	}
	return resp.ChunkID, nil
}

type CommitBatchRequest struct {
	BatchID    uint64   `json:"batch_id"`
	Operations []WireOp `json:"operations"`
}

func (c *HTTP) CommitBatch(ctx context.Context, batchID uint64, ops []assetstate.Operation) error {
	wireOps, err := EncodeOps(ops)
	if err != nil {
		return fmt.Errorf("encode operations: %w", err)
	}
	req := CommitBatchRequest{BatchID: batchID, Operations: wireOps}
	return c.doJSON(ctx, http.MethodPost, "/api/v1/commit", req, nil)
}

func (c *HTTP) List(ctx context.Context) ([]assetstate.AssetDetails, error) {
	var resp []assetstate.AssetDetails
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/list", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTP) GetAssetProperties(ctx context.Context, key string) (assetstate.AssetProperties, error) {
	var resp assetstate.AssetProperties
	path := "/api/v1/properties/" + url.PathEscape(key)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return assetstate.AssetProperties{}, err
	}
	return resp, nil
}

// APIError mirrors the error envelope cmd/assetserver writes for non-2xx
// responses: {"error": "<stable-prefix>: detail"}.
type APIError struct {
	Error string `json:"error"`
}

func (c *HTTP) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr APIError
		if jsonErr := json.Unmarshal(data, &apiErr); jsonErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
