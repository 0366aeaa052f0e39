package canisterclient

import (
	"context"

	"canister-assets/internal/assetstate"
)

// InProcess wraps an assetstate.State directly, skipping any transport.
// Used by tests and by cmd/assetserver to drive the same state the HTTP
// responder serves.
type InProcess struct {
	State *assetstate.State
}

// NewInProcess returns a Client backed directly by state.
func NewInProcess(state *assetstate.State) *InProcess {
	return &InProcess{State: state}
}

func (c *InProcess) CreateBatch(ctx context.Context) (uint64, error) {
	return c.State.CreateBatch(), nil
}

func (c *InProcess) CreateChunk(ctx context.Context, batchID uint64, content []byte) (uint64, error) {
	return c.State.CreateChunk(batchID, content)
}

func (c *InProcess) CommitBatch(ctx context.Context, batchID uint64, ops []assetstate.Operation) error {
	return c.State.CommitBatch(batchID, ops)
}

func (c *InProcess) List(ctx context.Context) ([]assetstate.AssetDetails, error) {
	return c.State.List(), nil
}

func (c *InProcess) GetAssetProperties(ctx context.Context, key string) (assetstate.AssetProperties, error) {
	return c.State.GetAssetProperties(key)
}
