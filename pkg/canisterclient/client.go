// Package canisterclient is the thin interface the asset sync engine uses
// to reach a remote asset canister, versioned the way pkg/config is.
//
// Version: v0.1.0
package canisterclient

import (
	"context"

	"canister-assets/internal/assetstate"
)

// Version is the semantic version of this client package.
const Version = "v0.1.0"

// Client is everything internal/assetsync needs to drive a commit: create
// a batch, stage chunks, commit the assembled operation list, and read
// back the canister's current inventory for diffing.
type Client interface {
	CreateBatch(ctx context.Context) (uint64, error)
	CreateChunk(ctx context.Context, batchID uint64, content []byte) (uint64, error)
	CommitBatch(ctx context.Context, batchID uint64, ops []assetstate.Operation) error
	List(ctx context.Context) ([]assetstate.AssetDetails, error)
	GetAssetProperties(ctx context.Context, key string) (assetstate.AssetProperties, error)
}
