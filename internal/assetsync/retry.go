package assetsync

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"canister-assets/pkg/canisterclient"
)

// chunkUploadBudget is the total wall-clock window allowed for retries of
// a single create_chunk call.
const chunkUploadBudget = 30 * time.Second

func createChunkWithRetry(ctx context.Context, client canisterclient.Client, batchID uint64, payload []byte) (uint64, error) {
	var id uint64
	op := func() error {
		var err error
		id, err = client.CreateChunk(ctx, batchID, payload)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxElapsedTime = chunkUploadBudget

	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	return id, err
}
