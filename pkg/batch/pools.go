package batch

import (
	"context"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// AddPool creates a pool. A pool with the same id is reported as
// model.AlreadyExisted rather than an error; callers decide whether that is acceptable.
func (c *Client) AddPool(ctx context.Context, pool NewPool) (model.CreateOutcome, error) {
	return c.create(ctx, pool, CodePoolExists, "pools")
}

// GetPool returns the pool with the given id.
func (c *Client) GetPool(ctx context.Context, poolID string) (*Pool, error) {
	var pool Pool
	if err := c.get(ctx, &pool, "pools", poolID); err != nil {
		return nil, err
	}
	return &pool, nil
}

// PoolExists reports whether a pool with the given id exists.
func (c *Client) PoolExists(ctx context.Context, poolID string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodHead, "pools", poolID)
	if err != nil {
		return false, err
	}
	resp, err := c.send(req, nil, http.StatusOK)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	runtime.Drain(resp)
	return true, nil
}

// DeletePool starts deletion of a pool. A missing pool yields model.NotFound.
func (c *Client) DeletePool(ctx context.Context, poolID string) (model.DeleteOutcome, error) {
	return c.remove(ctx, "pools", poolID)
}
