package batch

import (
	"context"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// AddJob creates a job.
func (c *Client) AddJob(ctx context.Context, job NewJob) (model.CreateOutcome, error) {
	return c.create(ctx, job, CodeJobExists, "jobs")
}

// GetJob returns the job with the given id.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.get(ctx, &job, "jobs", jobID); err != nil {
		return nil, err
	}
	return &job, nil
}

// DeleteJob starts deletion of a job and its tasks.
func (c *Client) DeleteJob(ctx context.Context, jobID string) (model.DeleteOutcome, error) {
	return c.remove(ctx, "jobs", jobID)
}
