package batch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// Well-known files in a task's working directory.
const (
	StdoutFile = "stdout.txt"
	StderrFile = "stderr.txt"
)

// AddTask adds a task to a job.
func (c *Client) AddTask(ctx context.Context, jobID string, task NewTask) (model.CreateOutcome, error) {
	return c.create(ctx, task, CodeTaskExists, "jobs", jobID, "tasks")
}

// ListTasks returns every task of a job.
func (c *Client) ListTasks(ctx context.Context, jobID string) ([]Task, error) {
	return listAll[Task](ctx, c, "jobs", jobID, "tasks")
}

// GetTask returns one task of a job.
func (c *Client) GetTask(ctx context.Context, jobID, taskID string) (*Task, error) {
	var task Task
	if err := c.get(ctx, &task, "jobs", jobID, "tasks", taskID); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTaskFile downloads a file from a task's directory on its node.
func (c *Client) GetTaskFile(ctx context.Context, jobID, taskID, name string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "jobs", jobID, "tasks", taskID, "files", name)
	if err != nil {
		return nil, err
	}
	req.Raw().Header.Set("Accept", "application/octet-stream")
	resp, err := c.send(req, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	data, err := runtime.Payload(resp)
	if err != nil {
		return nil, fmt.Errorf("batch: read task file %s: %w", name, err)
	}
	return data, nil
}
