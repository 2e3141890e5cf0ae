package batch

import (
	"context"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// AddJobSchedule creates a job schedule.
func (c *Client) AddJobSchedule(ctx context.Context, schedule NewJobSchedule) (model.CreateOutcome, error) {
	return c.create(ctx, schedule, CodeJobScheduleExists, "jobschedules")
}

// GetJobSchedule returns the job schedule with the given id.
func (c *Client) GetJobSchedule(ctx context.Context, scheduleID string) (*JobSchedule, error) {
	var js JobSchedule
	if err := c.get(ctx, &js, "jobschedules", scheduleID); err != nil {
		return nil, err
	}
	return &js, nil
}

// ListJobsInSchedule returns every job created under the schedule.
func (c *Client) ListJobsInSchedule(ctx context.Context, scheduleID string) ([]Job, error) {
	return listAll[Job](ctx, c, "jobschedules", scheduleID, "jobs")
}

// DeleteJobSchedule deletes a schedule together with its jobs.
func (c *Client) DeleteJobSchedule(ctx context.Context, scheduleID string) (model.DeleteOutcome, error) {
	return c.remove(ctx, "jobschedules", scheduleID)
}
