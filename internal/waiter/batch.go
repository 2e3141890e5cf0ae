package waiter

import (
	"context"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
)

// TaskLister lists the tasks of a job.
type TaskLister interface {
	ListTasks(ctx context.Context, jobID string) ([]batch.Task, error)
}

// ScheduleGetter fetches a job schedule.
type ScheduleGetter interface {
	GetJobSchedule(ctx context.Context, scheduleID string) (*batch.JobSchedule, error)
}

// WaitForTasks waits until every task in the job has completed. A job with
// no tasks yet is not done: tasks may still be in flight from the submitter.
func (w Waiter) WaitForTasks(ctx context.Context, lister TaskLister, jobID string) ([]batch.Task, Result, error) {
	var tasks []batch.Task
	res, err := w.Poll(ctx, "tasks of job "+jobID, func(ctx context.Context) (bool, error) {
		var err error
		tasks, err = lister.ListTasks(ctx, jobID)
		if err != nil {
			return false, err
		}
		if len(tasks) == 0 {
			return false, nil
		}
		for _, t := range tasks {
			if !t.State.IsTerminal() {
				return false, nil
			}
		}
		return true, nil
	})
	return tasks, res, err
}

// WaitForScheduledJob waits until the schedule has created a job and returns its id.
func (w Waiter) WaitForScheduledJob(ctx context.Context, getter ScheduleGetter, scheduleID string) (string, Result, error) {
	var jobID string
	res, err := w.Poll(ctx, "job under schedule "+scheduleID, func(ctx context.Context) (bool, error) {
		js, err := getter.GetJobSchedule(ctx, scheduleID)
		if err != nil {
			return false, err
		}
		if js.ExecutionInfo != nil && js.ExecutionInfo.RecentJob != nil && js.ExecutionInfo.RecentJob.ID != "" {
			jobID = js.ExecutionInfo.RecentJob.ID
			return true, nil
		}
		return false, nil
	})
	return jobID, res, err
}

// WaitForScheduleCompletion waits until the schedule reaches a terminal
// state (completed, disabled or deleting).
func (w Waiter) WaitForScheduleCompletion(ctx context.Context, getter ScheduleGetter, scheduleID string) (batch.JobScheduleState, Result, error) {
	var state batch.JobScheduleState
	res, err := w.Poll(ctx, "job schedule "+scheduleID, func(ctx context.Context) (bool, error) {
		js, err := getter.GetJobSchedule(ctx, scheduleID)
		if err != nil {
			return false, err
		}
		state = js.State
		return state.IsTerminal(), nil
	})
	return state, res, err
}
