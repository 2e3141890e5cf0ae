package workload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// Scheduled creates a job schedule. Each recurrence gets an auto-pool that
// lives as long as its job, runs the job manager task, and terminates the
// job once every task has completed so the next recurrence can start.
type Scheduled struct {
	ScheduleID     string
	AutoPoolPrefix string
	Pool           Pool
	Recurrence     time.Duration
	// DoNotRunUntil and DoNotRunAfter bound the schedule; zero means unbounded.
	DoNotRunUntil time.Time
	DoNotRunAfter time.Time
	JobManager    Task
}

func (w *Scheduled) Kind() Kind { return KindScheduled }

func (w *Scheduled) validate() error {
	if w.ScheduleID == "" {
		return errors.New("scheduled workload: schedule id is required")
	}
	if err := w.Pool.validate(); err != nil {
		return fmt.Errorf("scheduled workload: %w", err)
	}
	if err := w.JobManager.validate(); err != nil {
		return fmt.Errorf("scheduled workload: job manager %w", err)
	}
	if w.Recurrence < 0 {
		return fmt.Errorf("scheduled workload: negative recurrence %s", w.Recurrence)
	}
	if !w.DoNotRunUntil.IsZero() && !w.DoNotRunAfter.IsZero() && !w.DoNotRunAfter.After(w.DoNotRunUntil) {
		return errors.New("scheduled workload: do-not-run-after must be later than do-not-run-until")
	}
	return nil
}

func (w *Scheduled) schedule() batch.Schedule {
	s := batch.Schedule{RecurrenceInterval: batch.Duration(w.Recurrence)}
	if !w.DoNotRunUntil.IsZero() {
		t := w.DoNotRunUntil.UTC()
		s.DoNotRunUntil = &t
	}
	if !w.DoNotRunAfter.IsZero() {
		t := w.DoNotRunAfter.UTC()
		s.DoNotRunAfter = &t
	}
	return s
}

// Submit adds the job schedule.
func (w *Scheduled) Submit(ctx context.Context, s Submitter) (Submission, error) {
	sub := Submission{Kind: KindScheduled}
	if err := w.validate(); err != nil {
		return sub, err
	}

	spec := w.Pool.specification()
	outcome, err := s.AddJobSchedule(ctx, batch.NewJobSchedule{
		ID:       w.ScheduleID,
		Schedule: w.schedule(),
		JobSpecification: batch.JobSpecification{
			PoolInfo: batch.PoolInformation{AutoPoolSpecification: &batch.AutoPoolSpecification{
				AutoPoolIDPrefix:   w.AutoPoolPrefix,
				PoolLifetimeOption: batch.PoolLifetimeJob,
				KeepAlive:          false,
				Pool:               &spec,
			}},
			OnAllTasksComplete: batch.OnAllTasksCompleteTerminateJob,
			JobManagerTask: &batch.JobManagerTask{
				ID:            w.JobManager.ID,
				CommandLine:   w.JobManager.CommandLine,
				ResourceFiles: w.JobManager.ResourceFiles,
				UserIdentity:  w.JobManager.UserIdentity,
			},
		},
	})
	if err := requireCreated(model.ResourceJobSchedule, w.ScheduleID, outcome, err); err != nil {
		return sub, err
	}
	sub.ScheduleID = w.ScheduleID
	return sub, nil
}
