package workload

import (
	"context"
	"errors"
	"fmt"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// Direct creates a long-lived pool, a job bound to it and the job's tasks.
// The pool id is fixed so reruns share a pool: an existing pool is reported
// as AlreadyExisted rather than treated as an error.
type Direct struct {
	PoolID string
	Pool   Pool
	JobID  string
	Tasks  []Task
}

func (d *Direct) Kind() Kind { return KindDirect }

func (d *Direct) validate() error {
	if d.PoolID == "" || d.JobID == "" {
		return errors.New("direct workload: pool and job ids are required")
	}
	if err := d.Pool.validate(); err != nil {
		return fmt.Errorf("direct workload: %w", err)
	}
	if len(d.Tasks) == 0 {
		return errors.New("direct workload: at least one task is required")
	}
	for _, t := range d.Tasks {
		if err := t.validate(); err != nil {
			return fmt.Errorf("direct workload: %w", err)
		}
	}
	return nil
}

// Submit adds the pool, then the job, then each task.
func (d *Direct) Submit(ctx context.Context, s Submitter) (Submission, error) {
	sub := Submission{Kind: KindDirect}
	if err := d.validate(); err != nil {
		return sub, err
	}

	outcome, err := s.AddPool(ctx, batch.NewPool{ID: d.PoolID, PoolSpecification: d.Pool.specification()})
	if err != nil {
		return sub, fmt.Errorf("add %s %s: %w", model.ResourcePool, d.PoolID, err)
	}
	sub.PoolID, sub.PoolOutcome = d.PoolID, outcome

	outcome, err = s.AddJob(ctx, batch.NewJob{
		ID:       d.JobID,
		PoolInfo: batch.PoolInformation{PoolID: d.PoolID},
	})
	if err := requireCreated(model.ResourceJob, d.JobID, outcome, err); err != nil {
		return sub, err
	}
	sub.JobID = d.JobID

	for _, t := range d.Tasks {
		outcome, err := s.AddTask(ctx, d.JobID, batch.NewTask{
			ID:            t.ID,
			CommandLine:   t.CommandLine,
			ResourceFiles: t.ResourceFiles,
			UserIdentity:  t.UserIdentity,
		})
		if err := requireCreated(model.ResourceTask, t.ID, outcome, err); err != nil {
			return sub, err
		}
		sub.TaskIDs = append(sub.TaskIDs, t.ID)
	}
	return sub, nil
}
