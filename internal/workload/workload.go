// Package workload builds Batch workloads and submits them. A workload is
// either Direct (explicit pool, job and tasks) or Scheduled (a job schedule
// whose recurrences run on auto-pools). Submission does not wait.
package workload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// ErrIDCollision is returned when a generated identifier already exists.
// Generated ids carry a random suffix, so this points at a bug, not a rerun.
var ErrIDCollision = errors.New("generated id already exists")

// Kind tags the workload variant.
type Kind string

const (
	KindDirect    Kind = "direct"
	KindScheduled Kind = "scheduled"
)

// Submitter is the part of the Batch client workloads submit through.
type Submitter interface {
	AddPool(ctx context.Context, pool batch.NewPool) (model.CreateOutcome, error)
	AddJob(ctx context.Context, job batch.NewJob) (model.CreateOutcome, error)
	AddTask(ctx context.Context, jobID string, task batch.NewTask) (model.CreateOutcome, error)
	AddJobSchedule(ctx context.Context, schedule batch.NewJobSchedule) (model.CreateOutcome, error)
}

// Workload is a unit of work that can be handed to the Batch service.
type Workload interface {
	Kind() Kind
	Submit(ctx context.Context, s Submitter) (Submission, error)
}

// Submission records what a Submit call created. Ids are set only for
// resources the service accepted, so a partial Submission after an error
// names exactly what needs tearing down.
type Submission struct {
	Kind        Kind
	PoolID      string
	PoolOutcome model.CreateOutcome
	JobID       string
	TaskIDs     []string
	ScheduleID  string
}

// Pool describes the compute nodes a workload runs on.
type Pool struct {
	VMSize         string
	VMCount        int32
	Image          batch.ImageReference
	NodeAgentSKUID string
	StartTask      *batch.StartTask
}

func (p Pool) validate() error {
	if p.VMSize == "" {
		return errors.New("pool VM size is required")
	}
	if p.VMCount < 1 {
		return fmt.Errorf("pool VM count must be at least 1, got %d", p.VMCount)
	}
	return nil
}

func (p Pool) specification() batch.PoolSpecification {
	spec := batch.PoolSpecification{
		VMSize:               p.VMSize,
		TargetDedicatedNodes: p.VMCount,
		StartTask:            p.StartTask,
	}
	if p.NodeAgentSKUID != "" {
		spec.VirtualMachineConfiguration = &batch.VirtualMachineConfiguration{
			ImageReference: p.Image,
			NodeAgentSKUID: p.NodeAgentSKUID,
		}
	}
	return spec
}

// Task is one command and the files it needs.
type Task struct {
	ID            string
	CommandLine   string
	ResourceFiles []batch.ResourceFile
	UserIdentity  *batch.UserIdentity
}

func (t Task) validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.CommandLine == "" {
		return fmt.Errorf("task %s: command line is required", t.ID)
	}
	return nil
}

// UniqueName returns prefix-YYYYMMDD-HHMMSS-xxxxxxxx. The timestamp keeps
// names sortable; the random suffix keeps reruns in the same second apart.
func UniqueName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102-150405"), uuid.New().String()[:8])
}

// requireCreated turns AlreadyExisted for a generated id into ErrIDCollision.
func requireCreated(kind model.ResourceKind, id string, outcome model.CreateOutcome, err error) error {
	if err != nil {
		return fmt.Errorf("add %s %s: %w", kind, id, err)
	}
	if outcome == model.AlreadyExisted {
		return fmt.Errorf("add %s %s: %w", kind, id, ErrIDCollision)
	}
	return nil
}
