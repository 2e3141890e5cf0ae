package samples

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fogcitymarathoner/azure-batch-samples/internal/config"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/staging"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/workload"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// ErrTasksFailed is returned when a workload finished but a task failed.
var ErrTasksFailed = errors.New("one or more tasks failed")

// PoolTiming bounds the pools-and-resourcefiles run.
type PoolTiming struct {
	// ResourceExpiry is how long the staged script stays readable.
	ResourceExpiry time.Duration
	// TaskTimeout bounds the wait for the job's tasks.
	TaskTimeout time.Duration
}

// DefaultPoolTiming signs the script for an hour and waits 25 minutes.
func DefaultPoolTiming() PoolTiming {
	return PoolTiming{ResourceExpiry: time.Hour, TaskTimeout: 25 * time.Minute}
}

// PoolsAndResourceFiles creates a pool whose start task runs a staged
// script, then runs the same script as a task of a new job.
type PoolsAndResourceFiles struct {
	Container string
	PoolID    string
	JobPrefix string
	TaskID    string
	// Image is resolved against the account's verified images.
	ImagePublisher string
	ImageOffer     string
	ImageSKUPrefix string
	Timing         PoolTiming
}

// NewPoolsAndResourceFiles returns the sample with its default names and timing.
func NewPoolsAndResourceFiles() *PoolsAndResourceFiles {
	return &PoolsAndResourceFiles{
		Container:      "poolsandresourcefiles",
		PoolID:         "PoolsAndResourceFilesPool",
		JobPrefix:      "PoolsAndResourceFilesJob",
		TaskID:         "MyPythonTask",
		ImagePublisher: "canonical",
		ImageOffer:     "ubuntuserver",
		ImageSKUPrefix: "18.04",
		Timing:         DefaultPoolTiming(),
	}
}

func (p *PoolsAndResourceFiles) Name() string       { return "pools-and-resourcefiles" }
func (p *PoolsAndResourceFiles) ConfigFile() string { return "pools_and_resourcefiles.yaml" }
func (p *PoolsAndResourceFiles) Short() string {
	return "Create a pool with a start task and run a task that uses a staged resource file"
}

// Run stages the script, submits the pool, job and task, waits for the
// task and prints its output. The pool id is fixed, so an existing pool is
// reused.
func (p *PoolsAndResourceFiles) Run(ctx context.Context, env Env, cfg config.Sample) (Report, error) {
	report := Report{Sample: p.Name()}
	logger := env.logger().With("component", p.Name())
	clock := env.clock()

	cleanup := newCleanupScope(logger)
	defer cleanup.Close(ctx)

	start := clock.Now()
	cleanup.add(cfg.ShouldDeleteContainer, model.ResourceContainer, p.Container, func(ctx context.Context) (model.DeleteOutcome, error) {
		return env.Stager.Remove(ctx, p.Container)
	})
	ref, err := env.Stager.Stage(ctx, p.Container, filepath.Join(env.ResourceDir, SimpleTaskFile), "", p.Timing.ResourceExpiry)
	if err != nil {
		return report, err
	}
	if err := staging.CheckExpiry(start.Add(p.Timing.TaskTimeout), ref); err != nil {
		return report, err
	}

	image, agentSKU, err := workload.SelectImage(ctx, env.Batch, p.ImagePublisher, p.ImageOffer, p.ImageSKUPrefix)
	if err != nil {
		return report, err
	}
	logger.Info("image selected", "sku", image.SKU, "node_agent", agentSKU)

	command := "python " + SimpleTaskFile
	w := &workload.Direct{
		PoolID: p.PoolID,
		Pool: workload.Pool{
			VMSize:         cfg.PoolVMSize,
			VMCount:        cfg.PoolVMCount,
			Image:          image,
			NodeAgentSKUID: agentSKU,
			StartTask: &batch.StartTask{
				CommandLine:   command,
				ResourceFiles: []batch.ResourceFile{ref.ResourceFile()},
			},
		},
		JobID: workload.UniqueName(p.JobPrefix, clock.Now()),
		Tasks: []workload.Task{{
			ID:            p.TaskID,
			CommandLine:   command,
			ResourceFiles: []batch.ResourceFile{ref.ResourceFile()},
		}},
	}

	sub, err := w.Submit(ctx, env.Batch)
	report.Submission = sub
	if sub.PoolID != "" {
		cleanup.add(cfg.ShouldDeletePool, model.ResourcePool, sub.PoolID, func(ctx context.Context) (model.DeleteOutcome, error) {
			return env.Batch.DeletePool(ctx, sub.PoolID)
		})
	}
	if sub.JobID != "" {
		cleanup.add(cfg.ShouldDeleteJob, model.ResourceJob, sub.JobID, func(ctx context.Context) (model.DeleteOutcome, error) {
			return env.Batch.DeleteJob(ctx, sub.JobID)
		})
	}
	if err != nil {
		printBatchError(env.out(), err)
		return report, err
	}
	logger.Info("workload submitted", "pool_id", sub.PoolID, "pool", sub.PoolOutcome, "job_id", sub.JobID)
	report.JobID = sub.JobID

	poller := env.waiter(cfg, "waiter").WithTimeout(p.Timing.TaskTimeout)
	tasks, res, err := poller.WaitForTasks(ctx, env.Batch, sub.JobID)
	report.Tasks = tasks
	if err != nil {
		return report, err
	}
	logger.Info("tasks finished", "job_id", sub.JobID, "polls", res.Polls, "elapsed", res.Elapsed)

	return report, finishTasks(ctx, env, sub.JobID, tasks)
}

// finishTasks prints the output of every task and reports failed ones.
func finishTasks(ctx context.Context, env Env, jobID string, tasks []batch.Task) error {
	ids := make([]string, 0, len(tasks))
	var failed []string
	for _, t := range tasks {
		ids = append(ids, t.ID)
		if t.Failed() {
			failed = append(failed, t.ID)
			if fi := t.ExecutionInfo.FailureInfo; fi != nil {
				fmt.Fprintf(env.out(), "Task %s failed: %s: %s\n", t.ID, fi.Code, fi.Message)
			}
		}
	}
	if err := PrintTaskOutput(ctx, env.Batch, env.out(), jobID, ids); err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("job %s: %w: %v", jobID, ErrTasksFailed, failed)
	}
	return nil
}
