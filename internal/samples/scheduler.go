package samples

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fogcitymarathoner/azure-batch-samples/internal/config"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/staging"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/workload"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

const (
	pythonInstallerURL  = "https://www.python.org/ftp/python/3.7.3/python-3.7.3-amd64.exe"
	pythonInstallerFile = "python373.exe"
	pythonInstall       = `.\python373.exe /passive InstallAllUsers=1 PrependPath=1 Include_test=0`
)

// ScheduleTiming bounds the job-scheduler run.
type ScheduleTiming struct {
	Recurrence time.Duration
	// RunWindow sets doNotRunAfter relative to the start of the run.
	RunWindow time.Duration
	// JobTimeout bounds the wait for the first job to appear.
	JobTimeout time.Duration
	// TaskTimeout bounds the wait for that job's tasks.
	TaskTimeout time.Duration
	// CompletionGrace is how long after the run window the schedule may take to complete.
	CompletionGrace time.Duration
}

// DefaultScheduleTiming runs every 10 minutes for half an hour.
func DefaultScheduleTiming() ScheduleTiming {
	return ScheduleTiming{
		Recurrence:      10 * time.Minute,
		RunWindow:       30 * time.Minute,
		JobTimeout:      5 * time.Minute,
		TaskTimeout:     25 * time.Minute,
		CompletionGrace: 10 * time.Minute,
	}
}

// deadline is the latest point the run waits until.
func (t ScheduleTiming) deadline(start time.Time) time.Time {
	return start.Add(t.RunWindow + t.CompletionGrace)
}

// JobScheduler creates a recurring job schedule on Windows auto-pools that
// install Python in their start task, waits for the first job, prints its
// output and waits for the schedule to complete.
type JobScheduler struct {
	Container      string
	SchedulePrefix string
	AutoPoolPrefix string
	JobManagerID   string
	Image          batch.ImageReference
	NodeAgentSKUID string
	Timing         ScheduleTiming
}

// NewJobScheduler returns the sample with its default names and timing.
func NewJobScheduler() *JobScheduler {
	return &JobScheduler{
		Container:      "jobscheduler",
		SchedulePrefix: "JobScheduler",
		AutoPoolPrefix: "JobScheduler",
		JobManagerID:   "JobManagerTask",
		Image: batch.ImageReference{
			Publisher: "microsoftwindowsserver",
			Offer:     "windowsserver",
			SKU:       "2019-datacenter-core",
		},
		NodeAgentSKUID: "batch.node.windows amd64",
		Timing:         DefaultScheduleTiming(),
	}
}

func (j *JobScheduler) Name() string       { return "job-scheduler" }
func (j *JobScheduler) ConfigFile() string { return "job_scheduler.yaml" }
func (j *JobScheduler) Short() string {
	return "Create a recurring job schedule with auto-pools and wait for it to complete"
}

// Run submits the schedule and follows it to completion. Batch service
// errors have their details printed before the run returns.
func (j *JobScheduler) Run(ctx context.Context, env Env, cfg config.Sample) (Report, error) {
	report, err := j.run(ctx, env, cfg)
	if err != nil {
		printBatchError(env.out(), err)
	}
	return report, err
}

func (j *JobScheduler) run(ctx context.Context, env Env, cfg config.Sample) (Report, error) {
	report := Report{Sample: j.Name()}
	logger := env.logger().With("component", j.Name())
	clock := env.clock()

	cleanup := newCleanupScope(logger)
	defer cleanup.Close(ctx)

	start := clock.Now()
	end := start.Add(j.Timing.RunWindow)
	deadline := j.Timing.deadline(start)

	cleanup.add(cfg.ShouldDeleteContainer, model.ResourceContainer, j.Container, func(ctx context.Context) (model.DeleteOutcome, error) {
		return env.Stager.Remove(ctx, j.Container)
	})
	// Jobs keep starting until the window closes, so the script must stay
	// readable until the final deadline.
	ref, err := env.Stager.Stage(ctx, j.Container, filepath.Join(env.ResourceDir, SimpleTaskFile), "", deadline.Sub(start))
	if err != nil {
		return report, err
	}
	if err := staging.CheckExpiry(deadline, ref); err != nil {
		return report, err
	}

	w := &workload.Scheduled{
		ScheduleID:     workload.UniqueName(j.SchedulePrefix, start),
		AutoPoolPrefix: j.AutoPoolPrefix,
		Pool: workload.Pool{
			VMSize:         cfg.PoolVMSize,
			VMCount:        cfg.PoolVMCount,
			Image:          j.Image,
			NodeAgentSKUID: j.NodeAgentSKUID,
			StartTask: &batch.StartTask{
				CommandLine:    workload.WrapCommands(batch.OSWindows, pythonInstall),
				ResourceFiles:  []batch.ResourceFile{{HTTPURL: pythonInstallerURL, FilePath: pythonInstallerFile}},
				WaitForSuccess: true,
				UserIdentity:   workload.AdminIdentity(),
			},
		},
		Recurrence:    j.Timing.Recurrence,
		DoNotRunAfter: end,
		JobManager: workload.Task{
			ID:            j.JobManagerID,
			CommandLine:   workload.WrapCommands(batch.OSWindows, "python "+SimpleTaskFile),
			ResourceFiles: []batch.ResourceFile{ref.ResourceFile()},
		},
	}

	sub, err := w.Submit(ctx, env.Batch)
	report.Submission = sub
	if sub.ScheduleID != "" {
		cleanup.add(cfg.ShouldDeleteJobSchedule, model.ResourceJobSchedule, sub.ScheduleID, func(ctx context.Context) (model.DeleteOutcome, error) {
			return env.Batch.DeleteJobSchedule(ctx, sub.ScheduleID)
		})
	}
	if err != nil {
		return report, err
	}
	fmt.Fprintf(env.out(), "Start time: %s\nDelete time: %s\n", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))

	poller := env.waiter(cfg, "waiter")
	jobID, _, err := poller.WithTimeout(j.Timing.JobTimeout).WaitForScheduledJob(ctx, env.Batch, sub.ScheduleID)
	if err != nil {
		return report, err
	}
	report.JobID = jobID
	logger.Info("scheduled job started", "schedule_id", sub.ScheduleID, "job_id", jobID)

	tasks, _, err := poller.WithTimeout(j.Timing.TaskTimeout).WaitForTasks(ctx, env.Batch, jobID)
	report.Tasks = tasks
	if err != nil {
		return report, err
	}
	if err := finishTasks(ctx, env, jobID, tasks); err != nil {
		return report, err
	}

	state, res, err := poller.WithTimeout(deadline.Sub(clock.Now())).WaitForScheduleCompletion(ctx, env.Batch, sub.ScheduleID)
	report.ScheduleState = state
	if err != nil {
		return report, err
	}
	logger.Info("job schedule finished", "schedule_id", sub.ScheduleID, "state", state, "polls", res.Polls)
	return report, nil
}
