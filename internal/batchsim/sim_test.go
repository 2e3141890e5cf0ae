package batchsim_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcitymarathoner/azure-batch-samples/internal/batchsim"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/logging"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/staging"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/waiter"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

var (
	epoch   = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	testKey = base64.StdEncoding.EncodeToString([]byte("simulator-key"))
)

type env struct {
	sim    *batchsim.Simulator
	clock  *waiter.StepClock
	client *batch.Client
	blobs  *staging.AzureBlobStore
}

func newEnv(t *testing.T, opts batchsim.Options) env {
	t.Helper()
	clock := waiter.NewStepClock(epoch)
	opts.Clock = clock
	sim := batchsim.New(opts)

	batchSrv := httptest.NewServer(sim.BatchHandler())
	t.Cleanup(batchSrv.Close)
	blobSrv := httptest.NewServer(sim.BlobHandler())
	t.Cleanup(blobSrv.Close)

	cfg := batch.DefaultConfig().WithSharedKey("simbatch", testKey).WithRetries(0, time.Millisecond, time.Millisecond)
	cfg.ServiceURL = batchSrv.URL
	client, err := batch.NewClient(cfg, logging.Discard())
	require.NoError(t, err)

	blobs, err := staging.NewAzureBlobStore(staging.AzureConfig{
		AccountName: "simstore",
		AccountKey:  testKey,
		AccountURL:  blobSrv.URL + "/simstore",
	})
	require.NoError(t, err)

	return env{sim: sim, clock: clock, client: client, blobs: blobs}
}

func quickTasks() batchsim.Options {
	return batchsim.Options{TaskStartDelay: time.Second, TaskRunTime: 10 * time.Second}
}

func addPool(t *testing.T, e env, id string) {
	t.Helper()
	outcome, err := e.client.AddPool(context.Background(), batch.NewPool{
		ID:                id,
		PoolSpecification: batch.PoolSpecification{VMSize: "STANDARD_D2_V3", TargetDedicatedNodes: 1},
	})
	require.NoError(t, err)
	require.Equal(t, model.Created, outcome)
}

func TestPools_AddExistsDelete(t *testing.T) {
	e := newEnv(t, quickTasks())
	ctx := context.Background()

	addPool(t, e, "pool-1")

	outcome, err := e.client.AddPool(ctx, batch.NewPool{ID: "pool-1", PoolSpecification: batch.PoolSpecification{VMSize: "x"}})
	require.NoError(t, err)
	assert.Equal(t, model.AlreadyExisted, outcome)

	ok, err := e.client.PoolExists(ctx, "pool-1")
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := e.client.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.CurrentDedicatedNodes)
	assert.Equal(t, batch.PoolStateActive, p.State)

	deleted, err := e.client.DeletePool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, model.Deleted, deleted)

	deleted, err = e.client.DeletePool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, model.NotFound, deleted)
}

func TestAddPool_MissingVMSize(t *testing.T) {
	e := newEnv(t, quickTasks())
	_, err := e.client.AddPool(context.Background(), batch.NewPool{ID: "p"})
	require.Error(t, err)
	assert.True(t, batch.IsCode(err, "MissingRequiredProperty"))
}

func TestTaskLifecycle(t *testing.T) {
	e := newEnv(t, quickTasks())
	ctx := context.Background()
	addPool(t, e, "pool-1")

	_, err := e.client.AddJob(ctx, batch.NewJob{ID: "job-1", PoolInfo: batch.PoolInformation{PoolID: "pool-1"}})
	require.NoError(t, err)
	_, err = e.client.AddTask(ctx, "job-1", batch.NewTask{ID: "task-1", CommandLine: "echo hi"})
	require.NoError(t, err)

	_, err = e.client.GetTaskFile(ctx, "job-1", "task-1", batch.StdoutFile)
	assert.True(t, batch.IsCode(err, batch.CodeTaskNotYetStarted), "got %v", err)

	e.clock.Advance(time.Second)
	task, err := e.client.GetTask(ctx, "job-1", "task-1")
	require.NoError(t, err)
	assert.Equal(t, batch.TaskStateRunning, task.State)

	e.clock.Advance(10 * time.Second)
	task, err = e.client.GetTask(ctx, "job-1", "task-1")
	require.NoError(t, err)
	assert.Equal(t, batch.TaskStateCompleted, task.State)
	require.NotNil(t, task.ExecutionInfo)
	assert.Equal(t, batch.TaskResultSuccess, task.ExecutionInfo.Result)
	assert.False(t, task.Failed())

	out, err := e.client.GetTaskFile(ctx, "job-1", "task-1", batch.StdoutFile)
	require.NoError(t, err)
	assert.Contains(t, string(out), "echo hi")

	// noaction jobs stay active after their tasks complete.
	job, err := e.client.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, batch.JobStateActive, job.State)

	_, err = e.client.AddTask(ctx, "job-1", batch.NewTask{ID: "task-1", CommandLine: "echo again"})
	require.NoError(t, err, "duplicate task id reports AlreadyExisted, not an error")
}

func TestTask_WithoutPoolStaysActive(t *testing.T) {
	e := newEnv(t, quickTasks())
	ctx := context.Background()

	_, err := e.client.AddJob(ctx, batch.NewJob{ID: "job-1", PoolInfo: batch.PoolInformation{PoolID: "missing"}})
	require.NoError(t, err)
	_, err = e.client.AddTask(ctx, "job-1", batch.NewTask{ID: "t", CommandLine: "true"})
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	tasks, err := e.client.ListTasks(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, batch.TaskStateActive, tasks[0].State)
}

func TestTask_ExpiredResourceFileFails(t *testing.T) {
	e := newEnv(t, quickTasks())
	ctx := context.Background()
	addPool(t, e, "pool-1")

	local := filepath.Join(t.TempDir(), "simple_task.py")
	require.NoError(t, os.WriteFile(local, []byte("print('hello')\n"), 0o644))

	stager := staging.NewStager(e.blobs, logging.Discard(), staging.WithNow(e.clock.Now))
	short, err := stager.Stage(ctx, "inputs", local, "short.py", 5*time.Second)
	require.NoError(t, err)
	long, err := stager.Stage(ctx, "inputs", local, "long.py", time.Hour)
	require.NoError(t, err)

	_, err = e.client.AddJob(ctx, batch.NewJob{ID: "job-1", PoolInfo: batch.PoolInformation{PoolID: "pool-1"}})
	require.NoError(t, err)
	for id, ref := range map[string]staging.Reference{"short": short, "long": long} {
		_, err = e.client.AddTask(ctx, "job-1", batch.NewTask{
			ID:            id,
			CommandLine:   "python " + ref.BlobName,
			ResourceFiles: []batch.ResourceFile{ref.ResourceFile()},
		})
		require.NoError(t, err)
	}

	e.clock.Advance(time.Second)
	_, err = e.client.ListTasks(ctx, "job-1")
	require.NoError(t, err)
	e.clock.Advance(10 * time.Second)
	tasks, err := e.client.ListTasks(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	byID := map[string]batch.Task{}
	for _, task := range tasks {
		byID[task.ID] = task
	}
	assert.True(t, byID["short"].Failed())
	require.NotNil(t, byID["short"].ExecutionInfo.FailureInfo)
	assert.Equal(t, batchsim.CodeResourceFileDownloadFailed, byID["short"].ExecutionInfo.FailureInfo.Code)

	assert.False(t, byID["long"].Failed())
	out, err := e.client.GetTaskFile(ctx, "job-1", "long", batch.StdoutFile)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Downloaded long.py (15 bytes)")
}

func TestJobSchedule_RecurrenceAndCutoff(t *testing.T) {
	e := newEnv(t, quickTasks())
	ctx := context.Background()

	cutoff := epoch.Add(30 * time.Minute)
	_, err := e.client.AddJobSchedule(ctx, batch.NewJobSchedule{
		ID: "sched",
		Schedule: batch.Schedule{
			DoNotRunAfter:      &cutoff,
			RecurrenceInterval: batch.Duration(10 * time.Minute),
		},
		JobSpecification: batch.JobSpecification{
			PoolInfo: batch.PoolInformation{AutoPoolSpecification: &batch.AutoPoolSpecification{
				AutoPoolIDPrefix:   "JobScheduler",
				PoolLifetimeOption: batch.PoolLifetimeJob,
				Pool:               &batch.PoolSpecification{VMSize: "STANDARD_D2_V3", TargetDedicatedNodes: 1},
			}},
			OnAllTasksComplete: batch.OnAllTasksCompleteTerminateJob,
			JobManagerTask:     &batch.JobManagerTask{ID: "JobManagerTask", CommandLine: "cmd.exe /c echo hi"},
		},
	})
	require.NoError(t, err)

	js, err := e.client.GetJobSchedule(ctx, "sched")
	require.NoError(t, err)
	require.NotNil(t, js.ExecutionInfo.RecentJob)
	assert.Equal(t, "sched:job-1", js.ExecutionInfo.RecentJob.ID)
	assert.Equal(t, 1, e.sim.PoolCount(), "auto-pool created for the first job")

	// Job manager task runs, the job terminates and its auto-pool goes away.
	e.clock.Advance(time.Second)
	e.clock.Advance(10 * time.Second)
	job, err := e.client.GetJob(ctx, "sched:job-1")
	require.NoError(t, err)
	assert.Equal(t, batch.JobStateCompleted, job.State)
	assert.Equal(t, 0, e.sim.PoolCount())

	for _, step := range []time.Duration{10 * time.Minute, 10 * time.Minute} {
		e.clock.Advance(step)
		_, err := e.client.GetJobSchedule(ctx, "sched")
		require.NoError(t, err)
		e.clock.Advance(time.Second)
		e.clock.Advance(10 * time.Second)
		_, err = e.client.GetJobSchedule(ctx, "sched")
		require.NoError(t, err)
	}

	jobs, err := e.client.ListJobsInSchedule(ctx, "sched")
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	e.clock.Advance(10 * time.Minute)
	js, err = e.client.GetJobSchedule(ctx, "sched")
	require.NoError(t, err)
	assert.Equal(t, batch.JobScheduleStateCompleted, js.State)
	assert.Len(t, e.sim.JobsInSchedule("sched"), 3, "no job after the cutoff")

	deleted, err := e.client.DeleteJobSchedule(ctx, "sched")
	require.NoError(t, err)
	assert.Equal(t, model.Deleted, deleted)
	_, ok := e.sim.Job("sched:job-1")
	assert.False(t, ok, "deleting a schedule deletes its jobs")
}

func TestListTasks_Paged(t *testing.T) {
	opts := quickTasks()
	opts.PageSize = 2
	e := newEnv(t, opts)
	ctx := context.Background()

	_, err := e.client.AddJob(ctx, batch.NewJob{ID: "job-1", PoolInfo: batch.PoolInformation{PoolID: "p"}})
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := e.client.AddTask(ctx, "job-1", batch.NewTask{ID: id, CommandLine: "true"})
		require.NoError(t, err)
	}

	tasks, err := e.client.ListTasks(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "e", tasks[4].ID)
}

func TestListSupportedImages(t *testing.T) {
	e := newEnv(t, quickTasks())
	images, err := e.client.ListSupportedImages(context.Background())
	require.NoError(t, err)
	assert.Len(t, images, len(batchsim.DefaultImages()))
}

func TestBlob_ContainerOutcomesAndUpload(t *testing.T) {
	e := newEnv(t, quickTasks())
	ctx := context.Background()

	created, err := e.blobs.CreateContainer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.Created, created)

	created, err = e.blobs.CreateContainer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.AlreadyExisted, created)

	local := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(local, []byte("payload"), 0o644))
	size, err := e.blobs.UploadFile(ctx, "c1", "dir/data.txt", local)
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	data, ok := e.sim.Blob("c1", "dir/data.txt")
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))

	url, err := e.blobs.SignedURL("c1", "dir/data.txt", epoch, epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "sp=r"), url)
	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	deleted, err := e.blobs.DeleteContainer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.Deleted, deleted)
	assert.False(t, e.sim.ContainerExists("c1"))

	deleted, err = e.blobs.DeleteContainer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.NotFound, deleted)
}

func TestBatch_RequiresAuthorization(t *testing.T) {
	sim := batchsim.New(quickTasks())
	srv := httptest.NewServer(sim.BatchHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/pools/p?api-version=" + batch.APIVersion)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("request-id"))
}
