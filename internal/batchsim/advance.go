package batchsim

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
)

// CodeResourceFileDownloadFailed is the failure code of a task whose
// resource files could not be fetched.
const CodeResourceFileDownloadFailed = "ResourceFileDownloadFailed"

// advance moves every task, job and schedule forward to now. Callers hold s.mu.
func (s *Simulator) advance(now time.Time) {
	for _, j := range s.jobs.list() {
		s.advanceJob(j, now)
	}
	for _, sched := range s.schedules.list() {
		s.advanceSchedule(sched, now)
	}
}

func (s *Simulator) advanceJob(j *jobRecord, now time.Time) {
	if j.job.State.IsTerminal() {
		return
	}
	poolID := ""
	if j.job.ExecutionInfo != nil {
		poolID = j.job.ExecutionInfo.PoolID
	}
	pool, poolReady := s.pools.get(poolID)

	allDone := j.tasks.len() > 0
	for _, t := range j.tasks.list() {
		if t.task.State == batch.TaskStateActive && poolReady {
			start := t.created.Add(s.opts.TaskStartDelay)
			if pc := pool.pool.CreationTime; pc != nil && pc.After(start) {
				start = *pc
			}
			if !now.Before(start) {
				t.task.State = batch.TaskStateRunning
				t.task.ExecutionInfo = &batch.TaskExecutionInfo{StartTime: &start}
				s.logger.Debug("task running", "job_id", j.job.ID, "task_id", t.task.ID)
			}
		}
		if t.task.State == batch.TaskStateRunning {
			end := t.task.ExecutionInfo.StartTime.Add(s.opts.TaskRunTime)
			if !now.Before(end) {
				s.runTask(j.job.ID, t, end)
			}
		}
		if t.task.State != batch.TaskStateCompleted {
			allDone = false
		}
	}

	if allDone && j.job.OnAllTasksComplete == batch.OnAllTasksCompleteTerminateJob {
		end := now
		j.job.State = batch.JobStateCompleted
		j.job.ExecutionInfo.EndTime = &end
		if j.autoPoolID != "" {
			s.pools.delete(j.autoPoolID)
			s.logger.Info("auto-pool released", "pool_id", j.autoPoolID, "job_id", j.job.ID)
			j.autoPoolID = ""
		}
		s.logger.Info("job completed", "job_id", j.job.ID)
	}
}

// runTask completes a task: it fetches the resource files and records output.
func (s *Simulator) runTask(jobID string, t *taskRecord, end time.Time) {
	info := t.task.ExecutionInfo
	info.EndTime = &end
	t.task.State = batch.TaskStateCompleted

	var out strings.Builder
	fmt.Fprintf(&out, "Running: %s\n", t.task.CommandLine)
	for _, rf := range t.task.ResourceFiles {
		n, err := s.fetch(rf.HTTPURL)
		if err != nil {
			info.Result = batch.TaskResultFailure
			info.FailureInfo = &batch.TaskFailureInfo{
				Category: "UserError",
				Code:     CodeResourceFileDownloadFailed,
				Message:  fmt.Sprintf("One or more resource files failed to download: %s: %v", rf.FilePath, err),
			}
			t.stderr = info.FailureInfo.Message + "\n"
			t.stdout = ""
			s.logger.Info("task failed", "job_id", jobID, "task_id", t.task.ID, "error", err)
			return
		}
		fmt.Fprintf(&out, "Downloaded %s (%d bytes)\n", rf.FilePath, n)
	}
	out.WriteString("Task complete.\n")

	exit := int32(0)
	info.ExitCode = &exit
	info.Result = batch.TaskResultSuccess
	t.stdout = out.String()
	s.logger.Info("task completed", "job_id", jobID, "task_id", t.task.ID)
}

func (s *Simulator) fetch(rawURL string) (int64, error) {
	resp, err := s.opts.HTTPClient.Get(rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		if code := resp.Header.Get("x-ms-error-code"); code != "" {
			return 0, fmt.Errorf("HTTP %d %s", resp.StatusCode, code)
		}
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return n, nil
}

// advanceSchedule creates at most one active job at a time while the
// schedule is inside its window, and completes the schedule once its
// cutoff has passed and no job is running.
func (s *Simulator) advanceSchedule(sched *scheduleRecord, now time.Time) {
	js := &sched.js
	if js.State.IsTerminal() {
		return
	}
	active := false
	if js.ExecutionInfo.RecentJob != nil {
		if j, ok := s.jobs.get(js.ExecutionInfo.RecentJob.ID); ok && !j.job.State.IsTerminal() {
			active = true
		}
	}
	cutoff := js.Schedule.DoNotRunAfter
	next := js.ExecutionInfo.NextRunTime

	switch {
	case cutoff != nil && !now.Before(*cutoff):
		if !active {
			s.completeSchedule(sched, now)
		}
		return
	case next == nil:
		if !active {
			s.completeSchedule(sched, now)
		}
		return
	case now.Before(*next) || active:
		return
	}

	id := sched.nextJobID()
	spec := js.JobSpecification
	s.addJob(id, spec.PoolInfo, spec.OnAllTasksComplete, spec.JobManagerTask, js.ID, now)
	sched.jobs = append(sched.jobs, id)
	js.ExecutionInfo.RecentJob = &batch.RecentJob{ID: id}

	interval := time.Duration(js.Schedule.RecurrenceInterval)
	if interval <= 0 {
		js.ExecutionInfo.NextRunTime = nil
		return
	}
	n := *next
	for !n.After(now) {
		n = n.Add(interval)
	}
	js.ExecutionInfo.NextRunTime = &n
}

func (s *Simulator) completeSchedule(sched *scheduleRecord, now time.Time) {
	end := now
	sched.js.State = batch.JobScheduleStateCompleted
	sched.js.ExecutionInfo.NextRunTime = nil
	sched.js.ExecutionInfo.EndTime = &end
	if sched.autoPoolID != "" {
		s.pools.delete(sched.autoPoolID)
		sched.autoPoolID = ""
	}
	s.logger.Info("job schedule completed", "schedule_id", sched.js.ID, "jobs", len(sched.jobs))
}
