package batchsim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
)

type poolRecord struct {
	pool batch.Pool
	// owner is the job or schedule an auto-pool belongs to.
	owner string
}

type jobRecord struct {
	job        batch.Job
	scheduleID string
	autoPoolID string
	tasks      *table[taskRecord]
}

type taskRecord struct {
	task    batch.Task
	created time.Time
	stdout  string
	stderr  string
}

type scheduleRecord struct {
	js         batch.JobSchedule
	jobs       []string
	autoPoolID string
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		respondBatchError(w, http.StatusBadRequest, batch.CodeInvalidRequestBody,
			"The specified Request Body is not syntactically valid.",
			batch.ErrorDetail{Key: "Reason", Value: err.Error()})
		return false
	}
	return true
}

func missingProperty(w http.ResponseWriter, name string) {
	respondBatchError(w, http.StatusBadRequest, "MissingRequiredProperty",
		"A required property was not specified in the request body.",
		batch.ErrorDetail{Key: "PropertyName", Value: name})
}

// lock takes the Batch lock and brings the simulation up to the current time.
func (s *Simulator) lock() time.Time {
	s.mu.Lock()
	now := s.now()
	s.advance(now)
	return now
}

func (s *Simulator) handleListImages(w http.ResponseWriter, r *http.Request) {
	respondList(w, r, s.opts.PageSize, s.opts.Images)
}

// --- pools ---

func (s *Simulator) handleAddPool(w http.ResponseWriter, r *http.Request) {
	var req batch.NewPool
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		missingProperty(w, "id")
		return
	}
	if req.VMSize == "" {
		missingProperty(w, "vmSize")
		return
	}

	now := s.lock()
	defer s.mu.Unlock()

	if !s.pools.put(req.ID, &poolRecord{pool: newPool(req.ID, req.PoolSpecification, now)}) {
		respondBatchError(w, http.StatusConflict, batch.CodePoolExists, "The specified pool already exists.")
		return
	}
	s.logger.Info("pool added", "pool_id", req.ID, "vm_size", req.VMSize, "nodes", req.TargetDedicatedNodes)
	respondCreated(w, req.ID)
}

func newPool(id string, spec batch.PoolSpecification, now time.Time) batch.Pool {
	return batch.Pool{
		ID:                          id,
		State:                       batch.PoolStateActive,
		AllocationState:             batch.AllocationSteady,
		VMSize:                      spec.VMSize,
		VirtualMachineConfiguration: spec.VirtualMachineConfiguration,
		TargetDedicatedNodes:        spec.TargetDedicatedNodes,
		CurrentDedicatedNodes:       spec.TargetDedicatedNodes,
		StartTask:                   spec.StartTask,
		CreationTime:                &now,
	}
}

func (s *Simulator) handleGetPool(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	p, ok := s.pools.get(chi.URLParam(r, "poolID"))
	if !ok {
		respondBatchError(w, http.StatusNotFound, batch.CodePoolNotFound, "The specified pool does not exist.")
		return
	}
	respondJSON(w, http.StatusOK, p.pool)
}

func (s *Simulator) handlePoolExists(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	if _, ok := s.pools.get(chi.URLParam(r, "poolID")); !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Simulator) handleDeletePool(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "poolID")
	if !s.pools.delete(id) {
		respondBatchError(w, http.StatusNotFound, batch.CodePoolNotFound, "The specified pool does not exist.")
		return
	}
	s.logger.Info("pool deleted", "pool_id", id)
	w.WriteHeader(http.StatusAccepted)
}

// --- jobs ---

func (s *Simulator) handleAddJob(w http.ResponseWriter, r *http.Request) {
	var req batch.NewJob
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		missingProperty(w, "id")
		return
	}
	if req.PoolInfo.PoolID == "" && req.PoolInfo.AutoPoolSpecification == nil {
		missingProperty(w, "poolInfo")
		return
	}

	now := s.lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs.get(req.ID); ok {
		respondBatchError(w, http.StatusConflict, batch.CodeJobExists, "The specified job already exists.")
		return
	}
	s.addJob(req.ID, req.PoolInfo, req.OnAllTasksComplete, req.JobManagerTask, "", now)
	respondCreated(w, req.ID)
}

// addJob creates a job, its auto-pool if it asks for one, and its job manager task.
func (s *Simulator) addJob(id string, info batch.PoolInformation, onComplete batch.OnAllTasksComplete, jm *batch.JobManagerTask, scheduleID string, now time.Time) *jobRecord {
	if onComplete == "" {
		onComplete = batch.OnAllTasksCompleteNoAction
	}
	rec := &jobRecord{
		job: batch.Job{
			ID:                 id,
			State:              batch.JobStateActive,
			PoolInfo:           info,
			OnAllTasksComplete: onComplete,
			JobManagerTask:     jm,
			CreationTime:       &now,
		},
		scheduleID: scheduleID,
		tasks:      newTable[taskRecord](),
	}

	poolID := info.PoolID
	if auto := info.AutoPoolSpecification; auto != nil {
		poolID = s.autoPool(auto, id, scheduleID, now)
		if auto.PoolLifetimeOption == batch.PoolLifetimeJob {
			rec.autoPoolID = poolID
		}
	}
	start := now
	rec.job.ExecutionInfo = &batch.JobExecutionInfo{PoolID: poolID, StartTime: &start}

	if jm != nil {
		rec.tasks.put(jm.ID, &taskRecord{
			task: batch.Task{
				ID:            jm.ID,
				CommandLine:   jm.CommandLine,
				State:         batch.TaskStateActive,
				ResourceFiles: jm.ResourceFiles,
				UserIdentity:  jm.UserIdentity,
				CreationTime:  &start,
			},
			created: now,
		})
	}
	s.jobs.put(id, rec)
	s.logger.Info("job added", "job_id", id, "pool_id", poolID, "schedule_id", scheduleID)
	return rec
}

// autoPool returns the pool serving a job, creating it when needed. Pools
// scoped to a schedule are shared by all of the schedule's jobs.
func (s *Simulator) autoPool(spec *batch.AutoPoolSpecification, jobID, scheduleID string, now time.Time) string {
	owner := jobID
	if spec.PoolLifetimeOption == batch.PoolLifetimeJobSchedule && scheduleID != "" {
		if sched, ok := s.schedules.get(scheduleID); ok && sched.autoPoolID != "" {
			if _, ok := s.pools.get(sched.autoPoolID); ok {
				return sched.autoPoolID
			}
		}
		owner = scheduleID
	}

	prefix := spec.AutoPoolIDPrefix
	if prefix == "" {
		prefix = "autopool"
	}
	id := prefix + "_" + uuid.New().String()
	var poolSpec batch.PoolSpecification
	if spec.Pool != nil {
		poolSpec = *spec.Pool
	}
	s.pools.put(id, &poolRecord{pool: newPool(id, poolSpec, now), owner: owner})
	if owner == scheduleID {
		if sched, ok := s.schedules.get(scheduleID); ok {
			sched.autoPoolID = id
		}
	}
	s.logger.Info("auto-pool created", "pool_id", id, "owner", owner)
	return id
}

func (s *Simulator) handleGetJob(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	j, ok := s.jobs.get(chi.URLParam(r, "jobID"))
	if !ok {
		respondBatchError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return
	}
	respondJSON(w, http.StatusOK, j.job)
}

func (s *Simulator) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "jobID")
	if !s.deleteJob(id) {
		respondBatchError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Simulator) deleteJob(id string) bool {
	j, ok := s.jobs.get(id)
	if !ok {
		return false
	}
	if j.autoPoolID != "" {
		s.pools.delete(j.autoPoolID)
	}
	s.jobs.delete(id)
	s.logger.Info("job deleted", "job_id", id)
	return true
}

// --- tasks ---

func (s *Simulator) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req batch.NewTask
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		missingProperty(w, "id")
		return
	}
	if req.CommandLine == "" {
		missingProperty(w, "commandLine")
		return
	}

	now := s.lock()
	defer s.mu.Unlock()

	j, ok := s.jobs.get(chi.URLParam(r, "jobID"))
	if !ok {
		respondBatchError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return
	}
	if j.job.State.IsTerminal() {
		respondBatchError(w, http.StatusConflict, "JobCompleted", "The specified job is already in a completed state.")
		return
	}
	created := now
	ok = j.tasks.put(req.ID, &taskRecord{
		task: batch.Task{
			ID:            req.ID,
			CommandLine:   req.CommandLine,
			State:         batch.TaskStateActive,
			ResourceFiles: req.ResourceFiles,
			UserIdentity:  req.UserIdentity,
			CreationTime:  &created,
		},
		created: now,
	})
	if !ok {
		respondBatchError(w, http.StatusConflict, batch.CodeTaskExists, "The specified task already exists.")
		return
	}
	s.logger.Info("task added", "job_id", j.job.ID, "task_id", req.ID)
	respondCreated(w, req.ID)
}

func (s *Simulator) handleListTasks(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	j, ok := s.jobs.get(chi.URLParam(r, "jobID"))
	if !ok {
		respondBatchError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return
	}
	tasks := make([]batch.Task, 0, j.tasks.len())
	for _, t := range j.tasks.list() {
		tasks = append(tasks, t.task)
	}
	respondList(w, r, s.opts.PageSize, tasks)
}

func (s *Simulator) handleGetTask(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	t, ok := s.task(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, t.task)
}

func (s *Simulator) handleGetTaskFile(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	t, ok := s.task(w, r)
	if !ok {
		return
	}
	if t.task.State == batch.TaskStateActive {
		respondBatchError(w, http.StatusConflict, batch.CodeTaskNotYetStarted, "The specified operation is not valid for the current state of the task.")
		return
	}
	var content string
	switch chi.URLParam(r, "fileName") {
	case batch.StdoutFile:
		content = t.stdout
	case batch.StderrFile:
		content = t.stderr
	default:
		respondBatchError(w, http.StatusNotFound, batch.CodeFileNotFound, "The specified file does not exist.")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

func (s *Simulator) task(w http.ResponseWriter, r *http.Request) (*taskRecord, bool) {
	j, ok := s.jobs.get(chi.URLParam(r, "jobID"))
	if !ok {
		respondBatchError(w, http.StatusNotFound, batch.CodeJobNotFound, "The specified job does not exist.")
		return nil, false
	}
	t, ok := j.tasks.get(chi.URLParam(r, "taskID"))
	if !ok {
		respondBatchError(w, http.StatusNotFound, batch.CodeTaskNotFound, "The specified task does not exist.")
		return nil, false
	}
	return t, true
}

// --- job schedules ---

func (s *Simulator) handleAddJobSchedule(w http.ResponseWriter, r *http.Request) {
	var req batch.NewJobSchedule
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		missingProperty(w, "id")
		return
	}
	spec := req.JobSpecification
	if spec.PoolInfo.PoolID == "" && spec.PoolInfo.AutoPoolSpecification == nil {
		missingProperty(w, "jobSpecification.poolInfo")
		return
	}

	now := s.lock()
	defer s.mu.Unlock()

	next := now
	if req.Schedule.DoNotRunUntil != nil && req.Schedule.DoNotRunUntil.After(now) {
		next = *req.Schedule.DoNotRunUntil
	}
	created := now
	rec := &scheduleRecord{
		js: batch.JobSchedule{
			ID:               req.ID,
			State:            batch.JobScheduleStateActive,
			Schedule:         req.Schedule,
			JobSpecification: spec,
			ExecutionInfo:    &batch.JobScheduleExecutionInfo{NextRunTime: &next},
			CreationTime:     &created,
		},
	}
	if !s.schedules.put(req.ID, rec) {
		respondBatchError(w, http.StatusConflict, batch.CodeJobScheduleExists, "The specified job schedule already exists.")
		return
	}
	s.logger.Info("job schedule added", "schedule_id", req.ID,
		"recurrence", time.Duration(req.Schedule.RecurrenceInterval), "do_not_run_after", req.Schedule.DoNotRunAfter)
	respondCreated(w, req.ID)
}

func (s *Simulator) handleGetJobSchedule(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules.get(chi.URLParam(r, "scheduleID"))
	if !ok {
		respondBatchError(w, http.StatusNotFound, batch.CodeJobScheduleNotFound, "The specified job schedule does not exist.")
		return
	}
	respondJSON(w, http.StatusOK, sched.js)
}

func (s *Simulator) handleListScheduleJobs(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules.get(chi.URLParam(r, "scheduleID"))
	if !ok {
		respondBatchError(w, http.StatusNotFound, batch.CodeJobScheduleNotFound, "The specified job schedule does not exist.")
		return
	}
	respondList(w, r, s.opts.PageSize, s.scheduleJobs(sched))
}

func (s *Simulator) scheduleJobs(sched *scheduleRecord) []batch.Job {
	jobs := make([]batch.Job, 0, len(sched.jobs))
	for _, id := range sched.jobs {
		if j, ok := s.jobs.get(id); ok {
			jobs = append(jobs, j.job)
		}
	}
	return jobs
}

func (s *Simulator) handleDeleteJobSchedule(w http.ResponseWriter, r *http.Request) {
	s.lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "scheduleID")
	sched, ok := s.schedules.get(id)
	if !ok {
		respondBatchError(w, http.StatusNotFound, batch.CodeJobScheduleNotFound, "The specified job schedule does not exist.")
		return
	}
	for _, jobID := range sched.jobs {
		s.deleteJob(jobID)
	}
	if sched.autoPoolID != "" {
		s.pools.delete(sched.autoPoolID)
	}
	s.schedules.delete(id)
	s.logger.Info("job schedule deleted", "schedule_id", id)
	w.WriteHeader(http.StatusAccepted)
}

// respondList writes one page of items, linking to the next page when
// pageSize is set. The skip token is the index of the first item.
func respondList[T any](w http.ResponseWriter, r *http.Request, pageSize int, items []T) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("$skiptoken"))
	if skip < 0 || skip > len(items) {
		skip = len(items)
	}
	page := items[skip:]
	body := map[string]any{}
	if pageSize > 0 && len(page) > pageSize {
		page = page[:pageSize]
		q := r.URL.Query()
		q.Set("$skiptoken", strconv.Itoa(skip+pageSize))
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		next := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
		body["odata.nextLink"] = next.String()
	}
	body["value"] = page
	respondJSON(w, http.StatusOK, body)
}

// --- inspection ---

// Pool returns a pool's current state.
func (s *Simulator) Pool(id string) (batch.Pool, bool) {
	s.lock()
	defer s.mu.Unlock()
	p, ok := s.pools.get(id)
	if !ok {
		return batch.Pool{}, false
	}
	return p.pool, true
}

// PoolCount returns the number of pools, explicit and automatic.
func (s *Simulator) PoolCount() int {
	s.lock()
	defer s.mu.Unlock()
	return s.pools.len()
}

// Job returns a job's current state.
func (s *Simulator) Job(id string) (batch.Job, bool) {
	s.lock()
	defer s.mu.Unlock()
	j, ok := s.jobs.get(id)
	if !ok {
		return batch.Job{}, false
	}
	return j.job, true
}

// Tasks returns the tasks of a job.
func (s *Simulator) Tasks(jobID string) []batch.Task {
	s.lock()
	defer s.mu.Unlock()
	j, ok := s.jobs.get(jobID)
	if !ok {
		return nil
	}
	var out []batch.Task
	for _, t := range j.tasks.list() {
		out = append(out, t.task)
	}
	return out
}

// JobSchedule returns a schedule's current state.
func (s *Simulator) JobSchedule(id string) (batch.JobSchedule, bool) {
	s.lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules.get(id)
	if !ok {
		return batch.JobSchedule{}, false
	}
	return sched.js, true
}

// JobsInSchedule returns every job a schedule has created that still exists.
func (s *Simulator) JobsInSchedule(id string) []batch.Job {
	s.lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules.get(id)
	if !ok {
		return nil
	}
	return s.scheduleJobs(sched)
}

func (r *scheduleRecord) nextJobID() string {
	return fmt.Sprintf("%s:job-%d", r.js.ID, len(r.jobs)+1)
}
