package batch

import "time"

// ImageReference identifies a Marketplace VM image.
type ImageReference struct {
	Publisher string `json:"publisher,omitempty"`
	Offer     string `json:"offer,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Version   string `json:"version,omitempty"`
}

// VirtualMachineConfiguration selects the image and node agent for pool nodes.
type VirtualMachineConfiguration struct {
	ImageReference ImageReference `json:"imageReference"`
	NodeAgentSKUID string         `json:"nodeAgentSKUId"`
}

// ResourceFile is a file downloaded to the node before a task runs.
type ResourceFile struct {
	HTTPURL  string `json:"httpUrl,omitempty"`
	FilePath string `json:"filePath,omitempty"`
}

// AutoUserSpecification describes the auto-user a task runs as.
type AutoUserSpecification struct {
	Scope          string         `json:"scope,omitempty"`
	ElevationLevel ElevationLevel `json:"elevationLevel,omitempty"`
}

// UserIdentity is the identity a task runs under.
type UserIdentity struct {
	AutoUser *AutoUserSpecification `json:"autoUser,omitempty"`
}

// StartTask runs on every node as it joins the pool.
type StartTask struct {
	CommandLine       string         `json:"commandLine"`
	ResourceFiles     []ResourceFile `json:"resourceFiles,omitempty"`
	UserIdentity      *UserIdentity  `json:"userIdentity,omitempty"`
	WaitForSuccess    bool           `json:"waitForSuccess,omitempty"`
	MaxTaskRetryCount int32          `json:"maxTaskRetryCount,omitempty"`
}

// PoolSpecification is the shape of a pool, shared by explicit pools and auto-pools.
type PoolSpecification struct {
	VMSize                      string                       `json:"vmSize"`
	VirtualMachineConfiguration *VirtualMachineConfiguration `json:"virtualMachineConfiguration,omitempty"`
	TargetDedicatedNodes        int32                        `json:"targetDedicatedNodes"`
	StartTask                   *StartTask                   `json:"startTask,omitempty"`
}

// NewPool is the body of a pool add request.
type NewPool struct {
	ID string `json:"id"`
	PoolSpecification
}

// Pool is a pool as reported by the service.
type Pool struct {
	ID                          string                       `json:"id"`
	State                       PoolState                    `json:"state,omitempty"`
	AllocationState             AllocationState              `json:"allocationState,omitempty"`
	VMSize                      string                       `json:"vmSize,omitempty"`
	VirtualMachineConfiguration *VirtualMachineConfiguration `json:"virtualMachineConfiguration,omitempty"`
	TargetDedicatedNodes        int32                        `json:"targetDedicatedNodes"`
	CurrentDedicatedNodes       int32                        `json:"currentDedicatedNodes"`
	StartTask                   *StartTask                   `json:"startTask,omitempty"`
	CreationTime                *time.Time                   `json:"creationTime,omitempty"`
}

// AutoPoolSpecification describes a pool the service creates for a job or schedule.
type AutoPoolSpecification struct {
	AutoPoolIDPrefix   string             `json:"autoPoolIdPrefix,omitempty"`
	PoolLifetimeOption PoolLifetimeOption `json:"poolLifetimeOption"`
	KeepAlive          bool               `json:"keepAlive"`
	Pool               *PoolSpecification `json:"pool,omitempty"`
}

// PoolInformation binds a job to an existing pool or an auto-pool.
type PoolInformation struct {
	PoolID                string                 `json:"poolId,omitempty"`
	AutoPoolSpecification *AutoPoolSpecification `json:"autoPoolSpecification,omitempty"`
}

// JobManagerTask is started automatically when a job is created.
type JobManagerTask struct {
	ID            string         `json:"id"`
	CommandLine   string         `json:"commandLine"`
	ResourceFiles []ResourceFile `json:"resourceFiles,omitempty"`
	UserIdentity  *UserIdentity  `json:"userIdentity,omitempty"`
}

// NewJob is the body of a job add request.
type NewJob struct {
	ID                 string             `json:"id"`
	PoolInfo           PoolInformation    `json:"poolInfo"`
	OnAllTasksComplete OnAllTasksComplete `json:"onAllTasksComplete,omitempty"`
	JobManagerTask     *JobManagerTask    `json:"jobManagerTask,omitempty"`
}

// JobExecutionInfo reports when and where a job ran.
type JobExecutionInfo struct {
	PoolID    string     `json:"poolId,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// Job is a job as reported by the service.
type Job struct {
	ID                 string             `json:"id"`
	State              JobState           `json:"state,omitempty"`
	PoolInfo           PoolInformation    `json:"poolInfo"`
	OnAllTasksComplete OnAllTasksComplete `json:"onAllTasksComplete,omitempty"`
	JobManagerTask     *JobManagerTask    `json:"jobManagerTask,omitempty"`
	ExecutionInfo      *JobExecutionInfo  `json:"executionInfo,omitempty"`
	CreationTime       *time.Time         `json:"creationTime,omitempty"`
}

// Schedule is the recurrence rule of a job schedule.
type Schedule struct {
	DoNotRunUntil      *time.Time `json:"doNotRunUntil,omitempty"`
	DoNotRunAfter      *time.Time `json:"doNotRunAfter,omitempty"`
	RecurrenceInterval Duration   `json:"recurrenceInterval,omitempty"`
}

// JobSpecification is the template for jobs created by a schedule.
type JobSpecification struct {
	PoolInfo           PoolInformation    `json:"poolInfo"`
	OnAllTasksComplete OnAllTasksComplete `json:"onAllTasksComplete,omitempty"`
	JobManagerTask     *JobManagerTask    `json:"jobManagerTask,omitempty"`
}

// NewJobSchedule is the body of a job schedule add request.
type NewJobSchedule struct {
	ID               string           `json:"id"`
	Schedule         Schedule         `json:"schedule"`
	JobSpecification JobSpecification `json:"jobSpecification"`
}

// RecentJob references the most recent job created under a schedule.
type RecentJob struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// JobScheduleExecutionInfo reports schedule progress.
type JobScheduleExecutionInfo struct {
	NextRunTime *time.Time `json:"nextRunTime,omitempty"`
	RecentJob   *RecentJob `json:"recentJob,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
}

// JobSchedule is a job schedule as reported by the service.
type JobSchedule struct {
	ID               string                    `json:"id"`
	State            JobScheduleState          `json:"state,omitempty"`
	Schedule         Schedule                  `json:"schedule"`
	JobSpecification JobSpecification          `json:"jobSpecification"`
	ExecutionInfo    *JobScheduleExecutionInfo `json:"executionInfo,omitempty"`
	CreationTime     *time.Time                `json:"creationTime,omitempty"`
}

// NewTask is the body of a task add request.
type NewTask struct {
	ID            string         `json:"id"`
	CommandLine   string         `json:"commandLine"`
	ResourceFiles []ResourceFile `json:"resourceFiles,omitempty"`
	UserIdentity  *UserIdentity  `json:"userIdentity,omitempty"`
}

// TaskFailureInfo explains why a task failed.
type TaskFailureInfo struct {
	Category string `json:"category"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// TaskExecutionInfo reports how a task ran.
type TaskExecutionInfo struct {
	StartTime   *time.Time          `json:"startTime,omitempty"`
	EndTime     *time.Time          `json:"endTime,omitempty"`
	ExitCode    *int32              `json:"exitCode,omitempty"`
	Result      TaskExecutionResult `json:"result,omitempty"`
	FailureInfo *TaskFailureInfo    `json:"failureInfo,omitempty"`
	RetryCount  int32               `json:"retryCount"`
}

// Task is a task as reported by the service.
type Task struct {
	ID            string             `json:"id"`
	CommandLine   string             `json:"commandLine"`
	State         TaskState          `json:"state,omitempty"`
	ResourceFiles []ResourceFile     `json:"resourceFiles,omitempty"`
	UserIdentity  *UserIdentity      `json:"userIdentity,omitempty"`
	ExecutionInfo *TaskExecutionInfo `json:"executionInfo,omitempty"`
	CreationTime  *time.Time         `json:"creationTime,omitempty"`
}

// Failed returns true if the task completed with a failure result.
func (t Task) Failed() bool {
	return t.State == TaskStateCompleted && t.ExecutionInfo != nil && t.ExecutionInfo.Result == TaskResultFailure
}

// SupportedImage is one entry of the account's supported image catalog.
type SupportedImage struct {
	NodeAgentSKUID   string           `json:"nodeAgentSKUId"`
	ImageReference   ImageReference   `json:"imageReference"`
	OSType           OSType           `json:"osType"`
	VerificationType VerificationType `json:"verificationType"`
}

// listResponse is the OData envelope of list operations.
type listResponse[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"odata.nextLink,omitempty"`
}
