package batch

// TaskState is the lifecycle state of a Batch task.
type TaskState string

const (
	TaskStateActive    TaskState = "active"
	TaskStatePreparing TaskState = "preparing"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
)

// IsTerminal returns true once the task has finished, successfully or not.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateCompleted
}

// TaskExecutionResult distinguishes success from failure of a completed task.
type TaskExecutionResult string

const (
	TaskResultSuccess TaskExecutionResult = "success"
	TaskResultFailure TaskExecutionResult = "failure"
)

// JobState is the lifecycle state of a Batch job.
type JobState string

const (
	JobStateActive      JobState = "active"
	JobStateDisabling   JobState = "disabling"
	JobStateDisabled    JobState = "disabled"
	JobStateEnabling    JobState = "enabling"
	JobStateTerminating JobState = "terminating"
	JobStateCompleted   JobState = "completed"
	JobStateDeleting    JobState = "deleting"
)

// IsTerminal returns true if the job will run no further tasks.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateDeleting:
		return true
	}
	return false
}

// JobScheduleState is the lifecycle state of a job schedule.
type JobScheduleState string

const (
	JobScheduleStateActive      JobScheduleState = "active"
	JobScheduleStateCompleted   JobScheduleState = "completed"
	JobScheduleStateDisabled    JobScheduleState = "disabled"
	JobScheduleStateTerminating JobScheduleState = "terminating"
	JobScheduleStateDeleting    JobScheduleState = "deleting"
)

// IsTerminal returns true if the schedule will spawn no further jobs.
// A disabled schedule may be re-enabled, but nothing in this module does so.
func (s JobScheduleState) IsTerminal() bool {
	switch s {
	case JobScheduleStateCompleted, JobScheduleStateDisabled, JobScheduleStateDeleting:
		return true
	}
	return false
}

// PoolState is the lifecycle state of a pool.
type PoolState string

const (
	PoolStateActive   PoolState = "active"
	PoolStateDeleting PoolState = "deleting"
)

// AllocationState reports whether a pool is resizing.
type AllocationState string

const (
	AllocationSteady   AllocationState = "steady"
	AllocationResizing AllocationState = "resizing"
	AllocationStopping AllocationState = "stopping"
)

// OnAllTasksComplete is the action taken when every task of a job completes.
type OnAllTasksComplete string

const (
	OnAllTasksCompleteNoAction     OnAllTasksComplete = "noaction"
	OnAllTasksCompleteTerminateJob OnAllTasksComplete = "terminatejob"
)

// PoolLifetimeOption scopes the lifetime of an auto-pool.
type PoolLifetimeOption string

const (
	PoolLifetimeJobSchedule PoolLifetimeOption = "jobschedule"
	PoolLifetimeJob         PoolLifetimeOption = "job"
)

// ElevationLevel of an auto-user identity.
type ElevationLevel string

const (
	ElevationNonAdmin ElevationLevel = "nonadmin"
	ElevationAdmin    ElevationLevel = "admin"
)

// VerificationType of a supported image.
type VerificationType string

const (
	VerificationVerified   VerificationType = "verified"
	VerificationUnverified VerificationType = "unverified"
)

// OSType of a supported image.
type OSType string

const (
	OSLinux   OSType = "linux"
	OSWindows OSType = "windows"
)
