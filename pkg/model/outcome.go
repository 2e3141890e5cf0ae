package model

// CreateOutcome reports what a create call did to a remote resource.
type CreateOutcome string

const (
	Created        CreateOutcome = "CREATED"
	AlreadyExisted CreateOutcome = "ALREADY_EXISTED"
)

// String returns the string representation of the outcome.
func (o CreateOutcome) String() string {
	return string(o)
}

// DeleteOutcome reports what a delete call did to a remote resource.
type DeleteOutcome string

const (
	Deleted  DeleteOutcome = "DELETED"
	NotFound DeleteOutcome = "NOT_FOUND"
)

// String returns the string representation of the outcome.
func (o DeleteOutcome) String() string {
	return string(o)
}

// ResourceKind names a remote resource for logs and teardown messages.
type ResourceKind string

const (
	ResourceContainer   ResourceKind = "container"
	ResourcePool        ResourceKind = "pool"
	ResourceJob         ResourceKind = "job"
	ResourceJobSchedule ResourceKind = "job schedule"
	ResourceTask        ResourceKind = "task"
)
