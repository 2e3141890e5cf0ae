// Package samples holds the runnable Batch samples. Each sample stages its
// input files, submits a workload, waits for it, prints task output and
// tears down what its configuration says to delete.
package samples

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/fogcitymarathoner/azure-batch-samples/internal/config"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/staging"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/waiter"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/workload"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// SimpleTaskFile is the script every sample stages and runs.
const SimpleTaskFile = "simple_task.py"

// BatchAPI is the Batch surface the samples use. *batch.Client implements it.
type BatchAPI interface {
	workload.Submitter
	workload.ImageLister
	waiter.TaskLister
	waiter.ScheduleGetter
	TaskFileGetter
	DeletePool(ctx context.Context, poolID string) (model.DeleteOutcome, error)
	DeleteJob(ctx context.Context, jobID string) (model.DeleteOutcome, error)
	DeleteJobSchedule(ctx context.Context, scheduleID string) (model.DeleteOutcome, error)
}

// Env is everything a sample run depends on.
type Env struct {
	Batch  BatchAPI
	Stager *staging.Stager
	// Clock drives identifiers, schedule windows and waits. Nil means the system clock.
	Clock waiter.Clock
	// Out receives program output: task stdout/stderr and service error details.
	Out    io.Writer
	Logger *slog.Logger
	// ResourceDir holds SimpleTaskFile.
	ResourceDir string
}

func (e Env) clock() waiter.Clock {
	if e.Clock == nil {
		return waiter.RealClock{}
	}
	return e.Clock
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

func (e Env) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}

func (e Env) waiter(cfg config.Sample, component string) waiter.Waiter {
	return waiter.Waiter{
		Interval: cfg.PollInterval.Std(),
		Clock:    e.clock(),
		Logger:   e.logger().With("component", component),
	}
}

// Report describes what a run created and how it ended.
type Report struct {
	Sample        string
	Submission    workload.Submission
	JobID         string
	Tasks         []batch.Task
	ScheduleState batch.JobScheduleState
}

// Sample is one runnable scenario.
type Sample interface {
	// Name is the CLI subcommand name.
	Name() string
	// Short is a one-line description.
	Short() string
	// ConfigFile is the default per-sample configuration file.
	ConfigFile() string
	Run(ctx context.Context, env Env, cfg config.Sample) (Report, error)
}

// Registry maps sample names to samples.
// Registration happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	samples map[string]Sample
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		samples: make(map[string]Sample),
		logger:  logger.With("component", "sample-registry"),
	}
}

// DefaultRegistry returns a registry holding every sample with its default timing.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewPoolsAndResourceFiles())
	r.Register(NewJobScheduler())
	return r
}

// Register adds a sample, keyed by its Name().
func (r *Registry) Register(s Sample) {
	r.samples[s.Name()] = s
	r.logger.Debug("sample registered", "name", s.Name())
}

// Get returns the sample with the given name or an error if none is registered.
func (r *Registry) Get(name string) (Sample, error) {
	s, ok := r.samples[name]
	if !ok {
		return nil, fmt.Errorf("no sample registered with name %q", name)
	}
	return s, nil
}

// All returns the registered samples sorted by name.
func (r *Registry) All() []Sample {
	out := make([]Sample, 0, len(r.samples))
	for _, s := range r.samples {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
