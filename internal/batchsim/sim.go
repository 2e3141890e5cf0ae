// Package batchsim is an in-process fake of the Azure Batch and Blob data
// planes, sufficient to run the samples end to end without an Azure account.
//
// Tasks progress on the simulator's clock: a task whose pool exists starts
// after TaskStartDelay and completes TaskRunTime later. "Running" a task
// means downloading its resource files over HTTP; an expired or missing
// signed URL fails the task the way the real service does. Pool start
// tasks are recorded but never run.
package batchsim

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
)

// Clock is the simulator's time source.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Simulator.
type Options struct {
	Clock          Clock
	TaskStartDelay time.Duration
	TaskRunTime    time.Duration
	// PageSize limits list responses; 0 returns everything in one page.
	PageSize   int
	HTTPClient *http.Client
	Images     []batch.SupportedImage
	Logger     *slog.Logger
}

// DefaultOptions returns a simulator on the system clock whose tasks take
// about half a minute.
func DefaultOptions() Options {
	return Options{
		Clock:          realClock{},
		TaskStartDelay: 5 * time.Second,
		TaskRunTime:    30 * time.Second,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		Images:         DefaultImages(),
	}
}

// DefaultImages is the supported image catalog the simulator reports.
func DefaultImages() []batch.SupportedImage {
	return []batch.SupportedImage{
		{
			NodeAgentSKUID:   "batch.node.ubuntu 18.04",
			ImageReference:   batch.ImageReference{Publisher: "canonical", Offer: "ubuntuserver", SKU: "18.04-lts", Version: "latest"},
			OSType:           batch.OSLinux,
			VerificationType: batch.VerificationVerified,
		},
		{
			NodeAgentSKUID:   "batch.node.ubuntu 20.04",
			ImageReference:   batch.ImageReference{Publisher: "canonical", Offer: "0001-com-ubuntu-server-focal", SKU: "20_04-lts", Version: "latest"},
			OSType:           batch.OSLinux,
			VerificationType: batch.VerificationVerified,
		},
		{
			NodeAgentSKUID:   "batch.node.ubuntu 16.04",
			ImageReference:   batch.ImageReference{Publisher: "canonical", Offer: "ubuntuserver", SKU: "16.04-lts", Version: "latest"},
			OSType:           batch.OSLinux,
			VerificationType: batch.VerificationUnverified,
		},
		{
			NodeAgentSKUID:   "batch.node.windows amd64",
			ImageReference:   batch.ImageReference{Publisher: "microsoftwindowsserver", Offer: "windowsserver", SKU: "2019-datacenter-core", Version: "latest"},
			OSType:           batch.OSWindows,
			VerificationType: batch.VerificationVerified,
		},
	}
}

// Simulator holds the state of one Batch account and one storage account.
// Batch and blob state have separate locks: running a task downloads blobs
// over HTTP while the Batch lock is held.
type Simulator struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	pools     *table[poolRecord]
	jobs      *table[jobRecord]
	schedules *table[scheduleRecord]

	blobMu     sync.Mutex
	containers *table[containerRecord]
}

// New creates a Simulator. Zero-valued options take their defaults.
func New(opts Options) *Simulator {
	def := DefaultOptions()
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.TaskStartDelay < 0 {
		opts.TaskStartDelay = 0
	}
	if opts.TaskRunTime <= 0 {
		opts.TaskRunTime = def.TaskRunTime
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = def.HTTPClient
	}
	if opts.Images == nil {
		opts.Images = def.Images
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Simulator{
		opts:       opts,
		logger:     opts.Logger.With("component", "batchsim"),
		pools:      newTable[poolRecord](),
		jobs:       newTable[jobRecord](),
		schedules:  newTable[scheduleRecord](),
		containers: newTable[containerRecord](),
	}
}

// BatchHandler serves the Batch data plane at the root path.
func (s *Simulator) BatchHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware("request-id"))
	r.Use(loggingMiddleware(s.logger))
	r.Use(requireAuth)

	r.Get("/supportedimages", s.handleListImages)

	r.Route("/pools", func(r chi.Router) {
		r.Post("/", s.handleAddPool)
		r.Get("/{poolID}", s.handleGetPool)
		r.Head("/{poolID}", s.handlePoolExists)
		r.Delete("/{poolID}", s.handleDeletePool)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.handleAddJob)
		r.Get("/{jobID}", s.handleGetJob)
		r.Delete("/{jobID}", s.handleDeleteJob)
		r.Post("/{jobID}/tasks", s.handleAddTask)
		r.Get("/{jobID}/tasks", s.handleListTasks)
		r.Get("/{jobID}/tasks/{taskID}", s.handleGetTask)
		r.Get("/{jobID}/tasks/{taskID}/files/{fileName}", s.handleGetTaskFile)
	})

	r.Route("/jobschedules", func(r chi.Router) {
		r.Post("/", s.handleAddJobSchedule)
		r.Get("/{scheduleID}", s.handleGetJobSchedule)
		r.Get("/{scheduleID}/jobs", s.handleListScheduleJobs)
		r.Delete("/{scheduleID}", s.handleDeleteJobSchedule)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondBatchError(w, http.StatusNotFound, "InvalidUri", "The requested URI does not represent any resource on the server.")
	})
	return r
}

// BlobHandler serves the Blob data plane with path-style addressing:
// /{account}/{container}/{blob}.
func (s *Simulator) BlobHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware("x-ms-request-id"))
	r.Use(loggingMiddleware(s.logger))

	r.Put("/{account}/{container}", s.handleContainer)
	r.Delete("/{account}/{container}", s.handleContainer)
	r.Get("/{account}/{container}", s.handleContainer)
	r.Put("/{account}/{container}/*", s.handlePutBlob)
	r.Get("/{account}/{container}/*", s.handleGetBlob)
	return r
}

func (s *Simulator) now() time.Time {
	return s.opts.Clock.Now().UTC()
}
