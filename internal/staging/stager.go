// Package staging uploads local input files to blob storage and hands back
// time-limited signed URLs the Batch service can download them from.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// ErrExpiresTooSoon is returned by CheckExpiry when a signed URL would lapse
// before the workload depending on it is done waiting.
var ErrExpiresTooSoon = errors.New("resource URL expires before wait deadline")

// BlobStore is the storage surface the Stager needs.
type BlobStore interface {
	// CreateContainer creates a container; an existing one is AlreadyExisted.
	CreateContainer(ctx context.Context, container string) (model.CreateOutcome, error)
	// DeleteContainer deletes a container; a missing one is NotFound.
	DeleteContainer(ctx context.Context, container string) (model.DeleteOutcome, error)
	// UploadFile uploads a local file as a block blob and returns its size.
	UploadFile(ctx context.Context, container, blobName, localPath string) (int64, error)
	// SignedURL returns a read-only URL for the blob valid between start and expiry.
	SignedURL(container, blobName string, start, expiry time.Time) (string, error)
}

// Reference is a staged file: where it came from and how to fetch it.
type Reference struct {
	LocalPath string
	Container string
	BlobName  string
	URL       string
	Size      int64
	Expiry    time.Time
}

// ResourceFile converts the reference into a Batch resource file that lands
// in the task working directory under the blob name.
func (r Reference) ResourceFile() batch.ResourceFile {
	return batch.ResourceFile{HTTPURL: r.URL, FilePath: r.BlobName}
}

// Stager creates containers, uploads files and signs URLs.
type Stager struct {
	store  BlobStore
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Stager.
type Option func(*Stager)

// WithNow overrides the time source used for SAS start and expiry.
func WithNow(now func() time.Time) Option {
	return func(s *Stager) { s.now = now }
}

// NewStager creates a Stager on top of store.
func NewStager(store BlobStore, logger *slog.Logger, opts ...Option) *Stager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Stager{
		store:  store,
		now:    time.Now,
		logger: logger.With("component", "stager"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureContainer creates the container if it does not exist yet.
func (s *Stager) EnsureContainer(ctx context.Context, container string) (model.CreateOutcome, error) {
	outcome, err := s.store.CreateContainer(ctx, container)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", container, err)
	}
	s.logger.Info("container ready", "container", container, "outcome", outcome)
	return outcome, nil
}

// Stage ensures container exists, uploads localPath as blobName (the file's
// base name when empty) and returns a URL readable from now until now+expiry.
func (s *Stager) Stage(ctx context.Context, container, localPath, blobName string, expiry time.Duration) (Reference, error) {
	if expiry <= 0 {
		return Reference{}, fmt.Errorf("stage %s: expiry must be positive, got %s", localPath, expiry)
	}
	if blobName == "" {
		blobName = filepath.Base(localPath)
	}
	if _, err := s.EnsureContainer(ctx, container); err != nil {
		return Reference{}, err
	}

	s.logger.Info("uploading", "file", localPath, "container", container, "blob", blobName)
	size, err := s.store.UploadFile(ctx, container, blobName, localPath)
	if err != nil {
		return Reference{}, fmt.Errorf("upload %s to %s/%s: %w", localPath, container, blobName, err)
	}

	start := s.now().UTC()
	end := start.Add(expiry)
	url, err := s.store.SignedURL(container, blobName, start, end)
	if err != nil {
		return Reference{}, fmt.Errorf("sign %s/%s: %w", container, blobName, err)
	}
	s.logger.Debug("staged", "blob", blobName, "size", humanize.IBytes(uint64(size)), "expires", end.Format(time.RFC3339))

	return Reference{
		LocalPath: localPath,
		Container: container,
		BlobName:  blobName,
		URL:       url,
		Size:      size,
		Expiry:    end,
	}, nil
}

// Remove deletes the container and everything in it.
func (s *Stager) Remove(ctx context.Context, container string) (model.DeleteOutcome, error) {
	outcome, err := s.store.DeleteContainer(ctx, container)
	if err != nil {
		return "", fmt.Errorf("delete container %s: %w", container, err)
	}
	s.logger.Info("container removed", "container", container, "outcome", outcome)
	return outcome, nil
}

// CheckExpiry reports ErrExpiresTooSoon if any reference expires before deadline.
func CheckExpiry(deadline time.Time, refs ...Reference) error {
	for _, r := range refs {
		if r.Expiry.Before(deadline) {
			return fmt.Errorf("%w: %s/%s expires %s, %s deadline %s",
				ErrExpiresTooSoon, r.Container, r.BlobName, r.Expiry.Format(time.RFC3339),
				humanize.RelTime(r.Expiry, deadline, "before", "after"), deadline.Format(time.RFC3339))
		}
	}
	return nil
}
