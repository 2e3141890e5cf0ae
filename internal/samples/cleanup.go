package samples

import (
	"context"
	"log/slog"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

type releaseFunc func(ctx context.Context) (model.DeleteOutcome, error)

type release struct {
	kind model.ResourceKind
	id   string
	fn   releaseFunc
}

// cleanupScope deletes remote resources in reverse order of registration.
// Failures are logged and never replace the run's own error.
type cleanupScope struct {
	logger   *slog.Logger
	releases []release
}

func newCleanupScope(logger *slog.Logger) *cleanupScope {
	return &cleanupScope{logger: logger.With("component", "cleanup")}
}

// add registers fn when enabled is true; otherwise the resource is kept.
func (c *cleanupScope) add(enabled bool, kind model.ResourceKind, id string, fn releaseFunc) {
	if !enabled {
		c.logger.Info("keeping resource", "kind", kind, "id", id)
		return
	}
	c.releases = append(c.releases, release{kind: kind, id: id, fn: fn})
}

// Close runs every release, last registered first. It ignores cancellation
// of ctx so an interrupted run still tears down.
func (c *cleanupScope) Close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.releases) - 1; i >= 0; i-- {
		r := c.releases[i]
		c.logger.Info("deleting", "kind", r.kind, "id", r.id)
		outcome, err := r.fn(ctx)
		if err != nil {
			c.logger.Error("delete failed", "kind", r.kind, "id", r.id, "error", err)
			continue
		}
		if outcome == model.NotFound {
			c.logger.Debug("already gone", "kind", r.kind, "id", r.id)
		}
	}
	c.releases = nil
}
