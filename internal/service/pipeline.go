package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/logging"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/storage"
)

// errNoClient is the cause reported when the Object Storage client was
// cleared between resolution and persistence.
var errNoClient = errors.New("no Object Storage client")

// Pipeline moves a produced artifact into the resolved storage tier.
type Pipeline struct {
	dest   *storage.Destination
	retry  *RetryPolicy
	logger *logging.Logger
}

// NewPipeline creates a pipeline over dest. A nil retry policy uploads
// once.
func NewPipeline(dest *storage.Destination, retry *RetryPolicy, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if retry == nil {
		retry = NewRetryPolicy(WithMaxAttempts(1))
	}
	return &Pipeline{dest: dest, retry: retry, logger: logger}
}

// Persist stores the artifact at localPath. It blocks until the move or
// upload is done and never panics. For durable tiers the local file is
// gone afterwards unless a volume move failed, in which case it is left
// for inspection.
func (p *Pipeline) Persist(ctx context.Context, localPath string, kind core.ArtifactKind) core.Result {
	state := p.dest.Snapshot()

	switch state.Tier {
	case core.TierLocalVolume:
		return p.toVolume(localPath, kind, state.Volume)
	case core.TierObjectStorage:
		return p.toObjectStorage(ctx, localPath, kind, state)
	default:
		p.logger.Info("dump written to local disk",
			"kind", kind,
			"path", localPath,
		)
		return core.Result{Kind: kind, Location: localPath}
	}
}

func (p *Pipeline) toVolume(localPath string, kind core.ArtifactKind, volume string) core.Result {
	moved, err := storage.MoveFile(localPath, volume)
	if err != nil {
		p.logger.Error("moving dump to volume failed",
			"kind", kind,
			"path", localPath,
			"volume", volume,
			"error", err,
		)
		return core.Result{Kind: kind, Err: core.ErrTransfer(volume, err)}
	}

	if moved.SourceRemoveErr != nil {
		p.logger.Warn("dump copied to volume but local file was not removed",
			"path", localPath,
			"error", moved.SourceRemoveErr,
		)
	}
	p.logger.Info("dump moved to volume",
		"kind", kind,
		"location", moved.Path,
		"copied", moved.Copied,
	)
	return core.Result{Kind: kind, Location: moved.Path}
}

func (p *Pipeline) toObjectStorage(ctx context.Context, localPath string, kind core.ArtifactKind, state storage.State) core.Result {
	base := filepath.Base(localPath)
	target := state.Container + "/" + base

	var err error
	if state.Client == nil {
		err = errNoClient
	} else {
		err = p.retry.Execute(ctx, func(ctx context.Context) error {
			return upload(ctx, state.Client, state.Container, localPath)
		}, func(attempt int, err error, delay time.Duration) {
			p.logger.Warn("retrying dump upload",
				"target", target,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		})
	}
	p.removeLocal(localPath)

	if err != nil {
		p.logger.Error("uploading dump to Object Storage failed",
			"kind", kind,
			"target", target,
			"error", err,
		)
		return core.Result{Kind: kind, Err: core.ErrTransfer(target, err)}
	}

	p.logger.Info("dump uploaded to Object Storage",
		"kind", kind,
		"location", target,
	)
	return core.Result{Kind: kind, Location: target}
}

func upload(ctx context.Context, store core.ObjectStore, container, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening dump: %w", err)
	}
	defer f.Close()

	return store.Upload(ctx, container, filepath.Base(localPath), f)
}

func (p *Pipeline) removeLocal(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("removing local dump failed", "path", path, "error", err)
	}
}
