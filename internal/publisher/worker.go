// internal/publisher/worker.go
package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	custom_errors "vcs-release-tracker/internal/errors"
	"vcs-release-tracker/internal/model"
	"vcs-release-tracker/internal/registry"
	"vcs-release-tracker/internal/release"
)

// RecordPublisher submits a release payload to the record subsystem and
// reports its disposition.
type RecordPublisher interface {
	Publish(ctx context.Context, repo model.Repository, rel model.Release, zipball io.Reader) (Result, error)
}

// ZipballFetcher retrieves a release source archive from a VCS provider.
type ZipballFetcher interface {
	FetchZipball(ctx context.Context, fullName, tag string) (io.ReadCloser, error)
}

// Result is the outcome of a publish attempt.
type Result struct {
	RecordID uuid.UUID
	IsDraft  bool
	Pending  bool
}

// Config tunes the worker loop.
type Config struct {
	Interval    time.Duration
	Concurrency int
	BatchSize   int32

	// CommunityRequired fails releases of repositories without a default
	// community instead of submitting them.
	CommunityRequired bool
}

// Worker drains RECEIVED releases and advances them through the lifecycle:
// claim via begin-processing, fetch the zipball, submit to the record
// subsystem and record the outcome. Claiming is a compare-and-swap, so
// multiple workers can run against the same database.
type Worker struct {
	releases *release.Service
	registry *registry.Service
	fetchers map[string]ZipballFetcher
	recorder RecordPublisher
	logger   *slog.Logger
	cfg      Config
}

// NewWorker creates a publish worker. fetchers maps provider names to their
// archive fetchers.
func NewWorker(releases *release.Service, reg *registry.Service, fetchers map[string]ZipballFetcher, recorder RecordPublisher, logger *slog.Logger, cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Worker{
		releases: releases,
		registry: reg,
		fetchers: fetchers,
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start begins the continuous publish loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting publish worker", "interval", w.cfg.Interval.String(), "concurrency", w.cfg.Concurrency)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.RunCycle(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunCycle(ctx)
		case <-ctx.Done():
			w.logger.Info("Publish worker shutting down", "reason", ctx.Err())
			return
		}
	}
}

// RunCycle performs one pass over the currently received releases.
func (w *Worker) RunCycle(ctx context.Context) {
	pending, err := w.releases.ListByStatus(ctx, model.StatusReceived, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("Failed to list received releases", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	for _, rel := range pending {
		rel := rel
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := w.publishOne(gctx, rel); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("Failed to publish release", "release_id", rel.ID, "tag", rel.Tag, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) publishOne(ctx context.Context, rel model.Release) error {
	logger := w.logger.With("release_id", rel.ID, "tag", rel.Tag, "provider", rel.Provider)

	repo, err := w.registry.Get(ctx, rel.RepositoryID)
	if err != nil {
		return err
	}

	// While a repository's first release awaits external approval, later
	// releases stay RECEIVED and are retried on a later cycle. A failed gate
	// check also defers: claiming without knowing the gate state could
	// publish a release that must still wait.
	first, err := w.releases.FirstRelease(ctx, rel.RepositoryID)
	if err != nil {
		return err
	}
	if first.Status == model.StatusPublishPending && first.ID != rel.ID {
		logger.Info("Deferring release until first release resolves", "first_release_id", first.ID)
		return nil
	}

	claimed, err := w.releases.BeginProcessing(ctx, rel.ID)
	var invalid *custom_errors.InvalidTransitionError
	if errors.As(err, &invalid) {
		// Another worker claimed it between the list and the swap.
		logger.Debug("Release already claimed", "status", invalid.From)
		return nil
	}
	if err != nil {
		return err
	}

	if w.cfg.CommunityRequired && repo.RecordCommunityID == nil {
		_, err := w.releases.MarkFailed(ctx, rel.ID, model.ErrorsMap{
			"community": "no default community configured for repository",
			"no_retry":  true,
		})
		return err
	}

	fetcher, ok := w.fetchers[rel.Provider]
	if !ok {
		_, err := w.releases.MarkFailed(ctx, rel.ID, model.ErrorsMap{
			"provider": "no adapter registered for provider " + rel.Provider,
			"no_retry": true,
		})
		return err
	}

	zipball, err := fetcher.FetchZipball(ctx, repo.FullName, rel.Tag)
	if err != nil {
		return w.recordFailure(ctx, rel.ID, err)
	}
	defer zipball.Close()

	result, err := w.recorder.Publish(ctx, repo, claimed, zipball)
	if err != nil {
		return w.recordFailure(ctx, rel.ID, err)
	}

	if result.Pending {
		_, err = w.releases.MarkPending(ctx, rel.ID, result.RecordID, result.IsDraft)
	} else {
		_, err = w.releases.MarkPublished(ctx, rel.ID, result.RecordID, result.IsDraft)
	}
	return err
}

// recordFailure moves the release to FAILED, tagging no-retry errors so the
// retry policy can tell a permanently broken release from a transient one.
func (w *Worker) recordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	detail := model.ErrorsMap{"error": cause.Error()}
	var noRetry *custom_errors.NoRetryError
	if errors.As(cause, &noRetry) {
		detail["no_retry"] = true
	}
	if _, err := w.releases.MarkFailed(ctx, id, detail); err != nil {
		return err
	}
	return nil
}
