// internal/release/service.go
package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vcs-release-tracker/internal/database"
	custom_errors "vcs-release-tracker/internal/errors"
	"vcs-release-tracker/internal/model"
)

// The swap guards are derived from the transition table so the SQL cannot
// drift from the declared edges. mark_failed may leave FAILED itself, so
// repeated failure reports keep merging into the error map; deletion is legal
// from every status.
var (
	nonTerminal = model.StatusesWithEdgeTo(model.StatusFailed)
	allStatuses = model.StatusesWithEdgeTo(model.StatusDeleted)
)

// Service drives the release lifecycle. Every transition is a
// compare-and-swap against the stored status; an update that matches no row
// is re-read and reported as either not-found or an illegal transition, never
// clamped to the target state.
type Service struct {
	db     database.Querier
	logger *slog.Logger
}

// NewService creates a release lifecycle service.
func NewService(db database.Querier, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// IngestParams identifies an inbound release event.
type IngestParams struct {
	Provider     string
	ProviderID   string
	RepositoryID uuid.UUID
	Tag          string
	EventID      *uuid.UUID
}

// Ingest records a newly received release, idempotently. If a release with
// the same (provider, provider_id) already exists — including one created by
// a concurrent delivery that wins the insert race — the existing row is
// returned together with ReleaseAlreadyReceivedError so the caller can treat
// redelivery as a no-op.
func (s *Service) Ingest(ctx context.Context, arg IngestParams) (model.Release, error) {
	key := database.GetReleaseByProviderParams{Provider: arg.Provider, ProviderID: arg.ProviderID}

	existing, err := s.db.GetReleaseByProvider(ctx, key)
	if err == nil {
		return existing, &custom_errors.ReleaseAlreadyReceivedError{Release: existing}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Release{}, err
	}

	rel, err := s.db.CreateRelease(ctx, database.CreateReleaseParams{
		Provider:     arg.Provider,
		ProviderID:   &arg.ProviderID,
		Tag:          arg.Tag,
		RepositoryID: arg.RepositoryID,
		EventID:      arg.EventID,
		Status:       model.StatusReceived,
	})
	if database.IsUniqueViolation(err) {
		// Lost the insert race against a concurrent duplicate delivery.
		existing, getErr := s.db.GetReleaseByProvider(ctx, key)
		if getErr != nil {
			return model.Release{}, fmt.Errorf("failed to load release after duplicate insert: %w", getErr)
		}
		return existing, &custom_errors.ReleaseAlreadyReceivedError{Release: existing}
	}
	if err != nil {
		return model.Release{}, fmt.Errorf("failed to create release: %w", err)
	}

	s.logger.Info("Release received", "provider", rel.Provider, "provider_id", arg.ProviderID, "tag", rel.Tag, "release_id", rel.ID)
	return rel, nil
}

// Get returns the release with the given internal id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Release, error) {
	rel, err := s.db.GetReleaseByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Release{}, &custom_errors.ReleaseNotFoundError{ID: id}
	}
	return rel, err
}

// BeginProcessing moves RECEIVED -> PROCESSING.
func (s *Service) BeginProcessing(ctx context.Context, id uuid.UUID) (model.Release, error) {
	return s.transition(ctx, id, model.StatusesWithEdgeTo(model.StatusProcessing), model.StatusProcessing)
}

// MarkPublished moves PROCESSING -> PUBLISHED and stores the weak record
// reference and draft flag.
func (s *Service) MarkPublished(ctx context.Context, id, recordID uuid.UUID, isDraft bool) (model.Release, error) {
	return s.setResult(ctx, id, model.StatusPublished, recordID, isDraft)
}

// MarkPending moves PROCESSING -> PUBLISH_PENDING: publication succeeded
// mechanically but awaits an external approval this service does not observe.
func (s *Service) MarkPending(ctx context.Context, id, recordID uuid.UUID, isDraft bool) (model.Release, error) {
	return s.setResult(ctx, id, model.StatusPublishPending, recordID, isDraft)
}

// MarkFailed moves any non-terminal state (or FAILED itself) to FAILED and
// merges detail into the error map: new keys overwrite, existing unrelated
// keys persist. The merge and the status change are one atomic update.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, detail model.ErrorsMap) (model.Release, error) {
	rel, err := s.db.MergeReleaseErrors(ctx, database.MergeReleaseErrorsParams{
		ID:         id,
		ToStatus:   model.StatusFailed,
		Errors:     detail,
		FromStatus: nonTerminal,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return s.explainMissedSwap(ctx, id, model.StatusFailed)
	}
	if err != nil {
		return model.Release{}, err
	}
	s.logger.Warn("Release failed", "release_id", id, "tag", rel.Tag, "errors", detail)
	return rel, nil
}

// MarkDeleted soft-deletes the release from any state. Deleting an already
// deleted release is a no-op, not an error.
func (s *Service) MarkDeleted(ctx context.Context, id uuid.UUID) (model.Release, error) {
	return s.transition(ctx, id, allStatuses, model.StatusDeleted)
}

// ResolvePending finalizes a PUBLISH_PENDING release once the out-of-band
// approval resolves. Outcome must be PUBLISHED or FAILED. The draft flag is
// deliberately left as written; it records the original save mode.
func (s *Service) ResolvePending(ctx context.Context, id uuid.UUID, outcome model.ReleaseStatus) (model.Release, error) {
	if outcome != model.StatusPublished && outcome != model.StatusFailed {
		return model.Release{}, &custom_errors.InvalidTransitionError{
			ReleaseID: id,
			From:      model.StatusPublishPending,
			To:        outcome,
		}
	}
	rel, err := s.transition(ctx, id, []model.ReleaseStatus{model.StatusPublishPending}, outcome)
	if err != nil {
		return rel, err
	}
	s.logger.Info("Pending release resolved", "release_id", id, "tag", rel.Tag, "outcome", outcome)
	return rel, nil
}

// GetForRecord is the reverse lookup from the weak record reference. With
// onlyDraft, the release must additionally have been saved as a draft.
func (s *Service) GetForRecord(ctx context.Context, recordID uuid.UUID, onlyDraft bool) (model.Release, error) {
	rel, err := s.db.GetReleaseForRecord(ctx, database.GetReleaseForRecordParams{
		RecordID:  recordID,
		OnlyDraft: onlyDraft,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Release{}, &custom_errors.ReleaseNotFoundError{}
	}
	return rel, err
}

// FirstRelease returns the chronologically first release of a repository.
// Callers use it to honor the gating precondition: while a repository's
// first release is PUBLISH_PENDING, later releases must wait.
func (s *Service) FirstRelease(ctx context.Context, repositoryID uuid.UUID) (model.Release, error) {
	rel, err := s.db.GetFirstRelease(ctx, repositoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Release{}, &custom_errors.ReleaseNotFoundError{}
	}
	return rel, err
}

// ListByStatus returns up to limit releases in the given status, oldest
// first.
func (s *Service) ListByStatus(ctx context.Context, status model.ReleaseStatus, limit int32) ([]model.Release, error) {
	return s.db.ListReleasesByStatus(ctx, database.ListReleasesByStatusParams{
		Status: status,
		Limit:  limit,
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from []model.ReleaseStatus, to model.ReleaseStatus) (model.Release, error) {
	rel, err := s.db.TransitionRelease(ctx, database.TransitionReleaseParams{
		ID:         id,
		ToStatus:   to,
		FromStatus: from,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return s.explainMissedSwap(ctx, id, to)
	}
	return rel, err
}

func (s *Service) setResult(ctx context.Context, id uuid.UUID, to model.ReleaseStatus, recordID uuid.UUID, isDraft bool) (model.Release, error) {
	rel, err := s.db.SetReleaseResult(ctx, database.SetReleaseResultParams{
		ID:            id,
		ToStatus:      to,
		RecordID:      recordID,
		RecordIsDraft: isDraft,
		FromStatus:    []model.ReleaseStatus{model.StatusProcessing},
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return s.explainMissedSwap(ctx, id, to)
	}
	if err != nil {
		return model.Release{}, err
	}
	s.logger.Info("Release result recorded", "release_id", id, "tag", rel.Tag, "status", to, "record_id", recordID, "is_draft", isDraft)
	return rel, nil
}

// explainMissedSwap distinguishes the two reasons a compare-and-swap update
// can match no row: the release does not exist, or its current status does
// not permit the requested edge.
func (s *Service) explainMissedSwap(ctx context.Context, id uuid.UUID, to model.ReleaseStatus) (model.Release, error) {
	current, err := s.db.GetReleaseByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Release{}, &custom_errors.ReleaseNotFoundError{ID: id}
	}
	if err != nil {
		return model.Release{}, err
	}
	return model.Release{}, &custom_errors.InvalidTransitionError{
		ReleaseID: id,
		From:      current.Status,
		To:        to,
	}
}
