// internal/release/service_test.go
package release

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vcs-release-tracker/internal/database"
	"vcs-release-tracker/internal/database/databasemock"
	custom_errors "vcs-release-tracker/internal/errors"
	"vcs-release-tracker/internal/model"
)

func newTestService(db database.Querier) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(db, logger)
}

func strPtr(s string) *string { return &s }

func TestService_Ingest(t *testing.T) {
	ctx := context.Background()
	repoID := uuid.New()
	params := IngestParams{
		Provider:     "gh",
		ProviderID:   "r1",
		RepositoryID: repoID,
		Tag:          "v1.0",
	}
	key := database.GetReleaseByProviderParams{Provider: "gh", ProviderID: "r1"}

	t.Run("creates a new release in RECEIVED", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		created := model.Release{ID: uuid.New(), Provider: "gh", ProviderID: strPtr("r1"), Tag: "v1.0", RepositoryID: repoID, Status: model.StatusReceived}
		mockQ.On("GetReleaseByProvider", ctx, key).Return(model.Release{}, pgx.ErrNoRows).Once()
		mockQ.On("CreateRelease", ctx, mock.MatchedBy(func(arg database.CreateReleaseParams) bool {
			return arg.Provider == "gh" && *arg.ProviderID == "r1" && arg.Status == model.StatusReceived
		})).Return(created, nil).Once()

		rel, err := svc.Ingest(ctx, params)

		require.NoError(t, err)
		assert.Equal(t, created.ID, rel.ID)
		assert.Equal(t, model.StatusReceived, rel.Status)
		mockQ.AssertExpectations(t)
	})

	t.Run("returns the existing release for a redelivered event", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		existing := model.Release{ID: uuid.New(), Provider: "gh", ProviderID: strPtr("r1"), Status: model.StatusPublished}
		mockQ.On("GetReleaseByProvider", ctx, key).Return(existing, nil).Once()

		rel, err := svc.Ingest(ctx, params)

		var dup *custom_errors.ReleaseAlreadyReceivedError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, existing.ID, rel.ID)
		assert.Equal(t, existing.ID, dup.Release.ID)
		assert.Equal(t, model.StatusPublished, rel.Status, "redelivery must not reset the lifecycle")
		mockQ.AssertNotCalled(t, "CreateRelease")
	})

	t.Run("converts a lost insert race into already-received", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		existing := model.Release{ID: uuid.New(), Provider: "gh", ProviderID: strPtr("r1"), Status: model.StatusReceived}
		mockQ.On("GetReleaseByProvider", ctx, key).Return(model.Release{}, pgx.ErrNoRows).Once()
		mockQ.On("CreateRelease", ctx, mock.Anything).Return(model.Release{}, &pgconn.PgError{Code: "23505"}).Once()
		mockQ.On("GetReleaseByProvider", ctx, key).Return(existing, nil).Once()

		rel, err := svc.Ingest(ctx, params)

		var dup *custom_errors.ReleaseAlreadyReceivedError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, existing.ID, rel.ID)
		mockQ.AssertExpectations(t)
	})

	t.Run("propagates unexpected database errors", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)
		dbErr := errors.New("connection reset")

		mockQ.On("GetReleaseByProvider", ctx, key).Return(model.Release{}, dbErr).Once()

		_, err := svc.Ingest(ctx, params)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestService_BeginProcessing(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("moves RECEIVED to PROCESSING", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("TransitionRelease", ctx, database.TransitionReleaseParams{
			ID:         id,
			ToStatus:   model.StatusProcessing,
			FromStatus: []model.ReleaseStatus{model.StatusReceived},
		}).Return(model.Release{ID: id, Status: model.StatusProcessing}, nil).Once()

		rel, err := svc.BeginProcessing(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusProcessing, rel.Status)
	})

	t.Run("reports invalid transition when not RECEIVED", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("TransitionRelease", ctx, mock.Anything).Return(model.Release{}, pgx.ErrNoRows).Once()
		mockQ.On("GetReleaseByID", ctx, id).Return(model.Release{ID: id, Status: model.StatusPublished}, nil).Once()

		_, err := svc.BeginProcessing(ctx, id)

		var invalid *custom_errors.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, model.StatusPublished, invalid.From)
		assert.Equal(t, model.StatusProcessing, invalid.To)
	})

	t.Run("reports not-found for a missing release", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("TransitionRelease", ctx, mock.Anything).Return(model.Release{}, pgx.ErrNoRows).Once()
		mockQ.On("GetReleaseByID", ctx, id).Return(model.Release{}, pgx.ErrNoRows).Once()

		_, err := svc.BeginProcessing(ctx, id)

		var notFound *custom_errors.ReleaseNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestService_MarkPublished(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	recordID := uuid.New()

	t.Run("only legal from PROCESSING", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("SetReleaseResult", ctx, database.SetReleaseResultParams{
			ID:            id,
			ToStatus:      model.StatusPublished,
			RecordID:      recordID,
			RecordIsDraft: false,
			FromStatus:    []model.ReleaseStatus{model.StatusProcessing},
		}).Return(model.Release{ID: id, Status: model.StatusPublished, RecordID: &recordID}, nil).Once()

		rel, err := svc.MarkPublished(ctx, id, recordID, false)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPublished, rel.Status)
		mockQ.AssertExpectations(t)
	})

	t.Run("fails with invalid-transition on a RECEIVED release", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("SetReleaseResult", ctx, mock.Anything).Return(model.Release{}, pgx.ErrNoRows).Once()
		mockQ.On("GetReleaseByID", ctx, id).Return(model.Release{ID: id, Status: model.StatusReceived}, nil).Once()

		_, err := svc.MarkPublished(ctx, id, recordID, false)

		var invalid *custom_errors.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, model.StatusReceived, invalid.From, "status must be left unchanged")
	})
}

func TestService_MarkFailed(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("merges error detail atomically with the status change", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)
		detail := model.ErrorsMap{"zipball": "timeout"}

		mockQ.On("MergeReleaseErrors", ctx, database.MergeReleaseErrorsParams{
			ID:         id,
			ToStatus:   model.StatusFailed,
			Errors:     detail,
			FromStatus: []model.ReleaseStatus{model.StatusReceived, model.StatusProcessing, model.StatusPublishPending, model.StatusFailed},
		}).Return(model.Release{ID: id, Status: model.StatusFailed, Errors: detail}, nil).Once()

		rel, err := svc.MarkFailed(ctx, id, detail)
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, rel.Status)
		mockQ.AssertExpectations(t)
	})

	t.Run("is legal on an already failed release", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		// Second failure report: the store merges, both key sets survive.
		merged := model.ErrorsMap{"zipball": "timeout", "record": "rejected"}
		mockQ.On("MergeReleaseErrors", ctx, mock.MatchedBy(func(arg database.MergeReleaseErrorsParams) bool {
			return assert.ObjectsAreEqual(arg.Errors, model.ErrorsMap{"record": "rejected"})
		})).Return(model.Release{ID: id, Status: model.StatusFailed, Errors: merged}, nil).Once()

		rel, err := svc.MarkFailed(ctx, id, model.ErrorsMap{"record": "rejected"})
		require.NoError(t, err)
		assert.Equal(t, merged, rel.Errors)
	})

	t.Run("rejected on a PUBLISHED release", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("MergeReleaseErrors", ctx, mock.Anything).Return(model.Release{}, pgx.ErrNoRows).Once()
		mockQ.On("GetReleaseByID", ctx, id).Return(model.Release{ID: id, Status: model.StatusPublished}, nil).Once()

		_, err := svc.MarkFailed(ctx, id, model.ErrorsMap{"late": true})

		var invalid *custom_errors.InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestService_MarkDeleted(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	mockQ := new(databasemock.Querier)
	svc := newTestService(mockQ)

	// The swap matches from any status, so deleting twice is a no-op.
	mockQ.On("TransitionRelease", ctx, mock.MatchedBy(func(arg database.TransitionReleaseParams) bool {
		return arg.ToStatus == model.StatusDeleted && len(arg.FromStatus) == 6
	})).Return(model.Release{ID: id, Status: model.StatusDeleted}, nil).Twice()

	rel, err := svc.MarkDeleted(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, rel.Status)

	rel, err = svc.MarkDeleted(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, rel.Status)
	mockQ.AssertExpectations(t)
}

func TestService_ResolvePending(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("resolves to PUBLISHED", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("TransitionRelease", ctx, database.TransitionReleaseParams{
			ID:         id,
			ToStatus:   model.StatusPublished,
			FromStatus: []model.ReleaseStatus{model.StatusPublishPending},
		}).Return(model.Release{ID: id, Status: model.StatusPublished}, nil).Once()

		rel, err := svc.ResolvePending(ctx, id, model.StatusPublished)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPublished, rel.Status)
	})

	t.Run("rejects outcomes outside PUBLISHED/FAILED", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		_, err := svc.ResolvePending(ctx, id, model.StatusProcessing)

		var invalid *custom_errors.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		mockQ.AssertNotCalled(t, "TransitionRelease")
	})

	t.Run("fails when the release is not PUBLISH_PENDING", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("TransitionRelease", ctx, mock.Anything).Return(model.Release{}, pgx.ErrNoRows).Once()
		mockQ.On("GetReleaseByID", ctx, id).Return(model.Release{ID: id, Status: model.StatusProcessing}, nil).Once()

		_, err := svc.ResolvePending(ctx, id, model.StatusFailed)

		var invalid *custom_errors.InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestService_GetForRecord(t *testing.T) {
	ctx := context.Background()
	recordID := uuid.New()

	t.Run("not-found when only_draft excludes the match", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		mockQ.On("GetReleaseForRecord", ctx, database.GetReleaseForRecordParams{RecordID: recordID, OnlyDraft: true}).
			Return(model.Release{}, pgx.ErrNoRows).Once()

		_, err := svc.GetForRecord(ctx, recordID, true)

		var notFound *custom_errors.ReleaseNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("returns the matching release", func(t *testing.T) {
		mockQ := new(databasemock.Querier)
		svc := newTestService(mockQ)

		draft := true
		want := model.Release{ID: uuid.New(), RecordID: &recordID, RecordIsDraft: &draft}
		mockQ.On("GetReleaseForRecord", ctx, database.GetReleaseForRecordParams{RecordID: recordID, OnlyDraft: false}).
			Return(want, nil).Once()

		rel, err := svc.GetForRecord(ctx, recordID, false)
		require.NoError(t, err)
		assert.Equal(t, want.ID, rel.ID)
	})
}
