// internal/database/querier.go
package database

import (
	"context"

	"github.com/google/uuid"

	"vcs-release-tracker/internal/model"
)

// Querier is the storage contract consumed by the registry and release
// services. Not-found is reported as pgx.ErrNoRows; the services translate it
// into domain errors.
type Querier interface {
	CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error)
	GetRepositoryByProvider(ctx context.Context, arg GetRepositoryByProviderParams) (model.Repository, error)
	GetRepositoryByID(ctx context.Context, id uuid.UUID) (model.Repository, error)
	UpdateRepositoryMetadata(ctx context.Context, arg UpdateRepositoryMetadataParams) (model.Repository, error)
	SetRepositoryHook(ctx context.Context, arg SetRepositoryHookParams) (model.Repository, error)
	ClearRepositoryHook(ctx context.Context, id uuid.UUID) (model.Repository, error)
	UpsertRepositoryUser(ctx context.Context, arg RepositoryUserParams) error
	DeleteRepositoryUser(ctx context.Context, arg RepositoryUserParams) (int64, error)
	GetRepositoryUser(ctx context.Context, arg RepositoryUserParams) (model.AccessGrant, error)
	ListRepositoryUsers(ctx context.Context, repositoryID uuid.UUID) ([]model.AccessGrant, error)
	GetLatestPublishedRelease(ctx context.Context, repositoryID uuid.UUID) (model.Release, error)
	MarkRepositoryReleasesDeleted(ctx context.Context, repositoryID uuid.UUID) (int64, error)

	CreateRelease(ctx context.Context, arg CreateReleaseParams) (model.Release, error)
	GetReleaseByProvider(ctx context.Context, arg GetReleaseByProviderParams) (model.Release, error)
	GetReleaseByID(ctx context.Context, id uuid.UUID) (model.Release, error)
	TransitionRelease(ctx context.Context, arg TransitionReleaseParams) (model.Release, error)
	SetReleaseResult(ctx context.Context, arg SetReleaseResultParams) (model.Release, error)
	MergeReleaseErrors(ctx context.Context, arg MergeReleaseErrorsParams) (model.Release, error)
	GetReleaseForRecord(ctx context.Context, arg GetReleaseForRecordParams) (model.Release, error)
	GetFirstRelease(ctx context.Context, repositoryID uuid.UUID) (model.Release, error)
	ListReleasesByStatus(ctx context.Context, arg ListReleasesByStatusParams) ([]model.Release, error)
}

var _ Querier = (*Queries)(nil)
