// internal/database/databasemock/mock.go
package databasemock

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"vcs-release-tracker/internal/database"
	"vcs-release-tracker/internal/model"
)

// Querier is a testify mock of the database.Querier interface, shared by the
// service and handler unit tests.
type Querier struct {
	mock.Mock
}

var _ database.Querier = (*Querier)(nil)

func (m *Querier) CreateRepository(ctx context.Context, arg database.CreateRepositoryParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *Querier) GetRepositoryByProvider(ctx context.Context, arg database.GetRepositoryByProviderParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *Querier) GetRepositoryByID(ctx context.Context, id uuid.UUID) (model.Repository, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *Querier) UpdateRepositoryMetadata(ctx context.Context, arg database.UpdateRepositoryMetadataParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *Querier) SetRepositoryHook(ctx context.Context, arg database.SetRepositoryHookParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *Querier) ClearRepositoryHook(ctx context.Context, id uuid.UUID) (model.Repository, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Repository), args.Error(1)
}

func (m *Querier) UpsertRepositoryUser(ctx context.Context, arg database.RepositoryUserParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *Querier) DeleteRepositoryUser(ctx context.Context, arg database.RepositoryUserParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Querier) GetRepositoryUser(ctx context.Context, arg database.RepositoryUserParams) (model.AccessGrant, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.AccessGrant), args.Error(1)
}

func (m *Querier) ListRepositoryUsers(ctx context.Context, repositoryID uuid.UUID) ([]model.AccessGrant, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).([]model.AccessGrant), args.Error(1)
}

func (m *Querier) GetLatestPublishedRelease(ctx context.Context, repositoryID uuid.UUID) (model.Release, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).(model.Release), args.Error(1)
}

func (m *Querier) MarkRepositoryReleasesDeleted(ctx context.Context, repositoryID uuid.UUID) (int64, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Querier) CreateRelease(ctx context.Context, arg database.CreateReleaseParams) (model.Release, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Release), args.Error(1)
}

func (m *Querier) GetReleaseByProvider(ctx context.Context, arg database.GetReleaseByProviderParams) (model.Release, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Release), args.Error(1)
}

func (m *Querier) GetReleaseByID(ctx context.Context, id uuid.UUID) (model.Release, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Release), args.Error(1)
}

func (m *Querier) TransitionRelease(ctx context.Context, arg database.TransitionReleaseParams) (model.Release, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Release), args.Error(1)
}

func (m *Querier) SetReleaseResult(ctx context.Context, arg database.SetReleaseResultParams) (model.Release, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Release), args.Error(1)
}

func (m *Querier) MergeReleaseErrors(ctx context.Context, arg database.MergeReleaseErrorsParams) (model.Release, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Release), args.Error(1)
}

func (m *Querier) GetReleaseForRecord(ctx context.Context, arg database.GetReleaseForRecordParams) (model.Release, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Release), args.Error(1)
}

func (m *Querier) GetFirstRelease(ctx context.Context, repositoryID uuid.UUID) (model.Release, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).(model.Release), args.Error(1)
}

func (m *Querier) ListReleasesByStatus(ctx context.Context, arg database.ListReleasesByStatusParams) ([]model.Release, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]model.Release), args.Error(1)
}
