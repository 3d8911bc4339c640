// internal/registry/service.go
package registry

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

// Service is the repository registry: lookups on the (provider, provider_id)
// natural key, webhook enablement and the user-access association.
type Service struct {
	db     database.Querier
	logger *slog.Logger
}

// NewService creates a registry service.
func NewService(db database.Querier, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Lookup returns the repository with the given provider key.
func (s *Service) Lookup(ctx context.Context, provider, providerID string) (model.Repository, error) {
	repo, err := s.db.GetRepositoryByProvider(ctx, database.GetRepositoryByProviderParams{
		Provider:   provider,
		ProviderID: providerID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, &custom_errors.RepositoryNotFoundError{Provider: provider, ProviderID: providerID}
	}
	return repo, err
}

// Get returns the repository with the given internal id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Repository, error) {
	repo, err := s.db.GetRepositoryByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, &custom_errors.RepositoryNotFoundError{ProviderID: id.String()}
	}
	return repo, err
}

// Create registers a repository. A duplicate (provider, provider_id) pair
// surfaces as RepositoryExistsError, never as a raw constraint error.
func (s *Service) Create(ctx context.Context, arg database.CreateRepositoryParams) (model.Repository, error) {
	repo, err := s.db.CreateRepository(ctx, arg)
	if database.IsUniqueViolation(err) {
		return model.Repository{}, &custom_errors.RepositoryExistsError{Provider: arg.Provider, ProviderID: arg.ProviderID}
	}
	if err != nil {
		return model.Repository{}, fmt.Errorf("failed to create repository: %w", err)
	}
	s.logger.Info("Repository registered", "provider", repo.Provider, "provider_id", repo.ProviderID, "full_name", repo.FullName)
	return repo, nil
}

// Register creates the repository on first sight of its provider key, or
// refreshes its provider-sourced metadata if it is already known. Concurrent
// first registrations race on the unique index; the loser falls back to the
// existing row.
func (s *Service) Register(ctx context.Context, arg database.CreateRepositoryParams) (model.Repository, error) {
	existing, err := s.db.GetRepositoryByProvider(ctx, database.GetRepositoryByProviderParams{
		Provider:   arg.Provider,
		ProviderID: arg.ProviderID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		repo, createErr := s.Create(ctx, arg)
		var exists *custom_errors.RepositoryExistsError
		if errors.As(createErr, &exists) {
			return s.Lookup(ctx, arg.Provider, arg.ProviderID)
		}
		return repo, createErr
	} else if err != nil {
		return model.Repository{}, err
	}

	return s.db.UpdateRepositoryMetadata(ctx, database.UpdateRepositoryMetadataParams{
		ID:            existing.ID,
		FullName:      arg.FullName,
		Description:   arg.Description,
		LicenseSPDX:   arg.LicenseSPDX,
		DefaultBranch: arg.DefaultBranch,
	})
}

// Enable stores the provider-issued webhook identifier and the user who
// enabled the repository.
func (s *Service) Enable(ctx context.Context, id uuid.UUID, hook string, userID int64) (model.Repository, error) {
	repo, err := s.db.SetRepositoryHook(ctx, database.SetRepositoryHookParams{
		ID:              id,
		Hook:            hook,
		EnabledByUserID: userID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, &custom_errors.RepositoryNotFoundError{ProviderID: id.String()}
	}
	if err != nil {
		return model.Repository{}, err
	}
	s.logger.Info("Repository enabled", "repository_id", id, "hook", hook, "user_id", userID)
	return repo, nil
}

// Disable clears the webhook identifier.
func (s *Service) Disable(ctx context.Context, id uuid.UUID) (model.Repository, error) {
	repo, err := s.db.ClearRepositoryHook(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, &custom_errors.RepositoryNotFoundError{ProviderID: id.String()}
	}
	if err != nil {
		return model.Repository{}, err
	}
	s.logger.Info("Repository disabled", "repository_id", id)
	return repo, nil
}

// GrantAccess adds a user to the repository access list. Re-granting an
// existing access refreshes its timestamp rather than failing.
func (s *Service) GrantAccess(ctx context.Context, repositoryID uuid.UUID, userID int64) error {
	return s.db.UpsertRepositoryUser(ctx, database.RepositoryUserParams{
		RepositoryID: repositoryID,
		UserID:       userID,
	})
}

// RevokeAccess removes a user from the access list. Revoking a grant that
// does not exist is a no-op.
func (s *Service) RevokeAccess(ctx context.Context, repositoryID uuid.UUID, userID int64) error {
	_, err := s.db.DeleteRepositoryUser(ctx, database.RepositoryUserParams{
		RepositoryID: repositoryID,
		UserID:       userID,
	})
	return err
}

// ListAccess returns the access grants for a repository. Ordering carries no
// meaning.
func (s *Service) ListAccess(ctx context.Context, repositoryID uuid.UUID) ([]model.AccessGrant, error) {
	return s.db.ListRepositoryUsers(ctx, repositoryID)
}

// HasAccess reports whether the user holds a grant on the repository.
func (s *Service) HasAccess(ctx context.Context, repositoryID uuid.UUID, userID int64) (bool, error) {
	_, err := s.db.GetRepositoryUser(ctx, database.RepositoryUserParams{
		RepositoryID: repositoryID,
		UserID:       userID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LatestPublishedRelease returns the newest release of the repository that is
// PUBLISHED and not a draft. Pending and draft releases are never returned.
func (s *Service) LatestPublishedRelease(ctx context.Context, repositoryID uuid.UUID) (model.Release, error) {
	rel, err := s.db.GetLatestPublishedRelease(ctx, repositoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Release{}, &custom_errors.ReleaseNotFoundError{}
	}
	return rel, err
}

// Remove deregisters a repository: every release is soft-deleted and the
// webhook cleared. Rows are never physically removed. Both steps are
// idempotent, so a partially applied removal can be retried.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	n, err := s.db.MarkRepositoryReleasesDeleted(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete releases: %w", err)
	}
	if _, err := s.db.ClearRepositoryHook(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &custom_errors.RepositoryNotFoundError{ProviderID: id.String()}
		}
		return err
	}
	s.logger.Info("Repository removed", "repository_id", id, "releases_deleted", n)
	return nil
}
