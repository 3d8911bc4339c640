// internal/database/repositories.go
package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vcs-release-tracker/internal/model"
)

const repositoryColumns = `id, provider, provider_id, name, description, license_spdx, default_branch, hook, enabled_by_user_id, record_community_id, created_at, updated_at`

func scanRepository(row pgx.Row) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(
		&r.ID,
		&r.Provider,
		&r.ProviderID,
		&r.FullName,
		&r.Description,
		&r.LicenseSPDX,
		&r.DefaultBranch,
		&r.Hook,
		&r.EnabledByUserID,
		&r.RecordCommunityID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

const createRepository = `
INSERT INTO vcs_repositories (provider, provider_id, name, description, license_spdx, default_branch, record_community_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + repositoryColumns

type CreateRepositoryParams struct {
	Provider          string
	ProviderID        string
	FullName          string
	Description       *string
	LicenseSPDX       *string
	DefaultBranch     string
	RecordCommunityID *uuid.UUID
}

func (q *Queries) CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, createRepository,
		arg.Provider,
		arg.ProviderID,
		arg.FullName,
		arg.Description,
		arg.LicenseSPDX,
		arg.DefaultBranch,
		arg.RecordCommunityID,
	)
	return scanRepository(row)
}

const getRepositoryByProvider = `
SELECT ` + repositoryColumns + `
FROM vcs_repositories
WHERE provider = $1 AND provider_id = $2
`

type GetRepositoryByProviderParams struct {
	Provider   string
	ProviderID string
}

func (q *Queries) GetRepositoryByProvider(ctx context.Context, arg GetRepositoryByProviderParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, getRepositoryByProvider, arg.Provider, arg.ProviderID)
	return scanRepository(row)
}

const getRepositoryByID = `
SELECT ` + repositoryColumns + `
FROM vcs_repositories
WHERE id = $1
`

func (q *Queries) GetRepositoryByID(ctx context.Context, id uuid.UUID) (model.Repository, error) {
	row := q.db.QueryRow(ctx, getRepositoryByID, id)
	return scanRepository(row)
}

const updateRepositoryMetadata = `
UPDATE vcs_repositories
SET name = $2, description = $3, license_spdx = $4, default_branch = $5, updated_at = now()
WHERE id = $1
RETURNING ` + repositoryColumns

type UpdateRepositoryMetadataParams struct {
	ID            uuid.UUID
	FullName      string
	Description   *string
	LicenseSPDX   *string
	DefaultBranch string
}

func (q *Queries) UpdateRepositoryMetadata(ctx context.Context, arg UpdateRepositoryMetadataParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, updateRepositoryMetadata,
		arg.ID,
		arg.FullName,
		arg.Description,
		arg.LicenseSPDX,
		arg.DefaultBranch,
	)
	return scanRepository(row)
}

const setRepositoryHook = `
UPDATE vcs_repositories
SET hook = $2, enabled_by_user_id = $3, updated_at = now()
WHERE id = $1
RETURNING ` + repositoryColumns

type SetRepositoryHookParams struct {
	ID              uuid.UUID
	Hook            string
	EnabledByUserID int64
}

func (q *Queries) SetRepositoryHook(ctx context.Context, arg SetRepositoryHookParams) (model.Repository, error) {
	row := q.db.QueryRow(ctx, setRepositoryHook, arg.ID, arg.Hook, arg.EnabledByUserID)
	return scanRepository(row)
}

const clearRepositoryHook = `
UPDATE vcs_repositories
SET hook = NULL, updated_at = now()
WHERE id = $1
RETURNING ` + repositoryColumns

func (q *Queries) ClearRepositoryHook(ctx context.Context, id uuid.UUID) (model.Repository, error) {
	row := q.db.QueryRow(ctx, clearRepositoryHook, id)
	return scanRepository(row)
}

// Re-granting refreshes the updated timestamp instead of failing, which keeps
// the grant operation idempotent per row.
const upsertRepositoryUser = `
INSERT INTO vcs_repository_users (repository_id, user_id, created_at, updated_at)
VALUES ($1, $2, now(), now())
ON CONFLICT (repository_id, user_id) DO UPDATE SET updated_at = now()
`

type RepositoryUserParams struct {
	RepositoryID uuid.UUID
	UserID       int64
}

func (q *Queries) UpsertRepositoryUser(ctx context.Context, arg RepositoryUserParams) error {
	_, err := q.db.Exec(ctx, upsertRepositoryUser, arg.RepositoryID, arg.UserID)
	return err
}

const deleteRepositoryUser = `
DELETE FROM vcs_repository_users
WHERE repository_id = $1 AND user_id = $2
`

func (q *Queries) DeleteRepositoryUser(ctx context.Context, arg RepositoryUserParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteRepositoryUser, arg.RepositoryID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const getRepositoryUser = `
SELECT repository_id, user_id, created_at, updated_at
FROM vcs_repository_users
WHERE repository_id = $1 AND user_id = $2
`

func (q *Queries) GetRepositoryUser(ctx context.Context, arg RepositoryUserParams) (model.AccessGrant, error) {
	var g model.AccessGrant
	err := q.db.QueryRow(ctx, getRepositoryUser, arg.RepositoryID, arg.UserID).
		Scan(&g.RepositoryID, &g.UserID, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

const listRepositoryUsers = `
SELECT repository_id, user_id, created_at, updated_at
FROM vcs_repository_users
WHERE repository_id = $1
`

func (q *Queries) ListRepositoryUsers(ctx context.Context, repositoryID uuid.UUID) ([]model.AccessGrant, error) {
	rows, err := q.db.Query(ctx, listRepositoryUsers, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []model.AccessGrant
	for rows.Next() {
		var g model.AccessGrant
		if err := rows.Scan(&g.RepositoryID, &g.UserID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
