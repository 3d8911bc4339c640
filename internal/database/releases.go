// internal/database/releases.go
package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vcs-release-tracker/internal/model"
)

const releaseColumns = `id, provider, provider_id, tag, errors, repository_id, event_id, record_id, record_is_draft, status, created_at, updated_at`

func scanRelease(row pgx.Row) (model.Release, error) {
	var r model.Release
	var status string
	err := row.Scan(
		&r.ID,
		&r.Provider,
		&r.ProviderID,
		&r.Tag,
		&r.Errors,
		&r.RepositoryID,
		&r.EventID,
		&r.RecordID,
		&r.RecordIsDraft,
		&status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	r.Status = model.ReleaseStatus(status)
	return r, err
}

func statusCodes(statuses []model.ReleaseStatus) []string {
	codes := make([]string, len(statuses))
	for i, s := range statuses {
		codes[i] = s.Code()
	}
	return codes
}

const createRelease = `
INSERT INTO vcs_releases (provider, provider_id, tag, repository_id, event_id, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + releaseColumns

type CreateReleaseParams struct {
	Provider     string
	ProviderID   *string
	Tag          string
	RepositoryID uuid.UUID
	EventID      *uuid.UUID
	Status       model.ReleaseStatus
}

func (q *Queries) CreateRelease(ctx context.Context, arg CreateReleaseParams) (model.Release, error) {
	row := q.db.QueryRow(ctx, createRelease,
		arg.Provider,
		arg.ProviderID,
		arg.Tag,
		arg.RepositoryID,
		arg.EventID,
		arg.Status.Code(),
	)
	return scanRelease(row)
}

const getReleaseByProvider = `
SELECT ` + releaseColumns + `
FROM vcs_releases
WHERE provider = $1 AND provider_id = $2
`

type GetReleaseByProviderParams struct {
	Provider   string
	ProviderID string
}

func (q *Queries) GetReleaseByProvider(ctx context.Context, arg GetReleaseByProviderParams) (model.Release, error) {
	row := q.db.QueryRow(ctx, getReleaseByProvider, arg.Provider, arg.ProviderID)
	return scanRelease(row)
}

const getReleaseByID = `
SELECT ` + releaseColumns + `
FROM vcs_releases
WHERE id = $1
`

func (q *Queries) GetReleaseByID(ctx context.Context, id uuid.UUID) (model.Release, error) {
	row := q.db.QueryRow(ctx, getReleaseByID, id)
	return scanRelease(row)
}

// The WHERE status guard makes every transition a compare-and-swap: of two
// concurrent workers moving the same release, exactly one update matches and
// the loser observes pgx.ErrNoRows.
const transitionRelease = `
UPDATE vcs_releases
SET status = $2, updated_at = now()
WHERE id = $1 AND status = ANY($3::text[])
RETURNING ` + releaseColumns

type TransitionReleaseParams struct {
	ID         uuid.UUID
	ToStatus   model.ReleaseStatus
	FromStatus []model.ReleaseStatus
}

func (q *Queries) TransitionRelease(ctx context.Context, arg TransitionReleaseParams) (model.Release, error) {
	row := q.db.QueryRow(ctx, transitionRelease, arg.ID, arg.ToStatus.Code(), statusCodes(arg.FromStatus))
	return scanRelease(row)
}

const setReleaseResult = `
UPDATE vcs_releases
SET status = $2, record_id = $3, record_is_draft = $4, updated_at = now()
WHERE id = $1 AND status = ANY($5::text[])
RETURNING ` + releaseColumns

type SetReleaseResultParams struct {
	ID            uuid.UUID
	ToStatus      model.ReleaseStatus
	RecordID      uuid.UUID
	RecordIsDraft bool
	FromStatus    []model.ReleaseStatus
}

func (q *Queries) SetReleaseResult(ctx context.Context, arg SetReleaseResultParams) (model.Release, error) {
	row := q.db.QueryRow(ctx, setReleaseResult,
		arg.ID,
		arg.ToStatus.Code(),
		arg.RecordID,
		arg.RecordIsDraft,
		statusCodes(arg.FromStatus),
	)
	return scanRelease(row)
}

// The jsonb concatenation applies merge semantics (new keys overwrite,
// unspecified keys persist) in the same statement as the status change, so
// interleaved failure reports cannot lose updates.
const mergeReleaseErrors = `
UPDATE vcs_releases
SET status = $2, errors = COALESCE(errors, '{}'::jsonb) || $3, updated_at = now()
WHERE id = $1 AND status = ANY($4::text[])
RETURNING ` + releaseColumns

type MergeReleaseErrorsParams struct {
	ID         uuid.UUID
	ToStatus   model.ReleaseStatus
	Errors     model.ErrorsMap
	FromStatus []model.ReleaseStatus
}

func (q *Queries) MergeReleaseErrors(ctx context.Context, arg MergeReleaseErrorsParams) (model.Release, error) {
	row := q.db.QueryRow(ctx, mergeReleaseErrors,
		arg.ID,
		arg.ToStatus.Code(),
		arg.Errors,
		statusCodes(arg.FromStatus),
	)
	return scanRelease(row)
}

// record_id is a weak reference with no constraint behind it; the writer
// maintains 1:1 in practice, so the single-row lookup is by policy only.
const getReleaseForRecord = `
SELECT ` + releaseColumns + `
FROM vcs_releases
WHERE record_id = $1 AND ($2::bool = false OR record_is_draft = true)
`

type GetReleaseForRecordParams struct {
	RecordID  uuid.UUID
	OnlyDraft bool
}

func (q *Queries) GetReleaseForRecord(ctx context.Context, arg GetReleaseForRecordParams) (model.Release, error) {
	row := q.db.QueryRow(ctx, getReleaseForRecord, arg.RecordID, arg.OnlyDraft)
	return scanRelease(row)
}

const getFirstRelease = `
SELECT ` + releaseColumns + `
FROM vcs_releases
WHERE repository_id = $1
ORDER BY created_at ASC
LIMIT 1
`

func (q *Queries) GetFirstRelease(ctx context.Context, repositoryID uuid.UUID) (model.Release, error) {
	row := q.db.QueryRow(ctx, getFirstRelease, repositoryID)
	return scanRelease(row)
}

// Draft and pending releases are excluded deliberately: a caller asking
// "what is live" must never see a release still awaiting external review.
const getLatestPublishedRelease = `
SELECT ` + releaseColumns + `
FROM vcs_releases
WHERE repository_id = $1 AND status = 'D' AND record_is_draft = false
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) GetLatestPublishedRelease(ctx context.Context, repositoryID uuid.UUID) (model.Release, error) {
	row := q.db.QueryRow(ctx, getLatestPublishedRelease, repositoryID)
	return scanRelease(row)
}

const listReleasesByStatus = `
SELECT ` + releaseColumns + `
FROM vcs_releases
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2
`

type ListReleasesByStatusParams struct {
	Status model.ReleaseStatus
	Limit  int32
}

func (q *Queries) ListReleasesByStatus(ctx context.Context, arg ListReleasesByStatusParams) ([]model.Release, error) {
	rows, err := q.db.Query(ctx, listReleasesByStatus, arg.Status.Code(), arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var releases []model.Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, rel)
	}
	return releases, rows.Err()
}

const markRepositoryReleasesDeleted = `
UPDATE vcs_releases
SET status = 'E', updated_at = now()
WHERE repository_id = $1 AND status <> 'E'
`

func (q *Queries) MarkRepositoryReleasesDeleted(ctx context.Context, repositoryID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, markRepositoryReleasesDeleted, repositoryID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
