// internal/errors/errors.go
package errors

import (
	"fmt"

	"github.com/google/uuid"

	"vcs-release-tracker/internal/model"
)

// RepositoryNotFoundError is returned when no repository matches a
// (provider, provider_id) pair or internal id.
type RepositoryNotFoundError struct {
	Provider   string
	ProviderID string
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository %s:%s does not exist", e.Provider, e.ProviderID)
}

// RepositoryExistsError is returned when creating a repository whose
// (provider, provider_id) pair is already registered.
type RepositoryExistsError struct {
	Provider   string
	ProviderID string
}

func (e *RepositoryExistsError) Error() string {
	return fmt.Sprintf("repository %s:%s already exists", e.Provider, e.ProviderID)
}

// RepositoryDisabledError is returned when an operation requires webhooks to
// be enabled on the repository.
type RepositoryDisabledError struct {
	FullName string
}

func (e *RepositoryDisabledError) Error() string {
	return fmt.Sprintf("repository %s is not enabled for webhooks", e.FullName)
}

// AccessDeniedError is returned when a user lacks permission on a repository.
type AccessDeniedError struct {
	UserID       int64
	RepositoryID uuid.UUID
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("user %d cannot access repository %s", e.UserID, e.RepositoryID)
}

// InvalidSenderError is returned when a webhook payload sender does not match
// an authorized identity for the repository.
type InvalidSenderError struct {
	UserID       int64
	RepositoryID uuid.UUID
}

func (e *InvalidSenderError) Error() string {
	return fmt.Sprintf("invalid sender %d for repository %s", e.UserID, e.RepositoryID)
}

// ReleaseAlreadyReceivedError signals duplicate release ingestion. It is
// usually a no-op signal rather than a failure; Release carries the existing
// row so the caller can resolve redelivery to the same release.
type ReleaseAlreadyReceivedError struct {
	Release model.Release
}

func (e *ReleaseAlreadyReceivedError) Error() string {
	return fmt.Sprintf("release %s has already been received", e.Release.ID)
}

// ReleaseNotFoundError is returned when no release matches the given key.
type ReleaseNotFoundError struct {
	ID uuid.UUID
}

func (e *ReleaseNotFoundError) Error() string {
	return fmt.Sprintf("release %s does not exist", e.ID)
}

// InvalidTransitionError is returned when a status transition is attempted
// along an edge the lifecycle does not permit. The persisted status is left
// unchanged.
type InvalidTransitionError struct {
	ReleaseID uuid.UUID
	From      model.ReleaseStatus
	To        model.ReleaseStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("release %s: illegal status transition %s -> %s", e.ReleaseID, e.From, e.To)
}

// UnexpectedProviderResponseError wraps an unusable response from a VCS
// provider API.
type UnexpectedProviderResponseError struct {
	Provider string
	Err      error
}

func (e *UnexpectedProviderResponseError) Error() string {
	return fmt.Sprintf("provider %s API returned an unexpected error: %v", e.Provider, e.Err)
}

func (e *UnexpectedProviderResponseError) Unwrap() error { return e.Err }

// ZipballFetchError wraps a failure to fetch a release zipball.
type ZipballFetchError struct {
	Tag string
	Err error
}

func (e *ZipballFetchError) Error() string {
	return fmt.Sprintf("error fetching zipball for release %s: %v", e.Tag, e.Err)
}

func (e *ZipballFetchError) Unwrap() error { return e.Err }

// UserInfoNoneError is returned when a provider does not return user profile
// information.
type UserInfoNoneError struct {
	Provider string
}

func (e *UserInfoNoneError) Error() string {
	return fmt.Sprintf("provider %s did not return user profile information", e.Provider)
}

// InvalidRepoFormatError is returned when a repository string is not in
// 'owner/name' format.
type InvalidRepoFormatError struct {
	Repo string
}

func (e *InvalidRepoFormatError) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// NoRetryError marks a publish failure that must not be retried, so the
// calling retry policy does not loop against a permanently broken release.
type NoRetryError struct {
	Reason string
}

func (e *NoRetryError) Error() string {
	return fmt.Sprintf("release publish failed and must not be retried: %s", e.Reason)
}
