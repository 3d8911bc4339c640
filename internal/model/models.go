// internal/model/models.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Repository is a VCS repository registered for release tracking.
//
// The (Provider, ProviderID) pair is the natural key: a provider must never
// report the same ID for two different repositories. ProviderID is kept as an
// opaque string because providers disagree on ID formats; the provider adapter
// owns the conversion. FullName is informative only and is not unique across
// providers.
type Repository struct {
	ID            uuid.UUID `json:"id"`
	Provider      string    `json:"provider"`
	ProviderID    string    `json:"provider_id"`
	FullName      string    `json:"full_name"`
	Description   *string   `json:"description,omitempty"`
	LicenseSPDX   *string   `json:"license_spdx,omitempty"`
	DefaultBranch string    `json:"default_branch"`

	// Hook is the webhook identifier issued by the provider. Nil means
	// webhooks are not enabled for this repository.
	Hook            *string `json:"hook,omitempty"`
	EnabledByUserID *int64  `json:"enabled_by_user_id,omitempty"`

	// RecordCommunityID is a weak reference to the community the first
	// release should be submitted to. The owning subsystem may have deleted
	// the referent; do not presume referential integrity.
	RecordCommunityID *uuid.UUID `json:"record_community_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enabled reports whether the repository has webhooks enabled.
func (r *Repository) Enabled() bool {
	return r.Hook != nil && *r.Hook != ""
}

// AccessGrant is one row of the repository/user permission association.
// It is a pure permission list entry, not an ownership relationship.
type AccessGrant struct {
	RepositoryID uuid.UUID `json:"repository_id"`
	UserID       int64     `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Release is a single release event for a repository, tracked through the
// status lifecycle.
type Release struct {
	ID       uuid.UUID `json:"id"`
	Provider string    `json:"provider"`

	// ProviderID together with Provider is the idempotency key for webhook
	// delivery. It may be nil only transiently, for locally synthesized
	// releases not yet correlated to a provider ID.
	ProviderID *string `json:"provider_id,omitempty"`

	Tag          string     `json:"tag"`
	Errors       ErrorsMap  `json:"errors,omitempty"`
	RepositoryID uuid.UUID  `json:"repository_id"`
	EventID      *uuid.UUID `json:"event_id,omitempty"`

	// RecordID is a weak reference to the published or draft record owned by
	// the record subsystem. The referent may not exist or may be deleted
	// without notification.
	RecordID *uuid.UUID `json:"record_id,omitempty"`

	// RecordIsDraft is meaningful only once RecordID is set: true if the
	// record subsystem saved the result as a draft rather than a final
	// record. It is not cleared when a pending release later resolves; it
	// records the original save mode.
	RecordIsDraft *bool `json:"record_is_draft,omitempty"`

	Status    ReleaseStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ErrorsMap is the structured processing-error detail of a release. Failure
// reports merge key-wise in storage: new keys overwrite, keys absent from the
// report persist.
type ErrorsMap map[string]any
