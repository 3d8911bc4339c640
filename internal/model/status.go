// internal/model/status.go
package model

import (
	"encoding/json"
	"fmt"
)

// ReleaseStatus is the lifecycle status of a release. It is persisted as a
// stable single-character code; equality is structural (compare against the
// code), never by identity.
type ReleaseStatus string

const (
	// StatusReceived: the release has been received and is pending processing.
	StatusReceived ReleaseStatus = "R"
	// StatusProcessing: a publish attempt is running.
	StatusProcessing ReleaseStatus = "P"
	// StatusPublished: the release was processed and published.
	StatusPublished ReleaseStatus = "D"
	// StatusFailed: processing failed. Not necessarily terminal; the calling
	// pipeline's retry policy may attempt the release again.
	StatusFailed ReleaseStatus = "F"
	// StatusDeleted: soft-delete marker. Terminal.
	StatusDeleted ReleaseStatus = "E"
	// StatusPublishPending: the release was processed up to an external
	// approval step (e.g. community review) and is parked until that
	// resolves out of band. If the first release of a repository holds this
	// status, later releases must wait for it to resolve.
	StatusPublishPending ReleaseStatus = "S"
)

var statusNames = map[ReleaseStatus]string{
	StatusReceived:       "received",
	StatusProcessing:     "processing",
	StatusPublished:      "published",
	StatusFailed:         "failed",
	StatusDeleted:        "deleted",
	StatusPublishPending: "publish_pending",
}

// Code returns the single-character persistence code.
func (s ReleaseStatus) Code() string { return string(s) }

// Name returns the human-readable status name.
func (s ReleaseStatus) Name() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%s)", string(s))
}

func (s ReleaseStatus) String() string { return s.Name() }

// Valid reports whether s is a member of the closed status set.
func (s ReleaseStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether no further transition leaves s. FAILED is not
// terminal: the retry policy may re-attempt, and failure reports merge into
// the error map. PUBLISH_PENDING is parked, not terminal.
func (s ReleaseStatus) Terminal() bool {
	return s == StatusPublished || s == StatusDeleted
}

// transitions enumerates the legal status edges. Soft deletion is legal from
// every status (and is a no-op on an already deleted release), so it is
// handled in CanTransitionTo rather than listed per state.
var transitions = map[ReleaseStatus][]ReleaseStatus{
	StatusReceived:       {StatusProcessing, StatusFailed},
	StatusProcessing:     {StatusPublished, StatusPublishPending, StatusFailed},
	StatusPublishPending: {StatusPublished, StatusFailed},
	StatusFailed:         {StatusFailed},
	StatusPublished:      {},
	StatusDeleted:        {},
}

// CanTransitionTo reports whether the edge s -> to is legal.
func (s ReleaseStatus) CanTransitionTo(to ReleaseStatus) bool {
	if to == StatusDeleted {
		return true
	}
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// AllStatuses lists the closed status set in lifecycle order.
var AllStatuses = []ReleaseStatus{
	StatusReceived,
	StatusProcessing,
	StatusPublishPending,
	StatusPublished,
	StatusFailed,
	StatusDeleted,
}

// StatusesWithEdgeTo returns every status from which the edge to `to` is
// legal. Compare-and-swap guards are built from this so they cannot drift
// from the transition table.
func StatusesWithEdgeTo(to ReleaseStatus) []ReleaseStatus {
	var from []ReleaseStatus
	for _, s := range AllStatuses {
		if s.CanTransitionTo(to) {
			from = append(from, s)
		}
	}
	return from
}

// MarshalJSON emits the status name; the single-character code is an on-disk
// representation, not an API one.
func (s ReleaseStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Name())
}

// UnmarshalJSON accepts either the status name or the raw code.
func (s *ReleaseStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus converts a status name or code to a ReleaseStatus.
func ParseStatus(raw string) (ReleaseStatus, error) {
	if s := ReleaseStatus(raw); s.Valid() {
		return s, nil
	}
	for s, name := range statusNames {
		if name == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown release status %q", raw)
}
