// internal/record/client.go
package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	custom_errors "vcs-release-tracker/internal/errors"
)

// Client talks to the record-publishing subsystem over HTTP. The subsystem
// owns the record lifecycle; this client only submits release payloads and
// reports the outcome back to the state machine.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a record service client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// PublishRequest is the release payload submitted for record creation.
type PublishRequest struct {
	Provider    string     `json:"provider"`
	Repository  string     `json:"repository"`
	Tag         string     `json:"tag"`
	ReleaseID   uuid.UUID  `json:"release_id"`
	CommunityID *uuid.UUID `json:"community_id,omitempty"`
}

// PublishResponse is the subsystem's disposition of a submission. Pending
// means the record was created but awaits an approval step (e.g. community
// review) that resolves out of band.
type PublishResponse struct {
	RecordID uuid.UUID `json:"record_id"`
	Draft    bool      `json:"draft"`
	Pending  bool      `json:"pending"`
}

// Publish submits release metadata and the source archive. A 422 response
// means the payload can never be accepted and is reported as a no-retry
// failure so the pipeline does not loop on it.
func (c *Client) Publish(ctx context.Context, req PublishRequest, zipball io.Reader) (PublishResponse, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	meta, err := form.CreateFormField("metadata")
	if err != nil {
		return PublishResponse{}, err
	}
	if err := json.NewEncoder(meta).Encode(req); err != nil {
		return PublishResponse{}, err
	}

	archive, err := form.CreateFormFile("archive", fmt.Sprintf("%s.zip", req.Tag))
	if err != nil {
		return PublishResponse{}, err
	}
	if _, err := io.Copy(archive, zipball); err != nil {
		return PublishResponse{}, fmt.Errorf("failed to buffer release archive: %w", err)
	}
	if err := form.Close(); err != nil {
		return PublishResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/records", &body)
	if err != nil {
		return PublishResponse{}, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return PublishResponse{}, fmt.Errorf("record service request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnprocessableEntity:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return PublishResponse{}, &custom_errors.NoRetryError{Reason: fmt.Sprintf("record service rejected release: %s", detail)}
	default:
		return PublishResponse{}, fmt.Errorf("record service returned unexpected status %s", resp.Status)
	}

	var out PublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PublishResponse{}, fmt.Errorf("failed to decode record service response: %w", err)
	}
	c.logger.Debug("Record created", "record_id", out.RecordID, "draft", out.Draft, "pending", out.Pending)
	return out, nil
}
