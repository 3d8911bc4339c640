// internal/record/publisher.go
package record

import (
	"context"
	"io"

	"vcs-release-tracker/internal/model"
	"vcs-release-tracker/internal/publisher"
)

// Publisher adapts Client to the publish worker's RecordPublisher port.
type Publisher struct {
	Client *Client
}

var _ publisher.RecordPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, repo model.Repository, rel model.Release, zipball io.Reader) (publisher.Result, error) {
	resp, err := p.Client.Publish(ctx, PublishRequest{
		Provider:    rel.Provider,
		Repository:  repo.FullName,
		Tag:         rel.Tag,
		ReleaseID:   rel.ID,
		CommunityID: repo.RecordCommunityID,
	}, zipball)
	if err != nil {
		return publisher.Result{}, err
	}
	return publisher.Result{
		RecordID: resp.RecordID,
		IsDraft:  resp.Draft,
		Pending:  resp.Pending,
	}, nil
}
