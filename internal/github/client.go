// internal/github/client.go
package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "vcs-release-tracker/internal/errors"
)

// ProviderName is the provider key under which GitHub repositories and
// releases are stored.
const ProviderName = "github"

// Client is a wrapper around the go-github client, translating provider
// responses into the tracker's types and error taxonomy.
type Client struct {
	gh     *github.Client
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		http:   tc,
		logger: logger,
	}
}

// RepositoryInfo is provider-sourced repository metadata, ready for the
// registry. GitHub issues integer repository IDs; they are rendered as
// opaque strings because the stored provider_id makes no format guarantee.
type RepositoryInfo struct {
	ProviderID    string
	FullName      string
	Description   *string
	LicenseSPDX   *string
	DefaultBranch string
}

// UserProfile is the provider-side identity of an authenticated user.
type UserProfile struct {
	Login string
	Name  *string
	Email *string
}

// GetRepository fetches repository details and translates them to RepositoryInfo.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*RepositoryInfo, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, &custom_errors.UnexpectedProviderResponseError{Provider: ProviderName, Err: err}
	}
	return toRepositoryInfo(repo), nil
}

// CreateHook installs a release webhook on the repository and returns the
// provider-issued hook identifier.
func (c *Client) CreateHook(ctx context.Context, owner, name, callbackURL string) (string, error) {
	hook, _, err := c.gh.Repositories.CreateHook(ctx, owner, name, &github.Hook{
		Active: github.Bool(true),
		Events: []string{"release"},
		Config: &github.HookConfig{
			URL:         github.String(callbackURL),
			ContentType: github.String("json"),
		},
	})
	if err != nil {
		return "", &custom_errors.UnexpectedProviderResponseError{Provider: ProviderName, Err: err}
	}
	return strconv.FormatInt(hook.GetID(), 10), nil
}

// DeleteHook removes a previously installed webhook.
func (c *Client) DeleteHook(ctx context.Context, owner, name, hookID string) error {
	id, err := strconv.ParseInt(hookID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid hook identifier %q: %w", hookID, err)
	}
	if _, err := c.gh.Repositories.DeleteHook(ctx, owner, name, id); err != nil {
		return &custom_errors.UnexpectedProviderResponseError{Provider: ProviderName, Err: err}
	}
	return nil
}

// FetchZipball streams the source archive for a release tag. The caller owns
// the returned body.
func (c *Client) FetchZipball(ctx context.Context, fullName, tag string) (io.ReadCloser, error) {
	owner, name, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	u, _, err := c.gh.Repositories.GetArchiveLink(ctx, owner, name, github.Zipball,
		&github.RepositoryContentGetOptions{Ref: tag}, 3)
	if err != nil {
		return nil, &custom_errors.ZipballFetchError{Tag: tag, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &custom_errors.ZipballFetchError{Tag: tag, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &custom_errors.ZipballFetchError{Tag: tag, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &custom_errors.ZipballFetchError{Tag: tag, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return resp.Body, nil
}

// GetAuthenticatedUser fetches the profile of the token's user.
func (c *Client) GetAuthenticatedUser(ctx context.Context) (*UserProfile, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, &custom_errors.UnexpectedProviderResponseError{Provider: ProviderName, Err: err}
	}
	if user == nil || user.GetLogin() == "" {
		return nil, &custom_errors.UserInfoNoneError{Provider: ProviderName}
	}
	return &UserProfile{
		Login: user.GetLogin(),
		Name:  user.Name,
		Email: user.Email,
	}, nil
}

// SplitFullName splits a provider-qualified 'owner/name' into its parts.
func SplitFullName(fullName string) (string, string, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &custom_errors.InvalidRepoFormatError{Repo: fullName}
	}
	return parts[0], parts[1], nil
}

// toRepositoryInfo translates a github.Repository object to RepositoryInfo.
func toRepositoryInfo(r *github.Repository) *RepositoryInfo {
	info := &RepositoryInfo{
		ProviderID:    strconv.FormatInt(r.GetID(), 10),
		FullName:      r.GetFullName(),
		Description:   r.Description,
		DefaultBranch: r.GetDefaultBranch(),
	}
	if lic := r.GetLicense(); lic != nil {
		info.LicenseSPDX = lic.SPDXID
	}
	return info
}
