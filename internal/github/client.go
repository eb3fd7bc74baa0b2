// Package github provides functionality for interacting with the GitHub API
// on behalf of the logged-in user.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/prcommenter/internal/apperr"
	"github.com/danielolaszy/prcommenter/internal/logging"
	"github.com/danielolaszy/prcommenter/internal/session"
	"github.com/danielolaszy/prcommenter/internal/workflow"
	"github.com/danielolaszy/prcommenter/pkg/models"
)

// pageSize is the number of pull requests requested per page.
const pageSize = 100

// Options configures a Client.
type Options struct {
	// BaseURL is the REST API root with a trailing slash. Empty means
	// https://api.github.com/.
	BaseURL string

	// WriteToken, when set, authenticates comment and workflow writes
	// instead of the session token.
	WriteToken string

	// HTTPClient supplies the base transport. Nil means http.DefaultTransport.
	HTTPClient *http.Client
}

// Client encapsulates the GitHub API client. Every request reads the
// session token from the store, so a logout is seen immediately.
type Client struct {
	store      session.Store
	writeToken string
	read       *github.Client
	write      *github.Client
}

// NewClient creates a GitHub API client authenticated through store.
func NewClient(store session.Store, opts Options) (*Client, error) {
	base := http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		base = opts.HTTPClient.Transport
	}

	read, err := newAPIClient(session.TokenSource(store), base, opts.BaseURL)
	if err != nil {
		return nil, err
	}

	write := read
	if opts.WriteToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.WriteToken})
		write, err = newAPIClient(ts, base, opts.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	logging.Debug("github client configured",
		"base_url", read.BaseURL.String(),
		"write_token", logging.MaskSensitive(opts.WriteToken))

	return &Client{store: store, writeToken: opts.WriteToken, read: read, write: write}, nil
}

// newAPIClient wraps base in an oauth2.Transport directly rather than via
// oauth2.NewClient, which would cache the first token it sees.
func newAPIClient(ts oauth2.TokenSource, base http.RoundTripper, baseURL string) (*github.Client, error) {
	client := github.NewClient(&http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base},
	})
	if baseURL != "" {
		parsedURL, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}
	return client, nil
}

// requireSession fails with a *apperr.MissingAuthError before any request
// is built when nobody is logged in.
func (c *Client) requireSession() error {
	token, err := c.store.Get()
	if err != nil {
		return err
	}
	if token == "" {
		return &apperr.MissingAuthError{}
	}
	return nil
}

func (c *Client) requireWriteAuth() error {
	if c.writeToken != "" {
		return nil
	}
	return c.requireSession()
}

func requireRepo(owner, repo string) error {
	if owner == "" {
		return apperr.Validation("owner", "repository owner is required")
	}
	if repo == "" {
		return apperr.Validation("repo", "repository name is required")
	}
	return nil
}

// CurrentUser fetches the profile of the logged-in user.
func (c *Client) CurrentUser(ctx context.Context) (*models.UserProfile, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	user, _, err := c.read.Users.Get(ctx, "")
	if err != nil {
		logging.Error("failed to fetch authenticated user", "error", err)
		return nil, WrapError("get user", err)
	}
	return ToUserProfile(user), nil
}

// FetchRepoInfo confirms the repository is reachable and returns all of its
// pull requests.
func (c *Client) FetchRepoInfo(ctx context.Context, owner, repo string) ([]models.PullRequest, error) {
	if err := requireRepo(owner, repo); err != nil {
		return nil, err
	}
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	if _, _, err := c.read.Repositories.Get(ctx, owner, repo); err != nil {
		logging.Error("failed to fetch repository", "owner", owner, "repo", repo, "error", err)
		return nil, WrapError("get repository", err)
	}
	return c.ListPullRequests(ctx, owner, repo)
}

// ListPullRequests retrieves every pull request of owner/repo in any state.
// Pages of 100 are requested one after another from page 1 until a page
// comes back empty. A failure on any page discards what was collected.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string) ([]models.PullRequest, error) {
	if err := requireRepo(owner, repo); err != nil {
		return nil, err
	}
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	// Request open and closed pull requests, a full page at a time
	opts := &github.PullRequestListOptions{
		State: "all",
		ListOptions: github.ListOptions{
			PerPage: pageSize,
			Page:    1,
		},
	}

	result := make([]models.PullRequest, 0)
	for {
		// Fetch the current page
		prs, _, err := c.read.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			logging.Error("failed to fetch pull requests",
				"owner", owner,
				"repo", repo,
				"page", opts.Page,
				"error", err)
			return nil, WrapError(fmt.Sprintf("list pull requests page %d", opts.Page), err)
		}
		if len(prs) == 0 {
			break
		}

		// Convert and move on to the next page
		for _, pr := range prs {
			result = append(result, toPullRequest(pr))
		}
		opts.Page++
	}

	logging.Debug("fetched pull requests", "owner", owner, "repo", repo, "count", len(result), "pages", opts.Page)
	return result, nil
}

// ListPullRequestFiles retrieves the files changed by pull request number.
func (c *Client) ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]models.PRFile, error) {
	if err := requireRepo(owner, repo); err != nil {
		return nil, err
	}
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	files, _, err := c.read.PullRequests.ListFiles(ctx, owner, repo, number, &github.ListOptions{PerPage: pageSize})
	if err != nil {
		logging.Error("failed to fetch pull request files", "owner", owner, "repo", repo, "number", number, "error", err)
		return nil, WrapError(fmt.Sprintf("list files of #%d", number), err)
	}

	result := make([]models.PRFile, 0, len(files))
	for _, f := range files {
		result = append(result, models.PRFile{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Changes:   f.GetChanges(),
		})
	}
	return result, nil
}

// PostComment posts draft on pull request number and clears the draft once
// GitHub accepts it. An empty draft is rejected without calling GitHub.
func (c *Client) PostComment(ctx context.Context, owner, repo string, number int, draft *models.CommentDraft) error {
	if draft.Empty() {
		return &apperr.ValidationError{Field: "comment", Message: "please enter a comment before submitting"}
	}
	if err := requireRepo(owner, repo); err != nil {
		return err
	}
	if err := c.requireWriteAuth(); err != nil {
		return err
	}

	comment := &github.IssueComment{Body: github.String(draft.Body)}
	if _, _, err := c.write.Issues.CreateComment(ctx, owner, repo, number, comment); err != nil {
		logging.Error("failed to post comment", "owner", owner, "repo", repo, "number", number, "error", err)
		return WrapError(fmt.Sprintf("post comment on #%d", number), err)
	}

	logging.Info("posted comment", "owner", owner, "repo", repo, "number", number)
	draft.Reset()
	return nil
}

// InstallWorkflow writes the client auto-comment workflow to owner/repo,
// creating the file or replacing an existing one. It reports whether the
// file was created.
func (c *Client) InstallWorkflow(ctx context.Context, owner, repo string) (bool, error) {
	if err := requireRepo(owner, repo); err != nil {
		return false, err
	}
	if err := c.requireWriteAuth(); err != nil {
		return false, err
	}

	// Render the workflow file
	content, err := workflow.Render(workflow.Client)
	if err != nil {
		return false, err
	}

	// Look up an existing file to get its SHA
	existing, _, resp, err := c.write.Repositories.GetContents(ctx, owner, repo, workflow.Path,
		&github.RepositoryContentGetOptions{Ref: workflow.Branch})
	var sha *string
	switch {
	case err == nil && existing != nil:
		sha = existing.SHA
	case err == nil:
		return false, &apperr.UpstreamError{Op: "look up workflow file", Message: workflow.Path + " is a directory"}
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		// Not there yet: create it.
	default:
		return false, WrapError("look up workflow file", err)
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(workflow.CommitMessage),
		Content: content,
		Branch:  github.String(workflow.Branch),
		SHA:     sha,
	}

	// Create the file, or update it in place
	if sha == nil {
		_, _, err = c.write.Repositories.CreateFile(ctx, owner, repo, workflow.Path, opts)
	} else {
		_, _, err = c.write.Repositories.UpdateFile(ctx, owner, repo, workflow.Path, opts)
	}
	if err != nil {
		logging.Error("failed to write workflow file", "owner", owner, "repo", repo, "error", err)
		return false, WrapError("write workflow file", err)
	}

	logging.Info("workflow file written", "owner", owner, "repo", repo, "path", workflow.Path, "created", sha == nil)
	return sha == nil, nil
}

// ToUserProfile converts a GitHub user to the shared model.
func ToUserProfile(u *github.User) *models.UserProfile {
	return &models.UserProfile{
		Login:     u.GetLogin(),
		Name:      u.GetName(),
		AvatarURL: u.GetAvatarURL(),
		HTMLURL:   u.GetHTMLURL(),
	}
}

func toPullRequest(pr *github.PullRequest) models.PullRequest {
	return models.PullRequest{
		ID:        pr.GetID(),
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		State:     pr.GetState(),
		Author:    pr.GetUser().GetLogin(),
		HTMLURL:   pr.GetHTMLURL(),
		CreatedAt: pr.GetCreatedAt(),
	}
}
