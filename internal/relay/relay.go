// Package relay implements the token exchange relay: the only component
// that holds the OAuth client secret and the server-side GitHub token.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	gogithub "github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/prcommenter/internal/apperr"
	"github.com/danielolaszy/prcommenter/internal/config"
	"github.com/danielolaszy/prcommenter/internal/github"
	"github.com/danielolaszy/prcommenter/internal/logging"
	"github.com/danielolaszy/prcommenter/internal/workflow"
)

// maxTokenResponse bounds how much of the token endpoint's reply is read.
const maxTokenResponse = 1 << 20

// Options configures a Relay.
type Options struct {
	ClientID     string
	ClientSecret string
	ServerToken  string

	// TokenURL is the provider's OAuth token endpoint.
	TokenURL string
	// APIURL is the REST API root with a trailing slash.
	APIURL string

	// HTTPClient is used for all outbound calls. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// OptionsFromConfig builds relay options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ClientID:     cfg.Relay.ClientID,
		ClientSecret: cfg.Relay.ClientSecret,
		ServerToken:  cfg.Relay.ServerToken,
		TokenURL:     cfg.GitHub.OAuthEndpoint().TokenURL,
		APIURL:       cfg.GitHub.APIURL(),
	}
}

// CreateFileRequest describes a file to commit to a repository.
type CreateFileRequest struct {
	Owner   string
	Repo    string
	Path    string
	Content []byte
	Message string
	Branch  string
}

// Confirmation describes a committed file.
type Confirmation struct {
	Path      string
	CommitSHA string
}

// Relay performs the privileged GitHub calls.
type Relay struct {
	clientID     string
	clientSecret string
	tokenURL     string
	apiURL       *url.URL
	httpClient   *http.Client
	files        *gogithub.Client
}

// New creates a Relay. The server token is attached to every file write.
func New(opts Options) (*Relay, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// Parse the GitHub endpoints
	apiURL, err := url.Parse(opts.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}
	if _, err := url.Parse(opts.TokenURL); err != nil {
		return nil, fmt.Errorf("invalid oauth token url: %w", err)
	}

	// Create the oauth2 client for file writes
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.ServerToken})
	files := gogithub.NewClient(oauth2.NewClient(ctx, ts))
	files.BaseURL = apiURL
	files.UploadURL = apiURL

	logging.Info("relay configured",
		"client_id", opts.ClientID,
		"client_secret", logging.MaskSensitive(opts.ClientSecret),
		"server_token", logging.MaskSensitive(opts.ServerToken),
		"token_url", opts.TokenURL,
		"api_url", apiURL.String())

	return &Relay{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		tokenURL:     opts.TokenURL,
		apiURL:       apiURL,
		httpClient:   httpClient,
		files:        files,
	}, nil
}

// ExchangeCode trades an authorization code for an access token and returns
// the provider's JSON body unmodified, including provider error payloads
// such as bad_verification_code.
func (r *Relay) ExchangeCode(ctx context.Context, code string) (json.RawMessage, error) {
	// Build the token request
	params := url.Values{}
	params.Set("client_id", r.clientID)
	params.Set("client_secret", r.clientSecret)
	params.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	// Send the request to the OAuth token endpoint
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &apperr.UpstreamError{Op: "exchange code", Err: err}
	}
	defer resp.Body.Close()

	// Read the body; it is relayed as is, so only check it is JSON
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		return nil, &apperr.UpstreamError{Op: "exchange code", Status: resp.StatusCode, Err: err}
	}
	if !json.Valid(body) {
		return nil, &apperr.UpstreamError{
			Op:      "exchange code",
			Status:  resp.StatusCode,
			Message: "token endpoint did not return JSON",
			Body:    body,
		}
	}

	logging.Debug("exchanged authorization code", "status", resp.StatusCode)
	return json.RawMessage(body), nil
}

// FetchCurrentUser forwards authorization verbatim to GitHub's
// authenticated-user endpoint.
func (r *Relay) FetchCurrentUser(ctx context.Context, authorization string) (*gogithub.User, error) {
	if authorization == "" {
		return nil, &apperr.MissingAuthError{Message: "Authorization header is missing."}
	}

	client := gogithub.NewClient(&http.Client{
		Transport: &forwardAuth{header: authorization, base: transportOf(r.httpClient)},
	})
	client.BaseURL = r.apiURL

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		logging.Error("failed to fetch user data", "error", err)
		return nil, github.WrapError("get user", err)
	}
	return user, nil
}

// CreateFile commits a new file with the server token. GitHub's reason for
// a rejection (file exists, branch missing, no permission) is not
// distinguished.
func (r *Relay) CreateFile(ctx context.Context, req CreateFileRequest) (*Confirmation, error) {
	if req.Owner == "" || req.Repo == "" {
		return nil, &apperr.ValidationError{Message: "Owner and repository name are required."}
	}

	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.String(req.Message),
		Content: req.Content,
		Branch:  gogithub.String(req.Branch),
	}
	resp, _, err := r.files.Repositories.CreateFile(ctx, req.Owner, req.Repo, req.Path, opts)
	if err != nil {
		logging.Error("failed to create file",
			"owner", req.Owner,
			"repo", req.Repo,
			"path", req.Path,
			"error", err)
		return nil, github.WrapError("create file", err)
	}

	logging.Info("file created", "owner", req.Owner, "repo", req.Repo, "path", req.Path)
	return &Confirmation{Path: req.Path, CommitSHA: resp.Commit.GetSHA()}, nil
}

// CreateWorkflow commits the relay auto-comment workflow to owner/repo.
func (r *Relay) CreateWorkflow(ctx context.Context, owner, repo string) (*Confirmation, error) {
	content, err := workflow.Render(workflow.Relay)
	if err != nil {
		return nil, err
	}
	return r.CreateFile(ctx, CreateFileRequest{
		Owner:   owner,
		Repo:    repo,
		Path:    workflow.Path,
		Content: content,
		Message: workflow.CommitMessage,
		Branch:  workflow.Branch,
	})
}

// forwardAuth sets a fixed Authorization header on every request.
type forwardAuth struct {
	header string
	base   http.RoundTripper
}

func (t *forwardAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", t.header)
	return t.base.RoundTrip(req)
}

func transportOf(c *http.Client) http.RoundTripper {
	if c.Transport != nil {
		return c.Transport
	}
	return http.DefaultTransport
}
