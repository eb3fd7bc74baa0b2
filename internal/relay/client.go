package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/danielolaszy/prcommenter/internal/apperr"
	"github.com/danielolaszy/prcommenter/internal/logging"
	"github.com/danielolaszy/prcommenter/pkg/models"
)

// Client calls a relay over HTTP. It implements session.Exchanger.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the relay at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// ExchangeCode asks the relay to trade code for a token. A provider error
// payload comes back as a TokenResponse with Error set, not as an error.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*models.TokenResponse, error) {
	var token models.TokenResponse
	endpoint := "/getAccessToken?" + url.Values{"code": {code}}.Encode()
	if err := c.do(ctx, "exchange code", http.MethodGet, endpoint, "", nil, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// GetUserData fetches the profile of the user token belongs to. An empty
// token fails without calling the relay.
func (c *Client) GetUserData(ctx context.Context, token string) (*models.UserProfile, error) {
	if token == "" {
		return nil, &apperr.MissingAuthError{}
	}
	var user models.UserProfile
	if err := c.do(ctx, "get user data", http.MethodGet, "/getUserData", "Bearer "+token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateWorkflow asks the relay to commit its workflow to owner/repo and
// returns the relay's confirmation message.
func (c *Client) CreateWorkflow(ctx context.Context, owner, repo string) (string, error) {
	if owner == "" || repo == "" {
		return "", &apperr.ValidationError{Message: "Owner and repository name are required."}
	}
	var resp messageResponse
	body := createWorkflowRequest{Owner: owner, Repo: repo}
	if err := c.do(ctx, "create workflow", http.MethodPost, "/createWorkflow", "", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint, authorization string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Error("relay request failed", "op", op, "error", err)
		return &apperr.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.UpstreamError{Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 300 {
		msg := errorMessage(data)
		switch resp.StatusCode {
		case http.StatusBadRequest:
			return &apperr.ValidationError{Message: msg}
		case http.StatusUnauthorized:
			return &apperr.MissingAuthError{Message: msg}
		default:
			return &apperr.UpstreamError{Op: op, Status: resp.StatusCode, Message: msg, Body: data}
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &apperr.UpstreamError{Op: op, Status: resp.StatusCode, Message: "invalid JSON from relay", Body: data, Err: err}
	}
	return nil
}

// errorMessage pulls a human-readable message out of a relay or GitHub
// error body.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return string(bytes.TrimSpace(data))
}
