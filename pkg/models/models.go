// Package models defines data structures shared across the application.
package models

import (
	"strings"
	"time"
)

// UserProfile is the read-only view of the authenticated GitHub identity.
type UserProfile struct {
	// Login is the user's handle (e.g., "octocat")
	Login string `json:"login"`

	// Name is the display name, if the user set one
	Name string `json:"name,omitempty"`

	// AvatarURL points at the user's avatar image
	AvatarURL string `json:"avatar_url"`

	// HTMLURL is the user's profile page
	HTMLURL string `json:"html_url,omitempty"`
}

// PullRequest is one entry of a repository's pull request collection.
type PullRequest struct {
	// ID is GitHub's global identifier
	ID int64

	// Number is the pull request number within the repository (e.g., 42)
	Number int

	// Title is the pull request title
	Title string

	// Body is the description; empty when none was written
	Body string

	// State is "open" or "closed"
	State string

	// Author is the login of the user who opened the pull request
	Author string

	// HTMLURL links to the pull request on GitHub
	HTMLURL string

	// CreatedAt is when the pull request was opened
	CreatedAt time.Time
}

// PRFile describes one file changed by a pull request.
type PRFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Changes   int
}

// TokenResponse is the OAuth token payload the relay passes through from
// GitHub. On failure GitHub still answers 200 with Error set.
type TokenResponse struct {
	AccessToken      string `json:"access_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	Scope            string `json:"scope,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// CommentDraft is a comment being written. It is cleared after a successful post.
type CommentDraft struct {
	Body string
}

// Empty reports whether the draft has nothing worth posting.
func (d *CommentDraft) Empty() bool {
	return d == nil || strings.TrimSpace(d.Body) == ""
}

// Reset clears the draft.
func (d *CommentDraft) Reset() {
	d.Body = ""
}
