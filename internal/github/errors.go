package github

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/go-github/v41/github"

	"github.com/danielolaszy/prcommenter/internal/apperr"
)

// errorBody is the part of a GitHub error response passed back to callers.
type errorBody struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}

// WrapError converts an error from go-github into a *apperr.UpstreamError
// carrying GitHub's status and message. Missing-auth errors raised by the
// token source are returned unchanged.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.IsMissingAuth(err) {
		return err
	}

	ue := &apperr.UpstreamError{Op: op, Err: err}

	var (
		errResp  *github.ErrorResponse
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		resp     *http.Response
		body     errorBody
	)
	switch {
	case errors.As(err, &errResp):
		resp = errResp.Response
		body = errorBody{Message: errResp.Message, DocumentationURL: errResp.DocumentationURL}
	case errors.As(err, &rateErr):
		resp = rateErr.Response
		body = errorBody{Message: rateErr.Message}
	case errors.As(err, &abuseErr):
		resp = abuseErr.Response
		body = errorBody{Message: abuseErr.Message}
	default:
		return ue
	}

	if resp != nil {
		ue.Status = resp.StatusCode
	}
	ue.Message = body.Message
	if encoded, jsonErr := json.Marshal(body); jsonErr == nil {
		ue.Body = encoded
	}
	return ue
}
