package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prcommenter/internal/apperr"
	"github.com/danielolaszy/prcommenter/internal/browser"
	"github.com/danielolaszy/prcommenter/internal/session"
	"github.com/danielolaszy/prcommenter/pkg/models"
)

// fakeRelay answers the relay endpoints the client commands call.
func fakeRelay(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /getAccessToken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("code") != "good" {
			w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`))
			return
		}
		w.Write([]byte(`{"access_token":"gho_cli","token_type":"bearer","scope":"repo"}`))
	})
	mux.HandleFunc("GET /getUserData", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_cli", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"login":"octocat","name":"The Octocat","avatar_url":"https://avatars.example/u/1"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setupEnv points the client at a fake relay and a temporary session file.
func setupEnv(t *testing.T) string {
	t.Helper()
	srv := fakeRelay(t)
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("GITHUB_CLIENT_ID", "Iv1.test")
	t.Setenv("RELAY_URL", srv.URL)
	t.Setenv("SESSION_FILE", sessionFile)
	t.Setenv("CLIENT_GITHUB_TOKEN", "")
	return sessionFile
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flags live on the package-level command tree; start every run clean.
	require.NoError(t, loginCmd.Flags().Set("code", ""))
	for _, c := range []*cobra.Command{repoCmd, filesCmd, commentCmd, workflowCmd} {
		require.NoError(t, c.Flags().Set("owner", ""))
	}
	require.NoError(t, commentCmd.Flags().Set("body", ""))
	require.NoError(t, workflowCmd.Flags().Set("relay", "false"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return out.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	sessionFile := setupEnv(t)
	store := session.NewFileStore(sessionFile)

	out, err := execute(t, "login", "--code", "good")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in.")
	token, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "gho_cli", token)

	out, err = execute(t, "login", "--code", "good")
	require.NoError(t, err)
	assert.Contains(t, out, "Already logged in.")

	out, err = execute(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "octocat (The Octocat)")
	assert.Contains(t, out, "https://avatars.example/u/1")

	out, err = execute(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")
	token, err = store.Get()
	require.NoError(t, err)
	assert.Empty(t, token)

	_, err = execute(t, "whoami")
	assert.True(t, apperr.IsMissingAuth(err))
}

func TestLoginRejectedCode(t *testing.T) {
	sessionFile := setupEnv(t)

	_, err := execute(t, "login", "--code", "stale")
	ue, ok := apperr.AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, "The code passed is incorrect or expired.", ue.Message)

	token, err := session.NewFileStore(sessionFile).Get()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestLoginRequiresClientID(t *testing.T) {
	setupEnv(t)
	t.Setenv("GITHUB_CLIENT_ID", "")

	_, err := execute(t, "login", "--code", "good")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITHUB_CLIENT_ID")
}

func TestRepoCommandsRequireLogin(t *testing.T) {
	setupEnv(t)

	for _, args := range [][]string{
		{"repo", "demo"},
		{"files", "demo", "1"},
		{"comment", "demo", "1", "--body", "hi"},
		{"workflow", "demo"},
	} {
		_, err := execute(t, args...)
		assert.True(t, apperr.IsMissingAuth(err), "%v: %v", args, err)
	}
}

func TestExecuteResetsFlags(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "comment", "demo", "1", "--owner", "octo", "--body", "hi")
	assert.True(t, apperr.IsMissingAuth(err))
	_, err = execute(t, "workflow", "demo", "--relay")
	assert.Error(t, err)

	_, err = execute(t, "repo", "demo")
	assert.True(t, apperr.IsMissingAuth(err))
	assert.Equal(t, "", repoCmd.Flags().Lookup("owner").Value.String())
	assert.Equal(t, "", commentCmd.Flags().Lookup("owner").Value.String())
	assert.Equal(t, "", commentCmd.Flags().Lookup("body").Value.String())
	assert.Equal(t, "false", workflowCmd.Flags().Lookup("relay").Value.String())
}

func TestParseNumber(t *testing.T) {
	n, err := parseNumber("42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	for _, arg := range []string{"", "0", "-1", "abc"} {
		_, err := parseNumber(arg)
		assert.Error(t, err, arg)
	}
}

func TestPrintPullRequests(t *testing.T) {
	view := browser.New(nil)
	view.Owner, view.Repo = "octo", "demo"

	var out bytes.Buffer
	printPullRequests(&out, view)
	assert.Equal(t, "No pull requests in octo/demo.\n", out.String())

	view.PullRequests = []models.PullRequest{
		{Number: 2, State: "open", Author: "hubot", Title: "Add feature"},
		{Number: 1, State: "closed", Author: "octocat", Title: "Fix bug"},
	}
	out.Reset()
	printPullRequests(&out, view)
	assert.Contains(t, out.String(), "NUMBER")
	assert.Contains(t, out.String(), "#2")
	assert.Contains(t, out.String(), "Add feature")
	assert.Contains(t, out.String(), "Fix bug")
}
