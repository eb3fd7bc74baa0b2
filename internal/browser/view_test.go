package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prcommenter/internal/apperr"
	"github.com/danielolaszy/prcommenter/pkg/models"
)

type fakeAPI struct {
	user      *models.UserProfile
	userCalls int
	prs       []models.PullRequest
	prsErr    error
	files     []models.PRFile
	filesErr  error
	posted    []string
}

func (f *fakeAPI) CurrentUser(context.Context) (*models.UserProfile, error) {
	f.userCalls++
	if f.user == nil {
		return nil, &apperr.MissingAuthError{}
	}
	return f.user, nil
}

func (f *fakeAPI) FetchRepoInfo(context.Context, string, string) ([]models.PullRequest, error) {
	return f.prs, f.prsErr
}

func (f *fakeAPI) ListPullRequestFiles(context.Context, string, string, int) ([]models.PRFile, error) {
	return f.files, f.filesErr
}

func (f *fakeAPI) PostComment(_ context.Context, _, _ string, _ int, draft *models.CommentDraft) error {
	if draft.Empty() {
		return apperr.Validation("comment", "empty")
	}
	f.posted = append(f.posted, draft.Body)
	draft.Reset()
	return nil
}

func (f *fakeAPI) InstallWorkflow(context.Context, string, string) (bool, error) {
	return true, nil
}

func TestSetRepositoryDefaultsOwnerToUser(t *testing.T) {
	api := &fakeAPI{user: &models.UserProfile{Login: "octocat"}}
	v := New(api)

	require.NoError(t, v.SetRepository(context.Background(), "", "demo"))
	assert.Equal(t, "octocat", v.Owner)
	assert.Equal(t, "demo", v.Repo)

	require.NoError(t, v.SetRepository(context.Background(), "", "other"))
	assert.Equal(t, 1, api.userCalls, "profile is fetched once")

	require.NoError(t, v.SetRepository(context.Background(), "hubot", "demo"))
	assert.Equal(t, "hubot", v.Owner)
}

func TestSetRepositoryRequiresName(t *testing.T) {
	v := New(&fakeAPI{})
	assert.True(t, apperr.IsValidation(v.SetRepository(context.Background(), "octo", "")))
}

func TestSetRepositoryLoggedOut(t *testing.T) {
	v := New(&fakeAPI{})
	assert.True(t, apperr.IsMissingAuth(v.SetRepository(context.Background(), "", "demo")))
}

func TestLoadRepoReplacesCollection(t *testing.T) {
	api := &fakeAPI{prs: []models.PullRequest{{Number: 1}, {Number: 2}}}
	v := New(api)
	v.Owner, v.Repo = "octo", "demo"

	require.NoError(t, v.LoadRepo(context.Background()))
	assert.Len(t, v.PullRequests, 2)

	api.prs = []models.PullRequest{{Number: 3}}
	require.NoError(t, v.LoadRepo(context.Background()))
	assert.Equal(t, []models.PullRequest{{Number: 3}}, v.PullRequests)

	api.prsErr = errors.New("boom")
	require.Error(t, v.LoadRepo(context.Background()))
	assert.Equal(t, []models.PullRequest{{Number: 3}}, v.PullRequests, "failed load keeps the previous view")
}

func TestLoadFiles(t *testing.T) {
	api := &fakeAPI{files: []models.PRFile{{Filename: "main.go"}}}
	v := New(api)
	v.Owner, v.Repo = "octo", "demo"

	require.NoError(t, v.LoadFiles(context.Background(), 1))
	assert.Len(t, v.Files, 1)

	api.filesErr = errors.New("boom")
	require.Error(t, v.LoadFiles(context.Background(), 2))
	assert.Empty(t, v.Files)
}

func TestCommentClearsDraft(t *testing.T) {
	api := &fakeAPI{}
	v := New(api)
	v.Owner, v.Repo = "octo", "demo"

	assert.True(t, apperr.IsValidation(v.Comment(context.Background(), 1)))

	v.Draft.Body = "Nice work"
	require.NoError(t, v.Comment(context.Background(), 1))
	assert.Equal(t, []string{"Nice work"}, api.posted)
	assert.Empty(t, v.Draft.Body)
}

func TestActionsRequireRepository(t *testing.T) {
	v := New(&fakeAPI{})
	ctx := context.Background()

	assert.True(t, apperr.IsValidation(v.LoadRepo(ctx)))
	assert.True(t, apperr.IsValidation(v.LoadFiles(ctx, 1)))
	assert.True(t, apperr.IsValidation(v.Comment(ctx, 1)))
	_, err := v.InstallWorkflow(ctx)
	assert.True(t, apperr.IsValidation(err))
}
