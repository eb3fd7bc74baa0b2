// Package browser keeps the client's view of one repository: who is logged
// in, the repository's pull requests, the files of the selected pull request
// and the comment being written.
package browser

import (
	"context"

	"github.com/danielolaszy/prcommenter/internal/apperr"
	"github.com/danielolaszy/prcommenter/internal/logging"
	"github.com/danielolaszy/prcommenter/pkg/models"
)

// API is the GitHub surface the view drives.
type API interface {
	CurrentUser(ctx context.Context) (*models.UserProfile, error)
	FetchRepoInfo(ctx context.Context, owner, repo string) ([]models.PullRequest, error)
	ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]models.PRFile, error)
	PostComment(ctx context.Context, owner, repo string, number int, draft *models.CommentDraft) error
	InstallWorkflow(ctx context.Context, owner, repo string) (bool, error)
}

// View is the client-side state. Each Load replaces what it loads; nothing
// is merged with earlier results.
type View struct {
	api API

	User         *models.UserProfile
	Owner        string
	Repo         string
	PullRequests []models.PullRequest
	Files        []models.PRFile
	Draft        models.CommentDraft
}

// New returns an empty view over api.
func New(api API) *View {
	return &View{api: api}
}

// LoadUser fetches the logged-in user's profile.
func (v *View) LoadUser(ctx context.Context) error {
	user, err := v.api.CurrentUser(ctx)
	if err != nil {
		return err
	}
	v.User = user
	return nil
}

// SetRepository selects the repository. An empty owner means the logged-in
// user, whose profile is fetched if it is not loaded yet.
func (v *View) SetRepository(ctx context.Context, owner, repo string) error {
	if repo == "" {
		return apperr.Validation("repo", "please enter a repository name")
	}
	if owner == "" {
		if v.User == nil {
			if err := v.LoadUser(ctx); err != nil {
				return err
			}
		}
		owner = v.User.Login
	}
	v.Owner, v.Repo = owner, repo
	return nil
}

// LoadRepo rebuilds the pull request collection. On failure the previous
// collection is kept.
func (v *View) LoadRepo(ctx context.Context) error {
	if err := v.requireRepo(); err != nil {
		return err
	}
	prs, err := v.api.FetchRepoInfo(ctx, v.Owner, v.Repo)
	if err != nil {
		return err
	}
	v.PullRequests = prs
	logging.Debug("repository loaded", "owner", v.Owner, "repo", v.Repo, "pull_requests", len(prs))
	return nil
}

// LoadFiles replaces the file set with the files of pull request number.
// On failure the file set is emptied.
func (v *View) LoadFiles(ctx context.Context, number int) error {
	if err := v.requireRepo(); err != nil {
		return err
	}
	files, err := v.api.ListPullRequestFiles(ctx, v.Owner, v.Repo, number)
	if err != nil {
		v.Files = nil
		return err
	}
	v.Files = files
	return nil
}

// Comment posts the current draft on pull request number.
func (v *View) Comment(ctx context.Context, number int) error {
	if err := v.requireRepo(); err != nil {
		return err
	}
	return v.api.PostComment(ctx, v.Owner, v.Repo, number, &v.Draft)
}

// InstallWorkflow installs the auto-comment workflow in the selected repository.
func (v *View) InstallWorkflow(ctx context.Context) (bool, error) {
	if err := v.requireRepo(); err != nil {
		return false, err
	}
	return v.api.InstallWorkflow(ctx, v.Owner, v.Repo)
}

func (v *View) requireRepo() error {
	if v.Owner == "" || v.Repo == "" {
		return apperr.Validation("repo", "please enter both repo owner and repo name")
	}
	return nil
}
