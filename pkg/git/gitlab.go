package git

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
)

const GitLabName = "GitLab"

// GitLab creates projects in the namespace of the token's user.
type GitLab struct {
	client *gitlab.Client

	mu    sync.Mutex
	owner string
}

// NewGitLab authenticates with gitlab.token against gitlab.url.
func NewGitLab(cfg *config.Config) (Provider, error) {
	url, err := cfg.Mandatory(config.GitLabURL)
	if err != nil {
		return nil, err
	}
	token, err := cfg.Mandatory(config.GitLabToken)
	if err != nil {
		return nil, err
	}
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(url))
	if err != nil {
		return nil, errors.Wrapf(err, "creating GitLab client for %s", url)
	}
	return &GitLab{client: client, owner: cfg.Optional(config.GitRepositoryUser, "")}, nil
}

func (g *GitLab) CreateRepository(ctx context.Context, prefix string) (string, error) {
	name := RepositoryName(prefix)
	_, _, err := g.client.Projects.CreateProject(&gitlab.CreateProjectOptions{
		Name:       gitlab.Ptr(name),
		Visibility: gitlab.Ptr(gitlab.PublicVisibility),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return "", errors.Wrapf(err, "creating GitLab project %s", name)
	}
	return name, nil
}

func (g *GitLab) DeleteRepository(ctx context.Context, name string) error {
	pid, err := g.projectPath(ctx, name)
	if err != nil {
		return err
	}
	if _, err := g.client.Projects.DeleteProject(pid, nil, gitlab.WithContext(ctx)); err != nil {
		return errors.Wrapf(err, "deleting GitLab project %s", pid)
	}
	return nil
}

func (g *GitLab) RepositoryURL(ctx context.Context, name string) (string, error) {
	pid, err := g.projectPath(ctx, name)
	if err != nil {
		return "", err
	}
	project, _, err := g.client.Projects.GetProject(pid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return "", errors.Wrapf(err, "getting GitLab project %s", pid)
	}
	return project.HTTPURLToRepo, nil
}

// projectPath returns <owner>/<name>, looking up the current user when no owner is configured.
func (g *GitLab) projectPath(ctx context.Context, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner == "" {
		user, _, err := g.client.Users.CurrentUser(gitlab.WithContext(ctx))
		if err != nil {
			return "", errors.Wrap(err, "getting current GitLab user")
		}
		g.owner = user.Username
	}
	return g.owner + "/" + name, nil
}
