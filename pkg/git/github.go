package git

import (
	"context"

	"github.com/google/go-github/v74/github"
	"github.com/pkg/errors"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
)

const GitHubName = "GitHub"

// GitHub creates repositories for a user on github.com or a GitHub Enterprise server.
type GitHub struct {
	client *github.Client
	owner  string
}

// NewGitHub authenticates with github.username and github.password. github.url selects an
// Enterprise server.
func NewGitHub(cfg *config.Config) (Provider, error) {
	user, err := cfg.Mandatory(config.GitHubUsername)
	if err != nil {
		return nil, err
	}
	password, err := cfg.Mandatory(config.GitHubPassword)
	if err != nil {
		return nil, err
	}

	tp := github.BasicAuthTransport{
		Username: user,
		Password: password,
	}
	client := github.NewClient(tp.Client())
	if url := cfg.Optional(config.GitHubURL, ""); url != "" {
		if client, err = client.WithEnterpriseURLs(url, url); err != nil {
			return nil, errors.Wrapf(err, "invalid GitHub URL %s", url)
		}
	}
	return &GitHub{client: client, owner: cfg.Optional(config.GitRepositoryUser, user)}, nil
}

func (g *GitHub) CreateRepository(ctx context.Context, prefix string) (string, error) {
	name := RepositoryName(prefix)
	_, _, err := g.client.Repositories.Create(ctx, "", &github.Repository{
		Name:    github.Ptr(name),
		Private: github.Ptr(false),
	})
	if err != nil {
		return "", errors.Wrapf(err, "creating GitHub repository %s", name)
	}
	return name, nil
}

func (g *GitHub) DeleteRepository(ctx context.Context, name string) error {
	if _, err := g.client.Repositories.Delete(ctx, g.owner, name); err != nil {
		return errors.Wrapf(err, "deleting GitHub repository %s", name)
	}
	return nil
}

func (g *GitHub) RepositoryURL(ctx context.Context, name string) (string, error) {
	repo, _, err := g.client.Repositories.Get(ctx, g.owner, name)
	if err != nil {
		return "", errors.Wrapf(err, "getting GitHub repository %s", name)
	}
	return repo.GetCloneURL(), nil
}
