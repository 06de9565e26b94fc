package git

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"code.gitea.io/sdk/gitea"
	"github.com/pkg/errors"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
)

const GogsName = "Gogs"

// Gogs creates repositories on a Gogs server through its Gitea compatible API.
type Gogs struct {
	url  string
	user string

	// The client carries one context for all calls.
	mu     sync.Mutex
	client *gitea.Client
}

// NewGogs authenticates with gogs.username and gogs.password against gogs.url.
func NewGogs(cfg *config.Config) (Provider, error) {
	url, err := cfg.Mandatory(config.GogsURL)
	if err != nil {
		return nil, err
	}
	user, err := cfg.Mandatory(config.GogsUsername)
	if err != nil {
		return nil, err
	}
	password, err := cfg.Mandatory(config.GogsPassword)
	if err != nil {
		return nil, err
	}
	// Gogs reports no Gitea version, skip the version negotiation.
	client, err := gitea.NewClient(url, gitea.SetBasicAuth(user, password), gitea.SetGiteaVersion(""))
	if err != nil {
		return nil, errors.Wrapf(err, "creating Gogs client for %s", url)
	}
	return &Gogs{url: strings.TrimSuffix(url, "/"), user: user, client: client}, nil
}

func (g *Gogs) CreateRepository(ctx context.Context, prefix string) (string, error) {
	name := RepositoryName(prefix)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.client.SetContext(ctx)
	if _, _, err := g.client.CreateRepo(gitea.CreateRepoOption{Name: name}); err != nil {
		return "", errors.Wrapf(err, "creating Gogs repository %s", name)
	}
	return name, nil
}

func (g *Gogs) DeleteRepository(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.client.SetContext(ctx)
	if _, err := g.client.DeleteRepo(g.user, name); err != nil {
		return errors.Wrapf(err, "deleting Gogs repository %s", name)
	}
	return nil
}

// RepositoryURL is derived from the server URL without asking the server.
func (g *Gogs) RepositoryURL(ctx context.Context, name string) (string, error) {
	return fmt.Sprintf("%s/%s/%s.git", g.url, g.user, name), nil
}
