// Package git manages the remote repositories Kie Servers build their containers from.
package git

import (
	"context"

	"github.com/google/uuid"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/registry"
)

// Provider hosts git repositories.
type Provider interface {
	// CreateRepository creates an empty public repository named after prefix and returns its name.
	CreateRepository(ctx context.Context, prefix string) (string, error)
	DeleteRepository(ctx context.Context, name string) error
	// RepositoryURL is the URL the repository is cloned from.
	RepositoryURL(ctx context.Context, name string) (string, error)
}

// NewProvider creates a provider from the configuration.
type NewProvider func(cfg *config.Config) (Provider, error)

// Providers holds the known git providers, selected by git.provider.
var Providers = registry.New[NewProvider]("git provider", config.GitProvider)

func init() {
	Providers.MustRegister(GitHubName, NewGitHub)
	Providers.MustRegister(GitLabName, NewGitLab)
	Providers.MustRegister(GogsName, NewGogs)
}

// New creates the provider named by git.provider.
func New(cfg *config.Config) (Provider, error) {
	name, err := cfg.Mandatory(config.GitProvider)
	if err != nil {
		return nil, err
	}
	newProvider, err := Providers.Resolve(name)
	if err != nil {
		return nil, err
	}
	return newProvider(cfg)
}

// RepositoryName returns prefix followed by four random characters.
func RepositoryName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:4]
}

// LookupRepositoryURL returns the URL of a repository, or false when the provider cannot
// tell. Failures are logged.
func LookupRepositoryURL(ctx context.Context, p Provider, name string, logger log.Logger) (string, bool) {
	url, err := p.RepositoryURL(ctx, name)
	if err != nil {
		logger.Errorf("failed to look up URL of repository %s: %v", name, err)
		return "", false
	}
	return url, url != ""
}
