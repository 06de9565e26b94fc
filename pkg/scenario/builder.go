package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
)

// Backend translates a plan into the resources of one cloud provisioning mechanism.
type Backend interface {
	Name() string
	// Validate reports every part of the plan the backend cannot deploy.
	Validate(plan Plan) []error
	// Deploy creates the resources of the scenario's plan in p and returns the deployed services.
	Deploy(ctx context.Context, s *Scenario, p *project.Project) ([]deployment.Deployment, error)
}

// Scenario shapes offered by every factory.
const (
	Generic                     = "generic"
	WorkbenchKieServer          = "workbench-kie-server"
	KieServer                   = "kie-server"
	ClusteredWorkbenchKieServer = "clustered-workbench-kie-server"
	SmartRouter                 = "workbench-smart-router-two-kie-servers"
)

type builderState int

const (
	configuring builderState = iota
	built
)

// Builder collects the plan of a scenario. Every With call after Build is recorded as a
// usage error, and Build reports all problems of the plan at once.
type Builder struct {
	backend   Backend
	plan      Plan
	logFolder string
	state     builderState
	errs      []error
}

// NewBuilder starts a scenario of the given shape with the given settings.
func NewBuilder(backend Backend, scenarioType string, settings Settings) *Builder {
	return &Builder{
		backend: backend,
		plan: Plan{
			Type:       scenarioType,
			Settings:   settings,
			External:   map[external.ID]map[string]string{},
			Parameters: map[string]string{},
		},
	}
}

func (b *Builder) configuring(op string) bool {
	if b.state != configuring {
		b.errs = append(b.errs, &failure.UsageError{Op: op, Reason: "scenario is already built"})
		return false
	}
	return true
}

// WithExternalMavenRepo deploys a maven repository with the scenario and points the Kie Servers at it.
func (b *Builder) WithExternalMavenRepo(vars map[string]string) *Builder {
	return b.WithExternal(external.MavenRepository, vars)
}

// WithExternalDatabase connects the Kie Servers to a database running outside the cluster.
func (b *Builder) WithExternalDatabase(vars map[string]string) *Builder {
	return b.WithExternal(external.ExternalDatabase, vars)
}

// WithInternalLDAP deploys an LDAP server with the scenario and enables the LDAP login module.
func (b *Builder) WithInternalLDAP(vars map[string]string) *Builder {
	return b.WithExternal(external.LDAP, vars)
}

// WithExternal adds an external deployment by id.
func (b *Builder) WithExternal(id external.ID, vars map[string]string) *Builder {
	if !b.configuring("with " + string(id)) {
		return b
	}
	copied := map[string]string{}
	for k, v := range vars {
		copied[k] = v
	}
	b.plan.External[id] = copied
	return b
}

// WithParameter passes a parameter to every component.
func (b *Builder) WithParameter(key, value string) *Builder {
	if b.configuring("with parameter " + key) {
		b.plan.Parameters[key] = value
	}
	return b
}

// WithGitRepository makes the Kie Servers build their containers from url.
func (b *Builder) WithGitRepository(url string) *Builder {
	if b.configuring("with git repository") {
		b.plan.GitRepositoryURL = url
	}
	return b
}

// WithLogFolder overrides the folder instance logs are written to.
func (b *Builder) WithLogFolder(folder string) *Builder {
	if b.configuring("with log folder") {
		b.logFolder = folder
	}
	return b
}

// Err reports the misuse recorded since Build.
func (b *Builder) Err() error {
	return joinErrors(b.errs)
}

// Build validates the plan and returns the scenario.
func (b *Builder) Build() (*Scenario, error) {
	if b.state == built {
		return nil, &failure.UsageError{Op: "build scenario", Reason: "scenario is already built"}
	}
	b.state = built

	errs := append([]error(nil), b.errs...)
	if len(b.plan.Settings.components) == 0 {
		errs = append(errs, fmt.Errorf("scenario %s has no components", b.plan.Type))
	}
	if vars, ok := b.plan.External[external.ExternalDatabase]; ok {
		if _, dbErrs := external.ParseDatabaseConnection(vars); len(dbErrs) > 0 {
			errs = append(errs, fmt.Errorf("an external database requires database connection settings: %w", joinErrors(dbErrs)))
		}
	}
	if b.plan.GitRepositoryURL != "" && len(b.plan.Settings.Of(deployment.KieServer)) == 0 {
		errs = append(errs, errors.New("a git repository requires a kie server to build from it"))
	}
	errs = append(errs, b.backend.Validate(b.plan)...)

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return newScenario(b.backend, b.plan, b.logFolder), nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
