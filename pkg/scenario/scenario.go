// Package scenario describes the services deployed together for one test run and builds
// them against a cloud backend.
package scenario

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
)

// Listener is notified before a scenario is deployed or after it finished.
type Listener func(ctx context.Context, s *Scenario) error

// Hook runs once every deployment of a scenario is ready.
type Hook func(ctx context.Context, s *Scenario) error

// Plan is the backend independent description of what a scenario deploys.
type Plan struct {
	// Type names the scenario shape, e.g. workbench-kie-server.
	Type     string
	Settings Settings
	// External lists the external deployments to deploy before the platform, with their variables.
	External map[external.ID]map[string]string
	// Parameters are passed to every component.
	Parameters map[string]string
	// GitRepositoryURL is the source repository Kie Servers build their containers from.
	GitRepositoryURL string
}

// Scenario is a named bundle of services to deploy together.
type Scenario struct {
	plan    Plan
	backend Backend

	mu            sync.Mutex
	project       *project.Project
	deployments   []deployment.Deployment
	logFolder     string
	beforeDeploy  []Listener
	afterFinished []Listener
	afterLoad     []Hook
}

func newScenario(backend Backend, plan Plan, logFolder string) *Scenario {
	return &Scenario{plan: plan, backend: backend, logFolder: logFolder}
}

func (s *Scenario) Type() string     { return s.plan.Type }
func (s *Scenario) Plan() Plan       { return s.plan }
func (s *Scenario) Backend() Backend { return s.backend }

// Project returns the namespace the scenario is deployed to, nil before deploy.
func (s *Scenario) Project() *project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// Namespace returns the namespace name, empty before deploy.
func (s *Scenario) Namespace() string {
	if p := s.Project(); p != nil {
		return p.Name
	}
	return ""
}

// LogFolder is the folder below the logs root instance logs and events are written to.
// It defaults to the namespace.
func (s *Scenario) LogFolder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logFolder == "" && s.project != nil {
		return s.project.Name
	}
	return s.logFolder
}

// Deployments returns the services of the deployed scenario.
func (s *Scenario) Deployments() []deployment.Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]deployment.Deployment(nil), s.deployments...)
}

// DeploymentsOf returns the services of kind.
func (s *Scenario) DeploymentsOf(kind deployment.Kind) []deployment.Deployment {
	return deployment.Of(s.Deployments(), kind)
}

// Deployment returns the only service of kind.
func (s *Scenario) Deployment(kind deployment.Kind) (deployment.Deployment, error) {
	ds := s.DeploymentsOf(kind)
	if len(ds) != 1 {
		return nil, &failure.UsageError{Op: "get " + string(kind), Reason: fmt.Sprintf("scenario has %d deployments of this kind", len(ds))}
	}
	return ds[0], nil
}

// AddDeployments records deployments made in the scenario's namespace.
func (s *Scenario) AddDeployments(ds ...deployment.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == nil {
		return &failure.UsageError{Op: "add deployments", Reason: "scenario is not deployed"}
	}
	for _, d := range ds {
		if d.Namespace() != s.project.Name {
			return fmt.Errorf("deployment %s lives in namespace %s, not in %s", d.Name(), d.Namespace(), s.project.Name)
		}
	}
	s.deployments = append(s.deployments, ds...)
	return nil
}

func (s *Scenario) AddBeforeDeployListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeDeploy = append(s.beforeDeploy, l)
}

func (s *Scenario) AddAfterFinishedListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterFinished = append(s.afterFinished, l)
}

func (s *Scenario) AddAfterLoadHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterLoad = append(s.afterLoad, h)
}

func (s *Scenario) BeforeDeployListeners() []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Listener(nil), s.beforeDeploy...)
}

func (s *Scenario) AfterFinishedListeners() []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Listener(nil), s.afterFinished...)
}

func (s *Scenario) AfterLoadHooks() []Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Hook(nil), s.afterLoad...)
}

// Attach binds the scenario to the namespace it is deployed to. Deployments of a previous
// attempt are forgotten.
func (s *Scenario) Attach(p *project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = p
	s.deployments = nil
}

// Detach forgets the namespace after it was deleted.
func (s *Scenario) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = nil
	s.deployments = nil
}

// Deploy asks the backend to deploy the plan into the attached namespace.
func (s *Scenario) Deploy(ctx context.Context) error {
	p := s.Project()
	if p == nil {
		return &failure.UsageError{Op: "deploy scenario", Reason: "scenario is not attached to a namespace"}
	}
	ds, err := s.backend.Deploy(ctx, s, p)
	if err != nil {
		return err
	}
	return s.AddDeployments(ds...)
}

// DeployExternal deploys ext into the scenario's namespace, waits for it and writes its
// connection details to target. The configuration is removed again once the scenario finished.
func DeployExternal[U any](ctx context.Context, s *Scenario, ext external.Extra[U], target U) (deployment.Deployment, error) {
	p := s.Project()
	if p == nil {
		return nil, &failure.UsageError{Op: "deploy " + string(ext.Key()), Reason: "scenario is not deployed"}
	}

	d, err := ext.Deploy(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s: %w", ext.Key(), err)
	}
	if d != nil {
		if err := d.WaitForScale(ctx); err != nil {
			return nil, err
		}
		if err := s.AddDeployments(d); err != nil {
			return nil, err
		}
	}

	if err := ext.Configure(target); err != nil {
		return nil, fmt.Errorf("failed to configure %s: %w", ext.Key(), err)
	}
	s.AddAfterFinishedListener(func(ctx context.Context, s *Scenario) error {
		return ext.RemoveConfiguration(target)
	})
	return d, nil
}
