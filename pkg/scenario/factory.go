package scenario

import (
	"context"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/registry"
)

// Environment is what a factory needs to talk to the cluster.
type Environment struct {
	Clients *kube.Clients
	Config  *config.Config
	Logger  log.Logger
}

// Factory creates scenario builders for one cloud backend.
type Factory interface {
	Name() string
	GenericScenario(settings Settings) *Builder
	WorkbenchKieServerScenario() *Builder
	KieServerScenario() *Builder
	ClusteredWorkbenchKieServerScenario() *Builder
	SmartRouterScenario() *Builder
	// DeleteNamespace removes a namespace a previous run left behind.
	DeleteNamespace(ctx context.Context, name string) error
}

// NewFactory creates the factory of one backend.
type NewFactory func(env Environment) (Factory, error)

// Factories holds the cloud backends, selected by cloud.api.implementation.
var Factories = registry.New[NewFactory]("cloud API", config.CloudAPIImplementation)

// RegisterBackend makes a backend available in Factories under name.
func RegisterBackend(name string, newBackend func(env Environment) (Backend, error)) {
	Factories.MustRegister(name, func(env Environment) (Factory, error) {
		b, err := newBackend(env)
		if err != nil {
			return nil, err
		}
		return NewBackendFactory(b, env), nil
	})
}

// ResolveFactory selects the factory named by cloud.api.implementation. With a single
// registered backend the key may be left unset.
func ResolveFactory(env Environment) (Factory, error) {
	newFactory, err := Factories.ResolveDefault(env.Config.Optional(config.CloudAPIImplementation, ""))
	if err != nil {
		return nil, err
	}
	return newFactory(env)
}

// BackendFactory offers the predefined scenario shapes on top of a backend.
type BackendFactory struct {
	backend Backend
	env     Environment
}

func NewBackendFactory(backend Backend, env Environment) *BackendFactory {
	return &BackendFactory{backend: backend, env: env}
}

func (f *BackendFactory) Name() string { return f.backend.Name() }

func (f *BackendFactory) GenericScenario(settings Settings) *Builder {
	return NewBuilder(f.backend, Generic, settings)
}

func (f *BackendFactory) WorkbenchKieServerScenario() *Builder {
	return NewBuilder(f.backend, WorkbenchKieServer, Settings{components: []Component{
		{Kind: deployment.Workbench, Name: "workbench", Replicas: 1},
		{Kind: deployment.KieServer, Name: "kieserver", Replicas: 1},
	}})
}

func (f *BackendFactory) KieServerScenario() *Builder {
	return NewBuilder(f.backend, KieServer, Settings{components: []Component{
		{Kind: deployment.KieServer, Name: "kieserver", Replicas: 1},
	}})
}

func (f *BackendFactory) ClusteredWorkbenchKieServerScenario() *Builder {
	return NewBuilder(f.backend, ClusteredWorkbenchKieServer, Settings{components: []Component{
		{Kind: deployment.Workbench, Name: "workbench", Replicas: 3},
		{Kind: deployment.KieServer, Name: "kieserver", Replicas: 1},
	}})
}

func (f *BackendFactory) SmartRouterScenario() *Builder {
	return NewBuilder(f.backend, SmartRouter, Settings{components: []Component{
		{Kind: deployment.WorkbenchMonitoring, Name: "workbench-monitoring", Replicas: 1},
		{Kind: deployment.SmartRouter, Name: "smartrouter", Replicas: 1},
		{Kind: deployment.KieServer, Name: "kieserver-one", Replicas: 1},
		{Kind: deployment.KieServer, Name: "kieserver-two", Replicas: 1},
	}})
}

func (f *BackendFactory) DeleteNamespace(ctx context.Context, name string) error {
	timeout, err := f.env.Config.Duration(config.DeploymentTimeout, config.DefaultDeploymentTimeout)
	if err != nil {
		return err
	}
	return project.Open(f.env.Clients, name, f.env.Logger).DeleteAndWait(ctx, timeout)
}
