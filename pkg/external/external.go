// Package external provides the supporting services a scenario can deploy next to the
// platform (maven repository, LDAP, external database) and the code that wires their
// connection details into a deployment plan.
package external

import (
	"context"
	"sort"
	"sync"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/registry"
)

// ID identifies a kind of external deployment.
type ID string

const (
	MavenRepository  ID = "MAVEN_REPOSITORY"
	LDAP             ID = "LDAP"
	ExternalDatabase ID = "EXTERNAL_DATABASE"
)

// ExternalDeployment is a service deployed next to a scenario. T is what a deploy produces,
// U is the deployment plan of a backend (environment map, KieApp, APB extra vars) the
// service's connection details are written to.
type ExternalDeployment[T any, U any] interface {
	Key() ID
	// Deploy launches the service into the project. It may be called once.
	Deploy(ctx context.Context, p *project.Project) (T, error)
	// DeploymentVariables returns the settings the deployment was created with.
	DeploymentVariables() map[string]string
	// Configure writes the connection details of the deployed service to target.
	// Calling it before Deploy is a usage error.
	Configure(target U) error
	// RemoveConfiguration restores target to its state before Configure.
	RemoveConfiguration(target U) error
}

// Once guards the single deploy of an external deployment.
type Once[T any] struct {
	mu       sync.Mutex
	deployed bool
	value    T
}

// Do runs deploy the first time it is called and records its result.
// A failed deploy may be retried, calling Do after a successful one is a usage error.
func (o *Once[T]) Do(deploy func() (T, error)) (T, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var zero T
	if o.deployed {
		return zero, &failure.UsageError{Op: "deploy", Reason: "external deployment is already deployed"}
	}
	v, err := deploy()
	if err != nil {
		return zero, err
	}
	o.value, o.deployed = v, true
	return v, nil
}

// Deployed returns the recorded deploy result.
func (o *Once[T]) Deployed() (T, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.deployed {
		var zero T
		return zero, &failure.UsageError{Op: "deployment information", Reason: "external deployment is not deployed yet"}
	}
	return o.value, nil
}

// Extra is an external deployment whose deploy yields a platform deployment. Services
// running outside the cluster yield a nil Deployment.
type Extra[U any] ExternalDeployment[deployment.Deployment, U]

// Constructor creates an external deployment from its deployment variables.
type Constructor[U any] func(vars map[string]string) Extra[U]

// Catalog holds the external deployments a backend supports, keyed by ID.
type Catalog[U any] struct {
	r *registry.Registry[Constructor[U]]
}

// NewCatalog returns an empty catalog for backend.
func NewCatalog[U any](backend string) *Catalog[U] {
	return &Catalog[U]{r: registry.New[Constructor[U]](backend+" external deployment", "external deployment id")}
}

// Register adds the constructor for id.
func (c *Catalog[U]) Register(id ID, ctor Constructor[U]) error {
	return c.r.Register(string(id), ctor)
}

// MustRegister is Register for catalogs filled at init time.
func (c *Catalog[U]) MustRegister(id ID, ctor Constructor[U]) {
	c.r.MustRegister(string(id), ctor)
}

// Create returns a new external deployment of the given kind.
func (c *Catalog[U]) Create(id ID, vars map[string]string) (Extra[U], error) {
	ctor, err := c.r.Resolve(string(id))
	if err != nil {
		return nil, err
	}
	return ctor(vars), nil
}

// IDs lists the supported external deployments.
func (c *Catalog[U]) IDs() []string {
	return c.r.Names()
}

func copyVars(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
