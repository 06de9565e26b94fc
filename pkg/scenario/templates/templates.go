// Package templates deploys scenarios from component manifests rendered with the sprig
// template functions.
package templates

import (
	"context"
	"embed"
	"fmt"
	"strconv"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

// Name selects this backend in cloud.api.implementation.
const Name = "templates"

// ComponentLabel carries the component kind on every rendered object.
const ComponentLabel = "kie-cloud-tests/component"

// Variables of the platform images.
const (
	KieAdminUser             = "KIE_ADMIN_USER"
	KieAdminPassword         = "KIE_ADMIN_PWD"
	KieServerUser            = "KIE_SERVER_USER"
	KieServerPassword        = "KIE_SERVER_PWD"
	KieServerID              = "KIE_SERVER_ID"
	KieServerControllerHost  = "KIE_SERVER_CONTROLLER_HOST"
	KieServerControllerPort  = "KIE_SERVER_CONTROLLER_PORT"
	KieServerControllerUser  = "KIE_SERVER_CONTROLLER_USER"
	KieServerControllerPwd   = "KIE_SERVER_CONTROLLER_PWD"
	KieServerRouterHost      = "KIE_SERVER_ROUTER_HOST"
	KieServerRouterPort      = "KIE_SERVER_ROUTER_PORT"
	KieServerRouterID        = "KIE_SERVER_ROUTER_ID"
	SourceRepositoryURL      = "SOURCE_REPOSITORY_URL"
	defaultSSOImage          = "quay.io/keycloak/keycloak:latest"
	httpPort                 = 8080
	smartRouterPort          = 9000
	credentialsSecretPostfix = "-credentials"
)

//go:embed manifests/*.yaml.tmpl
var manifests embed.FS

func init() {
	scenario.RegisterBackend(Name, New)
}

// Backend renders one Deployment, Service and Route per component.
type Backend struct {
	env      scenario.Environment
	engine   *Engine
	catalog  *external.Catalog[external.EnvMap]
	template string
	secret   string
}

// New creates the templates backend.
func New(env scenario.Environment) (scenario.Backend, error) {
	component, err := manifests.ReadFile("manifests/component.yaml.tmpl")
	if err != nil {
		return nil, err
	}
	secret, err := manifests.ReadFile("manifests/secret.yaml.tmpl")
	if err != nil {
		return nil, err
	}
	return &Backend{
		env:      env,
		engine:   NewEngine(),
		catalog:  external.NewEnvCatalog(),
		template: string(component),
		secret:   string(secret),
	}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Validate(plan scenario.Plan) []error {
	var errs []error
	for _, id := range plan.ExternalIDs() {
		if _, err := b.catalog.Create(id, nil); err != nil {
			errs = append(errs, err)
		}
	}
	if _, ok := plan.Settings.LDAP(); ok {
		if _, deployed := plan.External[external.LDAP]; !deployed {
			if _, err := b.env.Config.Mandatory(config.LDAPURL); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

func (b *Backend) Deploy(ctx context.Context, s *scenario.Scenario, p *project.Project) ([]deployment.Deployment, error) {
	plan := s.Plan()
	opts, err := scenario.WaitOptions(b.env.Config)
	if err != nil {
		return nil, err
	}

	env := external.EnvMap{}
	for k, v := range plan.Parameters {
		env[k] = v
	}
	if err := b.deployExternal(ctx, s, plan, env); err != nil {
		return nil, err
	}

	components := plan.Settings.Components()
	if plan.Settings.DeploySSO() {
		components = append(components, scenario.Component{Kind: deployment.SSO, Name: "sso", Replicas: 1})
	}
	if err := b.applyCredentials(ctx, p); err != nil {
		return nil, err
	}

	var deployed []deployment.Deployment
	for _, c := range components {
		d, err := b.deployComponent(ctx, p, c, b.componentEnv(p, plan, c, env), opts)
		if err != nil {
			return nil, err
		}
		deployed = append(deployed, d)
	}
	return deployed, nil
}

// deployExternal deploys the external deployments of the plan and collects their
// connection details in env.
func (b *Backend) deployExternal(ctx context.Context, s *scenario.Scenario, plan scenario.Plan, env external.EnvMap) error {
	ldap, hasLDAP := plan.Settings.LDAP()
	for _, id := range plan.ExternalIDs() {
		var ext external.Extra[external.EnvMap]
		if id == external.LDAP && hasLDAP {
			ext = external.NewLDAPEnv(plan.External[id], ldap)
		} else {
			var err error
			if ext, err = b.catalog.Create(id, plan.External[id]); err != nil {
				return err
			}
		}
		if _, err := scenario.DeployExternal(ctx, s, ext, env); err != nil {
			return err
		}
	}

	if _, deployed := plan.External[external.LDAP]; hasLDAP && !deployed {
		url, err := b.env.Config.Mandatory(config.LDAPURL)
		if err != nil {
			return err
		}
		for k, v := range ldap.Variables(url) {
			env[k] = v
		}
	}
	return nil
}

func (b *Backend) applyCredentials(ctx context.Context, p *project.Project) error {
	data := map[string]string{}
	for _, kind := range []deployment.Kind{deployment.Workbench, deployment.KieServer, deployment.Controller} {
		user, pwd := scenario.Credentials(b.env.Config, kind)
		data[string(kind)+"-user"] = user
		data[string(kind)+"-password"] = pwd
	}
	manifest, err := b.engine.Render("secret", b.secret, map[string]interface{}{
		"Name": p.Name + credentialsSecretPostfix,
		"Data": data,
	})
	if err != nil {
		return err
	}
	_, err = p.ApplyManifest(ctx, []byte(manifest))
	return err
}

func port(kind deployment.Kind) int {
	if kind == deployment.SmartRouter {
		return smartRouterPort
	}
	return httpPort
}

func host(p *project.Project, name string) string {
	return fmt.Sprintf("%s.%s.svc", name, p.Name)
}

// componentEnv returns the variables of one component: the shared plan variables, the wiring
// to the other components and finally the component's own parameters.
func (b *Backend) componentEnv(p *project.Project, plan scenario.Plan, c scenario.Component, shared external.EnvMap) map[string]string {
	env := map[string]string{}
	for k, v := range shared {
		env[k] = v
	}

	serverUser, serverPwd := scenario.Credentials(b.env.Config, deployment.KieServer)
	controllerUser, controllerPwd := scenario.Credentials(b.env.Config, deployment.Controller)
	switch c.Kind {
	case deployment.Workbench, deployment.WorkbenchMonitoring, deployment.Controller:
		env[KieAdminUser], env[KieAdminPassword] = scenario.Credentials(b.env.Config, c.Kind)
		env[KieServerUser], env[KieServerPassword] = serverUser, serverPwd
	case deployment.KieServer:
		env[KieServerID] = c.Name
		env[KieServerUser], env[KieServerPassword] = serverUser, serverPwd
		if controller := firstOf(plan, deployment.Workbench, deployment.WorkbenchMonitoring, deployment.Controller); controller != nil {
			env[KieServerControllerHost] = host(p, controller.Name)
			env[KieServerControllerPort] = strconv.Itoa(httpPort)
			env[KieServerControllerUser], env[KieServerControllerPwd] = controllerUser, controllerPwd
		}
		if router := firstOf(plan, deployment.SmartRouter); router != nil {
			env[KieServerRouterHost] = host(p, router.Name)
			env[KieServerRouterPort] = strconv.Itoa(smartRouterPort)
		}
		if plan.GitRepositoryURL != "" {
			env[SourceRepositoryURL] = plan.GitRepositoryURL
		}
	case deployment.SmartRouter:
		env[KieServerRouterID] = c.Name
		if controller := firstOf(plan, deployment.WorkbenchMonitoring, deployment.Workbench, deployment.Controller); controller != nil {
			env[KieServerControllerHost] = host(p, controller.Name)
			env[KieServerControllerPort] = strconv.Itoa(httpPort)
			env[KieServerControllerUser], env[KieServerControllerPwd] = controllerUser, controllerPwd
		}
	}

	for k, v := range c.Parameters {
		env[k] = v
	}
	return env
}

func firstOf(plan scenario.Plan, kinds ...deployment.Kind) *scenario.Component {
	for _, kind := range kinds {
		if cs := plan.Settings.Of(kind); len(cs) > 0 {
			return &cs[0]
		}
	}
	return nil
}

func (b *Backend) image(kind deployment.Kind) string {
	if kind == deployment.SSO {
		return b.env.Config.Optional(config.SSOImage, defaultSSOImage)
	}
	return scenario.Image(b.env.Config, kind)
}

func (b *Backend) deployComponent(ctx context.Context, p *project.Project, c scenario.Component, env map[string]string, opts deployment.Options) (deployment.Deployment, error) {
	manifest, err := b.engine.Render(c.Name, b.template, map[string]interface{}{
		"Name":     c.Name,
		"Image":    b.image(c.Kind),
		"Replicas": c.Replicas,
		"Port":     port(c.Kind),
		"Env":      env,
		"Labels":   map[string]string{"app": c.Name, ComponentLabel: string(c.Kind)},
	})
	if err != nil {
		return nil, err
	}
	if _, err := p.ApplyManifest(ctx, []byte(manifest)); err != nil {
		return nil, fmt.Errorf("failed to deploy %s %s: %w", c.Kind, c.Name, err)
	}

	opts.Name = c.Name
	opts.Kind = c.Kind
	opts.ServiceName = c.Name
	opts.RouteName = c.Name
	opts.URL = fmt.Sprintf("http://%s:%d", host(p, c.Name), port(c.Kind))
	opts.Username, opts.Password = scenario.Credentials(b.env.Config, c.Kind)
	p.Logger.Logf("Deployed %s %s with %d replicas", c.Kind, c.Name, c.Replicas)
	return deployment.New(p.Clients, p.Name, opts, p.Logger), nil
}
