// Package operator deploys scenarios as a KieApp custom resource reconciled by the
// Kie cloud operator running in the cluster.
package operator

import (
	"context"
	"fmt"
	"sort"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
	"github.com/kiegroup/kie-cloud-tests/pkg/version"
)

// Name selects this backend in cloud.api.implementation.
const Name = "operator"

// KieAppGVK is the custom resource the operator reconciles.
var KieAppGVK = schema.GroupVersionKind{Group: "app.kiegroup.org", Version: "v2", Kind: "KieApp"}

// CRDName is the name of the KieApp custom resource definition.
const CRDName = "kieapps.app.kiegroup.org"

// DeploymentConfigLabel is set by the operator on the pods of each object it creates.
const DeploymentConfigLabel = "deploymentConfig"

const defaultAppName = "kieapp"

// MinOperatorVersion is the oldest operator whose KieApp v2 schema matches newKieApp.
var MinOperatorVersion = version.MustParse("7.8")

// Environments of the KieApp, chosen by scenario shape.
var environments = map[string]string{
	scenario.WorkbenchKieServer:          "rhpam-authoring",
	scenario.ClusteredWorkbenchKieServer: "rhpam-authoring-ha",
	scenario.KieServer:                   "rhpam-production-immutable",
	scenario.SmartRouter:                 "rhpam-production",
}

func init() {
	scenario.RegisterBackend(Name, New)
}

type Backend struct {
	env     scenario.Environment
	catalog *external.Catalog[external.KieApp]
}

// New creates the operator backend.
func New(env scenario.Environment) (scenario.Backend, error) {
	return &Backend{env: env, catalog: external.NewKieAppCatalog()}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Validate(plan scenario.Plan) []error {
	var errs []error
	if len(plan.Settings.Of(deployment.Controller)) > 0 {
		errs = append(errs, &failure.NotImplementedError{Backend: Name, Feature: "standalone controller"})
	}
	if consoles := len(plan.Settings.Of(deployment.Workbench)) + len(plan.Settings.Of(deployment.WorkbenchMonitoring)); consoles > 1 {
		errs = append(errs, fmt.Errorf("a KieApp has a single console, the scenario defines %d", consoles))
	}
	if len(plan.Settings.Of(deployment.SmartRouter)) > 1 {
		errs = append(errs, fmt.Errorf("a KieApp has a single smart router"))
	}
	if plan.Settings.DeploySSO() {
		errs = append(errs, &failure.NotImplementedError{Backend: Name, Feature: "SSO deployment"})
	}
	for _, id := range plan.ExternalIDs() {
		if _, err := b.catalog.Create(id, nil); err != nil {
			errs = append(errs, err)
		}
	}
	if _, ok := plan.Settings.LDAP(); ok {
		if _, err := b.env.Config.Mandatory(config.LDAPURL); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := b.operatorVersion(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// operatorVersion returns kie.operator.version, or nil when it is not set.
func (b *Backend) operatorVersion() (*version.Version, error) {
	v := b.env.Config.Optional(config.KieOperatorVersion, "")
	if v == "" {
		return nil, nil
	}
	parsed, err := version.New(v)
	if err != nil {
		return nil, &failure.ConfigurationError{Key: config.KieOperatorVersion, Value: v}
	}
	if err := version.AtLeast("Kie operator", parsed, MinOperatorVersion); err != nil {
		return nil, err
	}
	return parsed, nil
}

// ensureCRD installs the KieApp definition when the cluster does not know it yet.
func (b *Backend) ensureCRD(ctx context.Context) error {
	crds := b.env.Clients.Extensions.ApiextensionsV1().CustomResourceDefinitions()
	_, err := crds.Get(ctx, CRDName, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !k8serrors.IsNotFound(err) {
		return err
	}

	b.env.Logger.Logf("Installing CRD %s", CRDName)
	preserve := true
	crd := &apiextensionsv1.CustomResourceDefinition{
		ObjectMeta: metav1.ObjectMeta{Name: CRDName},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: KieAppGVK.Group,
			Names: apiextensionsv1.CustomResourceDefinitionNames{
				Plural:   "kieapps",
				Singular: "kieapp",
				Kind:     KieAppGVK.Kind,
				ListKind: KieAppGVK.Kind + "List",
			},
			Scope: apiextensionsv1.NamespaceScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{{
				Name:    KieAppGVK.Version,
				Served:  true,
				Storage: true,
				Schema: &apiextensionsv1.CustomResourceValidation{
					OpenAPIV3Schema: &apiextensionsv1.JSONSchemaProps{
						Type:                   "object",
						XPreserveUnknownFields: &preserve,
					},
				},
				Subresources: &apiextensionsv1.CustomResourceSubresources{
					Status: &apiextensionsv1.CustomResourceSubresourceStatus{},
				},
			}},
		},
	}
	if _, err := crds.Create(ctx, crd, metav1.CreateOptions{}); err != nil && !k8serrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to install %s: %w", CRDName, err)
	}
	return nil
}

func (b *Backend) appName() string {
	return b.env.Config.Optional(config.KieAppName, defaultAppName)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func envList(vars map[string]string) []interface{} {
	var env []interface{}
	for _, k := range sortedKeys(vars) {
		env = append(env, map[string]interface{}{"name": k, "value": vars[k]})
	}
	return env
}

// objectName is the name the operator gives the workload of a component.
func (b *Backend) objectName(c scenario.Component) string {
	switch c.Kind {
	case deployment.Workbench, deployment.WorkbenchMonitoring:
		return b.appName() + "-rhpamcentr"
	case deployment.SmartRouter:
		return b.appName() + "-smartrouter"
	}
	return c.Name
}

// newKieApp translates the plan into the KieApp spec.
func (b *Backend) newKieApp(plan scenario.Plan, namespace string) (*unstructured.Unstructured, error) {
	adminUser, adminPwd := scenario.Credentials(b.env.Config, deployment.Workbench)
	environment, ok := environments[plan.Type]
	if !ok {
		environment = "rhpam-trial"
	}

	objects := map[string]interface{}{}
	var servers []interface{}
	for _, c := range plan.Settings.Components() {
		vars := map[string]string{}
		for k, v := range plan.Parameters {
			vars[k] = v
		}
		for k, v := range c.Parameters {
			vars[k] = v
		}
		object := map[string]interface{}{
			"replicas": int64(c.Replicas),
			"image":    scenario.Image(b.env.Config, c.Kind),
		}
		if env := envList(vars); env != nil {
			object["env"] = env
		}

		switch c.Kind {
		case deployment.Workbench, deployment.WorkbenchMonitoring:
			objects["console"] = object
		case deployment.SmartRouter:
			objects["smartRouter"] = object
		case deployment.KieServer:
			object["name"] = c.Name
			if plan.GitRepositoryURL != "" {
				object["build"] = map[string]interface{}{
					"gitSource": map[string]interface{}{"uri": plan.GitRepositoryURL},
				}
			}
			servers = append(servers, object)
		}
	}
	if servers != nil {
		objects["servers"] = servers
	}

	spec := map[string]interface{}{
		"environment": environment,
		"commonConfig": map[string]interface{}{
			"adminUser":     adminUser,
			"adminPassword": adminPwd,
		},
		"objects": objects,
	}
	v, err := b.operatorVersion()
	if err != nil {
		return nil, err
	}
	if v != nil {
		spec["version"] = v.String()
	}
	if ldap, ok := plan.Settings.LDAP(); ok {
		url, err := b.env.Config.Mandatory(config.LDAPURL)
		if err != nil {
			return nil, err
		}
		spec["auth"] = map[string]interface{}{"ldap": map[string]interface{}{
			"url":             url,
			"bindDN":          ldap.BindDN,
			"bindCredential":  ldap.BindCredential,
			"baseCtxDN":       ldap.BaseCtxDN,
			"baseFilter":      ldap.BaseFilter,
			"searchScope":     ldap.SearchScope,
			"rolesCtxDN":      ldap.RolesCtxDN,
			"roleFilter":      ldap.RoleFilter,
			"roleAttributeID": ldap.RoleAttributeID,
			"defaultRole":     ldap.DefaultRole,
		}}
	}

	app := &unstructured.Unstructured{Object: map[string]interface{}{"spec": spec}}
	app.SetGroupVersionKind(KieAppGVK)
	app.SetName(b.appName())
	app.SetNamespace(namespace)
	return app, nil
}

func (b *Backend) Deploy(ctx context.Context, s *scenario.Scenario, p *project.Project) ([]deployment.Deployment, error) {
	plan := s.Plan()
	opts, err := scenario.WaitOptions(b.env.Config)
	if err != nil {
		return nil, err
	}
	if err := b.ensureCRD(ctx); err != nil {
		return nil, err
	}

	app, err := b.newKieApp(plan, p.Name)
	if err != nil {
		return nil, err
	}
	for _, id := range plan.ExternalIDs() {
		ext, err := b.catalog.Create(id, plan.External[id])
		if err != nil {
			return nil, err
		}
		if _, err := scenario.DeployExternal(ctx, s, ext, app); err != nil {
			return nil, err
		}
	}

	p.Logger.Logf("Creating KieApp %s", app.GetName())
	if err := p.Apply(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to create KieApp %s: %w", app.GetName(), err)
	}

	var deployed []deployment.Deployment
	for _, c := range plan.Settings.Components() {
		name := b.objectName(c)
		o := opts
		o.Name = c.Name
		o.Kind = c.Kind
		o.ServiceName = name
		o.RouteName = name
		o.URL = fmt.Sprintf("http://%s.%s.svc:8080", name, p.Name)
		o.Username, o.Password = scenario.Credentials(b.env.Config, c.Kind)
		o.Workload = deployment.Pods
		o.Selector = map[string]string{DeploymentConfigLabel: name}
		o.Owner = replicaOwner(p.Clients.Client, client.ObjectKeyFromObject(app), c)
		deployed = append(deployed, deployment.New(p.Clients, p.Name, o, p.Logger))
	}
	return deployed, nil
}
