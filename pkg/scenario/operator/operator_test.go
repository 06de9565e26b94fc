package operator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube/fake"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

func newFactory(t *testing.T, env scenario.Environment) scenario.Factory {
	backend, err := New(env)
	require.NoError(t, err)
	return scenario.NewBackendFactory(backend, env)
}

func TestDeployKieApp(t *testing.T) {
	ctx := context.Background()
	clients := fake.Clients()
	env := scenario.Environment{
		Clients: clients,
		Config: config.FromMap(map[string]string{
			config.DeploymentTimeout: "2s",
			config.WaitInterval:      "10ms",
			config.KieAppName:        "rhpam",
		}),
		Logger: log.NewTestLogger(t, "operator"),
	}

	s, err := newFactory(t, env).WorkbenchKieServerScenario().
		WithExternalMavenRepo(nil).
		WithGitRepository("https://git.example.com/repo.git").
		WithParameter("KIE_SERVER_MODE", "DEVELOPMENT").
		Build()
	require.NoError(t, err)
	s.Attach(project.Open(clients, "operator", env.Logger))
	require.NoError(t, s.Deploy(ctx))

	_, err = clients.Extensions.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, CRDName, metav1.GetOptions{})
	require.NoError(t, err)

	app := &unstructured.Unstructured{}
	app.SetGroupVersionKind(KieAppGVK)
	require.NoError(t, clients.Client.Get(ctx, client.ObjectKey{Namespace: "operator", Name: "rhpam"}, app))

	environment, _, _ := unstructured.NestedString(app.Object, "spec", "environment")
	assert.Equal(t, "rhpam-authoring", environment)
	adminUser, _, _ := unstructured.NestedString(app.Object, "spec", "commonConfig", "adminUser")
	assert.Equal(t, "adminUser", adminUser)

	servers, _, err := unstructured.NestedSlice(app.Object, "spec", "objects", "servers")
	require.NoError(t, err)
	require.Len(t, servers, 1)
	server := servers[0].(map[string]interface{})
	assert.Equal(t, "kieserver", server["name"])
	uri, _, _ := unstructured.NestedString(server, "build", "gitSource", "uri")
	assert.Equal(t, "https://git.example.com/repo.git", uri)

	env2 := map[string]interface{}{}
	for _, e := range server["env"].([]interface{}) {
		v := e.(map[string]interface{})
		env2[v["name"].(string)] = v["value"]
	}
	assert.Equal(t, "DEVELOPMENT", env2["KIE_SERVER_MODE"])
	assert.Equal(t, "http://nexus.operator.svc:8081/nexus/content/repositories/snapshots/", env2[external.ExternalMavenRepoURL])

	workbench, err := s.Deployment(deployment.Workbench)
	require.NoError(t, err)
	assert.Equal(t, "rhpam-rhpamcentr", workbench.ServiceName())
	assert.Equal(t, "http://rhpam-rhpamcentr.operator.svc:8080", workbench.URL())

	require.NoError(t, clients.Client.Create(ctx, fake.ReadyPod("operator", "rhpam-rhpamcentr-1-abcde", map[string]string{DeploymentConfigLabel: "rhpam-rhpamcentr"})))
	require.NoError(t, workbench.WaitForScale(ctx))

	kieServer, err := s.Deployment(deployment.KieServer)
	require.NoError(t, err)
	err = kieServer.WaitForScale(ctx)
	assert.True(t, failure.IsTimeout(err), "expected a timeout without kie server pods, got %v", err)
}

func TestScaleThroughKieApp(t *testing.T) {
	ctx := context.Background()
	clients := fake.Clients()
	env := scenario.Environment{
		Clients: clients,
		Config: config.FromMap(map[string]string{
			config.DeploymentTimeout: "2s",
			config.WaitInterval:      "10ms",
		}),
		Logger: log.NewTestLogger(t, "operator"),
	}
	s, err := newFactory(t, env).SmartRouterScenario().Build()
	require.NoError(t, err)
	s.Attach(project.Open(clients, "scaling", env.Logger))
	require.NoError(t, s.Deploy(ctx))

	kieApp := func() *unstructured.Unstructured {
		app := &unstructured.Unstructured{}
		app.SetGroupVersionKind(KieAppGVK)
		require.NoError(t, clients.Client.Get(ctx, client.ObjectKey{Namespace: "scaling", Name: defaultAppName}, app))
		return app
	}

	servers := s.DeploymentsOf(deployment.KieServer)
	require.NotEmpty(t, servers)
	require.NoError(t, servers[0].Scale(ctx, 3))
	replicas, err := servers[0].Replicas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, replicas)

	list, _, err := unstructured.NestedSlice(kieApp().Object, "spec", "objects", "servers")
	require.NoError(t, err)
	for _, v := range list {
		server := v.(map[string]interface{})
		if server["name"] == servers[0].Name() {
			assert.EqualValues(t, 3, server["replicas"])
		} else {
			assert.EqualValues(t, 1, server["replicas"])
		}
	}

	router, err := s.Deployment(deployment.SmartRouter)
	require.NoError(t, err)
	require.NoError(t, router.Scale(ctx, 0))
	routerReplicas, _, err := unstructured.NestedInt64(kieApp().Object, "spec", "objects", "smartRouter", "replicas")
	require.NoError(t, err)
	assert.Zero(t, routerReplicas)
}

func TestEnsureCRDIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clients := fake.Clients()
	b := &Backend{env: scenario.Environment{Clients: clients, Config: config.FromMap(nil), Logger: log.NewTestLogger(t, "operator")}}

	require.NoError(t, b.ensureCRD(ctx))
	require.NoError(t, b.ensureCRD(ctx))

	crds, err := clients.Extensions.ApiextensionsV1().CustomResourceDefinitions().List(ctx, metav1.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, crds.Items, 1)
}

func TestValidate(t *testing.T) {
	env := scenario.Environment{Clients: fake.Clients(), Config: config.FromMap(nil), Logger: log.NewTestLogger(t, "operator")}
	settings, err := scenario.NewSettings().
		AddWorkbench("workbench", 1).
		AddMonitoring("monitoring", 1).
		AddController("controller", 1).
		AddKieServer("kieserver", 1).
		WithSSO().
		Build()
	require.NoError(t, err)

	_, err = newFactory(t, env).GenericScenario(settings).WithInternalLDAP(nil).Build()
	require.Error(t, err)
	assert.True(t, failure.IsNotImplemented(err))
	assert.True(t, failure.IsProviderResolution(err))
	assert.Contains(t, err.Error(), "standalone controller is not supported for operator")
	assert.Contains(t, err.Error(), "SSO deployment is not supported for operator")
	assert.Contains(t, err.Error(), "a KieApp has a single console, the scenario defines 2")
}

func TestOperatorVersion(t *testing.T) {
	for _, test := range []struct {
		testName string
		version  string
		expected string
		errMsg   string
	}{
		{testName: "unset", version: ""},
		{testName: "supported", version: "v7.10.1", expected: "7.10.1"},
		{testName: "too old", version: "7.7.0", errMsg: "Kie operator version 7.7.0 is older than the supported 7.8"},
		{testName: "invalid", version: "latest", errMsg: "kie.operator.version"},
	} {
		test := test
		t.Run(test.testName, func(t *testing.T) {
			env := scenario.Environment{
				Clients: fake.Clients(),
				Config:  config.FromMap(map[string]string{config.KieOperatorVersion: test.version}),
				Logger:  log.NewTestLogger(t, "operator"),
			}
			backend, err := New(env)
			require.NoError(t, err)

			v, err := backend.(*Backend).operatorVersion()
			if test.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.errMsg)
				return
			}
			require.NoError(t, err)
			if test.expected == "" {
				assert.Nil(t, v)
				return
			}
			assert.Equal(t, test.expected, v.String())
		})
	}
}
