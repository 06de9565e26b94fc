package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube/fake"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/metrics"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

type stubBackend struct {
	calls  int32
	deploy func(attempt int, p *project.Project) ([]deployment.Deployment, error)
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Validate(plan scenario.Plan) []error { return nil }

func (b *stubBackend) Deploy(ctx context.Context, s *scenario.Scenario, p *project.Project) ([]deployment.Deployment, error) {
	attempt := int(atomic.AddInt32(&b.calls, 1))
	if b.deploy == nil {
		return nil, nil
	}
	return b.deploy(attempt, p)
}

func newDeployer(t *testing.T, clients *kube.Clients) *Deployer {
	cfg := config.FromMap(map[string]string{
		config.DeploymentTimeout: "2s",
		config.WaitInterval:      "10ms",
		config.NamespacePrefix:   "test",
	})
	d, err := NewDeployer(clients, cfg, log.NewTestLogger(t, "lifecycle"))
	require.NoError(t, err)
	d.Fs = afero.NewMemMapFs()
	d.DiscoveryInterval = 10 * time.Millisecond
	return d
}

func newScenario(t *testing.T, backend scenario.Backend) *scenario.Scenario {
	settings, err := scenario.NewSettings().AddKieServer("kieserver", 1).Build()
	require.NoError(t, err)
	s, err := scenario.NewBuilder(backend, scenario.KieServer, settings).Build()
	require.NoError(t, err)
	return s
}

func scenarioNamespaces(t *testing.T, clients *kube.Clients) []string {
	list := &corev1.NamespaceList{}
	require.NoError(t, clients.Client.List(context.Background(), list, client.MatchingLabels{project.ScenarioLabel: "true"}))
	var names []string
	for _, ns := range list.Items {
		names = append(names, ns.Name)
	}
	return names
}

func TestDeployRetriesOnTimeout(t *testing.T) {
	clients := fake.Clients()
	d := newDeployer(t, clients)
	m, err := metrics.New()
	require.NoError(t, err)
	d.Metrics = m

	backend := &stubBackend{deploy: func(attempt int, p *project.Project) ([]deployment.Deployment, error) {
		if attempt < 3 {
			return nil, &failure.DeploymentTimeoutError{Subject: "kieserver", Timeout: time.Second}
		}
		return nil, nil
	}}
	s := newScenario(t, backend)

	require.NoError(t, d.Deploy(context.Background(), s))
	assert.Equal(t, int32(3), backend.calls)
	assert.Equal(t, []string{s.Namespace()}, scenarioNamespaces(t, clients))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DeployAttempts.WithLabelValues(scenario.KieServer, "stub")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DeployTimeouts.WithLabelValues(scenario.KieServer, "stub")))

	require.NoError(t, d.Undeploy(context.Background(), s))
	assert.Empty(t, scenarioNamespaces(t, clients))
}

func TestDeployGivesUpAfterAttempts(t *testing.T) {
	clients := fake.Clients()
	d := newDeployer(t, clients)
	d.Attempts = 2

	backend := &stubBackend{deploy: func(attempt int, p *project.Project) ([]deployment.Deployment, error) {
		return nil, &failure.DeploymentTimeoutError{Subject: "kieserver", Timeout: time.Second}
	}}
	s := newScenario(t, backend)

	err := d.Deploy(context.Background(), s)
	assert.True(t, failure.IsTimeout(err))
	assert.Equal(t, int32(2), backend.calls)
	// The last attempt is left for the caller to inspect and undeploy.
	assert.Equal(t, []string{s.Namespace()}, scenarioNamespaces(t, clients))

	require.NoError(t, d.Undeploy(context.Background(), s))
	assert.Empty(t, scenarioNamespaces(t, clients))
	assert.Empty(t, s.Namespace())
}

func TestDeployDoesNotRetryOtherErrors(t *testing.T) {
	for _, test := range []struct {
		testName string
		err      error
		check    func(error) bool
	}{
		{testName: "missing resource", err: &failure.MissingResourceError{Resource: "image stream kie-server"}, check: failure.IsMissingResource},
		{testName: "failure", err: errors.New("quota exceeded"), check: func(err error) bool { return err != nil && !failure.IsTimeout(err) }},
	} {
		test := test
		t.Run(test.testName, func(t *testing.T) {
			d := newDeployer(t, fake.Clients())
			backend := &stubBackend{deploy: func(attempt int, p *project.Project) ([]deployment.Deployment, error) {
				return nil, test.err
			}}
			s := newScenario(t, backend)

			err := d.Deploy(context.Background(), s)
			assert.True(t, test.check(err))
			assert.Equal(t, int32(1), backend.calls)
			require.NoError(t, d.Undeploy(context.Background(), s))
		})
	}
}

func TestDeployOrder(t *testing.T) {
	clients := fake.Clients()
	d := newDeployer(t, clients)

	var order []string
	backend := &stubBackend{deploy: func(attempt int, p *project.Project) ([]deployment.Deployment, error) {
		order = append(order, "deploy")
		return nil, nil
	}}
	s := newScenario(t, backend)
	s.AddBeforeDeployListener(func(ctx context.Context, s *scenario.Scenario) error {
		assert.NotEmpty(t, s.Namespace())
		order = append(order, "before deploy")
		return nil
	})
	s.AddAfterLoadHook(func(ctx context.Context, s *scenario.Scenario) error {
		order = append(order, "after load")
		return nil
	})
	s.AddAfterFinishedListener(func(ctx context.Context, s *scenario.Scenario) error {
		order = append(order, "after finished")
		return nil
	})

	err := d.Run(context.Background(), s, func(ctx context.Context, s *scenario.Scenario) error {
		order = append(order, "test")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"before deploy", "deploy", "after load", "test", "after finished"}, order)
}

func TestRunUndeploysWhenTestFails(t *testing.T) {
	clients := fake.Clients()
	d := newDeployer(t, clients)
	s := newScenario(t, &stubBackend{})

	err := d.Run(context.Background(), s, func(ctx context.Context, s *scenario.Scenario) error {
		return errors.New("assertion failed")
	})
	assert.EqualError(t, err, "assertion failed")
	assert.Empty(t, scenarioNamespaces(t, clients))
}

func TestUndeployDeletesNamespaceWhenCollectionFails(t *testing.T) {
	clients := fake.Clients()
	d := newDeployer(t, clients)
	d.Fs = afero.NewReadOnlyFs(afero.NewMemMapFs())
	s := newScenario(t, &stubBackend{})
	s.AddAfterFinishedListener(func(ctx context.Context, s *scenario.Scenario) error {
		return errors.New("listener failed")
	})

	require.NoError(t, d.Deploy(context.Background(), s))
	require.Len(t, scenarioNamespaces(t, clients), 1)

	require.NoError(t, d.Undeploy(context.Background(), s))
	assert.Empty(t, scenarioNamespaces(t, clients))
	assert.Nil(t, s.Project())
}

func TestUndeployWritesEvents(t *testing.T) {
	clients := fake.Clients()
	d := newDeployer(t, clients)
	s := newScenario(t, &stubBackend{})

	require.NoError(t, d.Deploy(context.Background(), s))
	namespace := s.Namespace()
	require.NoError(t, clients.Client.Create(context.Background(), &corev1.Event{
		ObjectMeta:     metav1.ObjectMeta{Namespace: namespace, Name: "kieserver.created"},
		InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "kieserver-0"},
		Reason:         "Created",
	}))

	require.NoError(t, d.Undeploy(context.Background(), s))
	b, err := afero.ReadFile(d.Fs, fmt.Sprintf("instances/%s/%s-events.log", namespace, namespace))
	require.NoError(t, err)
	assert.Contains(t, string(b), "Created")
}

func TestUndeployLogsNamespaceDeletionOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	clients := fake.Clients()
	d := newDeployer(t, clients)
	d.Logger = log.New(zap.New(core), "lifecycle")
	s := newScenario(t, &stubBackend{})

	require.NoError(t, d.Deploy(context.Background(), s))
	require.NoError(t, d.Undeploy(context.Background(), s))
	assert.Equal(t, 1, logs.FilterMessageSnippet("Deleting namespace").Len())
}

func TestUndeployWithoutDeploy(t *testing.T) {
	d := newDeployer(t, fake.Clients())
	assert.NoError(t, d.Undeploy(context.Background(), newScenario(t, &stubBackend{})))
}

func TestDeployExtra(t *testing.T) {
	ctx := context.Background()
	d := newDeployer(t, fake.Clients())
	s := newScenario(t, &stubBackend{})
	require.NoError(t, d.Deploy(ctx, s))

	ext, err := external.NewEnvCatalog().Create(external.ExternalDatabase, map[string]string{
		config.DatabaseDriver:       "postgresql",
		config.DatabaseHost:         "db.example.com",
		config.DatabasePort:         "5432",
		config.ExternalDatabaseName: "jbpm",
		config.DatabaseUsername:     "jbpm",
		config.DatabasePassword:     "jbpm",
	})
	require.NoError(t, err)

	env := external.EnvMap{}
	_, err = DeployExtra[external.EnvMap](ctx, s, ext, env)
	require.NoError(t, err)
	assert.Equal(t, "db.example.com", env[external.KieServerExternalDBServiceHost])

	require.NoError(t, d.Undeploy(ctx, s))
	assert.NotContains(t, env, external.KieServerExternalDBServiceHost)
}

type countingController struct {
	calls     int32
	available int32
	// templates is the number of registered templates once available, 1 when unset.
	templates int
}

func (c *countingController) ServerTemplates(ctx context.Context, controller deployment.Deployment) ([]ServerTemplate, error) {
	n := atomic.AddInt32(&c.calls, 1)
	if n < c.available {
		return nil, errors.New("connection refused")
	}
	count := c.templates
	if count == 0 {
		count = 1
	}
	templates := make([]ServerTemplate, 0, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("kieserver-%d", i)
		templates = append(templates, ServerTemplate{ID: id, Name: id})
	}
	return templates, nil
}

func hookScenario(t *testing.T, clients *kube.Clients, kinds ...deployment.Kind) *scenario.Scenario {
	backend := &stubBackend{deploy: func(attempt int, p *project.Project) ([]deployment.Deployment, error) {
		var out []deployment.Deployment
		for _, kind := range kinds {
			out = append(out, deployment.New(clients, p.Name, deployment.Options{Name: string(kind), Kind: kind, Workload: deployment.Pods}, p.Logger))
		}
		return out, nil
	}}
	s := newScenario(t, backend)
	s.Attach(project.Open(clients, "hooks", log.NewTestLogger(t, "hooks")))
	require.NoError(t, s.Deploy(context.Background()))
	return s
}

func TestWaitForServerTemplates(t *testing.T) {
	clients := fake.Clients()
	s := hookScenario(t, clients, deployment.Workbench, deployment.KieServer)

	controller := &countingController{available: 3}
	hook := waitForServerTemplates(controller, time.Second, 10*time.Millisecond)
	require.NoError(t, hook(context.Background(), s))
	assert.Equal(t, int32(3), controller.calls)
}

func TestWaitForServerTemplatesTimeout(t *testing.T) {
	clients := fake.Clients()
	s := hookScenario(t, clients, deployment.Controller, deployment.KieServer, deployment.SmartRouter)

	hook := waitForServerTemplates(&countingController{}, 50*time.Millisecond, 10*time.Millisecond)
	err := hook(context.Background(), s)
	assert.True(t, failure.IsTimeout(err))
	assert.EqualError(t, err, "controller: timeout while waiting 50ms for server template creation (expected 2, observed 1)")
}

func TestWaitForServerTemplatesNeedsExactCount(t *testing.T) {
	clients := fake.Clients()
	s := hookScenario(t, clients, deployment.Workbench, deployment.KieServer)

	hook := waitForServerTemplates(&countingController{templates: 2}, 50*time.Millisecond, 10*time.Millisecond)
	err := hook(context.Background(), s)
	require.Error(t, err)

	var timeout *failure.DeploymentTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "workbench", timeout.Subject)
	assert.Equal(t, 1, timeout.Expected)
	assert.Equal(t, 2, timeout.Observed)
}

func TestWaitForServerTemplatesWithoutConsole(t *testing.T) {
	s := hookScenario(t, fake.Clients(), deployment.KieServer)
	controller := &countingController{}
	require.NoError(t, WaitForServerTemplates(controller)(context.Background(), s))
	assert.Zero(t, controller.calls)
}

func TestRESTControllerClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || user != "adminUser" || password != "admin1!" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != ServerTemplatesPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"server-template":[{"server-id":"kieserver","server-name":"kieserver"},{"server-id":"router","server-name":"router"}]}`))
	}))
	defer srv.Close()

	clients := fake.Clients()
	for _, test := range []struct {
		testName  string
		password  string
		templates []ServerTemplate
		err       string
	}{
		{
			testName:  "registered templates",
			password:  "admin1!",
			templates: []ServerTemplate{{ID: "kieserver", Name: "kieserver"}, {ID: "router", Name: "router"}},
		},
		{
			testName: "wrong password",
			password: "wrong",
			err:      "listing server templates of workbench returned 401: ",
		},
	} {
		test := test
		t.Run(test.testName, func(t *testing.T) {
			workbench := deployment.New(clients, "rest", deployment.Options{
				Name:     "workbench",
				Kind:     deployment.Workbench,
				URL:      srv.URL + "/",
				Username: "adminUser",
				Password: test.password,
			}, log.NewTestLogger(t, "rest"))

			templates, err := NewControllerClient().ServerTemplates(context.Background(), workbench)
			if test.err != "" {
				assert.EqualError(t, err, test.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.templates, templates)
		})
	}
}
