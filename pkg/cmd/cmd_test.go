package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/git"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube/fake"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/registry"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario/templates"
)

func testSettings(t *testing.T, clients *kube.Clients, values map[string]string) *Settings {
	s := NewSettings()
	s.Config.Set(config.WaitInterval, "10ms")
	for k, v := range values {
		s.Config.Set(k, v)
	}
	s.newClients = func() (*kube.Clients, error) { return clients, nil }
	s.logger = log.NewTestLogger(t, "cli")
	return s
}

func execute(t *testing.T, settings *Settings, fs afero.Fs, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd := newRootCmd(settings, fs, out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func namespaceExists(t *testing.T, clients *kube.Clients, name string) bool {
	err := clients.Client.Get(context.Background(), client.ObjectKey{Name: name}, &corev1.Namespace{})
	if k8serrors.IsNotFound(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestDeployAndUndeploy(t *testing.T) {
	clients := fake.Clients()
	fs := afero.NewMemMapFs()

	out, err := execute(t, testSettings(t, clients, nil), fs,
		"deploy", "--backend", templates.Name, "--namespace-prefix", "cli", "--deployment-timeout", "5s", "--server-templates=false")
	require.NoError(t, err)

	recorded, err := readOutput(fs, DefaultOutputFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(recorded.Namespace, "cli-"), recorded.Namespace)
	assert.Equal(t, templates.Name, recorded.Backend)
	assert.Equal(t, scenario.WorkbenchKieServer, recorded.Scenario)
	assert.NotEmpty(t, recorded.WorkbenchURL)
	assert.Equal(t, "adminUser", recorded.Username)
	assert.Contains(t, out, fmt.Sprintf("deployed to namespace %s", recorded.Namespace))
	assert.True(t, namespaceExists(t, clients, recorded.Namespace))

	exists, err := afero.Exists(fs, fmt.Sprintf("instances/%s/workbench-0.log", recorded.Namespace))
	require.NoError(t, err)
	assert.True(t, exists)

	out, err = execute(t, testSettings(t, clients, nil), fs, "undeploy", "--backend", templates.Name, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Namespace %s deleted", recorded.Namespace))
	assert.False(t, namespaceExists(t, clients, recorded.Namespace))

	exists, err = afero.Exists(fs, DefaultOutputFile)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeployWritesMetrics(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := t.TempDir() + "/kie-cloud.prom"

	_, err := execute(t, testSettings(t, fake.Clients(), nil), fs,
		"deploy", "--backend", templates.Name, "--type", scenario.KieServer, "--server-templates=false", "--metrics-file", path, "-o", "out.yaml")
	require.NoError(t, err)

	data, err := afero.ReadFile(afero.NewOsFs(), path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `kie_cloud_tests_deploy_attempts_total{backend="templates",scenario="kie-server"} 1`)
}

// gogsServer records the repositories created and deleted through the Gogs API.
type gogsServer struct {
	mu      sync.Mutex
	created int
	deleted []string
}

func (g *gogsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/user/repos":
		g.created++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/v1/repos/gogs/"):
		g.deleted = append(g.deleted, strings.TrimPrefix(r.URL.Path, "/api/v1/repos/gogs/"))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestDeployWithGitRepository(t *testing.T) {
	gogs := &gogsServer{}
	srv := httptest.NewServer(gogs)
	defer srv.Close()

	clients := fake.Clients()
	fs := afero.NewMemMapFs()
	values := map[string]string{
		config.GogsURL:      srv.URL,
		config.GogsUsername: "gogs",
		config.GogsPassword: "secret",
	}

	_, err := execute(t, testSettings(t, clients, values), fs,
		"deploy", "--backend", templates.Name, "--server-templates=false", "--git-provider", git.GogsName, "--git-repository-prefix", "kie")
	require.NoError(t, err)

	recorded, err := readOutput(fs, DefaultOutputFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(recorded.GitRepository, "kie-"), recorded.GitRepository)
	assert.Equal(t, 1, gogs.created)

	_, err = execute(t, testSettings(t, clients, values), fs, "undeploy", "--backend", templates.Name, "--git-provider", git.GogsName, "-y")
	require.NoError(t, err)
	assert.Equal(t, []string{recorded.GitRepository}, gogs.deleted)
}

func TestDeployDeletesRepositoryOfInvalidScenario(t *testing.T) {
	gogs := &gogsServer{}
	srv := httptest.NewServer(gogs)
	defer srv.Close()

	values := map[string]string{
		config.GogsURL:      srv.URL,
		config.GogsUsername: "gogs",
		config.GogsPassword: "secret",
	}
	_, err := execute(t, testSettings(t, fake.Clients(), values), afero.NewMemMapFs(),
		"deploy", "--backend", templates.Name, "--type", "unknown", "--git-provider", git.GogsName, "--git-repository-prefix", "kie")
	require.Error(t, err)
	assert.True(t, failure.IsConfiguration(err))
	assert.Equal(t, 1, gogs.created)
	assert.Len(t, gogs.deleted, 1)
}

func TestUndeployAborted(t *testing.T) {
	clients := fake.Clients(&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kept"}})

	out := &bytes.Buffer{}
	u := &undeployCmd{
		settings:   testSettings(t, clients, map[string]string{config.CloudAPIImplementation: templates.Name}),
		fs:         afero.NewMemMapFs(),
		out:        out,
		outputFile: DefaultOutputFile,
		confirm:    func(string) bool { return false },
	}
	require.NoError(t, u.run(context.Background(), []string{"kept"}))
	assert.Equal(t, "Aborted\n", out.String())
	assert.True(t, namespaceExists(t, clients, "kept"))
}

func TestUndeployNamespaceArgument(t *testing.T) {
	clients := fake.Clients(&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "leftover"}})

	var asked string
	u := &undeployCmd{
		settings:   testSettings(t, clients, map[string]string{config.CloudAPIImplementation: templates.Name}),
		fs:         afero.NewMemMapFs(),
		out:        &bytes.Buffer{},
		outputFile: DefaultOutputFile,
		confirm: func(label string) bool {
			asked = label
			return true
		},
	}
	require.NoError(t, u.run(context.Background(), []string{"leftover"}))
	assert.Equal(t, "Delete namespace leftover", asked)
	assert.False(t, namespaceExists(t, clients, "leftover"))
}

func TestUndeployWithoutOutputFile(t *testing.T) {
	_, err := execute(t, testSettings(t, fake.Clients(), nil), afero.NewMemMapFs(), "undeploy", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no namespace given and kie-cloud-deployment.yaml does not exist")
}

const genericSettings = `
components:
- kind: workbench
  name: workbench
  replicas: 1
- kind: kie-server
  name: kieserver
  replicas: 2
  parameters:
    KIE_SERVER_PWD: hidden
    KIE_SERVER_MODE: DEVELOPMENT
`

func TestDescribe(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "scenario.yaml", []byte(genericSettings), 0644))

	out, err := execute(t, testSettings(t, fake.Clients(), nil), fs,
		"describe", "--backend", templates.Name, "--settings", "scenario.yaml", "-p", "JAVA_OPTS=-Xmx1g")
	require.NoError(t, err)

	for _, expected := range []string{
		"generic (templates)",
		"[workbench]  workbench",
		"[kie-server]  kieserver",
		"replicas: 2",
		"KIE_SERVER_MODE=DEVELOPMENT",
		"KIE_SERVER_PWD=******",
		"parameters",
		"JAVA_OPTS=-Xmx1g",
	} {
		assert.Contains(t, out, expected)
	}
	assert.NotContains(t, out, "hidden")
}

func TestScenarioFlags(t *testing.T) {
	env := scenario.Environment{Clients: fake.Clients(), Config: config.FromMap(nil), Logger: log.NewTestLogger(t, "cli")}
	backend, err := templates.New(env)
	require.NoError(t, err)
	factory := scenario.NewBackendFactory(backend, env)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "scenario.yaml", []byte(genericSettings), 0644))

	for _, test := range []struct {
		testName     string
		flags        scenarioFlags
		expectedType string
		check        func(error) bool
	}{
		{testName: "default shape", flags: scenarioFlags{}, expectedType: scenario.WorkbenchKieServer},
		{testName: "settings imply generic", flags: scenarioFlags{settingsFile: "scenario.yaml"}, expectedType: scenario.Generic},
		{testName: "smart router", flags: scenarioFlags{scenarioType: scenario.SmartRouter}, expectedType: scenario.SmartRouter},
		{testName: "unknown shape", flags: scenarioFlags{scenarioType: "cluster"}, check: failure.IsConfiguration},
		{testName: "generic without settings", flags: scenarioFlags{scenarioType: scenario.Generic}, check: failure.IsUsage},
		{testName: "settings with a predefined shape", flags: scenarioFlags{scenarioType: scenario.KieServer, settingsFile: "scenario.yaml"}, check: failure.IsUsage},
	} {
		test := test
		t.Run(test.testName, func(t *testing.T) {
			b, err := test.flags.builder(fs, factory)
			if test.check != nil {
				require.Error(t, err)
				assert.True(t, test.check(err), err.Error())
				return
			}
			require.NoError(t, err)
			s, err := b.Build()
			require.NoError(t, err)
			assert.Equal(t, test.expectedType, s.Type())
		})
	}
}

func TestProviders(t *testing.T) {
	drivers := registry.New[int]("database driver", config.DatabaseDriver)
	drivers.MustRegister("postgresql", 1)
	drivers.MustRegister("mysql", 2)
	empty := registry.New[int]("cloud API", config.CloudAPIImplementation)

	out := &bytes.Buffer{}
	printProviders(out, git.Providers, drivers, empty)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "CONFIG KEY")
	assert.Contains(t, lines[1], "git.provider")
	assert.Contains(t, lines[1], "GitHub, GitLab, Gogs")
	assert.Contains(t, lines[2], "mysql, postgresql")
	assert.Contains(t, lines[3], "<none>")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, testSettings(t, fake.Clients(), nil), afero.NewMemMapFs(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kie-cloud version: ")
}
