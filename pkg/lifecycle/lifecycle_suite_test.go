package lifecycle_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube/fake"
	"github.com/kiegroup/kie-cloud-tests/pkg/lifecycle"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario/templates"
)

func TestLifecycle(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Lifecycle Suite")
}

// registeredTemplates is a controller that knows one server template per Kie Server.
type registeredTemplates struct{}

func (registeredTemplates) ServerTemplates(ctx context.Context, controller deployment.Deployment) ([]lifecycle.ServerTemplate, error) {
	return []lifecycle.ServerTemplate{{ID: "kieserver", Name: "kieserver"}}, nil
}

func ginkgoLogger() log.Logger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(GinkgoWriter), zapcore.DebugLevel)
	return log.New(zap.New(core), "e2e")
}

var _ = Describe("Workbench with Kie Server", func() {
	var (
		ctx      context.Context
		clients  *kube.Clients
		deployer *lifecycle.Deployer
		s        *scenario.Scenario
		fs       afero.Fs
	)

	BeforeEach(func() {
		ctx = context.Background()
		clients = fake.Clients()
		env := scenario.Environment{
			Clients: clients,
			Config: config.FromMap(map[string]string{
				config.DeploymentTimeout: "5s",
				config.WaitInterval:      "10ms",
				config.NamespacePrefix:   "e2e",
			}),
			Logger: ginkgoLogger(),
		}

		backend, err := templates.New(env)
		Expect(err).NotTo(HaveOccurred())
		s, err = scenario.NewBackendFactory(backend, env).WorkbenchKieServerScenario().Build()
		Expect(err).NotTo(HaveOccurred())
		s.AddAfterLoadHook(lifecycle.WaitForServerTemplates(registeredTemplates{}))

		deployer, err = lifecycle.NewDeployer(clients, env.Config, env.Logger)
		Expect(err).NotTo(HaveOccurred())
		fs = afero.NewMemMapFs()
		deployer.Fs = fs
	})

	It("deploys, collects and tears down the scenario", func() {
		Expect(deployer.Deploy(ctx, s)).To(Succeed())
		namespace := s.Namespace()
		Expect(namespace).To(HavePrefix("e2e-"))

		workbench, err := s.Deployment(deployment.Workbench)
		Expect(err).NotTo(HaveOccurred())
		Expect(workbench.Replicas(ctx)).To(Equal(1))
		kieServer, err := s.Deployment(deployment.KieServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(kieServer.Replicas(ctx)).To(Equal(1))

		Expect(deployer.Undeploy(ctx, s)).To(Succeed())

		folder := fmt.Sprintf("instances/%s", namespace)
		for _, instance := range []string{"workbench-0", "kieserver-0"} {
			Expect(afero.Exists(fs, fmt.Sprintf("%s/%s.log", folder, instance))).To(BeTrue(), instance)
		}
		Expect(afero.Exists(fs, fmt.Sprintf("%s/%s-events.log", folder, namespace))).To(BeTrue())

		err = clients.Client.Get(ctx, client.ObjectKey{Name: namespace}, &corev1.Namespace{})
		Expect(k8serrors.IsNotFound(err)).To(BeTrue())
		Expect(s.Namespace()).To(BeEmpty())
	})

	It("undeploys the namespace when the test fails", func() {
		var namespace string
		err := deployer.Run(ctx, s, func(ctx context.Context, s *scenario.Scenario) error {
			namespace = s.Namespace()
			return fmt.Errorf("test failed")
		})
		Expect(err).To(MatchError("test failed"))
		Expect(namespace).NotTo(BeEmpty())

		err = clients.Client.Get(ctx, client.ObjectKey{Name: namespace}, &corev1.Namespace{})
		Expect(k8serrors.IsNotFound(err)).To(BeTrue())
	})
})
