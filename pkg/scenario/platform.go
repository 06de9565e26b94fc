package scenario

import (
	"sort"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
)

var imageKeys = map[deployment.Kind]string{
	deployment.Workbench:           config.WorkbenchImage,
	deployment.WorkbenchMonitoring: config.MonitoringImage,
	deployment.KieServer:           config.KieServerImage,
	deployment.SmartRouter:         config.SmartRouterImage,
	deployment.Controller:          config.ControllerImage,
}

var defaultImages = map[deployment.Kind]string{
	deployment.Workbench:           "quay.io/kiegroup/business-central-workbench-showcase:latest",
	deployment.WorkbenchMonitoring: "quay.io/kiegroup/business-monitoring-showcase:latest",
	deployment.KieServer:           "quay.io/kiegroup/kie-server-showcase:latest",
	deployment.SmartRouter:         "quay.io/kiegroup/kie-smartrouter:latest",
	deployment.Controller:          "quay.io/kiegroup/kie-server-controller:latest",
}

// Image returns the container image of a component kind.
func Image(cfg *config.Config, kind deployment.Kind) string {
	return cfg.Optional(imageKeys[kind], defaultImages[kind])
}

// Credentials returns the user a test logs in to a component kind with.
func Credentials(cfg *config.Config, kind deployment.Kind) (string, string) {
	switch kind {
	case deployment.Workbench, deployment.WorkbenchMonitoring:
		return cfg.Credentials(config.WorkbenchUser, config.WorkbenchPassword)
	case deployment.Controller:
		return cfg.Credentials(config.ControllerUser, config.ControllerPassword)
	case deployment.KieServer, deployment.SmartRouter:
		return cfg.Credentials(config.KieServerUser, config.KieServerPassword)
	}
	return "", ""
}

// ExternalIDs lists the external deployments of the plan in a stable order.
func (p Plan) ExternalIDs() []external.ID {
	ids := make([]external.ID, 0, len(p.External))
	for id := range p.External {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WaitOptions returns the wait settings a backend gives its deployments.
func WaitOptions(cfg *config.Config) (deployment.Options, error) {
	timeout, err := cfg.Duration(config.DeploymentTimeout, config.DefaultDeploymentTimeout)
	if err != nil {
		return deployment.Options{}, err
	}
	interval, err := cfg.Duration(config.WaitInterval, config.DefaultWaitInterval)
	if err != nil {
		return deployment.Options{}, err
	}
	return deployment.Options{Timeout: timeout, Interval: interval}, nil
}
