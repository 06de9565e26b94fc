package lifecycle

import (
	"context"
	"time"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
	"github.com/kiegroup/kie-cloud-tests/pkg/wait"
)

const (
	ServerTemplateTimeout  = 30 * time.Second
	ServerTemplateInterval = 200 * time.Millisecond
)

// WaitForServerTemplates returns an after-load hook that blocks until every workbench and
// controller of the scenario knows a server template per Kie Server and Smart Router.
func WaitForServerTemplates(client ControllerClient) scenario.Hook {
	return waitForServerTemplates(client, ServerTemplateTimeout, ServerTemplateInterval)
}

func waitForServerTemplates(client ControllerClient, timeout, interval time.Duration) scenario.Hook {
	return func(ctx context.Context, s *scenario.Scenario) error {
		total := len(s.DeploymentsOf(deployment.KieServer)) + len(s.DeploymentsOf(deployment.SmartRouter))
		consoles := append(s.DeploymentsOf(deployment.Workbench), s.DeploymentsOf(deployment.Controller)...)

		for _, console := range consoles {
			logger := s.Project().Logger.WithPrefix(console.Name())
			logger.Logf("Waiting for %d server templates", total)

			observed := 0
			err := wait.Until(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
				templates, err := client.ServerTemplates(ctx, console)
				if err != nil {
					logger.Debugf("server templates not available yet: %v", err)
					return false, nil
				}
				observed = len(templates)
				return observed == total, nil
			})
			if failure.IsTimeout(err) {
				return &failure.DeploymentTimeoutError{
					Subject:   console.Name(),
					Condition: "server template creation",
					Expected:  total,
					Observed:  observed,
					Timeout:   timeout,
				}
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
}
