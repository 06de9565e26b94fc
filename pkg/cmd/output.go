package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

// DefaultOutputFile records the last deployed scenario.
const DefaultOutputFile = "kie-cloud-deployment.yaml"

// DeployOutput is what deploy records for the tests and for undeploy.
type DeployOutput struct {
	Namespace    string `json:"namespace"`
	Backend      string `json:"backend"`
	Scenario     string `json:"scenario"`
	WorkbenchURL string `json:"workbenchUrl,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	// GitRepository is the repository created for the scenario, deleted by undeploy.
	GitRepository string `json:"gitRepository,omitempty"`
}

func newDeployOutput(s *scenario.Scenario) DeployOutput {
	out := DeployOutput{
		Namespace: s.Namespace(),
		Backend:   s.Backend().Name(),
		Scenario:  s.Type(),
	}
	consoles := append(s.DeploymentsOf(deployment.Workbench), s.DeploymentsOf(deployment.WorkbenchMonitoring)...)
	if len(consoles) > 0 {
		out.WorkbenchURL = consoles[0].URL()
		out.Username = consoles[0].Username()
		out.Password = consoles[0].Password()
	}
	return out
}

func writeOutput(fs afero.Fs, path string, out DeployOutput) error {
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal to yaml: %v", err)
	}
	return afero.WriteFile(fs, path, data, 0600)
}

func readOutput(fs afero.Fs, path string) (*DeployOutput, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	out := &DeployOutput{}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("invalid deployment file %s: %v", path, err)
	}
	return out, nil
}
