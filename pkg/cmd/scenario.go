package cmd

import (
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

var scenarioTypes = []string{
	scenario.WorkbenchKieServer,
	scenario.KieServer,
	scenario.ClusteredWorkbenchKieServer,
	scenario.SmartRouter,
	scenario.Generic,
}

// scenarioFlags select and tune the scenario deploy and describe work on.
type scenarioFlags struct {
	scenarioType     string
	settingsFile     string
	parameters       map[string]string
	gitRepositoryURL string
}

func (f *scenarioFlags) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&f.scenarioType, "type", "t", "", "Scenario shape: workbench-kie-server, kie-server, clustered-workbench-kie-server, workbench-smart-router-two-kie-servers or generic. (default generic with --settings, workbench-kie-server otherwise)")
	fs.StringVar(&f.settingsFile, "settings", "", "YAML file describing the components of a generic scenario.")
	fs.StringToStringVarP(&f.parameters, "param", "p", nil, "Parameter passed to every component, e.g. -p KIE_SERVER_MODE=DEVELOPMENT.")
	fs.StringVar(&f.gitRepositoryURL, "git-repository", "", "Source repository the Kie Servers build their containers from.")
}

// builder returns a configured builder for the selected scenario.
func (f *scenarioFlags) builder(fs afero.Fs, factory scenario.Factory) (*scenario.Builder, error) {
	scenarioType := f.scenarioType
	if scenarioType == "" {
		scenarioType = scenario.WorkbenchKieServer
		if f.settingsFile != "" {
			scenarioType = scenario.Generic
		}
	}
	if f.settingsFile != "" && scenarioType != scenario.Generic {
		return nil, &failure.UsageError{Op: "deploy " + scenarioType, Reason: "--settings only applies to generic scenarios"}
	}

	var b *scenario.Builder
	var externals map[external.ID]map[string]string
	switch scenarioType {
	case scenario.WorkbenchKieServer:
		b = factory.WorkbenchKieServerScenario()
	case scenario.KieServer:
		b = factory.KieServerScenario()
	case scenario.ClusteredWorkbenchKieServer:
		b = factory.ClusteredWorkbenchKieServerScenario()
	case scenario.SmartRouter:
		b = factory.SmartRouterScenario()
	case scenario.Generic:
		if f.settingsFile == "" {
			return nil, &failure.UsageError{Op: "deploy generic", Reason: "--settings is required"}
		}
		data, err := afero.ReadFile(fs, f.settingsFile)
		if err != nil {
			return nil, err
		}
		file, err := scenario.ParseFile(data)
		if err != nil {
			return nil, err
		}
		settings, err := file.Settings()
		if err != nil {
			return nil, err
		}
		b = factory.GenericScenario(settings)
		externals = file.External
	default:
		return nil, &failure.ConfigurationError{Key: "type", Value: scenarioType, Options: scenarioTypes}
	}

	ids := make([]string, 0, len(externals))
	for id := range externals {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		b.WithExternal(external.ID(id), externals[external.ID(id)])
	}

	keys := make([]string, 0, len(f.parameters))
	for k := range f.parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WithParameter(k, f.parameters[k])
	}

	if f.gitRepositoryURL != "" {
		b.WithGitRepository(f.gitRepositoryURL)
	}
	return b, nil
}
