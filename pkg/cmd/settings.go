package cmd

import (
	"github.com/spf13/pflag"
	"k8s.io/cli-runtime/pkg/genericclioptions"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

// flagKeys maps the global flags to the configuration keys they override.
var flagKeys = map[string]string{
	"backend":            config.CloudAPIImplementation,
	"namespace-prefix":   config.NamespacePrefix,
	"deployment-timeout": config.DeploymentTimeout,
	"deploy-attempts":    config.DeployAttempts,
	"git-provider":       config.GitProvider,
	"instance-logs":      config.InstanceLogs,
}

// Settings defines global flags and the configuration they feed.
type Settings struct {
	// ConfigFile is an optional file merged into the configuration.
	ConfigFile string
	// Verbosity of the console logger, 2 and above prints debug output.
	Verbosity int
	// Kube locates the cluster, like kubectl does.
	Kube   *genericclioptions.ConfigFlags
	Config *config.Config

	newClients func() (*kube.Clients, error)
	logger     log.Logger
}

// NewSettings returns settings reading the cluster from the kubeconfig.
func NewSettings() *Settings {
	s := &Settings{
		Kube:   genericclioptions.NewConfigFlags(true),
		Config: config.New(),
	}
	s.newClients = s.kubeClients
	return s
}

// AddFlags binds flags to the given flagset.
func (s *Settings) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.ConfigFile, "config", "", "Path to a YAML, JSON or properties file with the harness configuration.")
	fs.IntVarP(&s.Verbosity, "verbosity", "v", 0, "Log verbosity, 2 and above print debug output.")
	fs.String("backend", "", "Cloud API implementation deploying the scenarios. (default the only registered one)")
	fs.String("namespace-prefix", "", "Prefix of the namespaces created for scenarios.")
	fs.String("deployment-timeout", "", "How long to wait for a scenario to become ready, e.g. 10m.")
	fs.String("deploy-attempts", "", "How many times a timed out deployment is attempted.")
	fs.String("git-provider", "", "Git provider hosting the Kie Server source repositories: GitHub, GitLab or Gogs.")
	fs.String("instance-logs", "", "Folder instance logs and events are written to.")
	s.Kube.AddFlags(fs)
}

// Load merges the configuration file and the changed flags into Config.
func (s *Settings) Load(fs *pflag.FlagSet) error {
	if s.ConfigFile != "" {
		if err := s.Config.LoadFile(s.ConfigFile); err != nil {
			return err
		}
	}
	return s.Config.BindFlags(fs, flagKeys)
}

// Logger returns the console logger, creating it on first use.
func (s *Settings) Logger() (log.Logger, error) {
	if s.logger == nil {
		l, err := log.NewCLI(s.Verbosity)
		if err != nil {
			return nil, err
		}
		s.logger = l
	}
	return s.logger, nil
}

// Environment connects to the cluster.
func (s *Settings) Environment() (scenario.Environment, error) {
	logger, err := s.Logger()
	if err != nil {
		return scenario.Environment{}, err
	}
	clients, err := s.newClients()
	if err != nil {
		return scenario.Environment{}, err
	}
	return scenario.Environment{Clients: clients, Config: s.Config, Logger: logger}, nil
}

func (s *Settings) kubeClients() (*kube.Clients, error) {
	cfg, err := s.Kube.ToRESTConfig()
	if err != nil {
		return nil, err
	}
	return kube.NewClients(cfg)
}
