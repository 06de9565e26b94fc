package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kiegroup/kie-cloud-tests/pkg/git"
	"github.com/kiegroup/kie-cloud-tests/pkg/lifecycle"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/metrics"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

const deployExample = `  # Deploy a workbench with one Kie Server
  kie-cloud deploy

  # Deploy a Kie Server building from a fresh repository of the configured git provider
  kie-cloud deploy --type kie-server --git-provider GitHub --git-repository-prefix kie

  # Deploy a generic scenario and export deploy metrics for the node exporter
  kie-cloud deploy --settings scenario.yaml --metrics-file /var/lib/node_exporter/kie-cloud.prom`

type deployCmd struct {
	settings *Settings
	fs       afero.Fs
	out      io.Writer
	scenario scenarioFlags

	outputFile      string
	metricsFile     string
	gitRepoPrefix   string
	serverTemplates bool

	controller lifecycle.ControllerClient
}

func newDeployCmd(settings *Settings, fs afero.Fs, out io.Writer) *cobra.Command {
	d := &deployCmd{settings: settings, fs: fs, out: out, controller: lifecycle.NewControllerClient()}

	cmd := &cobra.Command{
		Use:     "deploy",
		Short:   "Deploy a scenario into a new namespace and wait until it is ready.",
		Example: deployExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return d.run(cmd.Context())
		},
	}

	f := cmd.Flags()
	d.scenario.addFlags(f)
	f.StringVarP(&d.outputFile, "output", "o", DefaultOutputFile, "File recording the deployed namespace and the workbench access.")
	f.StringVar(&d.metricsFile, "metrics-file", "", "Write deploy metrics to this file in the Prometheus text format.")
	f.StringVar(&d.gitRepoPrefix, "git-repository-prefix", "", "Create a repository with this name prefix at the git provider and build the Kie Servers from it.")
	f.BoolVar(&d.serverTemplates, "server-templates", true, "Wait until every Kie Server registered a server template at the controller.")

	return cmd
}

func (d *deployCmd) run(ctx context.Context) error {
	env, err := d.settings.Environment()
	if err != nil {
		return err
	}
	factory, err := scenario.ResolveFactory(env)
	if err != nil {
		return err
	}

	var repo string
	var provider git.Provider
	if d.gitRepoPrefix != "" {
		if provider, repo, err = d.createRepository(ctx, env.Logger); err != nil {
			return err
		}
	}

	b, err := d.scenario.builder(d.fs, factory)
	if err != nil {
		return d.cleanupRepository(ctx, provider, repo, env.Logger, err)
	}
	if repo != "" {
		url, ok := git.LookupRepositoryURL(ctx, provider, repo, env.Logger)
		if !ok {
			return d.cleanupRepository(ctx, provider, repo, env.Logger, fmt.Errorf("no URL for repository %s", repo))
		}
		b.WithGitRepository(url)
	}
	s, err := b.Build()
	if err != nil {
		return d.cleanupRepository(ctx, provider, repo, env.Logger, err)
	}
	if d.serverTemplates {
		s.AddAfterLoadHook(lifecycle.WaitForServerTemplates(d.controller))
	}

	deployer, err := lifecycle.NewDeployer(env.Clients, env.Config, env.Logger)
	if err != nil {
		return err
	}
	deployer.Fs = d.fs
	if d.metricsFile != "" {
		if deployer.Metrics, err = metrics.New(); err != nil {
			return err
		}
	}

	err = deployer.Deploy(ctx, s)
	if merr := deployer.Metrics.WriteTextfile(d.metricsFile); merr != nil {
		env.Logger.Errorf("failed to write metrics to %s: %v", d.metricsFile, merr)
	}
	if err != nil {
		if uerr := deployer.Undeploy(ctx, s); uerr != nil {
			env.Logger.Errorf("failed to undeploy scenario %s: %v", s.Type(), uerr)
		}
		return d.cleanupRepository(ctx, provider, repo, env.Logger, err)
	}
	if err := deployer.StopCollecting(ctx, s); err != nil {
		env.Logger.Errorf("failed to collect instance logs: %v", err)
	}

	output := newDeployOutput(s)
	output.GitRepository = repo
	if err := writeOutput(d.fs, d.outputFile, output); err != nil {
		return err
	}
	fmt.Fprintf(d.out, "Scenario %s deployed to namespace %s\n", s.Type(), s.Namespace())
	if output.WorkbenchURL != "" {
		fmt.Fprintf(d.out, "Workbench: %s\n", output.WorkbenchURL)
	}
	return nil
}

func (d *deployCmd) createRepository(ctx context.Context, logger log.Logger) (git.Provider, string, error) {
	provider, err := git.New(d.settings.Config)
	if err != nil {
		return nil, "", err
	}
	repo, err := provider.CreateRepository(ctx, d.gitRepoPrefix)
	if err != nil {
		return nil, "", err
	}
	logger.Logf("Created git repository %s", repo)
	return provider, repo, nil
}

// cleanupRepository deletes the repository created for a deployment that failed and returns cause.
func (d *deployCmd) cleanupRepository(ctx context.Context, provider git.Provider, repo string, logger log.Logger, cause error) error {
	if repo == "" {
		return cause
	}
	if err := provider.DeleteRepository(context.WithoutCancel(ctx), repo); err != nil {
		logger.Errorf("failed to delete git repository %s: %v", repo, err)
	}
	return cause
}
