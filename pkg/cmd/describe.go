package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

const describeExample = `  # Show the components of the smart router scenario
  kie-cloud describe --type workbench-smart-router-two-kie-servers

  # Check a generic scenario against the operator backend without deploying it
  kie-cloud describe --settings scenario.yaml --backend operator`

type describeCmd struct {
	settings *Settings
	fs       afero.Fs
	out      io.Writer
	scenario scenarioFlags
}

func newDescribeCmd(settings *Settings, fs afero.Fs, out io.Writer) *cobra.Command {
	d := &describeCmd{settings: settings, fs: fs, out: out}

	cmd := &cobra.Command{
		Use:     "describe",
		Short:   "Validate a scenario and print what it would deploy.",
		Example: describeExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return d.run()
		},
	}
	d.scenario.addFlags(cmd.Flags())
	return cmd
}

func (d *describeCmd) run() error {
	env, err := d.settings.Environment()
	if err != nil {
		return err
	}
	factory, err := scenario.ResolveFactory(env)
	if err != nil {
		return err
	}
	b, err := d.scenario.builder(d.fs, factory)
	if err != nil {
		return err
	}
	s, err := b.Build()
	if err != nil {
		return err
	}
	fmt.Fprintln(d.out, describeScenario(s).String())
	return nil
}

func describeScenario(s *scenario.Scenario) treeprint.Tree {
	plan := s.Plan()
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%s (%s)", plan.Type, s.Backend().Name()))

	for _, c := range plan.Settings.Components() {
		node := tree.AddMetaBranch(string(c.Kind), c.Name)
		node.AddNode(fmt.Sprintf("replicas: %d", c.Replicas))
		addVars(node, c.Parameters)
	}
	if ldap, ok := plan.Settings.LDAP(); ok {
		tree.AddMetaNode("ldap", ldap.BaseCtxDN)
	}
	if plan.Settings.DeploySSO() {
		tree.AddNode("sso")
	}

	if len(plan.External) > 0 {
		externals := tree.AddBranch("external")
		for _, id := range plan.ExternalIDs() {
			addVars(externals.AddBranch(string(id)), plan.External[id])
		}
	}
	if len(plan.Parameters) > 0 {
		addVars(tree.AddBranch("parameters"), plan.Parameters)
	}
	if plan.GitRepositoryURL != "" {
		tree.AddMetaNode("git", plan.GitRepositoryURL)
	}
	return tree
}

func addVars(node treeprint.Tree, vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := vars[k]
		if secret(k) {
			v = "******"
		}
		node.AddNode(fmt.Sprintf("%s=%s", k, v))
	}
}

// secret reports variables whose value is masked in the output.
func secret(key string) bool {
	key = strings.ToUpper(key)
	for _, marker := range []string{"PASSWORD", "PWD", "SECRET", "CREDENTIAL", "TOKEN"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
