// Package cmd implements the kie-cloud command line.
package cmd

import (
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kiegroup/kie-cloud-tests/pkg/version"
)

const rootExample = `
	# Deploy a workbench with one Kie Server and record it in kie-cloud-deployment.yaml
	kie-cloud deploy --backend templates

	# Deploy the components described in a settings file
	kie-cloud deploy --settings scenario.yaml

	# Show what a scenario would deploy
	kie-cloud describe --type workbench-smart-router-two-kie-servers

	# Delete the namespace recorded by the last deploy
	kie-cloud undeploy

	# List the registered backends, git providers and database drivers
	kie-cloud providers
`

// NewRootCmd creates the kie-cloud command. Files are read and written through fs.
func NewRootCmd(fs afero.Fs, out io.Writer) *cobra.Command {
	return newRootCmd(NewSettings(), fs, out)
}

func newRootCmd(settings *Settings, fs afero.Fs, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kie-cloud",
		Short: "Deploys Kie cloud scenarios into a Kubernetes or OpenShift cluster.",
		Long: `
kie-cloud deploys the platform services of a test scenario (workbench, Kie Servers, smart router,
controller and their external dependencies) into a fresh namespace, waits until they are ready
and tears them down again.
`,
		Example:      rootExample,
		Version:      version.Get().GitVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return settings.Load(cmd.Flags())
		},
	}
	cmd.SetOut(out)
	settings.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newDeployCmd(settings, fs, out))
	cmd.AddCommand(newUndeployCmd(settings, fs, out))
	cmd.AddCommand(newDescribeCmd(settings, fs, out))
	cmd.AddCommand(newProvidersCmd(out))
	cmd.AddCommand(newVersionCmd(out))

	return cmd
}
