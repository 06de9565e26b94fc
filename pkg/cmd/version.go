package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kiegroup/kie-cloud-tests/pkg/version"
)

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kie-cloud version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			fmt.Fprintf(out, "kie-cloud version: %s\n", info)
			fmt.Fprintf(out, "commit: %s, built: %s, %s %s\n", info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
			if info.KubernetesClientVersion != "" {
				fmt.Fprintf(out, "kubernetes client: %s\n", info.KubernetesClientVersion)
			}
			return nil
		},
	}
}
