package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/git"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

// lister is the read side of the pluggable registries listed by providers.
type lister interface {
	Kind() string
	ConfigKey() string
	Names() []string
}

func newProvidersCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the registered cloud backends, git providers and database drivers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printProviders(out, scenario.Factories, git.Providers, external.Drivers)
			return nil
		},
	}
}

func printProviders(out io.Writer, registries ...lister) {
	table := uitable.New()
	table.AddRow("KIND", "CONFIG KEY", "NAMES")
	for _, r := range registries {
		names := r.Names()
		if len(names) == 0 {
			names = []string{"<none>"}
		}
		table.AddRow(r.Kind(), r.ConfigKey(), strings.Join(names, ", "))
	}
	fmt.Fprintln(out, table)
}
