package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kiegroup/kie-cloud-tests/pkg/git"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

const undeployExample = `  # Delete the namespace recorded by the last deploy
  kie-cloud undeploy

  # Delete a namespace left behind by an interrupted test run, without asking
  kie-cloud undeploy kie-cloud-happy-panda --yes`

type undeployCmd struct {
	settings   *Settings
	fs         afero.Fs
	out        io.Writer
	outputFile string
	yes        bool

	confirm func(label string) bool
}

func newUndeployCmd(settings *Settings, fs afero.Fs, out io.Writer) *cobra.Command {
	u := &undeployCmd{settings: settings, fs: fs, out: out, confirm: confirm}

	cmd := &cobra.Command{
		Use:     "undeploy [namespace]",
		Short:   "Delete the namespace of a deployed scenario.",
		Long:    "Delete the namespace named as argument, or the one recorded in the deploy output file.",
		Example: undeployExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return u.run(cmd.Context(), args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&u.outputFile, "output", "o", DefaultOutputFile, "Deploy output file naming the namespace to delete.")
	f.BoolVarP(&u.yes, "yes", "y", false, "Do not ask for confirmation.")

	return cmd
}

func (u *undeployCmd) run(ctx context.Context, args []string) error {
	recorded := &DeployOutput{}
	fromFile := len(args) == 0
	if fromFile {
		var err error
		if recorded, err = readOutput(u.fs, u.outputFile); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("no namespace given and %s does not exist", u.outputFile)
			}
			return err
		}
	} else {
		recorded.Namespace = args[0]
	}
	if recorded.Namespace == "" {
		return fmt.Errorf("%s names no namespace", u.outputFile)
	}

	if !u.yes && !u.confirm(fmt.Sprintf("Delete namespace %s", recorded.Namespace)) {
		fmt.Fprintln(u.out, "Aborted")
		return nil
	}

	env, err := u.settings.Environment()
	if err != nil {
		return err
	}
	factory, err := scenario.ResolveFactory(env)
	if err != nil {
		return err
	}
	if err := factory.DeleteNamespace(ctx, recorded.Namespace); err != nil {
		return err
	}
	fmt.Fprintf(u.out, "Namespace %s deleted\n", recorded.Namespace)

	if recorded.GitRepository != "" {
		provider, err := git.New(env.Config)
		if err == nil {
			err = provider.DeleteRepository(ctx, recorded.GitRepository)
		}
		if err != nil {
			env.Logger.Errorf("failed to delete git repository %s: %v", recorded.GitRepository, err)
		}
	}
	if fromFile {
		return u.fs.Remove(u.outputFile)
	}
	return nil
}

// confirm prompts for a Y/N answer on the terminal.
func confirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	result, err := prompt.Run()
	if err != nil {
		return false
	}
	return strings.ToLower(result) == "y"
}
