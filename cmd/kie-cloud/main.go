package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/kiegroup/kie-cloud-tests/pkg/cmd"
	_ "github.com/kiegroup/kie-cloud-tests/pkg/scenario/apb"
	_ "github.com/kiegroup/kie-cloud-tests/pkg/scenario/operator"
	_ "github.com/kiegroup/kie-cloud-tests/pkg/scenario/templates"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.NewRootCmd(afero.NewOsFs(), os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(-1)
	}
}
