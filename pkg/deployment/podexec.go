package deployment

import (
	"context"
	"io"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
)

// ErrCommandFailed is returned for command executions with an exit code > 0
var ErrCommandFailed = errors.New("command failed")

// podExec defines a command that will be executed in a running Pod.
// ContainerName is optional, the first container is taken when empty.
type podExec struct {
	Kube          kubernetes.Interface
	RestCfg       *rest.Config
	PodName       string
	PodNamespace  string
	ContainerName string
	Args          []string
	In            io.Reader
	Out           io.Writer
	Err           io.Writer
	TTY           bool
}

// run executes a command in a pod the way `kubectl exec` does: a POST request is made to the
// `exec` subresource of the v1/pods endpoint and the streams are attached over SPDY.
func (pe *podExec) run(ctx context.Context) error {
	req := pe.Kube.CoreV1().RESTClient().
		Post().
		Resource("pods").
		Name(pe.PodName).
		Namespace(pe.PodNamespace).
		SubResource("exec")

	req.VersionedParams(&corev1.PodExecOptions{
		Stdin:     pe.In != nil,
		Stdout:    pe.Out != nil,
		Stderr:    pe.Err != nil,
		TTY:       pe.TTY,
		Container: pe.ContainerName,
		Command:   pe.Args,
	}, scheme.ParameterCodec)

	exec, err := remotecommand.NewSPDYExecutor(pe.RestCfg, "POST", req.URL())
	if err != nil {
		return err
	}

	err = exec.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  pe.In,
		Stdout: pe.Out,
		Stderr: pe.Err,
		Tty:    pe.TTY,
	})
	if err != nil {
		return errors.Wrapf(ErrCommandFailed, "%s in %s/%s: %v", pe.Args, pe.PodNamespace, pe.PodName, err)
	}
	return nil
}

// HasCommandFailed returns true if a command executed in an instance returned an exit code > 0
func HasCommandFailed(err error) bool {
	return err != nil && errors.Is(err, ErrCommandFailed)
}
