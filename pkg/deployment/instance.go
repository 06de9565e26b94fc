package deployment

import (
	"context"
	"fmt"
	"io"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
)

// PodInstance is an Instance backed by a pod.
type PodInstance struct {
	clients   *kube.Clients
	name      string
	namespace string
	container string
}

// NewPodInstance returns the Instance for the pod name in namespace.
func NewPodInstance(clients *kube.Clients, namespace, name string) *PodInstance {
	return &PodInstance{clients: clients, name: name, namespace: namespace}
}

func (i *PodInstance) Name() string      { return i.name }
func (i *PodInstance) Namespace() string { return i.namespace }

func (i *PodInstance) Logs(ctx context.Context, follow bool) (io.ReadCloser, error) {
	opts := &corev1.PodLogOptions{Follow: follow, Container: i.container}
	stream, err := i.clients.Kube.CoreV1().Pods(i.namespace).GetLogs(i.name, opts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stream logs of %s/%s: %v", i.namespace, i.name, err)
	}
	return stream, nil
}

func (i *PodInstance) Exec(ctx context.Context, command ...string) (string, error) {
	out := strings.Builder{}
	pe := podExec{
		Kube:          i.clients.Kube,
		RestCfg:       i.clients.Config,
		PodName:       i.name,
		PodNamespace:  i.namespace,
		ContainerName: i.container,
		Args:          command,
		Out:           &out,
		Err:           &out,
	}
	err := pe.run(ctx)
	return out.String(), err
}

// NamespaceInstances lists every pod of a namespace as instances, the source the log
// collector discovers new instances from.
type NamespaceInstances struct {
	Clients   *kube.Clients
	Namespace string
	Selector  labels.Selector
}

// Instances returns every pod past Pending. Terminated pods stay listed so a short lived pod
// still gets its log collected.
func (n NamespaceInstances) Instances(ctx context.Context) ([]Instance, error) {
	pods, err := listPods(ctx, n.Clients.Client, n.Namespace, n.Selector)
	if err != nil {
		return nil, err
	}
	out := make([]Instance, 0, len(pods))
	for _, p := range pods {
		if p.Status.Phase == corev1.PodPending {
			continue
		}
		out = append(out, NewPodInstance(n.Clients, n.Namespace, p.Name))
	}
	return out, nil
}

func listPods(ctx context.Context, c client.Client, namespace string, selector labels.Selector) ([]corev1.Pod, error) {
	opts := []client.ListOption{client.InNamespace(namespace)}
	if selector != nil {
		opts = append(opts, client.MatchingLabelsSelector{Selector: selector})
	}
	list := &corev1.PodList{}
	if err := c.List(ctx, list, opts...); err != nil {
		return nil, fmt.Errorf("unable to list pods in %s: %v", namespace, err)
	}
	return list.Items, nil
}
