package deployment

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/wait"
)

// Workload names the Kubernetes object that owns the pods of a deployment.
type Workload string

const (
	// AppsDeployment is an apps/v1 Deployment.
	AppsDeployment Workload = "Deployment"
	// StatefulSet is an apps/v1 StatefulSet.
	StatefulSet Workload = "StatefulSet"
	// Pods are managed by an operator and selected by labels only. They scale through the
	// Owner of the deployment.
	Pods Workload = "Pods"
)

// Options describe a service deployed into a namespace.
type Options struct {
	// Name of the workload object.
	Name        string
	Kind        Kind
	ServiceName string
	RouteName   string
	URL         string
	Username    string
	Password    string

	Workload Workload
	// Selector selects the pods of a Pods workload.
	Selector map[string]string
	// Replicas is the expected pod count of a Pods workload without Owner.
	Replicas int
	// Owner scales a Pods workload.
	Owner ReplicaOwner

	Timeout  time.Duration
	Interval time.Duration
}

// KubeDeployment implements Deployment on top of a Kubernetes workload.
type KubeDeployment struct {
	opts      Options
	namespace string
	clients   *kube.Clients
	logger    log.Logger
}

// New returns the Deployment described by opts in namespace.
func New(clients *kube.Clients, namespace string, opts Options, logger log.Logger) *KubeDeployment {
	if opts.Workload == "" {
		opts.Workload = AppsDeployment
	}
	if opts.Kind == "" {
		opts.Kind = Generic
	}
	if opts.ServiceName == "" {
		opts.ServiceName = opts.Name
	}
	if opts.RouteName == "" {
		opts.RouteName = opts.ServiceName
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.Interval <= 0 {
		opts.Interval = wait.DefaultInterval
	}
	return &KubeDeployment{opts: opts, namespace: namespace, clients: clients, logger: logger.WithPrefix(opts.Name)}
}

func (d *KubeDeployment) Name() string        { return d.opts.Name }
func (d *KubeDeployment) Kind() Kind          { return d.opts.Kind }
func (d *KubeDeployment) Namespace() string   { return d.namespace }
func (d *KubeDeployment) ServiceName() string { return d.opts.ServiceName }
func (d *KubeDeployment) URL() string         { return d.opts.URL }
func (d *KubeDeployment) Username() string    { return d.opts.Username }
func (d *KubeDeployment) Password() string    { return d.opts.Password }

func (d *KubeDeployment) String() string {
	return fmt.Sprintf("%s %s/%s", d.opts.Kind, d.namespace, d.opts.Name)
}

func (d *KubeDeployment) key() client.ObjectKey {
	return client.ObjectKey{Namespace: d.namespace, Name: d.opts.Name}
}

func (d *KubeDeployment) workload(ctx context.Context) (client.Object, error) {
	var obj client.Object
	switch d.opts.Workload {
	case AppsDeployment:
		obj = &appsv1.Deployment{}
	case StatefulSet:
		obj = &appsv1.StatefulSet{}
	default:
		return nil, &failure.UsageError{Op: "workload of " + d.opts.Name, Reason: fmt.Sprintf("%s workloads have no owning object", d.opts.Workload)}
	}
	if err := d.clients.Client.Get(ctx, d.key(), obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (d *KubeDeployment) selector(ctx context.Context) (labels.Selector, error) {
	if d.opts.Workload == Pods {
		return labels.SelectorFromSet(d.opts.Selector), nil
	}
	obj, err := d.workload(ctx)
	if err != nil {
		return nil, err
	}
	var ls *metav1.LabelSelector
	switch w := obj.(type) {
	case *appsv1.Deployment:
		ls = w.Spec.Selector
	case *appsv1.StatefulSet:
		ls = w.Spec.Selector
	}
	if ls == nil {
		return nil, fmt.Errorf("%s has no pod selector", d)
	}
	return metav1.LabelSelectorAsSelector(ls)
}

func (d *KubeDeployment) Replicas(ctx context.Context) (int, error) {
	if d.opts.Workload == Pods {
		if d.opts.Owner != nil {
			return d.opts.Owner.Replicas(ctx)
		}
		return d.opts.Replicas, nil
	}
	obj, err := d.workload(ctx)
	if err != nil {
		return 0, err
	}
	var r *int32
	switch w := obj.(type) {
	case *appsv1.Deployment:
		r = w.Spec.Replicas
	case *appsv1.StatefulSet:
		r = w.Spec.Replicas
	}
	if r == nil {
		return 1, nil
	}
	return int(*r), nil
}

func (d *KubeDeployment) Scale(ctx context.Context, replicas int) error {
	if d.opts.Workload == Pods {
		if d.opts.Owner == nil {
			return &failure.NotImplementedError{Backend: string(Pods) + " workload", Feature: "scaling " + d.opts.Name}
		}
		d.logger.Logf("scaling to %d replicas", replicas)
		return d.opts.Owner.Scale(ctx, replicas)
	}
	d.logger.Logf("scaling to %d replicas", replicas)
	n := int32(replicas)
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		obj, err := d.workload(ctx)
		if err != nil {
			return err
		}
		switch w := obj.(type) {
		case *appsv1.Deployment:
			w.Spec.Replicas = &n
		case *appsv1.StatefulSet:
			w.Spec.Replicas = &n
		}
		return d.clients.Client.Update(ctx, obj)
	})
}

func (d *KubeDeployment) counts(ctx context.Context) (podCounts, error) {
	sel, err := d.selector(ctx)
	if err != nil {
		return podCounts{}, err
	}
	pods, err := listPods(ctx, d.clients.Client, d.namespace, sel)
	if err != nil {
		return podCounts{}, err
	}
	return countPods(pods), nil
}

func (d *KubeDeployment) waitForPods(ctx context.Context, condition string, done func(expected int, c podCounts) (int, bool)) error {
	expected, err := d.Replicas(ctx)
	if err != nil {
		return err
	}
	observed := 0
	err = wait.Until(ctx, d.opts.Timeout, d.opts.Interval, func(ctx context.Context) (bool, error) {
		c, err := d.counts(ctx)
		if err != nil {
			d.logger.Debugf("unable to count pods: %v", err)
			return false, nil
		}
		var ok bool
		observed, ok = done(expected, c)
		return ok, nil
	})
	if failure.IsTimeout(err) {
		return &failure.DeploymentTimeoutError{
			Subject:   d.opts.Name,
			Condition: condition,
			Expected:  expected,
			Observed:  observed,
			Timeout:   d.opts.Timeout,
		}
	}
	return err
}

func (d *KubeDeployment) WaitForScale(ctx context.Context) error {
	return d.waitForPods(ctx, "pods to be ready", func(expected int, c podCounts) (int, bool) {
		return c.ready, c.total == expected && c.ready == expected && c.running == expected
	})
}

func (d *KubeDeployment) WaitForScheduled(ctx context.Context) error {
	return d.waitForPods(ctx, "pods to be scheduled", func(expected int, c podCounts) (int, bool) {
		return c.scheduled, c.scheduled == expected
	})
}

func (d *KubeDeployment) Instances(ctx context.Context) ([]Instance, error) {
	sel, err := d.selector(ctx)
	if err != nil {
		return nil, err
	}
	pods, err := listPods(ctx, d.clients.Client, d.namespace, sel)
	if err != nil {
		return nil, err
	}
	out := make([]Instance, 0, len(pods))
	for _, p := range pods {
		out = append(out, NewPodInstance(d.clients, d.namespace, p.Name))
	}
	return out, nil
}

func (d *KubeDeployment) DeleteInstances(ctx context.Context, instances ...Instance) error {
	for _, i := range instances {
		d.logger.Logf("deleting instance %s", i.Name())
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: i.Name(), Namespace: i.Namespace()}}
		if err := d.clients.Client.Delete(ctx, pod); err != nil && !k8serrors.IsNotFound(err) {
			return fmt.Errorf("failed to delete instance %s: %v", i.Name(), err)
		}
	}
	return nil
}

// IsReady reports whether both the service and the workload of the deployment exist.
func (d *KubeDeployment) IsReady(ctx context.Context) (bool, error) {
	if d.opts.ServiceName != "" {
		err := d.clients.Client.Get(ctx, client.ObjectKey{Namespace: d.namespace, Name: d.opts.ServiceName}, &corev1.Service{})
		if k8serrors.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	if d.opts.Workload == Pods {
		return true, nil
	}
	_, err := d.workload(ctx)
	if k8serrors.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (d *KubeDeployment) SetResources(ctx context.Context, resources corev1.ResourceRequirements) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		obj, err := d.workload(ctx)
		if err != nil {
			return err
		}
		var spec *corev1.PodSpec
		switch w := obj.(type) {
		case *appsv1.Deployment:
			spec = &w.Spec.Template.Spec
		case *appsv1.StatefulSet:
			spec = &w.Spec.Template.Spec
		}
		for i := range spec.Containers {
			spec.Containers[i].Resources = *resources.DeepCopy()
		}
		return d.clients.Client.Update(ctx, obj)
	})
}
