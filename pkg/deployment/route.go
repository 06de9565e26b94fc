package deployment

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// RouterTimeoutAnnotation sets the HAProxy server timeout of an OpenShift route.
	RouterTimeoutAnnotation = "haproxy.router.openshift.io/timeout"
	// RouterBalanceAnnotation sets the HAProxy load balancing algorithm of an OpenShift route.
	RouterBalanceAnnotation = "haproxy.router.openshift.io/balance"
)

// RouteGVK is the OpenShift route kind.
var RouteGVK = schema.GroupVersionKind{Group: "route.openshift.io", Version: "v1", Kind: "Route"}

var balances = map[string]bool{"roundrobin": true, "leastconn": true, "source": true, "random": true}

func (d *KubeDeployment) SetRouterTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("router timeout must be positive, got %s", timeout)
	}
	v := fmt.Sprintf("%ds", int64(timeout/time.Second))
	return d.annotateRoute(ctx, RouterTimeoutAnnotation, &v)
}

func (d *KubeDeployment) ResetRouterTimeout(ctx context.Context) error {
	return d.annotateRoute(ctx, RouterTimeoutAnnotation, nil)
}

func (d *KubeDeployment) SetRouterBalance(ctx context.Context, balance string) error {
	if !balances[balance] {
		return fmt.Errorf("unknown router balance %q", balance)
	}
	return d.annotateRoute(ctx, RouterBalanceAnnotation, &balance)
}

// annotateRoute sets annotation key of the deployment's route to value, or removes it when value is nil.
func (d *KubeDeployment) annotateRoute(ctx context.Context, key string, value *string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		route := &unstructured.Unstructured{}
		route.SetGroupVersionKind(RouteGVK)
		if err := d.clients.Client.Get(ctx, client.ObjectKey{Namespace: d.namespace, Name: d.opts.RouteName}, route); err != nil {
			return fmt.Errorf("failed to get route %s: %v", d.opts.RouteName, err)
		}

		annotations := route.GetAnnotations()
		if annotations == nil {
			annotations = map[string]string{}
		}
		if value == nil {
			delete(annotations, key)
		} else {
			annotations[key] = *value
		}
		route.SetAnnotations(annotations)
		return d.clients.Client.Update(ctx, route)
	})
}
