package operator

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

// serverReplicas scales one entry of spec.objects.servers of a KieApp.
type serverReplicas struct {
	client client.Client
	key    client.ObjectKey
	server string
}

func (s *serverReplicas) get(ctx context.Context) (*unstructured.Unstructured, []interface{}, int, error) {
	app := &unstructured.Unstructured{}
	app.SetGroupVersionKind(KieAppGVK)
	if err := s.client.Get(ctx, s.key, app); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to get KieApp %s: %w", s.key, err)
	}
	servers, _, err := unstructured.NestedSlice(app.Object, "spec", "objects", "servers")
	if err != nil {
		return nil, nil, 0, err
	}
	for i, v := range servers {
		if server, ok := v.(map[string]interface{}); ok && server["name"] == s.server {
			return app, servers, i, nil
		}
	}
	return nil, nil, 0, fmt.Errorf("KieApp %s has no server %s", s.key, s.server)
}

func (s *serverReplicas) Replicas(ctx context.Context) (int, error) {
	_, servers, i, err := s.get(ctx)
	if err != nil {
		return 0, err
	}
	return deployment.NestedReplicas(servers[i].(map[string]interface{}), 1, "replicas")
}

func (s *serverReplicas) Scale(ctx context.Context, replicas int) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		app, servers, i, err := s.get(ctx)
		if err != nil {
			return err
		}
		servers[i].(map[string]interface{})["replicas"] = int64(replicas)
		if err := unstructured.SetNestedSlice(app.Object, servers, "spec", "objects", "servers"); err != nil {
			return err
		}
		return s.client.Update(ctx, app)
	})
}

// replicaOwner returns how a component scales: the operator reconciles its replicas from the KieApp.
func replicaOwner(c client.Client, app client.ObjectKey, component scenario.Component) deployment.ReplicaOwner {
	field := func(object string) deployment.ReplicaOwner {
		return &deployment.FieldReplicas{
			Client:  c,
			GVK:     KieAppGVK,
			Key:     app,
			Path:    []string{"spec", "objects", object, "replicas"},
			Default: 1,
		}
	}
	switch component.Kind {
	case deployment.Workbench, deployment.WorkbenchMonitoring:
		return field("console")
	case deployment.SmartRouter:
		return field("smartRouter")
	}
	return &serverReplicas{client: c, key: app, server: component.Name}
}
