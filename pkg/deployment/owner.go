package deployment

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ReplicaOwner reads and changes the replica count of a Pods workload through the object
// owning its pods, usually a custom resource reconciled by an operator.
type ReplicaOwner interface {
	Replicas(ctx context.Context) (int, error)
	Scale(ctx context.Context, replicas int) error
}

// FieldReplicas keeps the replica count in an integer field of an unstructured object.
type FieldReplicas struct {
	Client client.Client
	GVK    schema.GroupVersionKind
	Key    client.ObjectKey
	// Path of the field, spec.replicas when empty.
	Path []string
	// Default is reported while the field is unset.
	Default int
}

func (f *FieldReplicas) path() []string {
	if len(f.Path) == 0 {
		return []string{"spec", "replicas"}
	}
	return f.Path
}

func (f *FieldReplicas) get(ctx context.Context) (*unstructured.Unstructured, error) {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(f.GVK)
	if err := f.Client.Get(ctx, f.Key, obj); err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", f.GVK.Kind, f.Key, err)
	}
	return obj, nil
}

func (f *FieldReplicas) Replicas(ctx context.Context) (int, error) {
	obj, err := f.get(ctx)
	if err != nil {
		return 0, err
	}
	return NestedReplicas(obj.Object, f.Default, f.path()...)
}

func (f *FieldReplicas) Scale(ctx context.Context, replicas int) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		obj, err := f.get(ctx)
		if err != nil {
			return err
		}
		if err := unstructured.SetNestedField(obj.Object, int64(replicas), f.path()...); err != nil {
			return err
		}
		return f.Client.Update(ctx, obj)
	})
}

// NestedReplicas reads the replica count at path, def when the field is unset.
func NestedReplicas(obj map[string]interface{}, def int, path ...string) (int, error) {
	v, found, err := unstructured.NestedFieldNoCopy(obj, path...)
	if err != nil {
		return 0, err
	}
	if !found || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("%s is not a replica count: %v", strings.Join(path, "."), v)
}
