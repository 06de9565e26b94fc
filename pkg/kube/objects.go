// Package kube contains the Kubernetes plumbing shared by the backends: client wiring,
// manifest decoding and idempotent object submission.
package kube

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ResourceID returns a human readable identifier indicating the object kind, name, and namespace.
func ResourceID(obj runtime.Object) string {
	m, err := meta.Accessor(obj)
	if err != nil {
		return ""
	}

	gvk := obj.GetObjectKind().GroupVersionKind()

	return fmt.Sprintf("%s:%s/%s", gvk.Kind, m.GetNamespace(), m.GetName())
}

// ObjectKey returns an instantiated ObjectKey for the provided object.
func ObjectKey(obj runtime.Object) client.ObjectKey {
	m, _ := meta.Accessor(obj)
	return client.ObjectKey{
		Name:      m.GetName(),
		Namespace: m.GetNamespace(),
	}
}

// DecodeYAML splits a multi-document manifest into unstructured objects. Empty documents are skipped.
func DecodeYAML(manifest []byte) ([]*unstructured.Unstructured, error) {
	yamlReader := yaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(manifest)))

	objects := []*unstructured.Unstructured{}

	for {
		data, err := yamlReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		obj := &unstructured.Unstructured{}
		decoder := yaml.NewYAMLOrJSONDecoder(bytes.NewBuffer(data), len(data))
		if err = decoder.Decode(obj); err != nil {
			return nil, fmt.Errorf("decoding chunk %q failed: %v", data, err)
		}
		if len(obj.Object) == 0 {
			continue
		}

		objects = append(objects, obj)
	}

	return objects, nil
}

// CreateOrUpdate creates obj, or updates the existing object with the same key to match it.
// Conflicts are retried.
func CreateOrUpdate(ctx context.Context, c client.Client, obj client.Object) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		actual := obj.DeepCopyObject().(client.Object)

		err := c.Get(ctx, ObjectKey(actual), actual)
		if k8serrors.IsNotFound(err) {
			return c.Create(ctx, obj)
		}
		if err != nil {
			return err
		}

		obj.SetResourceVersion(actual.GetResourceVersion())
		return c.Update(ctx, obj)
	})
}

// Apply submits every object into namespace, overriding whatever namespace the manifests carry.
func Apply(ctx context.Context, c client.Client, namespace string, objs ...client.Object) error {
	for _, obj := range objs {
		obj.SetNamespace(namespace)
		if err := CreateOrUpdate(ctx, c, obj); err != nil {
			return fmt.Errorf("failed to apply %s: %v", ResourceID(obj), err)
		}
	}
	return nil
}
