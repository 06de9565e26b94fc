// Package project manages the isolated namespace every scenario is deployed into.
package project

import (
	"context"
	"fmt"
	"sort"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/wait"
)

// ScenarioLabel marks namespaces created by the harness.
const ScenarioLabel = "kie-cloud-tests/scenario"

// Project is one namespace owned by a scenario run.
type Project struct {
	Name    string
	Clients *kube.Clients
	Logger  log.Logger
}

// Name generates a namespace name of the form "<prefix>-<petname>". The prefix is optional.
func Name(prefix string) string {
	name := petname.Generate(2, "-")
	if prefix == "" {
		return name
	}
	return fmt.Sprintf("%s-%s", prefix, name)
}

// Create creates a fresh namespace with a generated name.
func Create(ctx context.Context, clients *kube.Clients, prefix string, logger log.Logger) (*Project, error) {
	for attempt := 0; attempt < 5; attempt++ {
		name := Name(prefix)
		logger.Log("Creating namespace:", name)

		err := clients.Client.Create(ctx, &corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{
				Name:   name,
				Labels: map[string]string{ScenarioLabel: "true"},
			},
			TypeMeta: metav1.TypeMeta{
				Kind: "Namespace",
			},
		})
		if k8serrors.IsAlreadyExists(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create namespace %s: %v", name, err)
		}
		return Open(clients, name, logger), nil
	}
	return nil, fmt.Errorf("failed to find a free namespace name with prefix %q", prefix)
}

// Open returns a Project for an existing namespace.
func Open(clients *kube.Clients, name string, logger log.Logger) *Project {
	return &Project{Name: name, Clients: clients, Logger: logger.WithPrefix(name)}
}

// Exists reports whether the namespace is present and not terminating.
func (p *Project) Exists(ctx context.Context) (bool, error) {
	ns := &corev1.Namespace{}
	err := p.Clients.Client.Get(ctx, client.ObjectKey{Name: p.Name}, ns)
	if k8serrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ns.DeletionTimestamp == nil, nil
}

// Delete deletes the namespace. A namespace that is already gone is not an error.
func (p *Project) Delete(ctx context.Context) error {
	p.Logger.Log("Deleting namespace:", p.Name)

	err := p.Clients.Client.Delete(ctx, &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: p.Name,
		},
		TypeMeta: metav1.TypeMeta{
			Kind: "Namespace",
		},
	})
	if err != nil && !k8serrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete namespace %s: %v", p.Name, err)
	}
	return nil
}

// DeleteAndWait deletes the namespace and waits until the API server no longer returns it.
func (p *Project) DeleteAndWait(ctx context.Context, timeout time.Duration) error {
	if err := p.Delete(ctx); err != nil {
		return err
	}
	return wait.Until(ctx, timeout, 250*time.Millisecond, func(ctx context.Context) (bool, error) {
		err := p.Clients.Client.Get(ctx, client.ObjectKey{Name: p.Name}, &corev1.Namespace{})
		if k8serrors.IsNotFound(err) {
			return true, nil
		}
		return false, err
	})
}

// Apply submits objects into the namespace.
func (p *Project) Apply(ctx context.Context, objs ...client.Object) error {
	return kube.Apply(ctx, p.Clients.Client, p.Name, objs...)
}

// ApplyManifest decodes a multi-document YAML manifest and submits it into the namespace.
func (p *Project) ApplyManifest(ctx context.Context, manifest []byte) ([]*unstructured.Unstructured, error) {
	objs, err := kube.DecodeYAML(manifest)
	if err != nil {
		return nil, err
	}
	submit := make([]client.Object, 0, len(objs))
	for _, o := range objs {
		submit = append(submit, o)
	}
	if err := p.Apply(ctx, submit...); err != nil {
		return nil, err
	}
	return objs, nil
}

// CreateSecret stores data as an Opaque secret in the namespace.
func (p *Project) CreateSecret(ctx context.Context, name string, data map[string]string) error {
	return p.Apply(ctx, &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Type:       corev1.SecretTypeOpaque,
		StringData: data,
	})
}

type byLastTimestamp []corev1.Event

func (a byLastTimestamp) Len() int      { return len(a) }
func (a byLastTimestamp) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a byLastTimestamp) Less(i, j int) bool {
	return eventTime(a[i]).Before(eventTime(a[j]))
}

func eventTime(e corev1.Event) time.Time {
	if !e.LastTimestamp.IsZero() {
		return e.LastTimestamp.Time
	}
	if !e.EventTime.IsZero() {
		return e.EventTime.Time
	}
	return e.FirstTimestamp.Time
}

// Events returns every event of the namespace, oldest last-seen first.
func (p *Project) Events(ctx context.Context) ([]corev1.Event, error) {
	list := &corev1.EventList{}
	if err := p.Clients.Client.List(ctx, list, client.InNamespace(p.Name)); err != nil {
		return nil, fmt.Errorf("failed to list events of %s: %v", p.Name, err)
	}
	sort.Stable(byLastTimestamp(list.Items))
	return list.Items, nil
}
