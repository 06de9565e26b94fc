// Package fake provides in-memory clusters for tests. Workloads created in a fake cluster
// get their pods immediately, all of them scheduled, running and ready.
package fake

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apiextensionsfake "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset/fake"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	kubefake "k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
	crfake "sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
)

// NodeName is the node every fake pod is scheduled to.
const NodeName = "fake-node"

var clusterScoped = map[string]bool{
	"Namespace":                true,
	"Node":                     true,
	"PersistentVolume":         true,
	"CustomResourceDefinition": true,
	"ClusterRole":              true,
	"ClusterRoleBinding":       true,
	"StorageClass":             true,
}

// CustomResources are the namespaced custom resource kinds the backends create.
var CustomResources = []schema.GroupVersionKind{
	{Group: "route.openshift.io", Version: "v1", Kind: "Route"},
	{Group: "apps.openshift.io", Version: "v1", Kind: "DeploymentConfig"},
	{Group: "app.kiegroup.org", Version: "v2", Kind: "KieApp"},
	{Group: "kafka.strimzi.io", Version: "v1beta2", Kind: "Kafka"},
	{Group: "kafka.strimzi.io", Version: "v1beta2", Kind: "KafkaTopic"},
}

// RESTMapper maps every type of kube.Scheme plus CustomResources.
func RESTMapper() meta.RESTMapper {
	mapper := meta.NewDefaultRESTMapper(nil)
	for gvk := range kube.Scheme.AllKnownTypes() {
		if clusterScoped[gvk.Kind] {
			mapper.Add(gvk, meta.RESTScopeRoot)
		} else {
			mapper.Add(gvk, meta.RESTScopeNamespace)
		}
	}
	for _, gvk := range CustomResources {
		mapper.Add(gvk, meta.RESTScopeNamespace)
	}
	return mapper
}

// Clients returns kube.Clients backed entirely by fakes, seeded with objs.
func Clients(objs ...client.Object) *kube.Clients {
	c := crfake.NewClientBuilder().
		WithScheme(kube.Scheme).
		WithRESTMapper(RESTMapper()).
		WithObjects(objs...).
		WithInterceptorFuncs(interceptor.Funcs{
			Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
				if err := c.Create(ctx, obj, opts...); err != nil {
					return err
				}
				return reconcile(ctx, c, obj)
			},
			Update: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.UpdateOption) error {
				if err := c.Update(ctx, obj, opts...); err != nil {
					return err
				}
				return reconcile(ctx, c, obj)
			},
		}).
		Build()

	return &kube.Clients{
		Client:     c,
		Kube:       kubefake.NewSimpleClientset(),
		Extensions: apiextensionsfake.NewSimpleClientset(),
		Config:     &rest.Config{Host: "https://fake.cluster"},
	}
}

// reconcile plays the workload controllers: it creates or deletes pods until a
// Deployment or StatefulSet has exactly its desired replica count.
func reconcile(ctx context.Context, c client.Client, obj client.Object) error {
	gvk := obj.GetObjectKind().GroupVersionKind()
	if gvk.Empty() {
		switch obj.(type) {
		case *appsv1.Deployment:
			gvk = appsv1.SchemeGroupVersion.WithKind("Deployment")
		case *appsv1.StatefulSet:
			gvk = appsv1.SchemeGroupVersion.WithKind("StatefulSet")
		}
	}
	if gvk.Group != appsv1.GroupName {
		return nil
	}

	key := client.ObjectKeyFromObject(obj)
	var (
		replicas int32 = 1
		template corev1.PodTemplateSpec
	)
	switch gvk.Kind {
	case "Deployment":
		d := &appsv1.Deployment{}
		if err := c.Get(ctx, key, d); err != nil {
			return err
		}
		if d.Spec.Replicas != nil {
			replicas = *d.Spec.Replicas
		}
		template = d.Spec.Template
	case "StatefulSet":
		s := &appsv1.StatefulSet{}
		if err := c.Get(ctx, key, s); err != nil {
			return err
		}
		if s.Spec.Replicas != nil {
			replicas = *s.Spec.Replicas
		}
		template = s.Spec.Template
	default:
		return nil
	}

	pods := &corev1.PodList{}
	if err := c.List(ctx, pods, client.InNamespace(key.Namespace), client.MatchingLabels(template.Labels)); err != nil {
		return err
	}
	existing := map[string]bool{}
	for _, p := range pods.Items {
		existing[p.Name] = true
	}

	for i := int32(0); i < replicas; i++ {
		name := fmt.Sprintf("%s-%d", key.Name, i)
		if existing[name] {
			delete(existing, name)
			continue
		}
		if err := createReadyPod(ctx, c, key.Namespace, name, template); err != nil {
			return err
		}
	}
	for name := range existing {
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: key.Namespace}}
		if err := c.Delete(ctx, pod); err != nil {
			return err
		}
	}
	return nil
}

func createReadyPod(ctx context.Context, c client.Client, namespace, name string, template corev1.PodTemplateSpec) error {
	pod := ReadyPod(namespace, name, template.Labels)
	pod.Spec.Containers = template.Spec.Containers
	if len(pod.Spec.Containers) == 0 {
		pod.Spec.Containers = []corev1.Container{{Name: "main", Image: "fake"}}
	}
	status := pod.Status.DeepCopy()
	if err := c.Create(ctx, pod); err != nil {
		return err
	}
	// the status subresource is not written on create
	pod.Status = *status
	if err := c.Status().Update(ctx, pod); err != nil && !k8serrors.IsNotFound(err) {
		return err
	}
	return nil
}

// ReadyPod returns a pod that is scheduled, running and ready.
func ReadyPod(namespace, name string, podLabels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels.Set(podLabels)},
		Spec:       corev1.PodSpec{NodeName: NodeName},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodScheduled, Status: corev1.ConditionTrue},
				{Type: corev1.PodReady, Status: corev1.ConditionTrue},
			},
		},
	}
}

// Deployment returns an apps/v1 Deployment whose pods carry the label app=<name>.
func Deployment(namespace, name string, replicas int32) *appsv1.Deployment {
	podLabels := map[string]string{"app": name}
	return &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: podLabels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: podLabels},
				Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: name, Image: "fake"}}},
			},
		},
	}
}
