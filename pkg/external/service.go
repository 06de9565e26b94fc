package external

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
)

// service describes a single-container supporting service.
type service struct {
	name  string
	kind  deployment.Kind
	image string
	port  int32
	env   map[string]string
}

func (s service) objects() (*appsv1.Deployment, *corev1.Service) {
	replicas := int32(1)
	podLabels := map[string]string{"app": s.name}

	var env []corev1.EnvVar
	for _, k := range sortedKeys(s.env) {
		env = append(env, corev1.EnvVar{Name: k, Value: s.env[k]})
	}

	dep := &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{Name: s.name, Labels: podLabels},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: podLabels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: podLabels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  s.name,
						Image: s.image,
						Env:   env,
						Ports: []corev1.ContainerPort{{ContainerPort: s.port}},
					}},
				},
			},
		},
	}
	svc := &corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{Name: s.name, Labels: podLabels},
		Spec: corev1.ServiceSpec{
			Selector: podLabels,
			Ports:    []corev1.ServicePort{{Port: s.port, TargetPort: intstr.FromInt32(s.port)}},
		},
	}
	return dep, svc
}

// deploy submits the service into the project and returns its deployment.
func (s service) deploy(ctx context.Context, p *project.Project, opts deployment.Options) (*deployment.KubeDeployment, error) {
	dep, svc := s.objects()
	if err := p.Apply(ctx, dep, svc); err != nil {
		return nil, fmt.Errorf("failed to deploy %s: %v", s.name, err)
	}
	opts.Name = s.name
	opts.Kind = s.kind
	opts.ServiceName = s.name
	return deployment.New(p.Clients, p.Name, opts, p.Logger), nil
}

// host is the cluster-internal address of the service.
func (s service) host(namespace string) string {
	return fmt.Sprintf("%s.%s.svc", s.name, namespace)
}
