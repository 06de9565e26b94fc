// Package deployment models the services a scenario runs and the pods backing them.
package deployment

import (
	"context"
	"io"
	"time"

	corev1 "k8s.io/api/core/v1"
)

// Kind identifies the logical service a Deployment runs.
type Kind string

const (
	Workbench           Kind = "workbench"
	WorkbenchMonitoring Kind = "monitoring"
	KieServer           Kind = "kie-server"
	SmartRouter         Kind = "smart-router"
	Controller          Kind = "controller"
	Database            Kind = "database"
	GitServer           Kind = "git-server"
	MavenRepository     Kind = "maven-repository"
	LDAP                Kind = "ldap"
	SSO                 Kind = "sso"
	Kafka               Kind = "kafka"
	Generic             Kind = "generic"
)

// Deployment is one running service of a scenario.
type Deployment interface {
	Name() string
	Kind() Kind
	Namespace() string
	ServiceName() string
	// URL is the base URL clients use to reach the service, empty for services without HTTP access.
	URL() string
	Username() string
	Password() string

	Scale(ctx context.Context, replicas int) error
	Replicas(ctx context.Context) (int, error)
	// WaitForScale blocks until exactly the desired number of pods are ready and running.
	WaitForScale(ctx context.Context) error
	// WaitForScheduled blocks until the desired number of pods are scheduled to a node.
	WaitForScheduled(ctx context.Context) error
	Instances(ctx context.Context) ([]Instance, error)
	DeleteInstances(ctx context.Context, instances ...Instance) error
	IsReady(ctx context.Context) (bool, error)

	SetRouterTimeout(ctx context.Context, timeout time.Duration) error
	ResetRouterTimeout(ctx context.Context) error
	SetRouterBalance(ctx context.Context, balance string) error
	SetResources(ctx context.Context, resources corev1.ResourceRequirements) error
}

// Instance is one pod backing a Deployment.
type Instance interface {
	Name() string
	Namespace() string
	// Logs streams the logs of the instance. With follow set the stream ends when the pod terminates.
	Logs(ctx context.Context, follow bool) (io.ReadCloser, error)
	// Exec runs a command in the instance and returns its combined output.
	Exec(ctx context.Context, command ...string) (string, error)
}

// Of returns the deployments of the given kind, preserving order.
func Of(deployments []Deployment, kind Kind) []Deployment {
	var out []Deployment
	for _, d := range deployments {
		if d.Kind() == kind {
			out = append(out, d)
		}
	}
	return out
}
