package strimzi

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/wait"
)

// Cluster is a Kafka cluster provisioned in a project.
type Cluster struct {
	Name    string
	project *project.Project
}

// Provision submits the Kafka resource built by b into the project.
func Provision(ctx context.Context, p *project.Project, b *KafkaClusterBuilder) (*Cluster, error) {
	kafka, err := b.Build()
	if err != nil {
		return nil, err
	}
	p.Logger.Logf("Creating Kafka cluster %s", kafka.GetName())
	if err := p.Apply(ctx, kafka); err != nil {
		return nil, fmt.Errorf("failed to create Kafka cluster %s: %w", kafka.GetName(), err)
	}
	return &Cluster{Name: kafka.GetName(), project: p}, nil
}

// BootstrapServers is the address of the plain listener inside the cluster.
func (c *Cluster) BootstrapServers() string {
	return fmt.Sprintf("%s-kafka-bootstrap.%s.svc:9092", c.Name, c.project.Name)
}

// Brokers returns the broker StatefulSet the operator creates for the cluster.
func (c *Cluster) Brokers(timeout, interval time.Duration) deployment.Deployment {
	return deployment.New(c.project.Clients, c.project.Name, deployment.Options{
		Name:        c.Name + "-kafka",
		Kind:        deployment.Kafka,
		ServiceName: c.Name + "-kafka-bootstrap",
		URL:         c.BootstrapServers(),
		Workload:    deployment.StatefulSet,
		Timeout:     timeout,
		Interval:    interval,
	}, c.project.Logger)
}

// WaitForReady waits until the operator reports the Kafka resource Ready.
func (c *Cluster) WaitForReady(ctx context.Context, timeout, interval time.Duration) error {
	err := wait.Until(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		kafka := &unstructured.Unstructured{}
		kafka.SetGroupVersionKind(KafkaGVK)
		if err := c.project.Clients.Client.Get(ctx, client.ObjectKey{Namespace: c.project.Name, Name: c.Name}, kafka); err != nil {
			return false, err
		}
		return isReady(kafka), nil
	})
	if failure.IsTimeout(err) {
		return &failure.DeploymentTimeoutError{Subject: c.Name, Condition: "Kafka cluster to be ready", Timeout: timeout}
	}
	return err
}

func isReady(obj *unstructured.Unstructured) bool {
	conditions, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cond["type"] == "Ready" && cond["status"] == "True" {
			return true
		}
	}
	return false
}

// CreateTopic submits a topic of the cluster.
func (c *Cluster) CreateTopic(ctx context.Context, b *KafkaTopicBuilder) error {
	topic, err := b.Build()
	if err != nil {
		return err
	}
	if topic.GetLabels()[ClusterLabel] != c.Name {
		return fmt.Errorf("topic %s belongs to cluster %s, not %s", topic.GetName(), topic.GetLabels()[ClusterLabel], c.Name)
	}
	return c.project.Apply(ctx, topic)
}
