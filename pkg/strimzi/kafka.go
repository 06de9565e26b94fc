// Package strimzi provisions Kafka clusters and topics through the custom resources of the
// Strimzi operator.
package strimzi

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/version"
)

var (
	KafkaGVK      = schema.GroupVersionKind{Group: "kafka.strimzi.io", Version: "v1beta2", Kind: "Kafka"}
	KafkaTopicGVK = schema.GroupVersionKind{Group: "kafka.strimzi.io", Version: "v1beta2", Kind: "KafkaTopic"}
)

// ClusterLabel binds a topic to its cluster.
const ClusterLabel = "strimzi.io/cluster"

const DefaultKafkaVersion = "3.6.0"

// Listener is one Kafka listener.
type Listener struct {
	Name string
	Port int
	// Type is internal, route, loadbalancer or nodeport.
	Type string
	TLS  bool
}

func (l Listener) object() map[string]interface{} {
	return map[string]interface{}{
		"name": l.Name,
		"port": int64(l.Port),
		"type": l.Type,
		"tls":  l.TLS,
	}
}

// DefaultListeners are the plain and TLS listeners inside the cluster plus a TLS route for
// clients running outside of it.
func DefaultListeners() []Listener {
	return []Listener{
		{Name: "plain", Port: 9092, Type: "internal", TLS: false},
		{Name: "tls", Port: 9093, Type: "internal", TLS: true},
		{Name: "external", Port: 9094, Type: "route", TLS: true},
	}
}

// KafkaClusterBuilder builds a Kafka custom resource.
type KafkaClusterBuilder struct {
	name              string
	version           string
	kafkaReplicas     int
	zookeeperReplicas int
	storage           map[string]interface{}
	listeners         []Listener
	config            map[string]interface{}
}

// NewKafkaCluster starts a three broker, three zookeeper cluster with ephemeral storage.
func NewKafkaCluster(name string) *KafkaClusterBuilder {
	return &KafkaClusterBuilder{
		name:              name,
		version:           DefaultKafkaVersion,
		kafkaReplicas:     3,
		zookeeperReplicas: 3,
		storage:           map[string]interface{}{"type": "ephemeral"},
		listeners:         DefaultListeners(),
		config: map[string]interface{}{
			"offsets.topic.replication.factor":         int64(3),
			"transaction.state.log.replication.factor": int64(3),
			"transaction.state.log.min.isr":            int64(2),
		},
	}
}

// NewKafkaClusterFromConfig is NewKafkaCluster running the Kafka version of strimzi.kafka.version.
func NewKafkaClusterFromConfig(name string, cfg *config.Config) *KafkaClusterBuilder {
	return NewKafkaCluster(name).WithVersion(cfg.Optional(config.StrimziKafkaVersion, DefaultKafkaVersion))
}

func (b *KafkaClusterBuilder) WithVersion(kafkaVersion string) *KafkaClusterBuilder {
	b.version = kafkaVersion
	return b
}

func (b *KafkaClusterBuilder) WithKafkaReplicas(replicas int) *KafkaClusterBuilder {
	b.kafkaReplicas = replicas
	return b
}

func (b *KafkaClusterBuilder) WithZookeeperReplicas(replicas int) *KafkaClusterBuilder {
	b.zookeeperReplicas = replicas
	return b
}

// WithPersistentStorage replaces the ephemeral storage with claims of size.
func (b *KafkaClusterBuilder) WithPersistentStorage(size string) *KafkaClusterBuilder {
	b.storage = map[string]interface{}{"type": "persistent-claim", "size": size, "deleteClaim": true}
	return b
}

// WithListeners replaces the default listeners.
func (b *KafkaClusterBuilder) WithListeners(listeners ...Listener) *KafkaClusterBuilder {
	b.listeners = listeners
	return b
}

func (b *KafkaClusterBuilder) WithConfig(key string, value interface{}) *KafkaClusterBuilder {
	b.config[key] = value
	return b
}

func (b *KafkaClusterBuilder) Build() (*unstructured.Unstructured, error) {
	if b.name == "" {
		return nil, fmt.Errorf("a Kafka cluster needs a name")
	}
	if b.kafkaReplicas < 1 || b.zookeeperReplicas < 1 {
		return nil, fmt.Errorf("kafka cluster %s needs at least one broker and one zookeeper, got %d and %d", b.name, b.kafkaReplicas, b.zookeeperReplicas)
	}
	if len(b.listeners) == 0 {
		return nil, fmt.Errorf("kafka cluster %s has no listeners", b.name)
	}
	kafkaVersion, err := version.New(b.version)
	if err != nil {
		return nil, fmt.Errorf("kafka cluster %s: %w", b.name, err)
	}

	listeners := make([]interface{}, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l.object())
	}
	brokerConfig := map[string]interface{}{}
	for k, v := range b.config {
		brokerConfig[k] = v
	}

	kafka := &unstructured.Unstructured{Object: map[string]interface{}{
		"spec": map[string]interface{}{
			"kafka": map[string]interface{}{
				"version":   kafkaVersion.String(),
				"replicas":  int64(b.kafkaReplicas),
				"listeners": listeners,
				"config":    brokerConfig,
				"storage":   copyMap(b.storage),
			},
			"zookeeper": map[string]interface{}{
				"replicas": int64(b.zookeeperReplicas),
				"storage":  copyMap(b.storage),
			},
			"entityOperator": map[string]interface{}{
				"topicOperator": map[string]interface{}{},
				"userOperator":  map[string]interface{}{},
			},
		},
	}}
	kafka.SetGroupVersionKind(KafkaGVK)
	kafka.SetName(b.name)
	return kafka, nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// KafkaTopicBuilder builds a KafkaTopic custom resource.
type KafkaTopicBuilder struct {
	name       string
	cluster    string
	partitions int
	replicas   int
	config     map[string]interface{}
}

// NewKafkaTopic starts a single partition, single replica topic of cluster.
func NewKafkaTopic(name, cluster string) *KafkaTopicBuilder {
	return &KafkaTopicBuilder{name: name, cluster: cluster, partitions: 1, replicas: 1, config: map[string]interface{}{}}
}

func (b *KafkaTopicBuilder) WithPartitions(partitions int) *KafkaTopicBuilder {
	b.partitions = partitions
	return b
}

func (b *KafkaTopicBuilder) WithReplicas(replicas int) *KafkaTopicBuilder {
	b.replicas = replicas
	return b
}

func (b *KafkaTopicBuilder) WithConfig(key string, value interface{}) *KafkaTopicBuilder {
	b.config[key] = value
	return b
}

func (b *KafkaTopicBuilder) Build() (*unstructured.Unstructured, error) {
	if b.name == "" || b.cluster == "" {
		return nil, fmt.Errorf("a Kafka topic needs a name and a cluster")
	}
	if b.partitions < 1 || b.replicas < 1 {
		return nil, fmt.Errorf("kafka topic %s needs at least one partition and one replica", b.name)
	}

	spec := map[string]interface{}{
		"partitions": int64(b.partitions),
		"replicas":   int64(b.replicas),
	}
	if len(b.config) > 0 {
		spec["config"] = copyMap(b.config)
	}
	topic := &unstructured.Unstructured{Object: map[string]interface{}{"spec": spec}}
	topic.SetGroupVersionKind(KafkaTopicGVK)
	topic.SetName(b.name)
	topic.SetLabels(map[string]string{ClusterLabel: b.cluster})
	return topic, nil
}
