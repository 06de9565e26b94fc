package kube

import (
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Scheme knows every typed object the harness reads or writes. Custom resources of the
// backends (KieApp, Kafka, Route) are handled as unstructured objects.
var Scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(Scheme))
	utilruntime.Must(apiextensionsv1.AddToScheme(Scheme))
}

// Clients bundles the API clients used by the harness. Client serves all object reads
// and writes; Kube is used for the pod subresources (logs, exec) controller-runtime does not cover.
type Clients struct {
	Client     client.Client
	Kube       kubernetes.Interface
	Extensions apiextensionsclient.Interface
	Config     *rest.Config
}

// NewClients creates every client from one REST config.
func NewClients(cfg *rest.Config) (*Clients, error) {
	c, err := client.New(cfg, client.Options{Scheme: Scheme})
	if err != nil {
		return nil, fmt.Errorf("could not get controller-runtime client: %v", err)
	}
	kube, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not get Kubernetes client: %v", err)
	}
	ext, err := apiextensionsclient.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not get Kubernetes api extension client: %v", err)
	}
	return &Clients{Client: c, Kube: kube, Extensions: ext, Config: cfg}, nil
}
