package external

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
)

// EnvMap is the deployment plan of the template backend: the parameters its manifests are rendered with.
type EnvMap map[string]string

// ExtraVars is the deployment plan of the APB backend: the extra variables passed to the playbook.
type ExtraVars map[string]string

// KieApp is the deployment plan of the operator backend: a KieApp custom resource.
type KieApp = *unstructured.Unstructured

// mapAmbient lets plain maps be configured and restored like the process environment.
type mapAmbient map[string]string

func (m mapAmbient) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapAmbient) Set(key, value string) error {
	m[key] = value
	return nil
}

func (m mapAmbient) Unset(key string) error {
	delete(m, key)
	return nil
}

// keyValues configures a key/value target and remembers what it replaced.
type keyValues struct {
	saved *config.Snapshot
}

func (k *keyValues) apply(a config.Ambient, values map[string]string) error {
	if k.saved != nil {
		return &failure.UsageError{Op: "configure", Reason: "configuration is already applied, remove it first"}
	}
	s, err := config.Apply(a, values)
	if err != nil {
		return err
	}
	k.saved = &s
	return nil
}

func (k *keyValues) restore(a config.Ambient) error {
	if k.saved == nil {
		return nil
	}
	if err := k.saved.Restore(a); err != nil {
		return err
	}
	k.saved = nil
	return nil
}

// kieAppServers returns spec.objects.servers of a KieApp.
func kieAppServers(app KieApp) ([]interface{}, error) {
	servers, found, err := unstructured.NestedSlice(app.Object, "spec", "objects", "servers")
	if err != nil {
		return nil, fmt.Errorf("invalid servers of KieApp %s: %v", app.GetName(), err)
	}
	if !found {
		return nil, nil
	}
	return servers, nil
}

func setKieAppServers(app KieApp, servers []interface{}) error {
	return unstructured.SetNestedSlice(app.Object, servers, "spec", "objects", "servers")
}

// kieAppFields snapshots one field of every KieApp server.
type kieAppFields struct {
	field string
	saved []interface{}
	set   bool
}

// update saves the field of every server and replaces it with the result of fn.
func (k *kieAppFields) update(app KieApp, fn func(old interface{}, found bool) interface{}) error {
	if k.set {
		return &failure.UsageError{Op: "configure", Reason: "configuration is already applied, remove it first"}
	}
	servers, err := kieAppServers(app)
	if err != nil {
		return err
	}

	saved := make([]interface{}, len(servers))
	for i, s := range servers {
		server, ok := s.(map[string]interface{})
		if !ok {
			return fmt.Errorf("server %d of KieApp %s is not an object", i, app.GetName())
		}
		old, found := server[k.field]
		if found {
			saved[i] = runtime.DeepCopyJSONValue(old)
		} else {
			saved[i] = absent{}
		}
		server[k.field] = fn(old, found)
	}
	if err := setKieAppServers(app, servers); err != nil {
		return err
	}
	k.saved, k.set = saved, true
	return nil
}

func (k *kieAppFields) restore(app KieApp) error {
	if !k.set {
		return nil
	}
	servers, err := kieAppServers(app)
	if err != nil {
		return err
	}
	if len(servers) != len(k.saved) {
		return fmt.Errorf("servers of KieApp %s changed since it was configured", app.GetName())
	}
	for i, s := range servers {
		server := s.(map[string]interface{})
		if _, wasAbsent := k.saved[i].(absent); wasAbsent {
			delete(server, k.field)
		} else {
			server[k.field] = k.saved[i]
		}
	}
	if err := setKieAppServers(app, servers); err != nil {
		return err
	}
	k.saved, k.set = nil, false
	return nil
}

type absent struct{}

// withEnv returns the env list of a server with entries for values appended.
func withEnv(old interface{}, values []envVar) interface{} {
	var env []interface{}
	if l, ok := old.([]interface{}); ok {
		env = runtime.DeepCopyJSONValue(l).([]interface{})
	}
	for _, v := range values {
		env = append(env, map[string]interface{}{"name": v.name, "value": v.value})
	}
	return env
}

type envVar struct {
	name, value string
}
