// Package apb deploys scenarios by running the Kie Ansible Playbook Bundle in a provisioning
// pod. The playbook is configured entirely through its extra variables.
package apb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
	"github.com/kiegroup/kie-cloud-tests/pkg/wait"
)

// Name selects this backend in cloud.api.implementation.
const Name = "apb"

// ProvisionLabel marks the provisioning pods.
const ProvisionLabel = "kie-cloud-tests/apb"

// DeploymentConfigLabel is set by the playbook on the pods of each service it creates.
const DeploymentConfigLabel = "deploymentConfig"

// DeploymentConfigGVK is the workload the playbook creates per component.
var DeploymentConfigGVK = schema.GroupVersionKind{Group: "apps.openshift.io", Version: "v1", Kind: "DeploymentConfig"}

// Extra variables understood by the playbook.
const (
	Namespace               = "namespace"
	PlanID                  = "_apb_plan_id"
	KieServerSets           = "apb_kieserver_sets"
	KieServerNamePrefix     = "apb_kieserver_name_"
	KieServerReplicasPrefix = "apb_kieserver_replicas_"
	KieServerUser           = "apb_kieserver_user"
	KieServerPassword       = "apb_kieserver_pwd"
	KieServerSourceRepo     = "apb_kieserver_source_repository_url"
	SmartRouterName         = "apb_smartrouter_name"
	SmartRouterReplicas     = "apb_smartrouter_replicas"
)

const defaultImage = "quay.io/kiegroup/kie-cloud-apb:latest"

func init() {
	scenario.RegisterBackend(Name, New)
}

type Backend struct {
	env     scenario.Environment
	catalog *external.Catalog[external.ExtraVars]
}

// New creates the APB backend.
func New(env scenario.Environment) (scenario.Backend, error) {
	return &Backend{env: env, catalog: external.NewExtraVarsCatalog()}, nil
}

func (b *Backend) Name() string { return Name }

// Validate rejects what the playbook cannot provision: it only knows Kie Servers and smart routers.
func (b *Backend) Validate(plan scenario.Plan) []error {
	var errs []error
	for _, kind := range []deployment.Kind{deployment.Workbench, deployment.WorkbenchMonitoring, deployment.Controller} {
		if len(plan.Settings.Of(kind)) > 0 {
			errs = append(errs, &failure.NotImplementedError{Backend: Name, Feature: string(kind)})
		}
	}
	if len(plan.Settings.Of(deployment.SmartRouter)) > 1 {
		errs = append(errs, fmt.Errorf("the playbook provisions a single smart router"))
	}
	if _, ok := plan.Settings.LDAP(); ok {
		errs = append(errs, &failure.NotImplementedError{Backend: Name, Feature: "LDAP"})
	}
	if plan.Settings.DeploySSO() {
		errs = append(errs, &failure.NotImplementedError{Backend: Name, Feature: "SSO deployment"})
	}
	for _, id := range plan.ExternalIDs() {
		if _, err := b.catalog.Create(id, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func planID(plan scenario.Plan) string {
	if len(plan.Settings.Of(deployment.SmartRouter)) > 0 {
		return "immutable-kieserver-smartrouter"
	}
	return "immutable-kieserver"
}

// extraVars translates the plan into the playbook variables.
func (b *Backend) extraVars(plan scenario.Plan, namespace string) external.ExtraVars {
	vars := external.ExtraVars{}
	for k, v := range plan.Parameters {
		vars[k] = v
	}
	vars[Namespace] = namespace
	vars[PlanID] = planID(plan)
	vars[KieServerUser], vars[KieServerPassword] = scenario.Credentials(b.env.Config, deployment.KieServer)

	servers := plan.Settings.Of(deployment.KieServer)
	vars[KieServerSets] = strconv.Itoa(len(servers))
	for i, c := range servers {
		vars[KieServerNamePrefix+strconv.Itoa(i+1)] = c.Name
		vars[KieServerReplicasPrefix+strconv.Itoa(i+1)] = strconv.Itoa(c.Replicas)
	}
	for _, c := range plan.Settings.Of(deployment.SmartRouter) {
		vars[SmartRouterName] = c.Name
		vars[SmartRouterReplicas] = strconv.Itoa(c.Replicas)
	}
	if plan.GitRepositoryURL != "" {
		vars[KieServerSourceRepo] = plan.GitRepositoryURL
	}
	return vars
}

func (b *Backend) provisioningPod(namespace string, vars external.ExtraVars) (*corev1.Pod, error) {
	data, err := json.Marshal(vars)
	if err != nil {
		return nil, err
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "apb-" + uuid.NewString()[:8],
			Namespace: namespace,
			Labels:    map[string]string{ProvisionLabel: "true"},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:  "apb",
				Image: b.env.Config.Optional(config.APBImage, defaultImage),
				Args:  []string{"provision", "--extra-vars", string(data)},
			}},
		},
	}, nil
}

func (b *Backend) Deploy(ctx context.Context, s *scenario.Scenario, p *project.Project) ([]deployment.Deployment, error) {
	plan := s.Plan()
	opts, err := scenario.WaitOptions(b.env.Config)
	if err != nil {
		return nil, err
	}

	vars := b.extraVars(plan, p.Name)
	for _, id := range plan.ExternalIDs() {
		ext, err := b.catalog.Create(id, plan.External[id])
		if err != nil {
			return nil, err
		}
		if _, err := scenario.DeployExternal(ctx, s, ext, vars); err != nil {
			return nil, err
		}
	}

	pod, err := b.provisioningPod(p.Name, vars)
	if err != nil {
		return nil, err
	}
	p.Logger.Logf("Running APB provisioning pod %s", pod.Name)
	if err := p.Clients.Client.Create(ctx, pod); err != nil {
		return nil, fmt.Errorf("failed to create APB provisioning pod: %w", err)
	}
	if err := b.waitForProvisioning(ctx, p, pod.Name, opts); err != nil {
		return nil, err
	}

	var deployed []deployment.Deployment
	for _, c := range plan.Settings.Components() {
		o := opts
		o.Name = c.Name
		o.Kind = c.Kind
		o.ServiceName = c.Name
		o.RouteName = c.Name
		o.URL = fmt.Sprintf("http://%s.%s.svc:8080", c.Name, p.Name)
		o.Username, o.Password = scenario.Credentials(b.env.Config, c.Kind)
		o.Workload = deployment.Pods
		o.Selector = map[string]string{DeploymentConfigLabel: c.Name}
		o.Owner = &deployment.FieldReplicas{
			Client:  p.Clients.Client,
			GVK:     DeploymentConfigGVK,
			Key:     client.ObjectKey{Namespace: p.Name, Name: c.Name},
			Default: 1,
		}
		deployed = append(deployed, deployment.New(p.Clients, p.Name, o, p.Logger))
	}
	return deployed, nil
}

// waitForProvisioning waits until the playbook finished. A failed run reports the pod log.
func (b *Backend) waitForProvisioning(ctx context.Context, p *project.Project, name string, opts deployment.Options) error {
	phase, err := wait.For(ctx, opts.Timeout, opts.Interval, func(ctx context.Context) (corev1.PodPhase, bool, error) {
		pod := &corev1.Pod{}
		if err := p.Clients.Client.Get(ctx, client.ObjectKey{Namespace: p.Name, Name: name}, pod); err != nil {
			return "", false, err
		}
		switch pod.Status.Phase {
		case corev1.PodSucceeded, corev1.PodFailed:
			return pod.Status.Phase, true, nil
		}
		return "", false, nil
	})
	if failure.IsTimeout(err) {
		return &failure.DeploymentTimeoutError{Subject: name, Condition: "APB provisioning to finish", Timeout: opts.Timeout}
	}
	if err != nil {
		return err
	}
	if phase == corev1.PodSucceeded {
		return nil
	}

	logs := "no log available"
	if stream, err := deployment.NewPodInstance(p.Clients, p.Name, name).Logs(ctx, false); err == nil {
		defer stream.Close()
		if data, err := io.ReadAll(stream); err == nil {
			logs = string(data)
		}
	}
	return fmt.Errorf("APB provisioning pod %s failed: %s", name, logs)
}
