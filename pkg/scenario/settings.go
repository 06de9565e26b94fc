package scenario

import (
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
)

// ComponentKinds are the platform services a scenario is made of.
var ComponentKinds = []deployment.Kind{
	deployment.Workbench,
	deployment.WorkbenchMonitoring,
	deployment.KieServer,
	deployment.SmartRouter,
	deployment.Controller,
}

func isComponentKind(k deployment.Kind) bool {
	for _, c := range ComponentKinds {
		if c == k {
			return true
		}
	}
	return false
}

// Component is one named configuration block of a scenario.
type Component struct {
	Kind       deployment.Kind   `json:"kind"`
	Name       string            `json:"name"`
	Replicas   int               `json:"replicas"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

func (c Component) copy() Component {
	out := c
	out.Parameters = make(map[string]string, len(c.Parameters))
	for k, v := range c.Parameters {
		out.Parameters[k] = v
	}
	return out
}

// Settings is the immutable description of the platform services of a scenario.
type Settings struct {
	components []Component
	ldap       *external.LDAPSettings
	deploySSO  bool
}

// Components returns every configuration block in the order they were added.
func (s Settings) Components() []Component {
	out := make([]Component, 0, len(s.components))
	for _, c := range s.components {
		out = append(out, c.copy())
	}
	return out
}

// Of returns the configuration blocks of kind.
func (s Settings) Of(kind deployment.Kind) []Component {
	var out []Component
	for _, c := range s.components {
		if c.Kind == kind {
			out = append(out, c.copy())
		}
	}
	return out
}

// LDAP returns the LDAP configuration, if any.
func (s Settings) LDAP() (external.LDAPSettings, bool) {
	if s.ldap == nil {
		return external.LDAPSettings{}, false
	}
	return *s.ldap, true
}

func (s Settings) DeploySSO() bool { return s.deploySSO }

// SettingsBuilder collects configuration blocks. It hands out one Settings.
type SettingsBuilder struct {
	s     Settings
	built bool
	errs  []error
}

// NewSettings starts an empty settings builder.
func NewSettings() *SettingsBuilder {
	return &SettingsBuilder{}
}

func (b *SettingsBuilder) configuring(op string) bool {
	if b.built {
		b.errs = append(b.errs, &failure.UsageError{Op: op, Reason: "settings are already built"})
		return false
	}
	return true
}

// Add appends a configuration block.
func (b *SettingsBuilder) Add(kind deployment.Kind, name string, replicas int, params map[string]string) *SettingsBuilder {
	if !b.configuring("add " + string(kind)) {
		return b
	}
	b.s.components = append(b.s.components, Component{Kind: kind, Name: name, Replicas: replicas, Parameters: params}.copy())
	return b
}

func (b *SettingsBuilder) AddWorkbench(name string, replicas int) *SettingsBuilder {
	return b.Add(deployment.Workbench, name, replicas, nil)
}

func (b *SettingsBuilder) AddMonitoring(name string, replicas int) *SettingsBuilder {
	return b.Add(deployment.WorkbenchMonitoring, name, replicas, nil)
}

func (b *SettingsBuilder) AddKieServer(name string, replicas int) *SettingsBuilder {
	return b.Add(deployment.KieServer, name, replicas, nil)
}

func (b *SettingsBuilder) AddSmartRouter(name string, replicas int) *SettingsBuilder {
	return b.Add(deployment.SmartRouter, name, replicas, nil)
}

func (b *SettingsBuilder) AddController(name string, replicas int) *SettingsBuilder {
	return b.Add(deployment.Controller, name, replicas, nil)
}

// WithLDAP configures the LDAP login module of every component.
func (b *SettingsBuilder) WithLDAP(ldap external.LDAPSettings) *SettingsBuilder {
	if b.configuring("with LDAP") {
		b.s.ldap = &ldap
	}
	return b
}

// WithSSO requests an SSO server next to the platform.
func (b *SettingsBuilder) WithSSO() *SettingsBuilder {
	if b.configuring("with SSO") {
		b.s.deploySSO = true
	}
	return b
}

// Err reports the misuse recorded since Build.
func (b *SettingsBuilder) Err() error {
	return joinErrors(b.errs)
}

// Build validates the collected blocks and returns the settings.
func (b *SettingsBuilder) Build() (Settings, error) {
	if b.built {
		return Settings{}, &failure.UsageError{Op: "build settings", Reason: "settings are already built"}
	}
	b.built = true

	errs := append([]error(nil), b.errs...)
	names := map[string]bool{}
	for i, c := range b.s.components {
		if !isComponentKind(c.Kind) {
			errs = append(errs, fmt.Errorf("component %d: unknown kind %q", i, c.Kind))
		}
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("component %d: %s needs a name", i, c.Kind))
		} else if names[c.Name] {
			errs = append(errs, fmt.Errorf("component name %q is used more than once", c.Name))
		}
		names[c.Name] = true
		if c.Replicas < 0 {
			errs = append(errs, fmt.Errorf("component %s: replicas must not be negative, got %d", c.Name, c.Replicas))
		}
	}
	if err := joinErrors(errs); err != nil {
		return Settings{}, err
	}
	return b.s, nil
}

// File is the serialized form of Settings read by the CLI.
type File struct {
	Components []Component            `json:"components"`
	LDAP       *external.LDAPSettings `json:"ldap,omitempty"`
	SSO        bool                   `json:"sso,omitempty"`
	// External lists the external deployments to deploy with the scenario, keyed by their id.
	External map[external.ID]map[string]string `json:"external,omitempty"`
}

// ParseFile decodes a YAML or JSON settings file.
func ParseFile(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, fmt.Errorf("invalid scenario settings: %v", err)
	}
	return f, nil
}

// Settings builds the settings described by the file.
func (f *File) Settings() (Settings, error) {
	b := NewSettings()
	for _, c := range f.Components {
		b.Add(c.Kind, c.Name, c.Replicas, c.Parameters)
	}
	if f.LDAP != nil {
		b.WithLDAP(*f.LDAP)
	}
	if f.SSO {
		b.WithSSO()
	}
	return b.Build()
}
