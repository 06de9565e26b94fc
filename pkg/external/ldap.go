package external

import (
	"context"
	"fmt"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
)

// LDAP login module variables of the platform images.
const (
	AuthLDAPURL             = "AUTH_LDAP_URL"
	AuthLDAPBindDN          = "AUTH_LDAP_BIND_DN"
	AuthLDAPBindCredential  = "AUTH_LDAP_BIND_CREDENTIAL"
	AuthLDAPBaseCtxDN       = "AUTH_LDAP_BASE_CTX_DN"
	AuthLDAPBaseFilter      = "AUTH_LDAP_BASE_FILTER"
	AuthLDAPSearchScope     = "AUTH_LDAP_SEARCH_SCOPE"
	AuthLDAPRolesCtxDN      = "AUTH_LDAP_ROLES_CTX_DN"
	AuthLDAPRoleFilter      = "AUTH_LDAP_ROLE_FILTER"
	AuthLDAPRoleAttributeID = "AUTH_LDAP_ROLE_ATTRIBUTE_ID"
	AuthLDAPDefaultRole     = "AUTH_LDAP_DEFAULT_ROLE"
)

const (
	defaultLDAPImage = "quay.io/kiegroup/kie-cloud-ldap:latest"
	ldapPort         = 389
)

// LDAPSettings configure the LDAP login module of the platform.
type LDAPSettings struct {
	BindDN          string `json:"bindDN,omitempty"`
	BindCredential  string `json:"bindCredential,omitempty"`
	BaseCtxDN       string `json:"baseCtxDN,omitempty"`
	BaseFilter      string `json:"baseFilter,omitempty"`
	SearchScope     string `json:"searchScope,omitempty"`
	RolesCtxDN      string `json:"rolesCtxDN,omitempty"`
	RoleFilter      string `json:"roleFilter,omitempty"`
	RoleAttributeID string `json:"roleAttributeID,omitempty"`
	DefaultRole     string `json:"defaultRole,omitempty"`
}

// DefaultLDAPSettings match the directory content of the LDAP image deployed by the harness.
func DefaultLDAPSettings() LDAPSettings {
	return LDAPSettings{
		BindDN:          "uid=admin,ou=system",
		BindCredential:  "secret",
		BaseCtxDN:       "ou=people,dc=example,dc=com",
		BaseFilter:      "uid",
		SearchScope:     "SUBTREE_SCOPE",
		RolesCtxDN:      "ou=roles,dc=example,dc=com",
		RoleFilter:      "(member={1})",
		RoleAttributeID: "cn",
		DefaultRole:     "guest",
	}
}

// Variables returns the login module variables for a server reachable at url.
func (s LDAPSettings) Variables(url string) map[string]string {
	vars := map[string]string{AuthLDAPURL: url}
	for k, v := range map[string]string{
		AuthLDAPBindDN:          s.BindDN,
		AuthLDAPBindCredential:  s.BindCredential,
		AuthLDAPBaseCtxDN:       s.BaseCtxDN,
		AuthLDAPBaseFilter:      s.BaseFilter,
		AuthLDAPSearchScope:     s.SearchScope,
		AuthLDAPRolesCtxDN:      s.RolesCtxDN,
		AuthLDAPRoleFilter:      s.RoleFilter,
		AuthLDAPRoleAttributeID: s.RoleAttributeID,
		AuthLDAPDefaultRole:     s.DefaultRole,
	} {
		if v != "" {
			vars[k] = v
		}
	}
	return vars
}

// LDAPEnv deploys an LDAP server and points the login module of the template backend at it.
type LDAPEnv struct {
	vars     map[string]string
	settings LDAPSettings
	once     Once[deployment.Deployment]
	kv       keyValues
}

// NewLDAPEnv returns the LDAP external deployment for template parameters.
func NewLDAPEnv(vars map[string]string, settings LDAPSettings) *LDAPEnv {
	return &LDAPEnv{vars: copyVars(vars), settings: settings}
}

func (l *LDAPEnv) Key() ID { return LDAP }

func (l *LDAPEnv) DeploymentVariables() map[string]string { return copyVars(l.vars) }

func (l *LDAPEnv) Deploy(ctx context.Context, p *project.Project) (deployment.Deployment, error) {
	return l.once.Do(func() (deployment.Deployment, error) {
		image := l.vars[config.LDAPImage]
		if image == "" {
			image = defaultLDAPImage
		}
		ldap := service{name: "ldap", kind: deployment.LDAP, image: image, port: ldapPort, env: map[string]string{
			"APPLICATION_NAME": p.Name,
		}}

		p.Logger.Log("Creating internal LDAP instance.")
		return ldap.deploy(ctx, p, deployment.Options{
			URL:      fmt.Sprintf("ldap://%s:%d", ldap.host(p.Name), ldapPort),
			Username: l.settings.BindDN,
			Password: l.settings.BindCredential,
		})
	})
}

func (l *LDAPEnv) Configure(env EnvMap) error {
	d, err := l.once.Deployed()
	if err != nil {
		return err
	}
	return l.kv.apply(mapAmbient(env), l.settings.Variables(d.URL()))
}

func (l *LDAPEnv) RemoveConfiguration(env EnvMap) error {
	return l.kv.restore(mapAmbient(env))
}
