package external

import (
	"github.com/kiegroup/kie-cloud-tests/pkg/config"
)

// NewAmbientCatalog returns the external deployments configuring the process environment.
func NewAmbientCatalog() *Catalog[config.Ambient] {
	c := NewCatalog[config.Ambient]("ambient")
	c.MustRegister(MavenRepository, func(vars map[string]string) Extra[config.Ambient] {
		return NewMavenRepositoryAmbient(vars)
	})
	return c
}

// NewEnvCatalog returns the external deployments of the template backend.
func NewEnvCatalog() *Catalog[EnvMap] {
	c := NewCatalog[EnvMap]("templates")
	c.MustRegister(MavenRepository, func(vars map[string]string) Extra[EnvMap] {
		return NewMavenRepositoryEnv(vars)
	})
	c.MustRegister(LDAP, func(vars map[string]string) Extra[EnvMap] {
		return NewLDAPEnv(vars, DefaultLDAPSettings())
	})
	c.MustRegister(ExternalDatabase, func(vars map[string]string) Extra[EnvMap] {
		return NewExternalDatabaseEnv(vars)
	})
	return c
}

// NewKieAppCatalog returns the external deployments of the operator backend.
func NewKieAppCatalog() *Catalog[KieApp] {
	c := NewCatalog[KieApp]("operator")
	c.MustRegister(MavenRepository, func(vars map[string]string) Extra[KieApp] {
		return NewMavenRepositoryKieApp(vars)
	})
	c.MustRegister(ExternalDatabase, func(vars map[string]string) Extra[KieApp] {
		return NewExternalDatabaseKieApp(vars)
	})
	return c
}

// NewExtraVarsCatalog returns the external deployments of the APB backend.
func NewExtraVarsCatalog() *Catalog[ExtraVars] {
	c := NewCatalog[ExtraVars]("apb")
	c.MustRegister(MavenRepository, func(vars map[string]string) Extra[ExtraVars] {
		return NewMavenRepositoryAPB(vars)
	})
	c.MustRegister(ExternalDatabase, func(vars map[string]string) Extra[ExtraVars] {
		return NewExternalDatabaseAPB(vars)
	})
	return c
}
