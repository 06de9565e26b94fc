package external

import (
	"context"
	"errors"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/registry"
)

// Driver describes a JDBC driver the Kie Server image can be extended with.
type Driver struct {
	Name string
	// Dialect is the hibernate dialect used unless one is configured.
	Dialect string
	// NeedsURL drivers are configured with a JDBC URL instead of host and port.
	NeedsURL bool
}

// Drivers holds the supported JDBC drivers.
var Drivers = registry.New[Driver]("database driver", config.DatabaseDriver)

func init() {
	for _, d := range []Driver{
		{Name: "db2", Dialect: "org.hibernate.dialect.DB2Dialect", NeedsURL: true},
		{Name: "mariadb", Dialect: "org.hibernate.dialect.MariaDB102Dialect"},
		{Name: "mssql", Dialect: "org.hibernate.dialect.SQLServer2012Dialect", NeedsURL: true},
		{Name: "mysql", Dialect: "org.hibernate.dialect.MySQL57Dialect"},
		{Name: "oracle", Dialect: "org.hibernate.dialect.Oracle12cDialect", NeedsURL: true},
		{Name: "postgresql", Dialect: "org.hibernate.dialect.PostgreSQL95Dialect"},
		{Name: "sybase", Dialect: "org.hibernate.dialect.SybaseASE157Dialect", NeedsURL: true},
	} {
		Drivers.MustRegister(d.Name, d)
	}
}

// Kie Server variables of the template backend.
const (
	KieServerExternalDBDriver      = "KIE_SERVER_EXTERNALDB_DRIVER"
	KieServerExternalDBServiceHost = "KIE_SERVER_EXTERNALDB_SERVICE_HOST"
	KieServerExternalDBServicePort = "KIE_SERVER_EXTERNALDB_SERVICE_PORT"
	KieServerExternalDBName        = "KIE_SERVER_EXTERNALDB_DB"
	KieServerExternalDBUser        = "KIE_SERVER_EXTERNALDB_USER"
	KieServerExternalDBPassword    = "KIE_SERVER_EXTERNALDB_PWD"
	KieServerExternalDBDialect     = "KIE_SERVER_EXTERNALDB_DIALECT"
	KieServerExternalDBURL         = "KIE_SERVER_EXTERNALDB_URL"
)

// Kie Server variables of the APB playbook.
const (
	APBExternalDBDriver  = "apb_kieserver_external_db_driver"
	APBExternalDBHost    = "apb_kieserver_external_db_host"
	APBExternalDBPort    = "apb_kieserver_external_db_port"
	APBExternalDBName    = "apb_kieserver_external_db_name"
	APBExternalDBDialect = "apb_kieserver_external_db_dialect"
	APBExternalDBURL     = "apb_kieserver_external_db_url"
)

// DatabaseConnection is a resolved external database configuration.
type DatabaseConnection struct {
	Driver   Driver
	Host     string
	Port     string
	Name     string
	Username string
	Password string
	URL      string
	Dialect  string
}

// ParseDatabaseConnection reads the connection from deployment variables keyed by the
// database configuration keys. Every missing or invalid setting is reported.
func ParseDatabaseConnection(vars map[string]string) (DatabaseConnection, []error) {
	var errs []error
	mandatory := func(key string) string {
		v := vars[key]
		if v == "" {
			errs = append(errs, failure.MissingParameter(key))
		}
		return v
	}

	c := DatabaseConnection{}
	if name := mandatory(config.DatabaseDriver); name != "" {
		d, err := Drivers.Resolve(name)
		if err != nil {
			errs = append(errs, err)
		}
		c.Driver = d
	}
	c.Name = mandatory(config.ExternalDatabaseName)
	c.Username = mandatory(config.DatabaseUsername)
	c.Password = mandatory(config.DatabasePassword)
	if c.Driver.NeedsURL {
		c.URL = mandatory(config.DatabaseURL)
	} else {
		c.Host = mandatory(config.DatabaseHost)
		c.Port = mandatory(config.DatabasePort)
		c.URL = vars[config.DatabaseURL]
	}
	c.Dialect = vars[config.DatabaseDialect]
	if c.Dialect == "" {
		c.Dialect = c.Driver.Dialect
	}
	return c, errs
}

// externalDatabase runs outside the cluster, deploying it only validates the connection settings.
type externalDatabase struct {
	vars map[string]string
	once Once[DatabaseConnection]
}

func (e *externalDatabase) Key() ID { return ExternalDatabase }

func (e *externalDatabase) DeploymentVariables() map[string]string { return copyVars(e.vars) }

// Deploy validates the connection settings. The returned deployment is always nil.
func (e *externalDatabase) Deploy(ctx context.Context, p *project.Project) (deployment.Deployment, error) {
	_, err := e.once.Do(func() (DatabaseConnection, error) {
		c, errs := ParseDatabaseConnection(e.vars)
		if len(errs) > 0 {
			return c, errors.Join(errs...)
		}
		p.Logger.Logf("Using external %s database %s", c.Driver.Name, c.Name)
		return c, nil
	})
	return nil, err
}

// ExternalDatabaseEnv configures the Kie Servers of the template backend.
type ExternalDatabaseEnv struct {
	externalDatabase
	kv keyValues
}

// NewExternalDatabaseEnv returns the external database configuring template parameters.
func NewExternalDatabaseEnv(vars map[string]string) *ExternalDatabaseEnv {
	return &ExternalDatabaseEnv{externalDatabase: externalDatabase{vars: copyVars(vars)}}
}

func (e *ExternalDatabaseEnv) Configure(env EnvMap) error {
	c, err := e.once.Deployed()
	if err != nil {
		return err
	}
	values := map[string]string{
		KieServerExternalDBDriver:   c.Driver.Name,
		KieServerExternalDBName:     c.Name,
		KieServerExternalDBUser:     c.Username,
		KieServerExternalDBPassword: c.Password,
		KieServerExternalDBDialect:  c.Dialect,
	}
	if c.Host != "" {
		values[KieServerExternalDBServiceHost] = c.Host
		values[KieServerExternalDBServicePort] = c.Port
	}
	if c.URL != "" {
		values[KieServerExternalDBURL] = c.URL
	}
	return e.kv.apply(mapAmbient(env), values)
}

func (e *ExternalDatabaseEnv) RemoveConfiguration(env EnvMap) error {
	return e.kv.restore(mapAmbient(env))
}

// ExternalDatabaseAPB passes the external database to the APB playbook.
type ExternalDatabaseAPB struct {
	externalDatabase
	kv keyValues
}

// NewExternalDatabaseAPB returns the external database configuring APB extra vars.
func NewExternalDatabaseAPB(vars map[string]string) *ExternalDatabaseAPB {
	return &ExternalDatabaseAPB{externalDatabase: externalDatabase{vars: copyVars(vars)}}
}

func (e *ExternalDatabaseAPB) Configure(vars ExtraVars) error {
	c, err := e.once.Deployed()
	if err != nil {
		return err
	}
	values := map[string]string{
		APBExternalDBDriver:  c.Driver.Name,
		APBExternalDBName:    c.Name,
		APBExternalDBDialect: c.Dialect,
	}
	if c.Host != "" {
		values[APBExternalDBHost] = c.Host
		values[APBExternalDBPort] = c.Port
	}
	if c.URL != "" {
		values[APBExternalDBURL] = c.URL
	}
	return e.kv.apply(mapAmbient(vars), values)
}

func (e *ExternalDatabaseAPB) RemoveConfiguration(vars ExtraVars) error {
	return e.kv.restore(mapAmbient(vars))
}

// ExternalDatabaseKieApp sets an external database on every server of a KieApp.
type ExternalDatabaseKieApp struct {
	externalDatabase
	database kieAppFields
}

// NewExternalDatabaseKieApp returns the external database configuring a KieApp.
func NewExternalDatabaseKieApp(vars map[string]string) *ExternalDatabaseKieApp {
	return &ExternalDatabaseKieApp{externalDatabase: externalDatabase{vars: copyVars(vars)}, database: kieAppFields{field: "database"}}
}

func (e *ExternalDatabaseKieApp) Configure(app KieApp) error {
	c, err := e.once.Deployed()
	if err != nil {
		return err
	}
	external := map[string]interface{}{
		"driver":   c.Driver.Name,
		"dialect":  c.Dialect,
		"name":     c.Name,
		"username": c.Username,
		"password": c.Password,
	}
	if c.Driver.NeedsURL || c.URL != "" {
		external["jdbcURL"] = c.URL
	} else {
		external["host"] = c.Host
		external["port"] = c.Port
	}
	return e.database.update(app, func(interface{}, bool) interface{} {
		return map[string]interface{}{"type": "External", "externalConfig": external}
	})
}

func (e *ExternalDatabaseKieApp) RemoveConfiguration(app KieApp) error {
	return e.database.restore(app)
}
