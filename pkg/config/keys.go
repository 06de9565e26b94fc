package config

import "time"

// Credentials of the deployed services.
const (
	KieServerUser      = "org.kie.server.user"
	KieServerPassword  = "org.kie.server.pwd"
	WorkbenchUser      = "org.kie.workbench.user"
	WorkbenchPassword  = "org.kie.workbench.pwd"
	ControllerUser     = "org.kie.server.controller.user"
	ControllerPassword = "org.kie.server.controller.pwd"
)

// External database connection.
const (
	DatabaseDriver       = "db.driver"
	DatabaseHost         = "db.hostname"
	DatabasePort         = "db.port"
	DatabaseName         = "database.name"
	ExternalDatabaseName = "db.name"
	DatabaseUsername     = "db.username"
	DatabasePassword     = "db.password"
	DatabaseURL          = "db.jdbc.url"
	DatabaseDialect      = "hibernate.persistence.dialect"
)

// Git providers.
const (
	GitProvider       = "git.provider"
	GitHubUsername    = "github.username"
	GitHubPassword    = "github.password"
	GitHubURL         = "github.url"
	GitLabURL         = "gitlab.url"
	GitLabToken       = "gitlab.token"
	GogsURL           = "gogs.url"
	GogsUsername      = "gogs.username"
	GogsPassword      = "gogs.password"
	GitRepositoryUser = "git.repository.owner"
)

// Cloud backend selection and scenario tuning.
const (
	CloudAPIImplementation = "cloud.api.implementation"
	NamespacePrefix        = "openshift.namespace.prefix"
	KieAppName             = "kie.app.name"
	ImageStreamNamespace   = "kie.image.stream.namespace"
	InstanceLogs           = "instance.logs"
	DeploymentTimeout      = "deployment.timeout"
	WaitInterval           = "wait.interval"
	DeployAttempts         = "deployment.attempts"
)

// Images used by the backends.
const (
	KieServerImage      = "kie.image.kieserver"
	WorkbenchImage      = "kie.image.workbench"
	MonitoringImage     = "kie.image.workbench.monitoring"
	SmartRouterImage    = "kie.image.smartrouter"
	ControllerImage     = "kie.image.controller"
	SSOImage            = "sso.image"
	MavenRepoImage      = "maven.repo.image"
	LDAPImage           = "ldap.docker.image"
	APBImage            = "apb.image"
	KieOperatorVersion  = "kie.operator.version"
	StrimziKafkaVersion = "strimzi.kafka.version"
)

// Maven repository used for deploying artifacts.
const (
	MavenRepoURL      = "maven.repo.url"
	MavenRepoUsername = "maven.repo.username"
	MavenRepoPassword = "maven.repo.password"
)

// LDAP sidecar.
const (
	LDAPURL = "ldap.url"
)

const (
	DefaultInstanceLogs      = "instances"
	DefaultDeploymentTimeout = 10 * time.Minute
	DefaultWaitInterval      = 5 * time.Second
	DefaultDeployAttempts    = 3
)
