package external

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
)

// Variables read by the maven deployer of the test code.
const (
	MavenDeployerRepoURL      = "MAVEN_DEPLOYER_REPO_URL"
	MavenDeployerRepoUsername = "MAVEN_DEPLOYER_REPO_USERNAME"
	MavenDeployerRepoPassword = "MAVEN_DEPLOYER_REPO_PASSWORD"
)

// Variables read by the Kie Server image.
const (
	ExternalMavenRepoURL      = "EXTERNAL_MAVEN_REPO_URL"
	ExternalMavenRepoUsername = "EXTERNAL_MAVEN_REPO_USERNAME"
	ExternalMavenRepoPassword = "EXTERNAL_MAVEN_REPO_PASSWORD"
)

// Extra variables of the APB playbook.
const (
	APBMavenRepoURL      = "apb_maven_repo_url"
	APBMavenRepoUser     = "apb_maven_repo_user"
	APBMavenRepoPassword = "apb_maven_repo_pwd"
)

const (
	defaultNexusImage = "docker.io/sonatype/nexus:2.14.20-02"
	nexusPort         = 8081
	nexusUsername     = "admin"
	nexusPassword     = "admin123"
	snapshotsPath     = "/nexus/content/repositories/snapshots/"
)

// mavenRepository deploys a Nexus repository. The variants differ in the plan they configure.
type mavenRepository struct {
	vars map[string]string
	once Once[deployment.Deployment]
}

func newMavenRepository(vars map[string]string) mavenRepository {
	return mavenRepository{vars: copyVars(vars)}
}

func (m *mavenRepository) Key() ID { return MavenRepository }

func (m *mavenRepository) DeploymentVariables() map[string]string { return copyVars(m.vars) }

func (m *mavenRepository) Deploy(ctx context.Context, p *project.Project) (deployment.Deployment, error) {
	return m.once.Do(func() (deployment.Deployment, error) {
		image := m.vars[config.MavenRepoImage]
		if image == "" {
			image = defaultNexusImage
		}
		nexus := service{name: "nexus", kind: deployment.MavenRepository, image: image, port: nexusPort}

		p.Logger.Log("Creating internal Maven Repository.")
		return nexus.deploy(ctx, p, deployment.Options{
			URL:      fmt.Sprintf("http://%s:%d", nexus.host(p.Name), nexusPort),
			Username: nexusUsername,
			Password: nexusPassword,
		})
	})
}

// connection returns the snapshot repository URL and the credentials of the deployed repository.
func (m *mavenRepository) connection() (url, username, password string, err error) {
	d, err := m.once.Deployed()
	if err != nil {
		return "", "", "", err
	}
	return strings.TrimSuffix(d.URL(), "/") + snapshotsPath, d.Username(), d.Password(), nil
}

func (m *mavenRepository) values(urlKey, userKey, passwordKey string) (map[string]string, error) {
	url, user, pwd, err := m.connection()
	if err != nil {
		return nil, err
	}
	return map[string]string{urlKey: url, userKey: user, passwordKey: pwd}, nil
}

// MavenRepositoryAmbient publishes the repository to code reading the process environment.
type MavenRepositoryAmbient struct {
	mavenRepository
	kv keyValues
}

// NewMavenRepositoryAmbient returns the maven repository configuring an Ambient.
func NewMavenRepositoryAmbient(vars map[string]string) *MavenRepositoryAmbient {
	return &MavenRepositoryAmbient{mavenRepository: newMavenRepository(vars)}
}

func (m *MavenRepositoryAmbient) Configure(a config.Ambient) error {
	values, err := m.values(MavenDeployerRepoURL, MavenDeployerRepoUsername, MavenDeployerRepoPassword)
	if err != nil {
		return err
	}
	return m.kv.apply(a, values)
}

func (m *MavenRepositoryAmbient) RemoveConfiguration(a config.Ambient) error {
	return m.kv.restore(a)
}

// MavenRepositoryEnv points the Kie Servers of the template backend at the repository.
type MavenRepositoryEnv struct {
	mavenRepository
	kv keyValues
}

// NewMavenRepositoryEnv returns the maven repository configuring template parameters.
func NewMavenRepositoryEnv(vars map[string]string) *MavenRepositoryEnv {
	return &MavenRepositoryEnv{mavenRepository: newMavenRepository(vars)}
}

func (m *MavenRepositoryEnv) Configure(env EnvMap) error {
	values, err := m.values(ExternalMavenRepoURL, ExternalMavenRepoUsername, ExternalMavenRepoPassword)
	if err != nil {
		return err
	}
	return m.kv.apply(mapAmbient(env), values)
}

func (m *MavenRepositoryEnv) RemoveConfiguration(env EnvMap) error {
	return m.kv.restore(mapAmbient(env))
}

// MavenRepositoryKieApp adds the repository to the env of every server of a KieApp.
type MavenRepositoryKieApp struct {
	mavenRepository
	env kieAppFields
}

// NewMavenRepositoryKieApp returns the maven repository configuring a KieApp.
func NewMavenRepositoryKieApp(vars map[string]string) *MavenRepositoryKieApp {
	return &MavenRepositoryKieApp{mavenRepository: newMavenRepository(vars), env: kieAppFields{field: "env"}}
}

func (m *MavenRepositoryKieApp) Configure(app KieApp) error {
	url, user, pwd, err := m.connection()
	if err != nil {
		return err
	}
	return m.env.update(app, func(old interface{}, _ bool) interface{} {
		return withEnv(old, []envVar{
			{ExternalMavenRepoURL, url},
			{ExternalMavenRepoUsername, user},
			{ExternalMavenRepoPassword, pwd},
		})
	})
}

func (m *MavenRepositoryKieApp) RemoveConfiguration(app KieApp) error {
	return m.env.restore(app)
}

// MavenRepositoryAPB passes the repository to the APB playbook.
type MavenRepositoryAPB struct {
	mavenRepository
	kv keyValues
}

// NewMavenRepositoryAPB returns the maven repository configuring APB extra vars.
func NewMavenRepositoryAPB(vars map[string]string) *MavenRepositoryAPB {
	return &MavenRepositoryAPB{mavenRepository: newMavenRepository(vars)}
}

func (m *MavenRepositoryAPB) Configure(vars ExtraVars) error {
	values, err := m.values(APBMavenRepoURL, APBMavenRepoUser, APBMavenRepoPassword)
	if err != nil {
		return err
	}
	return m.kv.apply(mapAmbient(vars), values)
}

func (m *MavenRepositoryAPB) RemoveConfiguration(vars ExtraVars) error {
	return m.kv.restore(mapAmbient(vars))
}
