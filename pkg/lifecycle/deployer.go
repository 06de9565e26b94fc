// Package lifecycle deploys scenarios into fresh namespaces, waits for them and tears them
// down again, collecting logs and events on the way out.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/kiegroup/kie-cloud-tests/pkg/collect"
	"github.com/kiegroup/kie-cloud-tests/pkg/config"
	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
	"github.com/kiegroup/kie-cloud-tests/pkg/external"
	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
	"github.com/kiegroup/kie-cloud-tests/pkg/metrics"
	"github.com/kiegroup/kie-cloud-tests/pkg/project"
	"github.com/kiegroup/kie-cloud-tests/pkg/scenario"
)

// CollectorFlushTimeout bounds how long teardown waits for instance logs to be written.
const CollectorFlushTimeout = 30 * time.Second

// Deployer runs the deploy and undeploy protocol of scenarios.
type Deployer struct {
	Clients *kube.Clients
	Config  *config.Config
	Logger  log.Logger
	// Fs receives instance logs and events.
	Fs afero.Fs
	// Attempts is the number of deployments tried when the scenario does not get ready in time.
	Attempts int
	Metrics  *metrics.Metrics

	// DiscoveryInterval overrides how often new instances are looked for, zero keeps the default.
	DiscoveryInterval time.Duration

	collectors sync.Map
}

// NewDeployer returns a Deployer writing to the OS file system.
func NewDeployer(clients *kube.Clients, cfg *config.Config, logger log.Logger) (*Deployer, error) {
	attempts, err := cfg.Int(config.DeployAttempts, config.DefaultDeployAttempts)
	if err != nil {
		return nil, err
	}
	return &Deployer{
		Clients:  clients,
		Config:   cfg,
		Logger:   logger.WithPrefix("lifecycle"),
		Fs:       afero.NewOsFs(),
		Attempts: attempts,
	}, nil
}

// Deploy deploys s into a new namespace and waits until it is ready. When the scenario does
// not get ready in time the namespace is torn down and the deployment retried. Any other
// error leaves the scenario attached so the caller can undeploy it.
func (d *Deployer) Deploy(ctx context.Context, s *scenario.Scenario) error {
	start := time.Now()
	attempts := d.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		d.Metrics.Attempt(s.Type(), s.Backend().Name())
		err = d.deploy(ctx, s)
		if failure.IsTimeout(err) {
			d.Metrics.TimedOut(s.Type(), s.Backend().Name())
		}
		if err == nil || !failure.IsTimeout(err) || attempt == attempts {
			break
		}
		d.Logger.Logf("Scenario %s did not start in time (attempt %d of %d), undeploying: %v", s.Type(), attempt, attempts, err)
		if uerr := d.Undeploy(ctx, s); uerr != nil {
			d.Logger.Errorf("failed to undeploy scenario %s: %v", s.Type(), uerr)
		}
	}
	if failure.IsMissingResource(err) {
		d.Logger.Logf("Scenario %s is missing a resource: %v", s.Type(), err)
	}
	d.Metrics.ObserveDeploy(s.Type(), s.Backend().Name(), start, err)
	return err
}

func (d *Deployer) deploy(ctx context.Context, s *scenario.Scenario) error {
	p, err := project.Create(ctx, d.Clients, d.Config.Optional(config.NamespacePrefix, ""), d.Logger)
	if err != nil {
		return err
	}
	s.Attach(p)
	d.startCollector(ctx, s, p)

	for _, l := range s.BeforeDeployListeners() {
		if err := l(ctx, s); err != nil {
			return fmt.Errorf("before deploy listener of %s failed: %w", s.Type(), err)
		}
	}

	p.Logger.Logf("Deploying scenario %s with the %s backend", s.Type(), s.Backend().Name())
	if err := s.Deploy(ctx); err != nil {
		return err
	}
	if err := waitForScale(ctx, s.Deployments()); err != nil {
		return err
	}

	for _, h := range s.AfterLoadHooks() {
		if err := h(ctx, s); err != nil {
			return err
		}
	}
	p.Logger.Logf("Scenario %s is ready", s.Type())
	return nil
}

// waitForScale waits for every deployment in parallel.
func waitForScale(ctx context.Context, deployments []deployment.Deployment) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, dep := range deployments {
		dep := dep
		g.Go(func() error {
			return dep.WaitForScale(ctx)
		})
	}
	return g.Wait()
}

func (d *Deployer) startCollector(ctx context.Context, s *scenario.Scenario, p *project.Project) {
	folder := collect.Folder(d.Config, s.LogFolder())
	c := collect.NewLogCollector(d.Fs, folder, deployment.NamespaceInstances{Clients: d.Clients, Namespace: p.Name}, p.Logger)
	if d.DiscoveryInterval > 0 {
		c.DiscoveryInterval = d.DiscoveryInterval
	}
	// The collector outlives the deploy call, it runs until the scenario is undeployed.
	c.Start(context.WithoutCancel(ctx))
	d.collectors.Store(s, c)
}

// StopCollecting flushes and stops the log collector of s without undeploying it.
func (d *Deployer) StopCollecting(ctx context.Context, s *scenario.Scenario) error {
	c, ok := d.collectors.LoadAndDelete(s)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, CollectorFlushTimeout)
	defer cancel()
	return c.(*collect.LogCollector).Close(ctx)
}

// Undeploy tears down the namespace of s. Listeners, log flushing and the events dump are
// best effort and only logged; the namespace is always deleted and only that error is returned.
func (d *Deployer) Undeploy(ctx context.Context, s *scenario.Scenario) error {
	p := s.Project()
	if p == nil {
		return nil
	}
	start := time.Now()
	// Teardown must complete even when the caller was interrupted.
	ctx = context.WithoutCancel(ctx)
	folder := collect.Folder(d.Config, s.LogFolder())

	for _, l := range s.AfterFinishedListeners() {
		if err := l(ctx, s); err != nil {
			p.Logger.Errorf("after finished listener failed: %v", err)
		}
	}
	if err := d.StopCollecting(ctx, s); err != nil {
		p.Logger.Errorf("failed to collect instance logs: %v", err)
	}
	if err := collect.RecordEvents(ctx, d.Fs, folder, p); err != nil {
		p.Logger.Errorf("failed to record events: %v", err)
	}

	timeout, err := d.Config.Duration(config.DeploymentTimeout, config.DefaultDeploymentTimeout)
	if err != nil {
		p.Logger.Errorf("falling back to %s: %v", config.DefaultDeploymentTimeout, err)
		timeout = config.DefaultDeploymentTimeout
	}
	err = p.DeleteAndWait(ctx, timeout)
	s.Detach()
	d.Metrics.ObserveUndeploy(s.Type(), s.Backend().Name(), start)
	return err
}

// Run deploys s, runs fn against it and undeploys s whatever happened.
func (d *Deployer) Run(ctx context.Context, s *scenario.Scenario, fn func(ctx context.Context, s *scenario.Scenario) error) error {
	err := d.Deploy(ctx, s)
	if err == nil {
		err = fn(ctx, s)
	}
	if uerr := d.Undeploy(ctx, s); uerr != nil {
		err = errors.Join(err, fmt.Errorf("failed to undeploy scenario %s: %w", s.Type(), uerr))
	}
	return err
}

// DeployExtra deploys an additional external deployment into a running scenario and
// configures target with it. The configuration is removed when the scenario is undeployed.
func DeployExtra[U any](ctx context.Context, s *scenario.Scenario, ext external.Extra[U], target U) (deployment.Deployment, error) {
	if p := s.Project(); p != nil {
		p.Logger.Logf("Deploying extra %s", ext.Key())
	}
	return scenario.DeployExternal(ctx, s, ext, target)
}
