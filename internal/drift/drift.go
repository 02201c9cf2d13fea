// Package drift implements the periodic drift-detection sweep of spec §4.7: scan
// deployments with driftDetection.enabled=true whose drift_next_epoch has elapsed,
// and enqueue a plan-kind job for each, capped at a global concurrency limit.
package drift

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/infraweave-io/control-plane/internal/metrics"
	"github.com/infraweave-io/control-plane/internal/registry"
	"github.com/infraweave-io/control-plane/internal/resolver"
)

// JobEnqueuer is satisfied by app.App.EnqueueDrift; kept narrow so drift never imports
// internal/app or the orchestrator directly (spec §9 "components communicate through
// narrow interfaces").
type JobEnqueuer interface {
	EnqueueDrift(ctx context.Context, d *registry.Deployment) error
}

// DeploymentScanner is satisfied by the deployment registry.
type DeploymentScanner interface {
	ListByProjectRegion(ctx context.Context, project, region string) ([]*registry.Deployment, error)
}

// Controller runs the sweep across a fixed set of project+region scopes (spec §5
// "a project+region is the consistency scope").
type Controller struct {
	Scopes           []ProjectRegion
	Registry         DeploymentScanner
	Enqueuer         JobEnqueuer
	ConcurrencyLimit int
	Logger           *zap.Logger

	now func() time.Time
}

// ProjectRegion names one scope the sweep scans.
type ProjectRegion struct {
	Project string
	Region  string
}

func New(scanner DeploymentScanner, enqueuer JobEnqueuer, scopes []ProjectRegion, concurrencyLimit int, logger *zap.Logger) *Controller {
	if concurrencyLimit <= 0 {
		concurrencyLimit = 10
	}
	return &Controller{
		Scopes:           scopes,
		Registry:         scanner,
		Enqueuer:         enqueuer,
		ConcurrencyLimit: concurrencyLimit,
		Logger:           logger,
		now:              time.Now,
	}
}

// Sweep runs one pass across every configured scope, enqueueing a drift job for each
// due deployment, at most ConcurrencyLimit in flight at a time.
func (c *Controller) Sweep(ctx context.Context) error {
	due, err := c.collectDue(ctx)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, c.ConcurrencyLimit)
	var wg sync.WaitGroup
	for _, d := range due {
		d := d
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			c.enqueueOne(ctx, d)
		}()
	}
	wg.Wait()
	return nil
}

func (c *Controller) collectDue(ctx context.Context) ([]*registry.Deployment, error) {
	var due []*registry.Deployment
	nowEpoch := c.now().Unix()
	for _, scope := range c.Scopes {
		deployments, err := c.Registry.ListByProjectRegion(ctx, scope.Project, scope.Region)
		if err != nil {
			return nil, err
		}
		for _, d := range deployments {
			metrics.DriftSweepDeploymentsChecked.Inc()
			if d.Deleted || !d.DriftEnabled {
				continue
			}
			if d.DriftNextEpoch > nowEpoch {
				continue
			}
			due = append(due, d)
		}
	}
	return due, nil
}

func (c *Controller) enqueueOne(ctx context.Context, d *registry.Deployment) {
	if err := c.Enqueuer.EnqueueDrift(ctx, d); err != nil && c.Logger != nil {
		c.Logger.Warn("drift enqueue failed",
			zap.String("project", d.Project), zap.String("region", d.Region), zap.String("name", d.Name), zap.Error(err))
		return
	}
	metrics.DriftJobsEnqueuedTotal.Inc()
}

// NextEpoch computes a deployment's next due epoch given its configured interval,
// relative to now (spec §4.7 "drift_next_epoch").
func NextEpoch(interval string, now time.Time) (int64, error) {
	d, err := resolver.ParseDriftInterval(interval)
	if err != nil {
		return 0, err
	}
	return now.Add(d).Unix(), nil
}
