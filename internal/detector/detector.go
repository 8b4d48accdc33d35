// Package detector runs the periodic detection cycle: resolve, fetch,
// classify, summarize, upsert and dispatch for each monitored region.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/terraguard/climate-alerts/internal/dispatch"
	"github.com/terraguard/climate-alerts/internal/geocode"
	"github.com/terraguard/climate-alerts/internal/models"
	"github.com/terraguard/climate-alerts/internal/observability"
	"github.com/terraguard/climate-alerts/internal/repository"
	"github.com/terraguard/climate-alerts/internal/risk"
	"github.com/terraguard/climate-alerts/internal/summary"
	"github.com/terraguard/climate-alerts/internal/weather"
	"github.com/terraguard/climate-alerts/internal/worker"
)

type RegionOutcome string

const (
	OutcomeSuccess RegionOutcome = "success"
	OutcomeFailed  RegionOutcome = "failed"
	// OutcomeTimedOut means the region did not finish inside the cycle's
	// wall budget. Distinguished from failed so scheduler-health alerting
	// can tell "didn't finish" from "errored".
	OutcomeTimedOut RegionOutcome = "timed_out"
)

type RegionResult struct {
	Region        string        `json:"region"`
	Outcome       RegionOutcome `json:"outcome"`
	AlertsCreated int           `json:"alerts_created"`
	Error         string        `json:"error,omitempty"`
}

type CycleReport struct {
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Regions       int            `json:"regions"`
	AlertsCreated int            `json:"alerts_created"`
	Results       []RegionResult `json:"results"`
}

// Dispatcher is the fan-out collaborator, narrowed for testability.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert) (dispatch.Summary, error)
}

type Options struct {
	WorkerCount         int
	WallBudget          time.Duration
	RetryBackoff        time.Duration
	Regions             []string // always monitored, on top of subscriber regions
	DispatchOnSupersede bool
}

// Detector drives the per-region pipeline. Regions are independent: one
// region's failure is recorded and the cycle moves on.
type Detector struct {
	opts       Options
	resolver   *geocode.Resolver
	weather    weather.Provider
	generator  *summary.Generator
	alerts     repository.AlertRepository
	subs       repository.SubscriberRepository
	dispatcher Dispatcher
	clock      clockwork.Clock
	metrics    *observability.Metrics
}

func New(
	opts Options,
	resolver *geocode.Resolver,
	weatherProvider weather.Provider,
	generator *summary.Generator,
	alerts repository.AlertRepository,
	subs repository.SubscriberRepository,
	dispatcher Dispatcher,
	clock clockwork.Clock,
	metrics *observability.Metrics,
) *Detector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.WorkerCount < 1 {
		opts.WorkerCount = 1
	}
	return &Detector{
		opts:       opts,
		resolver:   resolver,
		weather:    weatherProvider,
		generator:  generator,
		alerts:     alerts,
		subs:       subs,
		dispatcher: dispatcher,
		clock:      clock,
		metrics:    metrics,
	}
}

// MonitoredRegions is the union of the configured regions and every region
// with at least one subscribed user.
func (d *Detector) MonitoredRegions(ctx context.Context) ([]string, error) {
	subscribed, err := d.subs.DistinctRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing subscriber regions: %w", err)
	}

	seen := make(map[string]bool)
	var regions []string
	for _, r := range append(append([]string{}, d.opts.Regions...), subscribed...) {
		key := geocode.Normalize(r)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions, nil
}

// RunCycle processes all regions under the wall-clock budget and reports
// per-region outcomes. It never returns an error: region failures are data,
// not control flow.
func (d *Detector) RunCycle(ctx context.Context, regions []string) CycleReport {
	started := d.clock.Now().UTC()
	if d.metrics != nil {
		d.metrics.CyclesTotal.Inc()
	}
	slog.Info("detection cycle starting", "regions", len(regions))

	ctx, cancel := context.WithTimeout(ctx, d.opts.WallBudget)
	defer cancel()

	// Regions still marked timed_out after the pool drains were abandoned
	// by the budget; they get picked up again next cycle.
	results := make([]RegionResult, len(regions))
	for i, region := range regions {
		results[i] = RegionResult{Region: region, Outcome: OutcomeTimedOut}
	}

	pool := worker.NewPool(d.opts.WorkerCount, len(regions))
	pool.Start(ctx)
	for i := range regions {
		i := i
		pool.Submit(func(taskCtx context.Context) {
			results[i] = d.processRegion(taskCtx, regions[i])
		})
	}
	pool.Close()

	report := CycleReport{
		StartedAt:  started,
		FinishedAt: d.clock.Now().UTC(),
		Regions:    len(regions),
		Results:    results,
	}
	for _, r := range results {
		report.AlertsCreated += r.AlertsCreated
		if d.metrics != nil {
			d.metrics.RegionResults.WithLabelValues(string(r.Outcome)).Inc()
		}
	}
	if d.metrics != nil {
		d.metrics.CycleDuration.Observe(report.FinishedAt.Sub(started).Seconds())
	}

	slog.Info("detection cycle finished",
		"regions", report.Regions, "alerts_created", report.AlertsCreated,
		"duration", report.FinishedAt.Sub(started))
	return report
}

func (d *Detector) processRegion(ctx context.Context, region string) RegionResult {
	res := RegionResult{Region: region, Outcome: OutcomeFailed}

	fail := func(err error) RegionResult {
		if ctx.Err() != nil {
			res.Outcome = OutcomeTimedOut
			res.Error = ctx.Err().Error()
			return res
		}
		res.Error = err.Error()
		slog.Warn("region pipeline failed", "region", region, "error", err)
		return res
	}

	loc, err := d.resolver.Resolve(ctx, region)
	if err != nil {
		return fail(fmt.Errorf("resolve: %w", err))
	}

	window, err := d.fetchWithRetry(ctx, loc.Coord)
	if err != nil {
		return fail(fmt.Errorf("fetch window: %w", err))
	}

	profile := risk.Classify(window)

	for _, hazard := range []models.HazardKind{models.HazardDrought, models.HazardFlood, models.HazardHeatStress} {
		assessment := profile.ByHazard()[hazard]
		// Low severity means "no alert"; an existing active alert simply
		// ages out if conditions improved.
		if !assessment.Severity.AtLeast(models.SeverityModerate) {
			continue
		}

		narrative, degraded := d.generator.Narrative(ctx, loc.Region, hazard, assessment)
		if degraded {
			slog.Debug("using fallback narrative", "region", loc.Region, "hazard", hazard)
		}

		result, err := d.alerts.UpsertFromAssessment(ctx, models.AlertDraft{
			Region:             loc.Region,
			Hazard:             hazard,
			Severity:           assessment.Severity,
			Title:              alertTitle(loc.Region, hazard, assessment.Severity),
			Narrative:          narrative,
			RecommendedActions: summary.RecommendedActions(hazard),
			ImmediateActions:   summary.ImmediateActions(hazard),
			SourceSnapshot:     assessment.Metrics,
		})
		if err != nil {
			return fail(fmt.Errorf("upsert %s alert: %w", hazard, err))
		}
		if !result.Created {
			// Suppressed: unchanged ongoing hazard, no repeat notification.
			continue
		}

		res.AlertsCreated++
		if d.metrics != nil {
			d.metrics.AlertsCreated.Inc()
		}
		slog.Info("alert created", "region", loc.Region, "hazard", hazard,
			"severity", assessment.Severity, "superseded", result.Superseded != nil)

		if result.Superseded != nil && !d.opts.DispatchOnSupersede {
			continue
		}
		if _, err := d.dispatcher.Dispatch(ctx, result.Alert); err != nil {
			// Infrastructure failure during fan-out; the dispatch log keeps
			// the idempotence boundary for the next attempt.
			slog.Error("dispatch failed", "alert", result.Alert.ID, "error", err)
		}
	}

	res.Outcome = OutcomeSuccess
	res.Error = ""
	return res
}

// fetchWithRetry gives retryable upstream errors one immediate retry after a
// short backoff. Anything still failing is recorded for this cycle and
// retried naturally on the next one.
func (d *Detector) fetchWithRetry(ctx context.Context, coord models.Coordinate) (models.ObservationWindow, error) {
	window, err := d.weather.FetchWindow(ctx, coord, models.WindowDays)
	d.countFetch(err)
	if err == nil || !weather.Retryable(err) {
		return window, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d.opts.RetryBackoff):
	}

	window, err = d.weather.FetchWindow(ctx, coord, models.WindowDays)
	d.countFetch(err)
	return window, err
}

func (d *Detector) countFetch(err error) {
	if d.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	d.metrics.UpstreamRequests.WithLabelValues("weather", outcome).Inc()
}

func alertTitle(region string, hazard models.HazardKind, severity models.Severity) string {
	var label string
	switch hazard {
	case models.HazardDrought:
		label = "Drought"
	case models.HazardFlood:
		label = "Flood"
	case models.HazardHeatStress:
		label = "Heat Stress"
	default:
		label = string(hazard)
	}
	return fmt.Sprintf("%s %s Alert - %s", strings.ToUpper(string(severity)), label, region)
}
