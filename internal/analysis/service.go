// Package analysis serves on-demand risk assessments for a single location,
// memoizing the expensive upstream work behind a TTL cache.
package analysis

import (
	"context"
	"fmt"

	"github.com/terraguard/climate-alerts/internal/cache"
	"github.com/terraguard/climate-alerts/internal/geocode"
	"github.com/terraguard/climate-alerts/internal/models"
	"github.com/terraguard/climate-alerts/internal/repository"
	"github.com/terraguard/climate-alerts/internal/risk"
	"github.com/terraguard/climate-alerts/internal/summary"
	"github.com/terraguard/climate-alerts/internal/weather"
)

// Assessment is the cacheable portion of an analysis: everything derived from
// the observation window. Active alerts are deliberately excluded, since they
// change independently of the weather data and must always be read fresh.
type Assessment struct {
	Region     string             `json:"region"`
	Coordinate models.Coordinate  `json:"coordinate"`
	Risk       models.RiskProfile `json:"risk"`
	Summary    string             `json:"summary"`
}

// Result is one analysis response.
type Result struct {
	Assessment
	ActiveAlerts []models.Alert `json:"active_alerts"`
	Cached       bool           `json:"cached"`
}

// Service runs the resolve-fetch-classify-summarize pipeline for ad-hoc
// location queries.
type Service struct {
	cache     *cache.Cache
	resolver  *geocode.Resolver
	weather   weather.Provider
	generator *summary.Generator
	alerts    repository.AlertRepository
}

func NewService(
	c *cache.Cache,
	resolver *geocode.Resolver,
	weatherProvider weather.Provider,
	generator *summary.Generator,
	alerts repository.AlertRepository,
) *Service {
	return &Service{
		cache:     c,
		resolver:  resolver,
		weather:   weatherProvider,
		generator: generator,
		alerts:    alerts,
	}
}

// AnalyzeLocation assesses the named location. Unresolvable locations surface
// geocode.ErrNotFound; upstream weather failures surface a
// weather.UpstreamError. Both pass through uncached.
func (s *Service) AnalyzeLocation(ctx context.Context, location string) (*Result, error) {
	payload, cached, err := s.cache.GetOrCompute(ctx, location, func(ctx context.Context) (any, error) {
		return s.assess(ctx, location)
	})
	if err != nil {
		return nil, err
	}

	assessment, ok := payload.(*Assessment)
	if !ok {
		return nil, fmt.Errorf("unexpected cache payload %T for %q", payload, location)
	}

	// Always fresh: an alert may have been created or expired since the
	// assessment was cached.
	alerts, err := s.alerts.ListActive(ctx, repository.AlertFilter{Region: assessment.Region})
	if err != nil {
		return nil, fmt.Errorf("error listing active alerts for %s: %w", assessment.Region, err)
	}

	return &Result{
		Assessment:   *assessment,
		ActiveAlerts: alerts,
		Cached:       cached,
	}, nil
}

func (s *Service) assess(ctx context.Context, location string) (*Assessment, error) {
	loc, err := s.resolver.Resolve(ctx, location)
	if err != nil {
		return nil, err
	}

	window, err := s.weather.FetchWindow(ctx, loc.Coord, models.WindowDays)
	if err != nil {
		return nil, err
	}

	profile := risk.Classify(window)
	text := s.narrative(ctx, loc.Region, profile)

	return &Assessment{
		Region:     loc.Region,
		Coordinate: loc.Coord,
		Risk:       profile,
		Summary:    text,
	}, nil
}

// narrative summarizes the dominant hazard, or reports calm conditions when
// nothing reaches moderate.
func (s *Service) narrative(ctx context.Context, region string, profile models.RiskProfile) string {
	var (
		topHazard models.HazardKind
		top       models.HazardAssessment
	)
	for _, hazard := range []models.HazardKind{models.HazardDrought, models.HazardFlood, models.HazardHeatStress} {
		a := profile.ByHazard()[hazard]
		if topHazard == "" || a.Severity.Rank() > top.Severity.Rank() {
			topHazard, top = hazard, a
		}
	}

	if !top.Severity.AtLeast(models.SeverityModerate) {
		return fmt.Sprintf("No significant climate risk detected for %s over the past %d days.", region, models.WindowDays)
	}

	text, _ := s.generator.Narrative(ctx, region, topHazard, top)
	return text
}
