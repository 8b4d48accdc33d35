// Package risk turns a 30-day observation window into per-hazard severity
// verdicts. Classification is a pure function of the window: no I/O, no
// clock, no hidden state.
package risk

import (
	"math"

	"github.com/terraguard/climate-alerts/internal/models"
)

// Classification thresholds. Sentinel (missing) readings are excluded from
// every average and count below, but still contribute to MetricTotalDays so
// the fixed 30-day denominator stays visible in the metrics.
const (
	// Drought. A dry day is one with under 2mm of rain.
	DryDayPrecipMM         = 2.0
	DroughtCriticalAvgMM   = 2.0
	DroughtCriticalDryDays = 20
	DroughtHighDryDays     = 15
	DroughtHighAvgMM       = 3.0
	DroughtModerateDryDays = 7

	// Flood. A heavy-rain day carries 30mm or more.
	HeavyRainDayMM         = 30.0
	FloodCriticalDailyMM   = 100.0
	FloodHighHeavyDays     = 5
	FloodModerateHeavyDays = 2

	// Heat stress. Consecutive hot days matter, not just the count.
	HotDayTempC         = 35.0
	HeatCriticalRunDays = 10
	HeatHighRunDays     = 5
	HeatModerateHotDays = 7
)

// Metric keys present in assessment metrics maps and alert source snapshots.
const (
	MetricTotalDays     = "total_days_analyzed"
	MetricAvgPrecip     = "avg_precipitation_mm"
	MetricDryDays       = "days_without_rain"
	MetricAvgMaxTemp    = "avg_max_temperature_c"
	MetricTotalPrecip   = "total_precipitation_mm"
	MetricMaxDaily      = "max_daily_precipitation_mm"
	MetricHeavyRainDays = "heavy_rain_days"
	MetricHotDays       = "hot_days"
	MetricLongestHotRun = "longest_hot_run_days"
)

// Classify evaluates all hazards for one window. Deterministic: the same
// window always yields identical assessments.
func Classify(window models.ObservationWindow) models.RiskProfile {
	return models.RiskProfile{
		Drought:    classifyDrought(window),
		Flood:      classifyFlood(window),
		HeatStress: classifyHeatStress(window),
	}
}

func classifyDrought(window models.ObservationWindow) models.HazardAssessment {
	var (
		precipSum, tempSum float64
		precipN, tempN     int
		dryDays            int
	)
	for _, obs := range window {
		if !models.IsSentinel(obs.PrecipitationMM) {
			precipSum += obs.PrecipitationMM
			precipN++
			if obs.PrecipitationMM < DryDayPrecipMM {
				dryDays++
			}
		}
		if !models.IsSentinel(obs.MaxTemperatureC) {
			tempSum += obs.MaxTemperatureC
			tempN++
		}
	}

	avgPrecip := mean(precipSum, precipN)

	// Rules are ordered most severe first; the first match wins. With zero
	// valid precipitation readings the average is meaningless, so the window
	// says nothing about drought and stays low.
	severity := models.SeverityLow
	if precipN > 0 {
		switch {
		case avgPrecip < DroughtCriticalAvgMM && dryDays >= DroughtCriticalDryDays:
			severity = models.SeverityCritical
		case dryDays >= DroughtHighDryDays || avgPrecip < DroughtHighAvgMM:
			severity = models.SeverityHigh
		case dryDays >= DroughtModerateDryDays:
			severity = models.SeverityModerate
		}
	}

	return models.HazardAssessment{
		Severity: severity,
		Metrics: map[string]float64{
			MetricTotalDays:  float64(len(window)),
			MetricAvgPrecip:  round2(avgPrecip),
			MetricDryDays:    float64(dryDays),
			MetricAvgMaxTemp: round2(mean(tempSum, tempN)),
		},
	}
}

func classifyFlood(window models.ObservationWindow) models.HazardAssessment {
	var (
		total, maxDaily float64
		heavyDays       int
	)
	for _, obs := range window {
		if models.IsSentinel(obs.PrecipitationMM) {
			continue
		}
		total += obs.PrecipitationMM
		if obs.PrecipitationMM > maxDaily {
			maxDaily = obs.PrecipitationMM
		}
		if obs.PrecipitationMM >= HeavyRainDayMM {
			heavyDays++
		}
	}

	severity := models.SeverityLow
	switch {
	case maxDaily >= FloodCriticalDailyMM:
		severity = models.SeverityCritical
	case heavyDays >= FloodHighHeavyDays:
		severity = models.SeverityHigh
	case heavyDays >= FloodModerateHeavyDays:
		severity = models.SeverityModerate
	}

	return models.HazardAssessment{
		Severity: severity,
		Metrics: map[string]float64{
			MetricTotalDays:     float64(len(window)),
			MetricTotalPrecip:   round2(total),
			MetricMaxDaily:      round2(maxDaily),
			MetricHeavyRainDays: float64(heavyDays),
		},
	}
}

func classifyHeatStress(window models.ObservationWindow) models.HazardAssessment {
	var hotDays, run, longestRun int
	for _, obs := range window {
		if models.IsSentinel(obs.MaxTemperatureC) {
			// A missing reading breaks a consecutive run; we cannot assume
			// the day was hot.
			run = 0
			continue
		}
		if obs.MaxTemperatureC > HotDayTempC {
			hotDays++
			run++
			if run > longestRun {
				longestRun = run
			}
		} else {
			run = 0
		}
	}

	severity := models.SeverityLow
	switch {
	case longestRun >= HeatCriticalRunDays:
		severity = models.SeverityCritical
	case longestRun >= HeatHighRunDays:
		severity = models.SeverityHigh
	case hotDays >= HeatModerateHotDays:
		severity = models.SeverityModerate
	}

	return models.HazardAssessment{
		Severity: severity,
		Metrics: map[string]float64{
			MetricTotalDays:     float64(len(window)),
			MetricHotDays:       float64(hotDays),
			MetricLongestHotRun: float64(longestRun),
		},
	}
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
