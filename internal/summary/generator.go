package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/terraguard/climate-alerts/internal/models"
	"github.com/terraguard/climate-alerts/internal/risk"
)

// TextProvider is the external text-generation collaborator.
type TextProvider interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

const summaryMaxTokens = 600

// Generator turns structured risk data into a human-readable narrative. It
// degrades gracefully: a provider failure, timeout or empty reply yields a
// templated narrative built from the raw metrics, never an error. Alert
// creation must not block on narrative generation.
type Generator struct {
	provider     TextProvider
	maxNarrative int // rune cap to bound stored narrative size
}

func NewGenerator(provider TextProvider, maxNarrative int) *Generator {
	if maxNarrative <= 0 {
		maxNarrative = 2000
	}
	return &Generator{provider: provider, maxNarrative: maxNarrative}
}

// Narrative summarizes one hazard assessment for a region. The degraded
// return reports whether the fallback template was used.
func (g *Generator) Narrative(ctx context.Context, region string, hazard models.HazardKind, assessment models.HazardAssessment) (text string, degraded bool) {
	fallback := fallbackNarrative(region, hazard, assessment)

	if g.provider == nil {
		return fallback, true
	}

	out, err := g.provider.Complete(ctx, buildPrompt(region, hazard, assessment), summaryMaxTokens)
	if err != nil {
		slog.Warn("narrative generation degraded", "region", region, "hazard", hazard, "error", err)
		return fallback, true
	}

	// The reply is opaque prose; trim and cap, nothing else.
	out = strings.TrimSpace(out)
	if out == "" {
		return fallback, true
	}
	if r := []rune(out); len(r) > g.maxNarrative {
		out = string(r[:g.maxNarrative])
	}
	return out, false
}

func buildPrompt(region string, hazard models.HazardKind, assessment models.HazardAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a climate resilience advisor for communities in Kenya.\n")
	fmt.Fprintf(&b, "Explain the following %s risk for %s in 2-4 plain sentences ", hazardLabel(hazard), region)
	fmt.Fprintf(&b, "suitable for an SMS audience. Include one practical land or soil protection step. No emojis.\n\n")
	fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(string(assessment.Severity)))
	for _, k := range sortedKeys(assessment.Metrics) {
		fmt.Fprintf(&b, "%s: %.2f\n", k, assessment.Metrics[k])
	}
	return b.String()
}

// fallbackNarrative renders the metrics directly, in the style of the
// provider-independent alert descriptions shown in the explorer UI.
func fallbackNarrative(region string, hazard models.HazardKind, a models.HazardAssessment) string {
	sev := strings.ToUpper(string(a.Severity))
	switch hazard {
	case models.HazardDrought:
		return fmt.Sprintf(
			"%s DROUGHT ALERT for %s: %.0f of the last %.0f days had under %.0fmm of rain, with average rainfall of %.2fmm/day. Conserve water, protect topsoil with cover crops, and follow local agricultural advisories.",
			sev, region,
			a.Metrics[risk.MetricDryDays], a.Metrics[risk.MetricTotalDays],
			risk.DryDayPrecipMM, a.Metrics[risk.MetricAvgPrecip])
	case models.HazardFlood:
		return fmt.Sprintf(
			"%s FLOOD ALERT for %s: up to %.1fmm of rain fell in a single day and %.0f days saw heavy rainfall in the last %.0f days. Avoid low-lying areas, clear drainage channels, and protect stored harvests.",
			sev, region,
			a.Metrics[risk.MetricMaxDaily], a.Metrics[risk.MetricHeavyRainDays],
			a.Metrics[risk.MetricTotalDays])
	case models.HazardHeatStress:
		return fmt.Sprintf(
			"%s HEAT ALERT for %s: %.0f days above %.0f°C including a run of %.0f consecutive hot days. Stay hydrated, shade livestock and young crops, and avoid midday field work.",
			sev, region,
			a.Metrics[risk.MetricHotDays], risk.HotDayTempC,
			a.Metrics[risk.MetricLongestHotRun])
	default:
		return fmt.Sprintf("%s climate alert for %s.", sev, region)
	}
}

// RecommendedActions returns the standing preparedness guidance for a hazard.
// These are deliberate canned lists: the text collaborator's output is opaque
// prose and is never parsed for structure.
func RecommendedActions(hazard models.HazardKind) []string {
	switch hazard {
	case models.HazardDrought:
		return []string{
			"Plant drought-tolerant and cover crops to protect topsoil",
			"Harvest and store rainwater where possible",
			"Mulch fields to reduce evaporation",
			"Diversify crop selection ahead of the next season",
		}
	case models.HazardFlood:
		return []string{
			"Clear drainage channels around homes and fields",
			"Plant vegetation strips along slopes to slow runoff",
			"Move stored grain and supplies above flood level",
			"Build contour lines on sloped farmland",
		}
	case models.HazardHeatStress:
		return []string{
			"Provide shade and extra water for livestock",
			"Irrigate early morning or late evening",
			"Plant tree lines for long-term shade and soil cooling",
		}
	default:
		return []string{"Monitor conditions and follow local advisories"}
	}
}

// ImmediateActions returns the right-now guidance for a hazard.
func ImmediateActions(hazard models.HazardKind) []string {
	switch hazard {
	case models.HazardDrought:
		return []string{
			"Prioritize drinking water for people and livestock",
			"Stop non-essential irrigation",
			"Contact the local agricultural extension officer",
		}
	case models.HazardFlood:
		return []string{
			"Move people and animals away from riverbanks and low ground",
			"Do not cross flooded roads or bridges",
			"Secure important documents and supplies",
		}
	case models.HazardHeatStress:
		return []string{
			"Avoid strenuous outdoor work during midday hours",
			"Check on children and the elderly",
			"Water young seedlings before sunrise",
		}
	default:
		return []string{"Stay informed about current conditions"}
	}
}

func hazardLabel(h models.HazardKind) string {
	return strings.ReplaceAll(string(h), "_", " ")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
