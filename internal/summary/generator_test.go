package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/terraguard/climate-alerts/internal/models"
	"github.com/terraguard/climate-alerts/internal/risk"
)

type stubTextProvider struct {
	reply string
	err   error
}

func (s *stubTextProvider) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return s.reply, s.err
}

func droughtAssessment() models.HazardAssessment {
	return models.HazardAssessment{
		Severity: models.SeverityHigh,
		Metrics: map[string]float64{
			risk.MetricTotalDays:  30,
			risk.MetricDryDays:    18,
			risk.MetricAvgPrecip:  1.4,
			risk.MetricAvgMaxTemp: 33.2,
		},
	}
}

func TestNarrative_UsesProviderReply(t *testing.T) {
	g := NewGenerator(&stubTextProvider{reply: "  Rains have failed for weeks.  "}, 2000)

	text, degraded := g.Narrative(context.Background(), "Kitui", models.HazardDrought, droughtAssessment())
	if degraded {
		t.Error("expected provider reply, not fallback")
	}
	if text != "Rains have failed for weeks." {
		t.Errorf("expected trimmed reply, got %q", text)
	}
}

func TestNarrative_FallsBackOnProviderError(t *testing.T) {
	g := NewGenerator(&stubTextProvider{err: errors.New("rate limited")}, 2000)

	text, degraded := g.Narrative(context.Background(), "Kitui", models.HazardDrought, droughtAssessment())
	if !degraded {
		t.Error("expected the fallback template")
	}
	if !strings.Contains(text, "Kitui") || !strings.Contains(text, "DROUGHT") {
		t.Errorf("fallback must carry region and hazard, got %q", text)
	}
	if !strings.Contains(text, "18") {
		t.Errorf("fallback must carry the dry day count, got %q", text)
	}
}

func TestNarrative_FallsBackOnEmptyReply(t *testing.T) {
	g := NewGenerator(&stubTextProvider{reply: "   "}, 2000)

	_, degraded := g.Narrative(context.Background(), "Kitui", models.HazardDrought, droughtAssessment())
	if !degraded {
		t.Error("a blank reply must degrade to the fallback")
	}
}

func TestNarrative_NilProviderUsesFallback(t *testing.T) {
	g := NewGenerator(nil, 2000)

	text, degraded := g.Narrative(context.Background(), "Nakuru", models.HazardFlood, models.HazardAssessment{
		Severity: models.SeverityCritical,
		Metrics: map[string]float64{
			risk.MetricTotalDays:     30,
			risk.MetricMaxDaily:      120,
			risk.MetricHeavyRainDays: 3,
			risk.MetricTotalPrecip:   260,
		},
	})
	if !degraded {
		t.Error("expected fallback without a provider")
	}
	if !strings.Contains(text, "FLOOD") || !strings.Contains(text, "Nakuru") {
		t.Errorf("unexpected fallback %q", text)
	}
}

func TestNarrative_CapsLength(t *testing.T) {
	g := NewGenerator(&stubTextProvider{reply: strings.Repeat("x", 500)}, 100)

	text, degraded := g.Narrative(context.Background(), "Kitui", models.HazardDrought, droughtAssessment())
	if degraded {
		t.Error("a long reply is still a reply")
	}
	if len([]rune(text)) != 100 {
		t.Errorf("expected the narrative capped at 100 runes, got %d", len([]rune(text)))
	}
}

func TestActionLists_NonEmptyPerHazard(t *testing.T) {
	for _, hazard := range []models.HazardKind{models.HazardDrought, models.HazardFlood, models.HazardHeatStress} {
		if len(RecommendedActions(hazard)) == 0 {
			t.Errorf("no recommended actions for %s", hazard)
		}
		if len(ImmediateActions(hazard)) == 0 {
			t.Errorf("no immediate actions for %s", hazard)
		}
	}
}
