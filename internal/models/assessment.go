package models

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so they can be compared (low < moderate < high < critical).
func (s Severity) Rank() int {
	switch s {
	case SeverityModerate:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

type HazardKind string

const (
	HazardDrought    HazardKind = "drought"
	HazardFlood      HazardKind = "flood"
	HazardHeatStress HazardKind = "heat_stress"
)

// HazardAssessment is the classifier's verdict for one hazard over one window.
type HazardAssessment struct {
	Severity Severity           `json:"severity"`
	Metrics  map[string]float64 `json:"metrics"`
}

// RiskProfile bundles the per-hazard assessments produced from a single window.
type RiskProfile struct {
	Drought    HazardAssessment `json:"drought"`
	Flood      HazardAssessment `json:"flood"`
	HeatStress HazardAssessment `json:"heat_stress"`
}

// ByHazard returns the assessments keyed by hazard kind.
func (p RiskProfile) ByHazard() map[HazardKind]HazardAssessment {
	return map[HazardKind]HazardAssessment{
		HazardDrought:    p.Drought,
		HazardFlood:      p.Flood,
		HazardHeatStress: p.HeatStress,
	}
}
