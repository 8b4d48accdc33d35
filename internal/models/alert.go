package models

import "time"

type AlertStatus string

const (
	AlertStatusActive  AlertStatus = "active"
	AlertStatusExpired AlertStatus = "expired"
)

// Alert is the persisted unit of notification. At most one active alert may
// exist per (region, hazard) tuple; supersession expires the old row rather
// than mutating it.
type Alert struct {
	ID                 string     `json:"id"`
	Region             string     `json:"region"`
	Hazard             HazardKind `json:"hazard"`
	Severity           Severity   `json:"severity"`
	Title              string     `json:"title"`
	Narrative          string     `json:"narrative"`
	RecommendedActions []string   `json:"recommended_actions"`
	ImmediateActions   []string   `json:"immediate_actions"`
	// SourceSnapshot freezes the assessment metrics the alert was created
	// from. Never recomputed after insert.
	SourceSnapshot map[string]float64 `json:"source_snapshot"`
	Status         AlertStatus        `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	ExpiresAt      time.Time          `json:"expires_at"`
}

// AlertDraft carries everything needed to create or supersede an alert for a
// (region, hazard) tuple.
type AlertDraft struct {
	Region             string
	Hazard             HazardKind
	Severity           Severity
	Title              string
	Narrative          string
	RecommendedActions []string
	ImmediateActions   []string
	SourceSnapshot     map[string]float64
}
