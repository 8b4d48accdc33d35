package models

import "time"

type DispatchOutcome string

const (
	DispatchDelivered DispatchOutcome = "delivered"
	DispatchFailed    DispatchOutcome = "failed"
	DispatchSkipped   DispatchOutcome = "skipped"
)

// DispatchRecord is one delivery attempt of one alert to one subscriber over
// one channel. Append-only; never updated after insert.
type DispatchRecord struct {
	AlertID      string
	SubscriberID string
	Channel      Channel
	AttemptedAt  time.Time
	Outcome      DispatchOutcome
	Error        string
}
