package models

import "time"

// WindowDays is the fixed length of an observation window. Every downstream
// ratio (days without rain / total days) assumes this denominator.
const WindowDays = 30

// SentinelValue marks a missing reading in provider data (NASA POWER fill
// value). Sentinel days stay in the window so day counts remain meaningful.
const SentinelValue = -999.0

type Coordinate struct {
	Latitude  float64
	Longitude float64
}

func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Observation is one day of climate readings for a coordinate.
type Observation struct {
	Date            time.Time
	MaxTemperatureC float64
	PrecipitationMM float64
}

// ObservationWindow is an ordered run of daily observations, oldest first,
// exactly WindowDays long with no gaps.
type ObservationWindow []Observation

// IsSentinel reports whether a reading is the provider's missing-value marker.
func IsSentinel(v float64) bool {
	return v <= SentinelValue
}
