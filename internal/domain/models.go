// Package domain contains the core data model for turbine sensor processing.
// It has no infrastructure dependencies; readers, repositories and the HTTP
// layer all map into and out of these types.
package domain

import (
	"fmt"
	"time"
)

// SensorField identifies one of the per-reading sensor channels.
type SensorField string

const (
	FieldWindSpeed     SensorField = "wind_speed"
	FieldWindDirection SensorField = "wind_direction"
	FieldPowerOutput   SensorField = "power_output"
)

// SensorFields lists the sensor channels in canonical column order.
var SensorFields = []SensorField{FieldWindSpeed, FieldWindDirection, FieldPowerOutput}

// RequiredColumns is the full batch schema expected from the reader.
var RequiredColumns = []string{"timestamp", "turbine_id", "wind_speed", "wind_direction", "power_output"}

// FieldStatus is the lifecycle state of a single sensor value during cleaning.
type FieldStatus int

const (
	// StatusPresent - the value was observed (or recovered by forward-fill)
	StatusPresent FieldStatus = iota
	// StatusMissing - the source cell was empty
	StatusMissing
	// StatusInvalid - the value was rejected (parse failure, physical bound, outlier)
	StatusInvalid
)

// FieldValue is an explicit Present/Missing/Invalid cell state. The cleaner
// applies its transition rules over sequences of these instead of relying on
// NaN or nil sentinels.
type FieldValue struct {
	Status FieldStatus
	Value  float64 // Meaningful only when Status == StatusPresent
	Reason string  // Meaningful only when Status == StatusInvalid
}

// Present wraps an observed value.
func Present(v float64) FieldValue {
	return FieldValue{Status: StatusPresent, Value: v}
}

// Missing marks an empty source cell.
func Missing() FieldValue {
	return FieldValue{Status: StatusMissing}
}

// Invalid marks a rejected value with the reason it was rejected.
func Invalid(reason string) FieldValue {
	return FieldValue{Status: StatusInvalid, Reason: reason}
}

// IsPresent reports whether the cell holds a usable value.
func (f FieldValue) IsPresent() bool {
	return f.Status == StatusPresent
}

// RawReading is one parsed source row before cleaning. Timestamp and turbine
// id are non-recoverable, so they carry explicit presence flags; sensor cells
// carry full FieldValue state.
type RawReading struct {
	Timestamp    time.Time
	HasTimestamp bool
	TurbineID    int
	HasTurbineID bool

	WindSpeed     FieldValue
	WindDirection FieldValue
	PowerOutput   FieldValue
}

// Sensor returns the cell state for a field.
func (r *RawReading) Sensor(field SensorField) FieldValue {
	switch field {
	case FieldWindSpeed:
		return r.WindSpeed
	case FieldWindDirection:
		return r.WindDirection
	case FieldPowerOutput:
		return r.PowerOutput
	}
	return Invalid("unknown field")
}

// SetSensor replaces the cell state for a field.
func (r *RawReading) SetSensor(field SensorField, v FieldValue) {
	switch field {
	case FieldWindSpeed:
		r.WindSpeed = v
	case FieldWindDirection:
		r.WindDirection = v
	case FieldPowerOutput:
		r.PowerOutput = v
	}
}

// Batch is a parsed raw batch plus the schema the reader actually found.
// The validator checks Columns against RequiredColumns before anything else
// touches Rows.
type Batch struct {
	Columns []string
	Rows    []RawReading
}

// Reading is a clean sensor record. Every Reading that survives the cleaner
// satisfies: 0 <= WindDirection <= 360, WindSpeed >= 0, PowerOutput >= 0.
type Reading struct {
	Timestamp     time.Time `json:"timestamp"`
	TurbineID     int       `json:"turbine_id"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	PowerOutput   float64   `json:"power_output"`
}

// Date returns the reading's UTC calendar date.
func (r Reading) Date() time.Time {
	return Midnight(r.Timestamp)
}

// CleanReadingSet is one turbine's clean readings, sorted ascending by
// timestamp. Ordering is load-bearing: forward-fill and daily aggregation
// both assume it.
type CleanReadingSet struct {
	TurbineID int
	Readings  []Reading
}

// DailySummary is the per-(turbine, date) aggregate of power output.
type DailySummary struct {
	TurbineID  int       `json:"turbine_id"`
	Date       time.Time `json:"date"`
	Mean       float64   `json:"mean_power_output"`
	Min        float64   `json:"min_power_output"`
	Max        float64   `json:"max_power_output"`
	Std        float64   `json:"std_power_output"`
	DailyTotal float64   `json:"total_power_output"`
	Count      int       `json:"reading_count"`
}

// AnomalyRecord is the per-(turbine, date) anomaly decision. Evaluated is
// false when the turbine did not yet have enough history to compare against;
// HistoricalMean/HistoricalStd/Deviation are only meaningful when it is true.
type AnomalyRecord struct {
	TurbineID      int       `json:"turbine_id"`
	Date           time.Time `json:"date"`
	ActualTotal    float64   `json:"total_power_output"`
	HistoricalMean float64   `json:"hist_mean_daily_output"`
	HistoricalStd  float64   `json:"hist_std_daily_output"`
	Deviation      float64   `json:"deviation"`
	IsAnomaly      bool      `json:"is_anomaly"`
	Evaluated      bool      `json:"evaluated"`
}

// SensorLimit is a physical plausibility bound for one sensor channel.
// A nil Min or Max means unbounded on that side.
type SensorLimit struct {
	Min *float64
	Max *float64
}

// Contains reports whether v is inside the limit.
func (l SensorLimit) Contains(v float64) bool {
	if l.Min != nil && v < *l.Min {
		return false
	}
	if l.Max != nil && v > *l.Max {
		return false
	}
	return true
}

func ptr(v float64) *float64 { return &v }

// DefaultSensorLimits are the physical bounds enforced by the cleaner:
// wind speed 0..100 m/s, wind direction 0..360 degrees, power output >= 0.
func DefaultSensorLimits() map[SensorField]SensorLimit {
	return map[SensorField]SensorLimit{
		FieldWindSpeed:     {Min: ptr(0), Max: ptr(100)},
		FieldWindDirection: {Min: ptr(0), Max: ptr(360)},
		FieldPowerOutput:   {Min: ptr(0)},
	}
}

// Midnight truncates t to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateString formats a date the way it is stored and exchanged (YYYY-MM-DD).
func DateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.UTC(), nil
}
