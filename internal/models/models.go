package models

import (
	"time"
)

// Action is the canonical HVAC activity vocabulary. Heterogeneous sensor
// representations (climate entities, raw state sensors, binary run sensors)
// are all mapped into this set before anything downstream sees them.
type Action string

const (
	ActionHeating Action = "heating"
	ActionCooling Action = "cooling"
	ActionIdle    Action = "idle"
	ActionOff     Action = "off"
	ActionUnknown Action = "unknown"
)

// Active reports whether the action represents a running HVAC cycle.
func (a Action) Active() bool {
	return a == ActionHeating || a == ActionCooling
}

// Observation is one poll-tick snapshot of the climate state. Optional
// fields are nil when the source sensor did not report them.
type Observation struct {
	Timestamp   time.Time `json:"timestamp"`
	EntityID    string    `json:"entity_id"`
	CurrentTemp *float64  `json:"current_temp,omitempty"`
	TargetTemp  *float64  `json:"target_temp,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	HVACMode    string    `json:"hvac_mode,omitempty"`
	HVACAction  Action    `json:"hvac_action"`
}

// Cycle is one completed heating or cooling run. Cycles are only emitted
// once finalized; an open cycle lives inside the tracker until its end
// transition is observed.
type Cycle struct {
	Action            Action    `json:"action"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	StartTemp         float64   `json:"start_temperature"`
	EndTemp           float64   `json:"end_temperature"`
	DurationMinutes   float64   `json:"duration_minutes"`
	TemperatureChange float64   `json:"temperature_change"`
}

// UserInputEvent records one user-initiated service call.
type UserInputEvent struct {
	Timestamp  time.Time              `json:"timestamp"`
	Service    string                 `json:"service"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// WeatherSample is one snapshot of the outdoor weather entity.
type WeatherSample struct {
	Timestamp   time.Time `json:"timestamp"`
	EntityID    string    `json:"entity_id"`
	Condition   string    `json:"condition,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Pressure    *float64  `json:"pressure,omitempty"`
	WindSpeed   *float64  `json:"wind_speed,omitempty"`
}

// Reading is the raw-batch wire format expected by the analytics backend.
// HVACState uses the backend vocabulary HEAT/COOL/OFF rather than the
// canonical Action strings.
type Reading struct {
	Timestamp      time.Time `json:"timestamp"`
	IndoorTemp     float64   `json:"indoor_temp"`
	IndoorHumidity *float64  `json:"indoor_humidity"`
	HVACState      string    `json:"hvac_state"`
	TargetTemp     float64   `json:"target_temp"`
}

// HVACStats summarizes the day's completed cycles.
type HVACStats struct {
	TotalCycles           int     `json:"total_cycles"`
	HeatingCycles         int     `json:"heating_cycles"`
	CoolingCycles         int     `json:"cooling_cycles"`
	TotalRuntimeMinutes   float64 `json:"total_runtime_minutes"`
	HeatingRuntimeMinutes float64 `json:"heating_runtime_minutes"`
	CoolingRuntimeMinutes float64 `json:"cooling_runtime_minutes"`
	AverageCycleLength    float64 `json:"average_cycle_length_minutes"`
}

// SeriesStats holds min/max/avg plus the number of samples that went in.
type SeriesStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"readings_count"`
}

// TargetStats is SeriesStats for the setpoint, where the interesting count
// is the number of distinct values seen rather than raw samples.
type TargetStats struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
	Changes int     `json:"changes_count"`
}

// RangeStats is a min/max/avg aggregate without a sample count, used for
// the weather fields.
type RangeStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// TemperatureSummary aggregates the day's observations per field. A nil
// field means no samples were recorded for it; absence is "no data", never
// zero.
type TemperatureSummary struct {
	Actual   *SeriesStats `json:"actual_temperature,omitempty"`
	Target   *TargetStats `json:"target_temperature,omitempty"`
	Humidity *SeriesStats `json:"humidity,omitempty"`
}

// UserInputSummary counts the day's service calls per service name.
type UserInputSummary struct {
	TotalInputs    int            `json:"total_inputs"`
	Services       map[string]int `json:"services_used"`
	UniqueServices int            `json:"unique_services"`
}

// WeatherSummary aggregates the day's weather samples.
type WeatherSummary struct {
	Conditions       map[string]int `json:"conditions,omitempty"`
	PrimaryCondition string         `json:"primary_condition,omitempty"`
	Temperature      *RangeStats    `json:"outdoor_temperature,omitempty"`
	Humidity         *RangeStats    `json:"outdoor_humidity,omitempty"`
	Pressure         *RangeStats    `json:"pressure,omitempty"`
	WindSpeed        *RangeStats    `json:"wind_speed,omitempty"`
}

// ThermalRates is the passthrough of the learning entity's attributes
// (learned heating/cooling/natural rates, sample counts). Values are kept
// as-is; nothing here interprets them beyond the moving-average extraction.
type ThermalRates map[string]interface{}

// DailySummary is the finalized aggregate for one calendar day. Immutable
// after rollover builds it.
type DailySummary struct {
	Date         string             `json:"date"`
	HVACCycles   HVACStats          `json:"hvac_cycles"`
	Temperature  TemperatureSummary `json:"temperature_data"`
	UserInputs   UserInputSummary   `json:"user_inputs"`
	Weather      WeatherSummary     `json:"weather_data"`
	ThermalRates ThermalRates       `json:"thermal_rates"`
}

// Snapshot bundles everything one successful poll produced.
type Snapshot struct {
	Observation Observation
	Reading     Reading
	Weather     *WeatherSample
}

// Float64 returns a pointer to v, for building optional fields.
func Float64(v float64) *float64 {
	return &v
}
