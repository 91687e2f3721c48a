package sensors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hvac-collector/internal/config"
	"hvac-collector/internal/models"
	"hvac-collector/internal/statestore"

	"github.com/sirupsen/logrus"
)

// ErrMissingSensor means a required sensor was absent or unavailable at
// poll time. ErrMalformedValue means a mandatory numeric failed to parse.
// Either way the poll is skipped with no state mutated.
var (
	ErrMissingSensor  = errors.New("required sensor data missing")
	ErrMalformedValue = errors.New("sensor value malformed")
)

// DeadBand is the tolerance around the setpoint inside which no
// heating/cooling action is inferred for ambiguous sources.
const DeadBand = 0.5

// Reader turns the raw entity registry into canonical snapshots. It owns the
// mapping from heterogeneous source kinds (climate, numeric sensor, binary
// run sensor) into the heating/cooling/off vocabulary.
type Reader struct {
	config *config.Config
	logger *logrus.Logger
	store  *statestore.Store
}

func NewReader(cfg *config.Config, logger *logrus.Logger, store *statestore.Store) *Reader {
	return &Reader{config: cfg, logger: logger, store: store}
}

// Snapshot reads all configured sensors and builds one poll result. Any
// missing required sensor aborts the whole snapshot; optional fields that
// are absent or unparseable come back nil.
func (r *Reader) Snapshot(now time.Time) (*models.Snapshot, error) {
	indoorTemp, err := r.requiredFloat(r.config.Sensors.Temperature)
	if err != nil {
		return nil, err
	}

	hvacState, ok := r.availableState(r.config.Sensors.HVAC)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingSensor, r.config.Sensors.HVAC)
	}

	targetTemp, err := r.targetTemperature()
	if err != nil {
		return nil, err
	}

	var humidity *float64
	if r.config.Sensors.Humidity != "" {
		if st, ok := r.availableState(r.config.Sensors.Humidity); ok {
			humidity = parseFloat(st.State)
		}
	}
	if humidity == nil {
		humidity = floatAttr(hvacState.Attributes, "humidity")
	}

	currentTemp := indoorTemp
	if v := floatAttr(hvacState.Attributes, "current_temperature"); v != nil {
		currentTemp = *v
	}

	action := r.canonicalAction(r.config.Sensors.HVAC, hvacState, currentTemp, targetTemp)

	obs := models.Observation{
		Timestamp:   now,
		EntityID:    r.config.Sensors.HVAC,
		CurrentTemp: models.Float64(currentTemp),
		TargetTemp:  models.Float64(targetTemp),
		Humidity:    humidity,
		HVACMode:    stringAttr(hvacState.Attributes, "hvac_mode"),
		HVACAction:  action,
	}

	snap := &models.Snapshot{
		Observation: obs,
		Reading: models.Reading{
			Timestamp:      now,
			IndoorTemp:     indoorTemp,
			IndoorHumidity: humidity,
			HVACState:      wireState(action),
			TargetTemp:     targetTemp,
		},
		Weather: r.weatherSample(now),
	}
	return snap, nil
}

// ThermalRates passes through the learning entity's attributes untouched.
// Returns an empty map when the entity is absent or unavailable.
func (r *Reader) ThermalRates() models.ThermalRates {
	rates := models.ThermalRates{}
	if r.config.Sensors.ThermalLearning == "" {
		return rates
	}
	st, ok := r.availableState(r.config.Sensors.ThermalLearning)
	if !ok {
		return rates
	}

	for _, key := range []string{
		"heating_rate_learned",
		"cooling_rate_learned",
		"natural_rate_learned",
		"heating_samples",
		"cooling_samples",
		"natural_samples",
		"has_sufficient_data",
	} {
		if v, ok := st.Attributes[key]; ok {
			rates[key] = v
		}
	}
	return rates
}

func (r *Reader) weatherSample(now time.Time) *models.WeatherSample {
	if r.config.Sensors.Weather == "" {
		return nil
	}
	st, ok := r.availableState(r.config.Sensors.Weather)
	if !ok {
		return nil
	}
	return &models.WeatherSample{
		Timestamp:   now,
		EntityID:    r.config.Sensors.Weather,
		Condition:   st.State,
		Temperature: floatAttr(st.Attributes, "temperature"),
		Humidity:    floatAttr(st.Attributes, "humidity"),
		Pressure:    floatAttr(st.Attributes, "pressure"),
		WindSpeed:   floatAttr(st.Attributes, "wind_speed"),
	}
}

func (r *Reader) targetTemperature() (float64, error) {
	entityID := r.config.Sensors.Thermostat
	st, ok := r.availableState(entityID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingSensor, entityID)
	}
	if v := floatAttr(st.Attributes, "temperature"); v != nil {
		return *v, nil
	}
	if v := parseFloat(st.State); v != nil {
		return *v, nil
	}
	return 0, fmt.Errorf("%w: %s target temperature", ErrMalformedValue, entityID)
}

func (r *Reader) requiredFloat(entityID string) (float64, error) {
	st, ok := r.availableState(entityID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingSensor, entityID)
	}
	v := parseFloat(st.State)
	if v == nil {
		return 0, fmt.Errorf("%w: %s state %q", ErrMalformedValue, entityID, st.State)
	}
	return *v, nil
}

func (r *Reader) availableState(entityID string) (statestore.EntityState, bool) {
	if !r.store.Available(entityID) {
		return statestore.EntityState{}, false
	}
	return r.store.Get(entityID)
}

// canonicalAction maps one entity's state into the canonical vocabulary.
// Precedence: explicit hvac_action attribute, then mode inference, then the
// dead-band rule for ambiguous sources.
func (r *Reader) canonicalAction(entityID string, st statestore.EntityState, current, target float64) models.Action {
	switch entityKind(entityID) {
	case "climate":
		if a := normalizeAction(stringAttr(st.Attributes, "hvac_action")); a != models.ActionUnknown {
			return a
		}
		mode := stringAttr(st.Attributes, "hvac_mode")
		if mode == "" {
			mode = st.State
		}
		return actionFromMode(mode, current, target)
	case "binary_sensor":
		// A run sensor only knows on/off; direction comes from the setpoint.
		if strings.EqualFold(st.State, "on") {
			switch {
			case target > current:
				return models.ActionHeating
			case target < current:
				return models.ActionCooling
			default:
				return models.ActionUnknown
			}
		}
		return models.ActionOff
	default:
		// Raw state sensor: the state is the action name itself.
		return normalizeAction(st.State)
	}
}

func actionFromMode(mode string, current, target float64) models.Action {
	switch strings.ToLower(mode) {
	case "heat", "heating":
		return models.ActionHeating
	case "cool", "cooling":
		return models.ActionCooling
	case "off":
		return models.ActionOff
	case "auto", "heat_cool":
		delta := target - current
		switch {
		case delta > DeadBand:
			return models.ActionHeating
		case delta < -DeadBand:
			return models.ActionCooling
		default:
			return models.ActionOff
		}
	default:
		return models.ActionUnknown
	}
}

func normalizeAction(s string) models.Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heating", "heat":
		return models.ActionHeating
	case "cooling", "cool":
		return models.ActionCooling
	case "idle":
		return models.ActionIdle
	case "off":
		return models.ActionOff
	default:
		return models.ActionUnknown
	}
}

// wireState converts the canonical action into the backend's HEAT/COOL/OFF
// vocabulary for raw readings.
func wireState(a models.Action) string {
	switch a {
	case models.ActionHeating:
		return "HEAT"
	case models.ActionCooling:
		return "COOL"
	default:
		return "OFF"
	}
}

func entityKind(entityID string) string {
	if idx := strings.Index(entityID, "."); idx > 0 {
		return entityID[:idx]
	}
	return ""
}

func stringAttr(attrs map[string]interface{}, key string) string {
	if v, ok := attrs[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// floatAttr reads a numeric attribute, tolerating the representations JSON
// decoding can produce. Malformed values are treated as absent.
func floatAttr(attrs map[string]interface{}, key string) *float64 {
	v, ok := attrs[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return models.Float64(n)
	case float32:
		return models.Float64(float64(n))
	case int:
		return models.Float64(float64(n))
	case int64:
		return models.Float64(float64(n))
	case string:
		return parseFloat(n)
	default:
		return nil
	}
}

func parseFloat(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return models.Float64(f)
}
