package sensors

import (
	"testing"
	"time"

	"hvac-collector/internal/config"
	"hvac-collector/internal/models"
	"hvac-collector/internal/statestore"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testSetup(sensors config.SensorsConfig) (*Reader, *statestore.Store) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	cfg := &config.Config{Sensors: sensors}
	store := statestore.NewStore(cfg, logger)
	return NewReader(cfg, logger, store), store
}

func defaultSensors() config.SensorsConfig {
	return config.SensorsConfig{
		Temperature: "sensor.indoor_temperature",
		HVAC:        "climate.thermostat",
		Thermostat:  "climate.thermostat",
	}
}

func TestSnapshot_ClimateActionAttribute(t *testing.T) {
	reader, store := testSetup(defaultSensors())
	store.Set("sensor.indoor_temperature", "68.5", nil)
	store.Set("climate.thermostat", "heat", map[string]interface{}{
		"hvac_action": "heating",
		"hvac_mode":   "heat",
		"temperature": 71.0,
		"humidity":    38.0,
	})

	now := time.Now().UTC()
	snap, err := reader.Snapshot(now)

	assert.NoError(t, err)
	assert.Equal(t, models.ActionHeating, snap.Observation.HVACAction)
	assert.Equal(t, 68.5, *snap.Observation.CurrentTemp)
	assert.Equal(t, 71.0, *snap.Observation.TargetTemp)
	assert.Equal(t, 38.0, *snap.Observation.Humidity)
	assert.Equal(t, "HEAT", snap.Reading.HVACState)
	assert.Equal(t, 68.5, snap.Reading.IndoorTemp)
	assert.Equal(t, now, snap.Reading.Timestamp)
}

func TestSnapshot_MissingRequiredSensor(t *testing.T) {
	reader, store := testSetup(defaultSensors())
	store.Set("climate.thermostat", "heat", map[string]interface{}{"temperature": 70.0})
	// No indoor temperature at all.

	snap, err := reader.Snapshot(time.Now().UTC())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrMissingSensor)
}

func TestSnapshot_UnavailableSensorIsMissing(t *testing.T) {
	reader, store := testSetup(defaultSensors())
	store.Set("sensor.indoor_temperature", statestore.StateUnavailable, nil)
	store.Set("climate.thermostat", "heat", map[string]interface{}{"temperature": 70.0})

	_, err := reader.Snapshot(time.Now().UTC())
	assert.ErrorIs(t, err, ErrMissingSensor)
}

func TestSnapshot_MalformedMandatoryValue(t *testing.T) {
	reader, store := testSetup(defaultSensors())
	store.Set("sensor.indoor_temperature", "not-a-number", nil)
	store.Set("climate.thermostat", "heat", map[string]interface{}{"temperature": 70.0})

	_, err := reader.Snapshot(time.Now().UTC())
	assert.ErrorIs(t, err, ErrMalformedValue)
}

func TestSnapshot_MalformedOptionalIsAbsent(t *testing.T) {
	sensors := defaultSensors()
	sensors.Humidity = "sensor.humidity"
	reader, store := testSetup(sensors)
	store.Set("sensor.indoor_temperature", "68.0", nil)
	store.Set("sensor.humidity", "bogus", nil)
	store.Set("climate.thermostat", "heat", map[string]interface{}{"temperature": 70.0})

	snap, err := reader.Snapshot(time.Now().UTC())
	assert.NoError(t, err, "malformed optional field does not abort the poll")
	assert.Nil(t, snap.Observation.Humidity)
}

func TestCanonicalAction_AutoModeDeadBand(t *testing.T) {
	cases := []struct {
		name    string
		current float64
		target  float64
		want    models.Action
	}{
		{"inside dead-band", 70.0, 70.3, models.ActionOff},
		{"exactly at threshold", 70.0, 70.5, models.ActionOff},
		{"needs heat", 68.0, 70.0, models.ActionHeating},
		{"needs cooling", 74.0, 70.0, models.ActionCooling},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader, store := testSetup(defaultSensors())
			store.Set("sensor.indoor_temperature", "68.0", nil)
			store.Set("climate.thermostat", "auto", map[string]interface{}{
				"hvac_mode":           "auto",
				"current_temperature": tc.current,
				"temperature":         tc.target,
			})

			snap, err := reader.Snapshot(time.Now().UTC())
			assert.NoError(t, err)
			assert.Equal(t, tc.want, snap.Observation.HVACAction)
		})
	}
}

func TestCanonicalAction_BinaryRunSensor(t *testing.T) {
	sensors := defaultSensors()
	sensors.HVAC = "binary_sensor.furnace_running"
	sensors.Thermostat = "sensor.setpoint"
	reader, store := testSetup(sensors)

	store.Set("sensor.indoor_temperature", "67.0", nil)
	store.Set("sensor.setpoint", "70.0", nil)
	store.Set("binary_sensor.furnace_running", "on", nil)

	snap, err := reader.Snapshot(time.Now().UTC())
	assert.NoError(t, err)
	assert.Equal(t, models.ActionHeating, snap.Observation.HVACAction, "running below setpoint means heating")

	store.Set("binary_sensor.furnace_running", "off", nil)
	snap, err = reader.Snapshot(time.Now().UTC())
	assert.NoError(t, err)
	assert.Equal(t, models.ActionOff, snap.Observation.HVACAction)
	assert.Equal(t, "OFF", snap.Reading.HVACState)
}

func TestSnapshot_WeatherSample(t *testing.T) {
	sensors := defaultSensors()
	sensors.Weather = "weather.home"
	reader, store := testSetup(sensors)

	store.Set("sensor.indoor_temperature", "68.0", nil)
	store.Set("climate.thermostat", "heat", map[string]interface{}{"temperature": 70.0})
	store.Set("weather.home", "cloudy", map[string]interface{}{
		"temperature": 48.0,
		"humidity":    72.0,
		"pressure":    1012.0,
		"wind_speed":  9.5,
	})

	snap, err := reader.Snapshot(time.Now().UTC())
	assert.NoError(t, err)
	if assert.NotNil(t, snap.Weather) {
		assert.Equal(t, "cloudy", snap.Weather.Condition)
		assert.Equal(t, 48.0, *snap.Weather.Temperature)
		assert.Equal(t, 9.5, *snap.Weather.WindSpeed)
	}
}

func TestThermalRates_Passthrough(t *testing.T) {
	sensors := defaultSensors()
	sensors.ThermalLearning = "sensor.thermal_learning"
	reader, store := testSetup(sensors)

	rates := reader.ThermalRates()
	assert.Empty(t, rates, "absent learning entity yields empty map")

	store.Set("sensor.thermal_learning", statestore.StateUnknown, map[string]interface{}{
		"heating_rate_learned": 1.9,
	})
	assert.Empty(t, reader.ThermalRates(), "unavailable learning entity yields empty map")

	store.Set("sensor.thermal_learning", "learning", map[string]interface{}{
		"heating_rate_learned": 1.9,
		"cooling_rate_learned": 2.4,
		"heating_samples":      14,
		"has_sufficient_data":  true,
		"unrelated":            "ignored",
	})
	rates = reader.ThermalRates()
	assert.Equal(t, 1.9, rates["heating_rate_learned"])
	assert.Equal(t, 14, rates["heating_samples"])
	assert.Equal(t, true, rates["has_sufficient_data"])
	assert.NotContains(t, rates, "unrelated")
}
