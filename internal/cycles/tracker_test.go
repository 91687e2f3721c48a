package cycles

import (
	"testing"
	"time"

	"hvac-collector/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestTracker_SingleHeatingCycle(t *testing.T) {
	tracker := NewTracker(testLogger())
	t0 := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)

	cycle := tracker.Observe("climate.thermostat", t0, models.ActionHeating, models.Float64(68.0))
	assert.Nil(t, cycle, "opening a cycle should not emit")

	cycle = tracker.Observe("climate.thermostat", t0.Add(5*time.Minute), models.ActionHeating, models.Float64(69.5))
	assert.Nil(t, cycle, "unchanged action should not emit")

	cycle = tracker.Observe("climate.thermostat", t0.Add(10*time.Minute), models.ActionIdle, models.Float64(71.0))
	if assert.NotNil(t, cycle) {
		assert.Equal(t, models.ActionHeating, cycle.Action)
		assert.Equal(t, 68.0, cycle.StartTemp)
		assert.Equal(t, 71.0, cycle.EndTemp)
		assert.Equal(t, 10.0, cycle.DurationMinutes)
		assert.Equal(t, 3.0, cycle.TemperatureChange)
		assert.True(t, cycle.EndTime.After(cycle.StartTime))
	}
}

func TestTracker_DirectSwitch(t *testing.T) {
	tracker := NewTracker(testLogger())
	t0 := time.Date(2025, 7, 12, 14, 0, 0, 0, time.UTC)

	tracker.Observe("climate.thermostat", t0, models.ActionHeating, models.Float64(70.0))

	// heating -> cooling with no idle step: the old cycle closes at the
	// transition instant and a cooling cycle opens immediately.
	cycle := tracker.Observe("climate.thermostat", t0.Add(15*time.Minute), models.ActionCooling, models.Float64(73.0))
	if assert.NotNil(t, cycle) {
		assert.Equal(t, models.ActionHeating, cycle.Action)
		assert.Equal(t, 15.0, cycle.DurationMinutes)
		assert.Equal(t, 73.0, cycle.EndTemp)
	}

	cycle = tracker.Observe("climate.thermostat", t0.Add(45*time.Minute), models.ActionIdle, models.Float64(71.0))
	if assert.NotNil(t, cycle) {
		assert.Equal(t, models.ActionCooling, cycle.Action)
		assert.Equal(t, t0.Add(15*time.Minute), cycle.StartTime, "cooling cycle starts at the switch, no gap")
		assert.Equal(t, 30.0, cycle.DurationMinutes)
		assert.Equal(t, -2.0, cycle.TemperatureChange)
	}
}

func TestTracker_UnknownEndTempDropsCycle(t *testing.T) {
	tracker := NewTracker(testLogger())
	t0 := time.Now().UTC()

	tracker.Observe("climate.thermostat", t0, models.ActionCooling, models.Float64(75.0))
	cycle := tracker.Observe("climate.thermostat", t0.Add(20*time.Minute), models.ActionIdle, nil)
	assert.Nil(t, cycle, "cycle without an end temperature is dropped")

	status := tracker.Status()
	assert.Equal(t, int64(1), status["cycles_dropped"])
	assert.Equal(t, int64(0), status["cycles_detected"])
}

func TestTracker_UnknownStartTempDropsCycle(t *testing.T) {
	tracker := NewTracker(testLogger())
	t0 := time.Now().UTC()

	tracker.Observe("climate.thermostat", t0, models.ActionHeating, nil)
	cycle := tracker.Observe("climate.thermostat", t0.Add(8*time.Minute), models.ActionOff, models.Float64(70.0))
	assert.Nil(t, cycle)
}

func TestTracker_EndWithoutOpenCycle(t *testing.T) {
	tracker := NewTracker(testLogger())
	t0 := time.Now().UTC()

	// idle -> off is not a cycle boundary.
	cycle := tracker.Observe("climate.thermostat", t0, models.ActionOff, models.Float64(70.0))
	assert.Nil(t, cycle)
	cycle = tracker.Observe("climate.thermostat", t0.Add(time.Minute), models.ActionIdle, models.Float64(70.0))
	assert.Nil(t, cycle)
}

func TestTracker_EntitiesAreIndependent(t *testing.T) {
	tracker := NewTracker(testLogger())
	t0 := time.Date(2025, 1, 20, 6, 0, 0, 0, time.UTC)

	tracker.Observe("climate.upstairs", t0, models.ActionHeating, models.Float64(66.0))
	tracker.Observe("climate.downstairs", t0, models.ActionHeating, models.Float64(64.0))

	cycle := tracker.Observe("climate.upstairs", t0.Add(12*time.Minute), models.ActionIdle, models.Float64(68.0))
	if assert.NotNil(t, cycle) {
		assert.Equal(t, 66.0, cycle.StartTemp)
	}

	status := tracker.Status()
	assert.Equal(t, 1, status["open_cycles"], "downstairs cycle still open")
}

func TestTracker_SeededCycleFinalizes(t *testing.T) {
	tracker := NewTracker(testLogger())
	t0 := time.Date(2025, 2, 1, 0, 5, 0, 0, time.UTC)

	// A run already in progress at day start is seeded, not lost.
	tracker.Seed("climate.thermostat", t0, models.ActionHeating, models.Float64(67.0))

	cycle := tracker.Observe("climate.thermostat", t0.Add(30*time.Minute), models.ActionIdle, models.Float64(70.0))
	if assert.NotNil(t, cycle) {
		assert.Equal(t, models.ActionHeating, cycle.Action)
		assert.Equal(t, 30.0, cycle.DurationMinutes)
	}
}

func TestTracker_DurationRounding(t *testing.T) {
	tracker := NewTracker(testLogger())
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tracker.Observe("climate.thermostat", t0, models.ActionHeating, models.Float64(68.0))
	cycle := tracker.Observe("climate.thermostat", t0.Add(7*time.Minute+20*time.Second), models.ActionIdle, models.Float64(69.1))
	if assert.NotNil(t, cycle) {
		assert.Equal(t, 7.33, cycle.DurationMinutes)
		assert.Equal(t, 1.1, cycle.TemperatureChange)
	}
}
