package aggregate

import (
	"fmt"
	"testing"

	"hvac-collector/internal/models"

	"github.com/stretchr/testify/assert"
)

func day(date string, rates models.ThermalRates) models.DailySummary {
	return models.DailySummary{Date: date, ThermalRates: rates}
}

func TestWindow_EvictsOldest(t *testing.T) {
	window := NewWindow(8)

	for i := 0; i < 9; i++ {
		window.Push(day(fmt.Sprintf("2025-10-%02d", i+1), nil))
	}

	assert.Equal(t, 8, window.Len(), "window length never exceeds capacity")
	assert.Equal(t, "2025-10-02", window.entries[0].Date, "oldest entry evicted")
	assert.Equal(t, "2025-10-09", window.entries[7].Date)
}

func TestWindow_MovingAverageNeedsHistory(t *testing.T) {
	window := NewWindow(8)

	_, _, ok := window.MovingAverage("heating_rate_learned")
	assert.False(t, ok, "empty window has no history")

	window.Push(day("2025-10-01", models.ThermalRates{"heating_rate_learned": 2.0}))
	_, _, ok = window.MovingAverage("heating_rate_learned")
	assert.False(t, ok, "a single day has no history to average")

	window.Push(day("2025-10-02", models.ThermalRates{"heating_rate_learned": 3.0}))
	avg, samples, ok := window.MovingAverage("heating_rate_learned")
	assert.True(t, ok)
	assert.Equal(t, 2.5, avg)
	assert.Equal(t, 2, samples)
}

func TestWindow_SkipsEntriesMissingField(t *testing.T) {
	window := NewWindow(8)
	window.Push(day("2025-10-01", models.ThermalRates{"heating_rate_learned": 1.5}))
	window.Push(day("2025-10-02", nil))
	window.Push(day("2025-10-03", models.ThermalRates{"heating_rate_learned": 2.5, "cooling_rate_learned": 4.0}))

	avg, samples, ok := window.MovingAverage("heating_rate_learned")
	assert.True(t, ok)
	assert.Equal(t, 2.0, avg)
	assert.Equal(t, 2, samples, "day without the field is skipped, not zero")

	// cooling appears once; with the history gate already passed it still
	// reports with a single sample.
	avg, samples, ok = window.MovingAverage("cooling_rate_learned")
	assert.True(t, ok)
	assert.Equal(t, 4.0, avg)
	assert.Equal(t, 1, samples)

	_, _, ok = window.MovingAverage("natural_rate_learned")
	assert.False(t, ok, "field present nowhere yields nothing")
}

func TestWindow_Rounding(t *testing.T) {
	window := NewWindow(8)
	window.Push(day("2025-10-01", models.ThermalRates{"natural_rate_learned": 0.11111}))
	window.Push(day("2025-10-02", models.ThermalRates{"natural_rate_learned": 0.22222}))
	window.Push(day("2025-10-03", models.ThermalRates{"natural_rate_learned": 0.33333}))

	avg, samples, ok := window.MovingAverage("natural_rate_learned")
	assert.True(t, ok)
	assert.Equal(t, 0.2222, avg, "mean rounded to 4 decimal places")
	assert.Equal(t, 3, samples)
}

func TestWindow_MovingAveragesWireFormat(t *testing.T) {
	window := NewWindow(8)
	window.Push(day("2025-10-01", models.ThermalRates{"heating_rate_learned": 1.0, "cooling_rate_learned": 2.0}))
	window.Push(day("2025-10-02", models.ThermalRates{"heating_rate_learned": 2.0}))

	out := window.MovingAverages()

	assert.Equal(t, 1.5, out["heating_rate_7day_avg"])
	assert.Equal(t, 2, out["heating_rate_samples"])
	assert.Equal(t, 2.0, out["cooling_rate_7day_avg"])
	assert.Equal(t, 1, out["cooling_rate_samples"])
	assert.NotContains(t, out, "natural_rate_7day_avg")
}
