package aggregate

import (
	"math"

	"hvac-collector/internal/models"
)

// thermalRateKeys are the learned-rate fields carried through to the
// moving-average report.
var thermalRateKeys = []string{
	"heating_rate_learned",
	"cooling_rate_learned",
	"natural_rate_learned",
}

// movingAverageNames maps a rate field to its report key prefix.
var movingAverageNames = map[string]string{
	"heating_rate_learned": "heating_rate",
	"cooling_rate_learned": "cooling_rate",
	"natural_rate_learned": "natural_rate",
}

// Window is a fixed-capacity FIFO of the most recent daily summaries, used
// only to compute moving averages. Entries are frozen copies; nothing in
// here is mutated after Push.
type Window struct {
	capacity int
	entries  []models.DailySummary
}

func NewWindow(capacity int) *Window {
	return &Window{capacity: capacity}
}

// Push appends a summary, evicting the oldest entry once the window is at
// capacity.
func (w *Window) Push(summary models.DailySummary) {
	w.entries = append(w.entries, summary)
	if len(w.entries) > w.capacity {
		w.entries = w.entries[1:]
	}
}

func (w *Window) Len() int {
	return len(w.entries)
}

// MovingAverage computes the mean of one thermal-rate field across the
// window. Entries missing the field are skipped, not treated as zero. With
// fewer than two summaries in the window there is no history to average
// over and nothing is reported.
func (w *Window) MovingAverage(field string) (avg float64, samples int, ok bool) {
	if len(w.entries) < 2 {
		return 0, 0, false
	}

	sum := 0.0
	for _, day := range w.entries {
		v, ok := numeric(day.ThermalRates[field])
		if !ok {
			continue
		}
		sum += v
		samples++
	}
	if samples == 0 {
		return 0, 0, false
	}
	return round4(sum / float64(samples)), samples, true
}

// MovingAverages builds the wire-format moving-average block: for each rate
// present in at least one window entry, `<rate>_7day_avg` and
// `<rate>_samples`.
func (w *Window) MovingAverages() map[string]interface{} {
	out := make(map[string]interface{})
	for _, field := range thermalRateKeys {
		avg, samples, ok := w.MovingAverage(field)
		if !ok {
			continue
		}
		name := movingAverageNames[field]
		out[name+"_7day_avg"] = avg
		out[name+"_samples"] = samples
	}
	return out
}

// numeric extracts a float from the loosely-typed thermal rate values.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
