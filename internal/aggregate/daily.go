package aggregate

import (
	"math"
	"time"

	"hvac-collector/internal/models"

	"github.com/sirupsen/logrus"
)

// Daily owns the current day's accumulation buffers. All mutation happens
// from the collector's single callback goroutine, so there is no locking
// here; the buffers are reset, never retained, at rollover.
type Daily struct {
	logger *logrus.Logger
	window *Window

	observations []models.Observation
	cycles       []models.Cycle
	inputs       []models.UserInputEvent
	weather      []models.WeatherSample
}

func NewDaily(logger *logrus.Logger, window *Window) *Daily {
	return &Daily{logger: logger, window: window}
}

func (d *Daily) RecordObservation(obs models.Observation) {
	d.observations = append(d.observations, obs)
}

func (d *Daily) RecordCycle(c models.Cycle) {
	d.cycles = append(d.cycles, c)
}

func (d *Daily) RecordUserInput(ev models.UserInputEvent) {
	d.inputs = append(d.inputs, ev)
}

func (d *Daily) RecordWeather(w models.WeatherSample) {
	d.weather = append(d.weather, w)
}

// Counts reports the buffer lengths for the status surface and tests.
func (d *Daily) Counts() map[string]int {
	return map[string]int{
		"observations": len(d.observations),
		"cycles":       len(d.cycles),
		"user_inputs":  len(d.inputs),
		"weather":      len(d.weather),
	}
}

// Rollover finalizes the day: builds the summary from the four buffers plus
// the passed-through thermal rates, pushes it into the rolling window, and
// resets the buffers. The returned summary is frozen; it shares nothing
// with the new day's buffers.
func (d *Daily) Rollover(date time.Time, rates models.ThermalRates) models.DailySummary {
	summary := models.DailySummary{
		Date:         date.Format("2006-01-02"),
		HVACCycles:   summarizeHVAC(d.cycles),
		Temperature:  summarizeTemperature(d.observations),
		UserInputs:   summarizeUserInputs(d.inputs),
		Weather:      summarizeWeather(d.weather),
		ThermalRates: rates,
	}

	d.window.Push(summary)

	obsCount := len(d.observations)
	d.observations = nil
	d.cycles = nil
	d.inputs = nil
	d.weather = nil

	d.logger.Infof("Rolled over day %s: %d cycles, %d observations",
		summary.Date, summary.HVACCycles.TotalCycles, obsCount)
	return summary
}

func summarizeHVAC(cycles []models.Cycle) models.HVACStats {
	stats := models.HVACStats{}
	if len(cycles) == 0 {
		return stats
	}

	for _, c := range cycles {
		stats.TotalCycles++
		stats.TotalRuntimeMinutes += c.DurationMinutes
		switch c.Action {
		case models.ActionHeating:
			stats.HeatingCycles++
			stats.HeatingRuntimeMinutes += c.DurationMinutes
		case models.ActionCooling:
			stats.CoolingCycles++
			stats.CoolingRuntimeMinutes += c.DurationMinutes
		}
	}
	stats.AverageCycleLength = round2(stats.TotalRuntimeMinutes / float64(stats.TotalCycles))
	return stats
}

func summarizeTemperature(observations []models.Observation) models.TemperatureSummary {
	var temps, targets, humidity []float64
	for _, o := range observations {
		if o.CurrentTemp != nil {
			temps = append(temps, *o.CurrentTemp)
		}
		if o.TargetTemp != nil {
			targets = append(targets, *o.TargetTemp)
		}
		if o.Humidity != nil {
			humidity = append(humidity, *o.Humidity)
		}
	}

	summary := models.TemperatureSummary{}
	if len(temps) > 0 {
		summary.Actual = seriesStats(temps)
	}
	if len(targets) > 0 {
		s := seriesStats(targets)
		summary.Target = &models.TargetStats{
			Min:     s.Min,
			Max:     s.Max,
			Avg:     s.Avg,
			Changes: distinctCount(targets),
		}
	}
	if len(humidity) > 0 {
		summary.Humidity = seriesStats(humidity)
	}
	return summary
}

func summarizeUserInputs(inputs []models.UserInputEvent) models.UserInputSummary {
	services := make(map[string]int)
	for _, in := range inputs {
		services[in.Service]++
	}
	return models.UserInputSummary{
		TotalInputs:    len(inputs),
		Services:       services,
		UniqueServices: len(services),
	}
}

func summarizeWeather(samples []models.WeatherSample) models.WeatherSummary {
	summary := models.WeatherSummary{}
	if len(samples) == 0 {
		return summary
	}

	conditions := make(map[string]int)
	var temps, humidity, pressure, wind []float64
	var primary string
	best := 0

	for _, w := range samples {
		if w.Condition != "" {
			conditions[w.Condition]++
			// First condition to reach the maximum wins, which keeps the
			// result deterministic across runs.
			if conditions[w.Condition] > best {
				best = conditions[w.Condition]
				primary = w.Condition
			}
		}
		if w.Temperature != nil {
			temps = append(temps, *w.Temperature)
		}
		if w.Humidity != nil {
			humidity = append(humidity, *w.Humidity)
		}
		if w.Pressure != nil {
			pressure = append(pressure, *w.Pressure)
		}
		if w.WindSpeed != nil {
			wind = append(wind, *w.WindSpeed)
		}
	}

	if len(conditions) > 0 {
		summary.Conditions = conditions
		summary.PrimaryCondition = primary
	}
	if len(temps) > 0 {
		summary.Temperature = rangeStats(temps)
	}
	if len(humidity) > 0 {
		summary.Humidity = rangeStats(humidity)
	}
	if len(pressure) > 0 {
		summary.Pressure = rangeStats(pressure)
	}
	if len(wind) > 0 {
		summary.WindSpeed = rangeStats(wind)
	}
	return summary
}

func seriesStats(values []float64) *models.SeriesStats {
	mn, mx, avg := minMaxMean(values)
	return &models.SeriesStats{Min: mn, Max: mx, Avg: round2(avg), Count: len(values)}
}

func rangeStats(values []float64) *models.RangeStats {
	mn, mx, avg := minMaxMean(values)
	return &models.RangeStats{Min: mn, Max: mx, Avg: round2(avg)}
}

func minMaxMean(values []float64) (mn, mx, mean float64) {
	mn = values[0]
	mx = values[0]
	sum := 0.0
	for _, v := range values {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
		sum += v
	}
	return mn, mx, sum / float64(len(values))
}

func distinctCount(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
