package collector

import (
	"context"
	"time"

	"hvac-collector/internal/aggregate"
	"hvac-collector/internal/config"
	"hvac-collector/internal/cycles"
	"hvac-collector/internal/metrics"
	"hvac-collector/internal/models"
	"hvac-collector/internal/report"
	"hvac-collector/internal/sensors"
	"hvac-collector/internal/statestore"

	"github.com/sirupsen/logrus"
)

// Collector drives the whole pipeline: it polls sensor snapshots on a fixed
// cadence, feeds the cycle tracker and daily aggregator, and triggers the
// day rollover. Polls, rollovers and user-input events all execute on the
// Start goroutine, so aggregation state needs no locking.
type Collector struct {
	config  *config.Config
	logger  *logrus.Logger
	store   *statestore.Store
	reader  *sensors.Reader
	tracker *cycles.Tracker
	window  *aggregate.Window
	daily   *aggregate.Daily
	sender  *report.Sender
	metrics *metrics.Metrics

	inputCh chan models.UserInputEvent

	started  time.Time
	lastPoll time.Time
	polls    int64
	skipped  int64
	lastErr  string
}

func New(cfg *config.Config, logger *logrus.Logger, store *statestore.Store, m *metrics.Metrics) *Collector {
	window := aggregate.NewWindow(cfg.Collection.RetentionDays)
	return &Collector{
		config:  cfg,
		logger:  logger,
		store:   store,
		reader:  sensors.NewReader(cfg, logger, store),
		tracker: cycles.NewTracker(logger),
		window:  window,
		daily:   aggregate.NewDaily(logger, window),
		sender:  report.NewSender(cfg, logger),
		metrics: m,
		inputCh: make(chan models.UserInputEvent, 64),
		started: time.Now(),
	}
}

// UserInputHandler adapts broker-delivered service-call events onto the
// collector goroutine. Called from the MQTT client goroutine, so it only
// enqueues.
func (c *Collector) UserInputHandler() func(statestore.UserInput) {
	return func(in statestore.UserInput) {
		ev := models.UserInputEvent{
			Timestamp:  time.Now().UTC(),
			Service:    in.Service,
			Parameters: in.Parameters,
		}
		select {
		case c.inputCh <- ev:
		default:
			c.logger.Warn("User input queue full, dropping event")
		}
	}
}

// Start runs the collection loop until the context is cancelled. Stopping
// flushes buffered-but-unsent readings once, without a retry loop.
func (c *Collector) Start(ctx context.Context) {
	interval := time.Duration(c.config.Collection.PollIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rollTimer := time.NewTimer(time.Until(c.nextRollover(time.Now())))
	defer rollTimer.Stop()

	c.logger.Infof("Starting collector: polling every %s, level %s", interval, c.config.Collection.Level)
	c.baseline(time.Now().UTC())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping collector")
			c.flush()
			return
		case now := <-ticker.C:
			c.Poll(ctx, now.UTC())
		case now := <-rollTimer.C:
			c.Rollover(ctx, now)
			rollTimer.Reset(time.Until(c.nextRollover(now.Add(time.Minute))))
		case ev := <-c.inputCh:
			c.recordUserInput(ev)
		}
	}
}

// Poll takes one snapshot and folds it into the day's state. A missing or
// malformed required sensor skips the poll entirely: no observation, no
// reading, buffers untouched.
func (c *Collector) Poll(ctx context.Context, now time.Time) {
	c.polls++
	c.lastPoll = now

	snap, err := c.reader.Snapshot(now)
	if err != nil {
		c.skipped++
		c.lastErr = err.Error()
		c.metrics.PollsSkipped.Inc()
		c.logger.Warnf("Skipping poll: %v", err)
		return
	}
	c.lastErr = ""

	c.sender.QueueReading(snap.Reading)
	c.metrics.ReadingsCollected.Inc()
	c.metrics.QueueDepth.Set(float64(c.sender.PendingReadings()))
	c.metrics.IndoorTemperature.Set(snap.Reading.IndoorTemp)
	c.metrics.TargetTemperature.Set(snap.Reading.TargetTemp)

	if c.config.Collection.Level != config.LevelMinimal {
		obs := snap.Observation
		if cycle := c.tracker.Observe(obs.EntityID, now, obs.HVACAction, obs.CurrentTemp); cycle != nil {
			c.daily.RecordCycle(*cycle)
			c.metrics.CyclesDetected.WithLabelValues(string(cycle.Action)).Inc()
		}
		c.daily.RecordObservation(obs)
	}

	if c.config.Collection.Level == config.LevelDetailed && snap.Weather != nil {
		c.daily.RecordWeather(*snap.Weather)
	}

	if c.sender.PendingReadings() >= c.config.Collection.BatchSize {
		c.sendReadings(ctx)
	}

	c.sender.RetryPending(ctx)
}

// Rollover finalizes yesterday's aggregation, reports it, and re-baselines
// for the new day. It fires shortly after midnight so the finished day is
// the one being summarized.
func (c *Collector) Rollover(ctx context.Context, now time.Time) {
	c.logger.Info("Day rollover: finalizing daily summary")

	c.sendReadings(ctx)

	// Moving averages are computed over prior days only; the day being
	// finalized enters the window afterwards.
	averages := c.window.MovingAverages()

	rates := c.reader.ThermalRates()
	yesterday := now.AddDate(0, 0, -1)
	summary := c.daily.Rollover(yesterday, rates)

	dailyReport := report.DailyReport{
		AnonymousID:    c.config.Report.AnonymousID,
		Date:           summary.Date,
		DailySummary:   summary,
		MovingAverages: averages,
		Timestamp:      now.UTC().Format(time.RFC3339),
	}
	if err := c.sender.SendDaily(ctx, dailyReport); err != nil {
		c.metrics.ReportFailures.WithLabelValues("daily").Inc()
	} else {
		c.metrics.ReportsSent.WithLabelValues("daily").Inc()
	}

	c.baseline(now)
}

// baseline seeds the new day with the current state, so an HVAC run already
// in progress is tracked from day start rather than lost.
func (c *Collector) baseline(now time.Time) {
	snap, err := c.reader.Snapshot(now)
	if err != nil {
		c.logger.Debugf("No baseline snapshot: %v", err)
		return
	}

	if c.config.Collection.Level != config.LevelMinimal {
		obs := snap.Observation
		if obs.HVACAction.Active() {
			c.tracker.Seed(obs.EntityID, now, obs.HVACAction, obs.CurrentTemp)
		}
		c.daily.RecordObservation(obs)
	}
	if c.config.Collection.Level == config.LevelDetailed && snap.Weather != nil {
		c.daily.RecordWeather(*snap.Weather)
	}
}

func (c *Collector) recordUserInput(ev models.UserInputEvent) {
	if c.config.Collection.Level == config.LevelMinimal {
		return
	}
	c.daily.RecordUserInput(ev)
	c.logger.Debugf("Recorded user input: %s", ev.Service)
}

func (c *Collector) sendReadings(ctx context.Context) {
	if err := c.sender.FlushReadings(ctx); err != nil {
		c.metrics.ReportFailures.WithLabelValues("readings").Inc()
	} else {
		c.metrics.ReportsSent.WithLabelValues("readings").Inc()
	}
	c.metrics.QueueDepth.Set(float64(c.sender.PendingReadings()))
}

// flush is the shutdown path: one best-effort attempt to deliver whatever
// is still buffered.
func (c *Collector) flush() {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(c.config.Report.TimeoutSeconds)*time.Second)
	defer cancel()

	if err := c.sender.FlushReadings(ctx); err != nil {
		c.logger.Warnf("Final flush failed, %d readings unsent", c.sender.PendingReadings())
	}
}

// Status reports the collector's internals for the local status API.
func (c *Collector) Status() map[string]interface{} {
	sensorStates := make(map[string]string)
	for _, entityID := range []string{
		c.config.Sensors.Temperature,
		c.config.Sensors.HVAC,
		c.config.Sensors.Thermostat,
		c.config.Sensors.Humidity,
		c.config.Sensors.Weather,
		c.config.Sensors.ThermalLearning,
	} {
		if entityID == "" {
			continue
		}
		if st, ok := c.store.Get(entityID); ok {
			sensorStates[entityID] = st.State
		} else {
			sensorStates[entityID] = "missing"
		}
	}

	status := map[string]interface{}{
		"uptime_seconds":   int64(time.Since(c.started).Seconds()),
		"collection_level": c.config.Collection.Level,
		"polls":            c.polls,
		"polls_skipped":    c.skipped,
		"window_days":      c.window.Len(),
		"sensors":          sensorStates,
		"cycles":           c.tracker.Status(),
		"buffers":          c.daily.Counts(),
		"reporting":        c.sender.Status(),
	}
	if !c.lastPoll.IsZero() {
		status["last_poll"] = c.lastPoll.Format(time.RFC3339)
	}
	if c.lastErr != "" {
		status["last_error"] = c.lastErr
	}
	return status
}

// nextRollover returns the next configured rollover instant after now, in
// local time.
func (c *Collector) nextRollover(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		c.config.Collection.RolloverHour, c.config.Collection.RolloverMinute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
