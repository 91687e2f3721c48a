package cycles

import (
	"math"
	"time"

	"hvac-collector/internal/models"

	"github.com/sirupsen/logrus"
)

// entityState is the per-entity transition state. At most one open cycle
// exists per entity at any time.
type entityState struct {
	lastAction models.Action
	startTime  time.Time
	startTemp  *float64
}

// Tracker detects discrete HVAC run cycles from a stream of per-poll
// observations. It emits a Cycle only when a run finalizes; open cycles are
// internal state.
type Tracker struct {
	logger   *logrus.Logger
	entities map[string]*entityState

	detected int64
	dropped  int64
}

func NewTracker(logger *logrus.Logger) *Tracker {
	return &Tracker{
		logger:   logger,
		entities: make(map[string]*entityState),
	}
}

// Observe feeds one (timestamp, action, temperature) sample for an entity
// and returns the finalized cycle, if this sample closed one.
//
// Transitions:
//   - inactive -> heating/cooling opens a cycle.
//   - heating/cooling -> inactive closes it. If either end temperature is
//     unknown the cycle is dropped, not emitted with holes.
//   - a direct heating<->cooling switch closes the old cycle at the
//     transition instant and opens the new one with no gap.
func (t *Tracker) Observe(entityID string, now time.Time, action models.Action, currentTemp *float64) *models.Cycle {
	st, ok := t.entities[entityID]
	if !ok {
		st = &entityState{lastAction: models.ActionUnknown}
		t.entities[entityID] = st
	}

	if action == st.lastAction {
		return nil
	}

	var finished *models.Cycle

	if st.lastAction.Active() {
		finished = t.finalize(entityID, st, now, currentTemp)
	}

	if action.Active() {
		st.startTime = now
		st.startTemp = currentTemp
		st.lastAction = action
	} else {
		st.lastAction = action
		st.startTemp = nil
	}

	return finished
}

func (t *Tracker) finalize(entityID string, st *entityState, now time.Time, endTemp *float64) *models.Cycle {
	action := st.lastAction
	if st.startTime.IsZero() {
		// End transition with no open cycle; ignore.
		t.logger.Debugf("Cycle end for %s with no open cycle, ignoring", entityID)
		return nil
	}
	start := st.startTime
	startTemp := st.startTemp
	st.startTime = time.Time{}
	st.startTemp = nil

	if startTemp == nil || endTemp == nil {
		// Dropped-sample policy: a cycle without both temperatures is
		// discarded rather than reported incomplete.
		t.dropped++
		t.logger.Debugf("Dropping %s cycle for %s: temperature unknown", action, entityID)
		return nil
	}

	cycle := &models.Cycle{
		Action:            action,
		StartTime:         start,
		EndTime:           now,
		StartTemp:         *startTemp,
		EndTemp:           *endTemp,
		DurationMinutes:   round2(now.Sub(start).Minutes()),
		TemperatureChange: round2(*endTemp - *startTemp),
	}
	t.detected++
	t.logger.Debugf("Detected %s cycle for %s: %.2f min, %+.2f°", action, entityID, cycle.DurationMinutes, cycle.TemperatureChange)
	return cycle
}

// Seed initializes an entity that is already running at startup or day
// start, so the in-progress cycle is not lost.
func (t *Tracker) Seed(entityID string, now time.Time, action models.Action, currentTemp *float64) {
	if !action.Active() {
		return
	}
	t.entities[entityID] = &entityState{
		lastAction: action,
		startTime:  now,
		startTemp:  currentTemp,
	}
}

// Reset clears all per-entity state.
func (t *Tracker) Reset() {
	t.entities = make(map[string]*entityState)
}

// Status exposes internal counters for the status surface.
func (t *Tracker) Status() map[string]interface{} {
	open := 0
	for _, st := range t.entities {
		if st.lastAction.Active() {
			open++
		}
	}
	return map[string]interface{}{
		"cycles_detected": t.detected,
		"cycles_dropped":  t.dropped,
		"open_cycles":     open,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
