package charger

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sweeney/charge-limiter/internal/logic"
	"github.com/sweeney/charge-limiter/internal/metrics"
	"github.com/sweeney/charge-limiter/internal/thermal"
)

// Run is the single monitoring worker. It waits for an activation, runs the
// limit loop until limiting is disabled, then waits again. It returns when
// ctx is cancelled. Call it exactly once.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case act := <-c.activate:
			c.monitor(ctx, act)
		}
	}
}

func (c *Controller) monitor(ctx context.Context, act activation) {
	log.Printf("charger: start charging limit process (%s, session %s)", act.profile.Kind, act.sessionID)
	metrics.LimitingActive.Set(1)
	defer metrics.LimitingActive.Set(0)

	var warnedUnknown, reported bool
	for {
		next, pending, enabled := c.poll()
		if !enabled {
			break
		}
		if pending {
			log.Printf("charger: switching to %s (session %s)", next.profile.Kind, next.sessionID)
			act = next
			warnedUnknown, reported = false, false
		}

		res, err := c.step(act)
		if err == nil {
			if res.tempUnknown && !warnedUnknown {
				log.Printf("charger: no temperature sensor for %s/%s, applying safest limit %dmA",
					act.profile.PreferredSensor, act.profile.FallbackSensor, res.limit)
				warnedUnknown = true
			}
			if res.inForce && !reported {
				c.emit(limitEvent(logic.EventLimitApplied, act, res))
			}
			if res.inForce || res.wrote {
				reported = true
			}
		}

		t := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			log.Printf("charger: stop charging limit process (shutdown)")
			return
		case <-t.C:
		}
	}
	log.Printf("charger: stop charging limit process")
}

func limitEvent(typ logic.EventType, act activation, res stepResult) logic.Event {
	return logic.Event{
		Type:        typ,
		SessionID:   act.sessionID,
		Charger:     act.profile.Kind,
		TempMilliC:  res.temp,
		LimitMA:     res.limit,
		PreviousMA:  res.applied,
		Bracket:     res.bracket,
		TempUnknown: res.tempUnknown,
	}
}

type stepResult struct {
	applied     int
	limit       int
	temp        int
	bracket     int
	tempUnknown bool
	// inForce is set when the applied limit already equals the candidate.
	inForce bool
	wrote   bool
}

// step is one loop body: read the applied limit, sample the temperature,
// run the staircase and write the new limit if it differs. Transient read
// or write failures abandon the iteration with errSkip.
func (c *Controller) step(act activation) (stepResult, error) {
	res := stepResult{bracket: -1}

	applied, err := c.supply.AppliedLimit()
	if err != nil {
		log.Printf("charger: read applied limit: %v, skipping iteration", err)
		metrics.Errors.WithLabelValues(metrics.OpAppliedRead).Inc()
		return res, errSkip
	}
	res.applied = applied
	metrics.AppliedLimit.Set(float64(applied))

	reading, err := c.therm.Sample(act.profile.PreferredSensor, act.profile.FallbackSensor)
	switch {
	case errors.Is(err, thermal.ErrNoSensor):
		res.tempUnknown = true
		res.limit = act.profile.SafestLimit()
	case err != nil:
		log.Printf("charger: sample temperature: %v, skipping iteration", err)
		metrics.Errors.WithLabelValues(metrics.OpTempRead).Inc()
		return res, errSkip
	default:
		res.temp = reading.MilliC
		metrics.Temperature.WithLabelValues(reading.Sensor).Set(float64(reading.MilliC))
		var idx int
		idx, res.bracket = act.profile.LimitIndex(reading.MilliC)
		res.limit = logic.LimitForIndex(idx)
	}

	if c.verbose {
		log.Printf("charger: temp %d bracket %d limit %dmA applied %dmA", res.temp, res.bracket, res.limit, applied)
	}

	if res.limit == applied {
		res.inForce = true
		return res, nil
	}
	if !c.current() {
		return res, nil
	}

	log.Printf("charger: current temp: %d, limit charging to %dmA, last charging limit %dmA", res.temp, res.limit, applied)
	if err := c.supply.SetLimit(res.limit); err != nil {
		log.Printf("charger: write limit %dmA: %v, skipping iteration", res.limit, err)
		metrics.Errors.WithLabelValues(metrics.OpLimitWrite).Inc()
		return res, errSkip
	}
	res.wrote = true
	metrics.LimitWrites.Inc()
	metrics.AppliedLimit.Set(float64(res.limit))

	c.emit(limitEvent(logic.EventLimitChanged, act, res))
	return res, nil
}
