// Package charger implements the thermal charge limit controller: a status
// notification handler that decides whether limiting is active, and a single
// long-lived worker that samples temperature and writes the current limit.
package charger

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/charge-limiter/internal/logic"
	"github.com/sweeney/charge-limiter/internal/metrics"
	"github.com/sweeney/charge-limiter/internal/power"
	"github.com/sweeney/charge-limiter/internal/thermal"
)

// DefaultInterval is the monitoring loop cadence.
const DefaultInterval = 500 * time.Millisecond

const eventQueueLen = 64

// Thermometer samples the temperature for a preferred/fallback sensor pair.
type Thermometer interface {
	Sample(preferred, fallback string) (thermal.Reading, error)
}

// Options tunes a Controller. Zero values select defaults.
type Options struct {
	Interval time.Duration
	// Verbose logs every loop iteration.
	Verbose bool
	Now     func() time.Time
	NewID   func() string
}

// activation is the immutable snapshot handed to the worker when limiting
// is enabled.
type activation struct {
	profile   logic.Profile
	sessionID string
}

// Controller owns the charger session and the monitoring worker.
//
// HealthInfoChanged must be called from a single goroutine. It is the only
// writer of the enable flag and the session; Run is the only reader of
// activations. gate pairs the flag with the pending activation so the worker
// never sees one updated without the other.
type Controller struct {
	supply   power.Supply
	therm    Thermometer
	interval time.Duration
	verbose  bool
	now      func() time.Time
	newID    func() string

	mu      sync.RWMutex
	session logic.Session

	gate     sync.Mutex
	enabled  atomic.Bool
	activate chan activation
	events   chan logic.Event
}

// New creates a controller. Call Run in a goroutine to start the worker.
func New(supply power.Supply, therm Thermometer, opts Options) *Controller {
	c := &Controller{
		supply:   supply,
		therm:    therm,
		interval: opts.Interval,
		verbose:  opts.Verbose,
		now:      opts.Now,
		newID:    opts.NewID,
		activate: make(chan activation, 1),
		events:   make(chan logic.Event, eventQueueLen),
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// Events returns the channel of controller events. Events are dropped if
// nobody drains it.
func (c *Controller) Events() <-chan logic.Event {
	return c.events
}

// Session returns a copy of the current session.
func (c *Controller) Session() logic.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Enabled reports whether limiting is enabled.
func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// HealthInfoChanged drives the state machine from a battery status
// notification. Repeated identical statuses are ignored. It never blocks on
// the monitoring loop.
func (c *Controller) HealthInfoChanged(status logic.BatteryStatus) {
	sess := c.Session()
	if status == sess.LastStatus {
		return
	}
	log.Printf("charger: battery status changed: %s -> %s", sess.LastStatus, status)
	metrics.StatusChanges.WithLabelValues(status.String()).Inc()

	sess.WiredActive, sess.WirelessActive = c.readPresence()

	if status != logic.StatusCharging {
		wasEnabled := sess.LimitingEnabled
		c.stop()
		sess.LastStatus = status
		c.resetProfile(&sess)
		c.setSession(sess)
		if wasEnabled {
			c.emit(logic.Event{Type: logic.EventLimitingStopped, SessionID: sess.ID, Bracket: -1})
		}
		return
	}

	profile, ok := c.selectProfile(sess.WiredActive, sess.WirelessActive)
	if !ok {
		// Status and presence attributes can race; look once more.
		sess.WiredActive, sess.WirelessActive = c.readPresence()
		profile, ok = c.selectProfile(sess.WiredActive, sess.WirelessActive)
	}
	if !ok {
		// LastStatus is left as is so the next notification retries.
		log.Printf("charger: charging reported but no charger online, staying idle")
		c.stop()
		c.resetProfile(&sess)
		c.setSession(sess)
		return
	}

	switch profile.Kind {
	case logic.ChargerFastWired:
		log.Printf("charger: PPS charger connected")
	case logic.ChargerWired:
		log.Printf("charger: USB charger connected")
	case logic.ChargerWireless:
		log.Printf("charger: wireless charger connected")
	}

	sess.LastStatus = status
	sess.Charger = profile.Kind
	sess.UsingFastProfile = profile.Kind == logic.ChargerFastWired
	sess.LimitingEnabled = true
	sess.ID = c.newID()
	c.setSession(sess)
	c.start(activation{profile: profile, sessionID: sess.ID})
	c.emit(logic.Event{Type: logic.EventLimitingStarted, SessionID: sess.ID, Charger: profile.Kind, Bracket: -1})
}

func (c *Controller) readPresence() (wired, wireless bool) {
	var err error
	if wired, err = c.supply.WiredOnline(); err != nil {
		log.Printf("charger: read wired online: %v", err)
		metrics.Errors.WithLabelValues(metrics.OpPresenceRead).Inc()
	}
	if wireless, err = c.supply.WirelessOnline(); err != nil {
		log.Printf("charger: read wireless online: %v", err)
		metrics.Errors.WithLabelValues(metrics.OpPresenceRead).Inc()
	}
	return wired, wireless
}

func (c *Controller) selectProfile(wired, wireless bool) (logic.Profile, bool) {
	var wiredType string
	if wired {
		t, err := c.supply.WiredType()
		if err != nil {
			log.Printf("charger: read wired type: %v, assuming standard", err)
			metrics.Errors.WithLabelValues(metrics.OpTypeRead).Inc()
		}
		wiredType = t
	}
	return logic.SelectProfile(wired, wireless, wiredType)
}

func (c *Controller) resetProfile(sess *logic.Session) {
	sess.LimitingEnabled = false
	sess.UsingFastProfile = false
	sess.Charger = logic.ChargerNone
}

func (c *Controller) setSession(s logic.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// start queues act for the worker and enables limiting. Only the handler
// sends on activate, so after the drain the send cannot block.
func (c *Controller) start(act activation) {
	c.gate.Lock()
	defer c.gate.Unlock()
	select {
	case <-c.activate:
	default:
	}
	c.activate <- act
	c.enabled.Store(true)
}

func (c *Controller) stop() {
	c.gate.Lock()
	defer c.gate.Unlock()
	c.enabled.Store(false)
	select {
	case <-c.activate:
	default:
	}
}

// poll is the worker's boundary check. It reports whether limiting is still
// enabled and hands over a newer activation if one is queued.
func (c *Controller) poll() (next activation, pending, enabled bool) {
	c.gate.Lock()
	defer c.gate.Unlock()
	if !c.enabled.Load() {
		return activation{}, false, false
	}
	select {
	case next = <-c.activate:
		return next, true, true
	default:
		return activation{}, false, true
	}
}

// current reports whether the activation the worker holds is still live:
// limiting is enabled and nothing newer is queued.
func (c *Controller) current() bool {
	c.gate.Lock()
	defer c.gate.Unlock()
	return c.enabled.Load() && len(c.activate) == 0
}

func (c *Controller) emit(e logic.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = c.now()
	}
	select {
	case c.events <- e:
	default:
		log.Printf("charger: event queue full, dropping %s", e.Type)
	}
}

// errSkip marks an iteration abandoned after a transient failure.
var errSkip = errors.New("iteration skipped")
