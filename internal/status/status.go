// Package status provides a thread-safe status tracker for the
// charge-limiter daemon. It is read by the HTTP handlers and used to build
// lifecycle MQTT payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/charge-limiter/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	IntervalMs   int64
	HealthPollMs int64
	HeartbeatMs  int64
	HealthSource string
	Broker       string
	HTTPAddr     string
}

// Counts tracks controller activity since startup.
type Counts struct {
	Activations int
	LimitWrites int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Session logic.Session

	// LimitMA is the limit in force for the session, written or found
	// already applied; valid when HasLimit is set.
	LimitMA     int
	HasLimit    bool
	TempMilliC  int
	TempUnknown bool
	LastChange  time.Time

	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Throttled reports whether the last written limit is below the
// unrestricted current while limiting is active.
func (s Snapshot) Throttled() bool {
	return s.Session.LimitingEnabled && s.HasLimit && s.LimitMA < logic.Unrestricted
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetSession stores the controller session.
func (t *Tracker) SetSession(s logic.Session) {
	t.mu.Lock()
	t.snap.Session = s
	t.mu.Unlock()
}

// RecordEvent folds a controller event into the snapshot.
func (t *Tracker) RecordEvent(e logic.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Type {
	case logic.EventLimitingStarted:
		t.snap.Counts.Activations++
		t.snap.HasLimit = false
	case logic.EventLimitChanged, logic.EventLimitApplied:
		if e.Type == logic.EventLimitChanged {
			t.snap.Counts.LimitWrites++
		}
		t.snap.LimitMA = e.LimitMA
		t.snap.HasLimit = true
		t.snap.TempMilliC = e.TempMilliC
		t.snap.TempUnknown = e.TempUnknown
		t.snap.LastChange = e.Timestamp
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
