package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/charge-limiter/internal/charger"
	"github.com/sweeney/charge-limiter/internal/config"
	"github.com/sweeney/charge-limiter/internal/health"
	"github.com/sweeney/charge-limiter/internal/indicator"
	"github.com/sweeney/charge-limiter/internal/logic"
	"github.com/sweeney/charge-limiter/internal/mqtt"
	"github.com/sweeney/charge-limiter/internal/power"
	"github.com/sweeney/charge-limiter/internal/status"
	"github.com/sweeney/charge-limiter/internal/sysfs"
	"github.com/sweeney/charge-limiter/internal/thermal"
)

func TestApplyFlagsOnlySetFlags(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://from-file:1883"
	fv := flagValues{
		httpAddr:      ":9999",
		broker:        "tcp://from-flag:1883",
		heartbeat:     time.Minute,
		healthSource:  config.HealthUPower,
		indicatorLine: 4,
		verbose:       true,
	}

	got := applyFlags(cfg, fv, map[string]bool{"heartbeat": true, "indicator-line": true, "verbose": true})

	if got.MQTT.Broker != "tcp://from-file:1883" {
		t.Errorf("Broker: got %q, file value should win when flag unset", got.MQTT.Broker)
	}
	if got.Status.HTTP != config.Default().Status.HTTP {
		t.Errorf("HTTP: got %q, want default", got.Status.HTTP)
	}
	if got.Health.Source != config.HealthSysfs {
		t.Errorf("Health.Source: got %q, want sysfs", got.Health.Source)
	}
	if got.MQTT.Heartbeat.Duration != time.Minute {
		t.Errorf("Heartbeat: got %v, want 1m", got.MQTT.Heartbeat.Duration)
	}
	if got.Indicator.Line != 4 {
		t.Errorf("Indicator.Line: got %d, want 4", got.Indicator.Line)
	}
	if !got.Log.Verbose {
		t.Error("expected Verbose")
	}
}

func TestApplyFlagsEmptyBrokerDisables(t *testing.T) {
	got := applyFlags(config.Default(), flagValues{broker: ""}, map[string]bool{"broker": true})
	if got.MQTT.Broker != "" {
		t.Errorf("Broker: got %q, want empty", got.MQTT.Broker)
	}
}

func TestNewHealthReaderUnknownSource(t *testing.T) {
	if _, err := newHealthReader("acpi", sysfs.New(t.TempDir())); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

// --- runLoop tests ---

// fakeLimiter records notifications. Events are injected by the test on an
// unbuffered channel so each one is handled before the next step runs.
type fakeLimiter struct {
	mu       sync.Mutex
	statuses []logic.BatteryStatus
	session  logic.Session
	events   chan logic.Event
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{events: make(chan logic.Event)}
}

func (f *fakeLimiter) HealthInfoChanged(s logic.BatteryStatus) {
	f.mu.Lock()
	f.statuses = append(f.statuses, s)
	f.mu.Unlock()
}

func (f *fakeLimiter) Events() <-chan logic.Event { return f.events }

func (f *fakeLimiter) Session() logic.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeLimiter) setSession(s logic.Session) {
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
}

func (f *fakeLimiter) received() []logic.BatteryStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.BatteryStatus(nil), f.statuses...)
}

type loopHarness struct {
	tick      chan time.Time
	heartbeat chan time.Time
	sig       chan os.Signal
	errCh     chan error
	tracker   *status.Tracker
}

func startLoop(t *testing.T, reader health.Reader, ctrl limiter, pub mqtt.Publisher, ind indicator.Indicator) *loopHarness {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := &loopHarness{
		tick:      make(chan time.Time),
		heartbeat: make(chan time.Time),
		sig:       make(chan os.Signal, 1),
		errCh:     make(chan error, 1),
		tracker:   status.NewTracker(start, status.Config{Broker: "tcp://test:1883"}),
	}
	clock := func() time.Time { return start.Add(time.Minute) }
	go func() {
		h.errCh <- runLoop(reader, ctrl, pub, h.tracker, ind, clock, h.tick, h.heartbeat, h.sig)
	}()
	return h
}

func (h *loopHarness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.tick <- time.Time{}
	}
}

func (h *loopHarness) stop(t *testing.T, s os.Signal) {
	t.Helper()
	h.sig <- s
	select {
	case err := <-h.errCh:
		if err != nil {
			t.Fatalf("runLoop returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return")
	}
}

func TestRunLoopForwardsEveryStatus(t *testing.T) {
	reader := health.NewFakeReader(logic.StatusDischarging, logic.StatusCharging, logic.StatusCharging, logic.StatusFull)
	lim := newFakeLimiter()
	pub := mqtt.NewFakePublisher()

	h := startLoop(t, reader, lim, pub, nil)
	h.ticks(4)
	h.stop(t, syscall.SIGTERM)

	// Deduplication is the controller's job; the loop forwards every read.
	want := []logic.BatteryStatus{logic.StatusDischarging, logic.StatusCharging, logic.StatusCharging, logic.StatusFull}
	got := lim.received()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("status %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected no controller events, got %d", len(pub.Events))
	}
}

func TestRunLoopPublishesControllerEvents(t *testing.T) {
	reader := health.NewFakeReader(logic.StatusCharging)
	lim := newFakeLimiter()
	pub := mqtt.NewFakePublisher()

	h := startLoop(t, reader, lim, pub, nil)
	h.ticks(1)
	lim.setSession(logic.Session{ID: "s1", LimitingEnabled: true, Charger: logic.ChargerWired, LastStatus: logic.StatusCharging})
	lim.events <- logic.Event{Type: logic.EventLimitingStarted, SessionID: "s1", Charger: logic.ChargerWired}
	lim.events <- logic.Event{Type: logic.EventLimitChanged, SessionID: "s1", LimitMA: 1600, PreviousMA: 9000, TempMilliC: 42000, Bracket: 3}
	h.stop(t, syscall.SIGTERM)

	if len(pub.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.Events))
	}
	if pub.Events[1].Type != logic.EventLimitChanged || pub.Events[1].LimitMA != 1600 {
		t.Errorf("second event: got %+v", pub.Events[1])
	}

	snap := h.tracker.Snapshot()
	if snap.Counts.Activations != 1 || snap.Counts.LimitWrites != 1 {
		t.Errorf("tracker counts: %+v", snap.Counts)
	}
	if snap.Session.ID != "s1" || !snap.Throttled() {
		t.Errorf("tracker session: %+v throttled=%v", snap.Session, snap.Throttled())
	}
}

func TestRunLoopHealthReadErrorRecovery(t *testing.T) {
	reader := health.NewFakeReader(logic.StatusCharging)
	reader.ReadError = errors.New("status gone")
	lim := newFakeLimiter()
	pub := mqtt.NewFakePublisher()

	h := startLoop(t, reader, lim, pub, nil)
	h.ticks(3)
	if n := len(lim.received()); n != 0 {
		t.Errorf("expected no notifications on read error, got %d", n)
	}
	h.stop(t, syscall.SIGTERM)

	reader.ReadError = nil
	h = startLoop(t, reader, lim, pub, nil)
	h.ticks(1)
	h.stop(t, syscall.SIGTERM)
	if got := lim.received(); len(got) != 1 || got[0] != logic.StatusCharging {
		t.Errorf("after recovery: got %v", got)
	}
}

func TestRunLoopPublishErrorDoesNotStop(t *testing.T) {
	reader := health.NewFakeReader(logic.StatusCharging)
	lim := newFakeLimiter()
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker down")

	h := startLoop(t, reader, lim, pub, nil)
	lim.events <- logic.Event{Type: logic.EventLimitChanged, LimitMA: 500}
	h.ticks(1)
	h.stop(t, syscall.SIGTERM)

	if h.tracker.Snapshot().Counts.LimitWrites != 1 {
		t.Error("tracker should record the event even when publishing fails")
	}
	if len(pub.SystemEvents) != 1 {
		t.Errorf("expected SHUTDOWN after publish errors, got %d system events", len(pub.SystemEvents))
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	h := startLoop(t, health.NewFakeReader(logic.StatusDischarging), newFakeLimiter(), pub, nil)
	h.stop(t, syscall.SIGTERM)

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	ev := pub.SystemEvents[0]
	if ev.Event != "SHUTDOWN" || ev.Reason != "SIGTERM" || !ev.Retained {
		t.Errorf("got %+v", ev)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[0], &sj); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("payload event/reason: %q %q", sj.Status.Event, sj.Status.Reason)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected mqtt.connected=true in shutdown payload")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	h := startLoop(t, health.NewFakeReader(logic.StatusDischarging), newFakeLimiter(), pub, nil)
	h.stop(t, syscall.SIGINT)

	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("got %+v", pub.SystemEvents)
	}
}

func TestRunLoopShutdownPublishFailure(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishSystemError = errors.New("broker down")
	h := startLoop(t, health.NewFakeReader(logic.StatusDischarging), newFakeLimiter(), pub, nil)
	h.stop(t, syscall.SIGTERM)
}

func TestRunLoopHeartbeat(t *testing.T) {
	lim := newFakeLimiter()
	lim.setSession(logic.Session{ID: "s1", LimitingEnabled: true, LastStatus: logic.StatusCharging, Charger: logic.ChargerWireless})
	pub := mqtt.NewFakePublisher()

	h := startLoop(t, health.NewFakeReader(logic.StatusCharging), lim, pub, nil)
	lim.events <- logic.Event{Type: logic.EventLimitingStarted, SessionID: "s1"}
	h.heartbeat <- time.Time{}
	h.stop(t, syscall.SIGTERM)

	if len(pub.SystemEvents) != 2 {
		t.Fatalf("expected HEARTBEAT and SHUTDOWN, got %d", len(pub.SystemEvents))
	}
	hb := pub.SystemEvents[0]
	if hb.Event != "HEARTBEAT" || hb.Retained {
		t.Errorf("heartbeat: %+v", hb)
	}
	var sj status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[0], &sj); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if sj.Status.State != "LIMITING" || sj.Status.Charger.Profile != "WIRELESS" {
		t.Errorf("heartbeat payload: state=%q profile=%q", sj.Status.State, sj.Status.Charger.Profile)
	}
	if sj.Status.Counts.Activations != 1 {
		t.Errorf("heartbeat activations: got %d, want 1", sj.Status.Counts.Activations)
	}
}

func TestRunLoopIndicatorFollowsThrottle(t *testing.T) {
	lim := newFakeLimiter()
	pub := mqtt.NewFakePublisher()
	ind := indicator.NewFakeIndicator()

	h := startLoop(t, health.NewFakeReader(logic.StatusCharging), lim, pub, ind)
	lim.setSession(logic.Session{ID: "s1", LimitingEnabled: true})
	lim.events <- logic.Event{Type: logic.EventLimitingStarted, SessionID: "s1"}
	lim.events <- logic.Event{Type: logic.EventLimitChanged, LimitMA: 3000}
	// A second throttled write does not toggle the line again.
	lim.events <- logic.Event{Type: logic.EventLimitChanged, LimitMA: 2000}
	lim.events <- logic.Event{Type: logic.EventLimitChanged, LimitMA: logic.Unrestricted}
	lim.setSession(logic.Session{})
	lim.events <- logic.Event{Type: logic.EventLimitingStopped, SessionID: "s1"}
	h.stop(t, syscall.SIGTERM)

	want := []bool{true, false}
	if len(ind.States) != len(want) {
		t.Fatalf("indicator states: got %v, want %v", ind.States, want)
	}
	for i := range want {
		if ind.States[i] != want[i] {
			t.Errorf("state %d: got %v, want %v", i, ind.States[i], want[i])
		}
	}
}

// --- end to end with the real controller ---

type fixedTherm struct {
	reading thermal.Reading
	err     error
}

func (f fixedTherm) Sample(preferred, fallback string) (thermal.Reading, error) {
	r := f.reading
	r.Sensor = preferred
	return r, f.err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRunLoopWithController(t *testing.T) {
	supply := power.NewFakeSupply(logic.Unrestricted)
	supply.SetPresence(true, false, "USB_PD")
	ctrl := charger.New(supply, fixedTherm{reading: thermal.Reading{MilliC: 42000}}, charger.Options{Interval: time.Millisecond})
	defer startWorker(ctrl)()

	reader := health.NewFakeReader(logic.StatusDischarging, logic.StatusCharging)
	pub := mqtt.NewFakePublisher()
	h := startLoop(t, reader, ctrl, pub, nil)
	h.ticks(2)

	waitFor(t, "limit write", func() bool { return h.tracker.Snapshot().Counts.LimitWrites >= 1 })
	h.ticks(1)
	h.stop(t, syscall.SIGTERM)

	writes := supply.Writes()
	if len(writes) != 1 || writes[0] != 1600 {
		t.Errorf("writes: got %v, want [1600]", writes)
	}

	var sawStart, sawChange bool
	for _, ev := range pub.Events {
		switch ev.Type {
		case logic.EventLimitingStarted:
			sawStart = true
			if ev.Charger != logic.ChargerWired {
				t.Errorf("started charger: got %s, want WIRED", ev.Charger)
			}
		case logic.EventLimitChanged:
			sawChange = true
			if ev.LimitMA != 1600 || ev.PreviousMA != logic.Unrestricted {
				t.Errorf("limit change: %+v", ev)
			}
		}
	}
	if !sawStart || !sawChange {
		t.Errorf("events: %+v", pub.Events)
	}

	snap := h.tracker.Snapshot()
	if snap.Session.State() != logic.StateLimiting || snap.Session.Charger != logic.ChargerWired {
		t.Errorf("session: %+v", snap.Session)
	}
}

func TestRunLoopLimitAlreadyApplied(t *testing.T) {
	supply := power.NewFakeSupply(1600)
	supply.SetPresence(true, false, "USB_PD")
	ctrl := charger.New(supply, fixedTherm{reading: thermal.Reading{MilliC: 42000}}, charger.Options{Interval: time.Millisecond})
	defer startWorker(ctrl)()

	reader := health.NewFakeReader(logic.StatusDischarging, logic.StatusCharging)
	pub := mqtt.NewFakePublisher()
	ind := indicator.NewFakeIndicator()
	h := startLoop(t, reader, ctrl, pub, ind)
	h.ticks(2)

	waitFor(t, "applied limit", func() bool { return h.tracker.Snapshot().HasLimit })
	h.ticks(1)
	h.stop(t, syscall.SIGTERM)

	if w := supply.Writes(); len(w) != 0 {
		t.Errorf("writes: got %v, want none", w)
	}
	snap := h.tracker.Snapshot()
	if snap.LimitMA != 1600 || !snap.Throttled() {
		t.Errorf("tracker: limit=%d throttled=%v", snap.LimitMA, snap.Throttled())
	}
	if !ind.On() {
		t.Errorf("indicator states: got %v, want lit", ind.States)
	}
	var sawApplied bool
	for _, ev := range pub.Events {
		if ev.Type == logic.EventLimitApplied {
			sawApplied = true
		}
	}
	if !sawApplied {
		t.Errorf("events: %+v", pub.Events)
	}
}

// slowWorker stands in for the controller's Run and finishes its current
// iteration after cancellation.
type slowWorker struct {
	finished bool
}

func (w *slowWorker) Run(ctx context.Context) {
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	w.finished = true
}

func TestStartWorkerStopWaitsForRun(t *testing.T) {
	w := &slowWorker{}
	stop := startWorker(w)
	stop()
	if !w.finished {
		t.Error("stop returned before Run finished")
	}
}

// --- print-state ---

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPrintCurrentState(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, sysfs.USBOnline, "1")
	writeFile(t, root, sysfs.USBType, "[PD_PPS] SDP")
	writeFile(t, root, sysfs.WirelessOnline, "0")
	writeFile(t, root, sysfs.ScenarioFCC, "9000")
	writeFile(t, root, filepath.Join(sysfs.ThermalDir, "thermal_zone0", "type"), "shell_front")
	writeFile(t, root, filepath.Join(sysfs.ThermalDir, "thermal_zone0", "temp"), "44000")

	fs := sysfs.New(root)
	var buf bytes.Buffer
	if err := printCurrentState(&buf, power.NewSysfsSupply(fs), thermal.NewSampler(thermal.NewResolver(fs))); err != nil {
		t.Fatalf("printCurrentState: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"wired: true ([PD_PPS] SDP), wireless: false",
		"applied limit: 9000mA",
		"FAST_WIRED: shell_front zone 0 44000m°C, limit 2000mA",
		"WIRELESS: temperature unknown",
		"active profile: FAST_WIRED",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintCurrentStatePresenceError(t *testing.T) {
	supply := power.NewFakeSupply(0)
	supply.SetErrors(errors.New("no usb"), nil, nil)
	var buf bytes.Buffer
	if err := printCurrentState(&buf, supply, fixedTherm{}); err == nil {
		t.Fatal("expected error when presence cannot be read")
	}
}
