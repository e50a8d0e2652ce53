// Command charge-limiter throttles battery charge current by device
// temperature and publishes limit changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/charge-limiter/internal/charger"
	"github.com/sweeney/charge-limiter/internal/config"
	"github.com/sweeney/charge-limiter/internal/health"
	"github.com/sweeney/charge-limiter/internal/indicator"
	"github.com/sweeney/charge-limiter/internal/logic"
	"github.com/sweeney/charge-limiter/internal/metrics"
	"github.com/sweeney/charge-limiter/internal/mqtt"
	"github.com/sweeney/charge-limiter/internal/power"
	"github.com/sweeney/charge-limiter/internal/status"
	"github.com/sweeney/charge-limiter/internal/sysfs"
	"github.com/sweeney/charge-limiter/internal/thermal"
	"github.com/sweeney/charge-limiter/internal/web"
)

// flagValues holds command-line values. Only flags that were set on the
// command line override the config file.
type flagValues struct {
	httpAddr      string
	broker        string
	clientID      string
	heartbeat     time.Duration
	healthSource  string
	healthPoll    time.Duration
	indicatorChip string
	indicatorLine int
	verbose       bool
}

func main() {
	def := config.Default()
	var fv flagValues
	configPath := flag.String("config", config.DefaultPath, "TOML settings file (missing file uses defaults)")
	root := flag.String("root", sysfs.DefaultRoot, "Filesystem root for sysfs paths")
	printState := flag.Bool("print-state", false, "Print charger and thermal state and exit")
	flag.StringVar(&fv.httpAddr, "http", def.Status.HTTP, "HTTP status address (empty to disable)")
	flag.StringVar(&fv.broker, "broker", def.MQTT.Broker, "MQTT broker address (empty to disable)")
	flag.StringVar(&fv.clientID, "client-id", def.MQTT.ClientID, "MQTT client ID")
	flag.DurationVar(&fv.heartbeat, "heartbeat", def.MQTT.Heartbeat.Duration, "Heartbeat interval (0 to disable)")
	flag.StringVar(&fv.healthSource, "health-source", def.Health.Source, `Battery status source ("sysfs" or "upower")`)
	flag.DurationVar(&fv.healthPoll, "health-poll", def.Health.Poll.Duration, "Battery status polling interval")
	flag.StringVar(&fv.indicatorChip, "indicator-chip", def.Indicator.Chip, "GPIO chip for the throttled indicator")
	flag.IntVar(&fv.indicatorLine, "indicator-line", def.Indicator.Line, "GPIO line for the throttled indicator (-1 to disable)")
	flag.BoolVar(&fv.verbose, "verbose", false, "Log every monitoring iteration")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	cfg = applyFlags(cfg, fv, set)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	fs := sysfs.New(*root)
	if *printState {
		if err := printCurrentState(os.Stdout, power.NewSysfsSupply(fs), thermal.NewSampler(thermal.NewResolver(fs))); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	if err := run(cfg, fs); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func applyFlags(cfg config.Config, fv flagValues, set map[string]bool) config.Config {
	if set["http"] {
		cfg.Status.HTTP = fv.httpAddr
	}
	if set["broker"] {
		cfg.MQTT.Broker = fv.broker
	}
	if set["client-id"] {
		cfg.MQTT.ClientID = fv.clientID
	}
	if set["heartbeat"] {
		cfg.MQTT.Heartbeat.Duration = fv.heartbeat
	}
	if set["health-source"] {
		cfg.Health.Source = fv.healthSource
	}
	if set["health-poll"] {
		cfg.Health.Poll.Duration = fv.healthPoll
	}
	if set["indicator-chip"] {
		cfg.Indicator.Chip = fv.indicatorChip
	}
	if set["indicator-line"] {
		cfg.Indicator.Line = fv.indicatorLine
	}
	if set["verbose"] {
		cfg.Log.Verbose = fv.verbose
	}
	return cfg
}

func run(cfg config.Config, fs *sysfs.FS) error {
	reader, err := newHealthReader(cfg.Health.Source, fs)
	if err != nil {
		return fmt.Errorf("init health source: %w", err)
	}
	defer reader.Close()

	var ind indicator.Indicator
	if cfg.Indicator.Line >= 0 {
		led, err := indicator.NewRealIndicator(cfg.Indicator.Chip, cfg.Indicator.Line)
		if err != nil {
			return fmt.Errorf("init indicator: %w", err)
		}
		defer led.Close()
		ind = led
	}

	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()

	ctrl := charger.New(
		power.NewSysfsSupply(fs),
		thermal.NewSampler(thermal.NewResolver(fs)),
		charger.Options{Verbose: cfg.Log.Verbose},
	)
	defer startWorker(ctrl)()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		IntervalMs:   charger.DefaultInterval.Milliseconds(),
		HealthPollMs: cfg.Health.Poll.Milliseconds(),
		HeartbeatMs:  cfg.MQTT.Heartbeat.Milliseconds(),
		HealthSource: cfg.Health.Source,
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.Status.HTTP,
	})

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.Status.HTTP != "" {
		srv := web.New(cfg.Status.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.Status.HTTP)
	}

	log.Printf("started: health=%s poll=%v broker=%q heartbeat=%v interval=%v",
		cfg.Health.Source, cfg.Health.Poll.Duration, cfg.MQTT.Broker, cfg.MQTT.Heartbeat.Duration, charger.DefaultInterval)

	ticker := time.NewTicker(cfg.Health.Poll.Duration)
	defer ticker.Stop()

	var heartbeatC <-chan time.Time
	if cfg.MQTT.Heartbeat.Duration > 0 {
		hb := time.NewTicker(cfg.MQTT.Heartbeat.Duration)
		defer hb.Stop()
		heartbeatC = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(reader, ctrl, publisher, tracker, ind, time.Now, ticker.C, heartbeatC, sigCh)
}

// startWorker runs w in its own goroutine. The returned stop function
// cancels it and waits for Run to return, so an iteration in progress
// finishes before shutdown continues.
func startWorker(w interface{ Run(context.Context) }) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func newHealthReader(source string, fs *sysfs.FS) (health.Reader, error) {
	switch source {
	case config.HealthUPower:
		r, err := health.NewUPowerReader()
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.HealthSysfs:
		return health.NewSysfsReader(fs), nil
	}
	return nil, fmt.Errorf("unknown health source %q", source)
}

// limiter is the part of the charge limit controller the main loop drives.
type limiter interface {
	HealthInfoChanged(status logic.BatteryStatus)
	Events() <-chan logic.Event
	Session() logic.Session
}

// runLoop is the notification-handling context: it polls the battery
// status, forwards it to the controller and publishes controller events.
// ind may be nil.
func runLoop(reader health.Reader, ctrl limiter, publisher mqtt.Publisher, tracker *status.Tracker, ind indicator.Indicator, now func() time.Time, tick, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	var lit bool
	refresh := func() {
		tracker.SetSession(ctrl.Session())
		tracker.SetMQTTConnected(publisher.IsConnected())
		if ind == nil {
			return
		}
		throttled := tracker.Snapshot().Throttled()
		if throttled == lit {
			return
		}
		if err := ind.Set(throttled); err != nil {
			log.Printf("indicator error: %v", err)
			return
		}
		lit = throttled
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			refresh()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			st, err := reader.Read()
			if err != nil {
				log.Printf("health read error: %v", err)
				metrics.Errors.WithLabelValues(metrics.OpStatusRead).Inc()
				continue
			}
			ctrl.HealthInfoChanged(st)
			refresh()

		case ev := <-ctrl.Events():
			log.Printf("event: %s (session=%s charger=%s limit=%dmA)", ev.Type, ev.SessionID, ev.Charger, ev.LimitMA)
			tracker.RecordEvent(ev)
			if err := publisher.Publish(ev); err != nil {
				log.Printf("publish error: %v", err)
			}
			refresh()

		case <-heartbeat:
			refresh()
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v state=%s activations=%d limit_writes=%d",
				snap.Uptime().Truncate(time.Second), snap.Session.State(), snap.Counts.Activations, snap.Counts.LimitWrites)
			hbEvent := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// printCurrentState writes the presence flags, wired type, applied limit and
// each profile's sensor readings to w.
func printCurrentState(w io.Writer, supply power.Supply, therm charger.Thermometer) error {
	wired, err := supply.WiredOnline()
	if err != nil {
		return fmt.Errorf("read wired online: %w", err)
	}
	wireless, err := supply.WirelessOnline()
	if err != nil {
		return fmt.Errorf("read wireless online: %w", err)
	}
	wiredType := "-"
	if wired {
		if t, err := supply.WiredType(); err == nil {
			wiredType = t
		}
	}
	fmt.Fprintf(w, "wired: %v (%s), wireless: %v\n", wired, wiredType, wireless)

	if applied, err := supply.AppliedLimit(); err != nil {
		fmt.Fprintf(w, "applied limit: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(w, "applied limit: %dmA\n", applied)
	}

	for _, p := range []logic.Profile{logic.FastWiredProfile, logic.WiredProfile, logic.WirelessProfile} {
		r, err := therm.Sample(p.PreferredSensor, p.FallbackSensor)
		if err != nil {
			fmt.Fprintf(w, "%s: temperature unknown (%v), limit %dmA\n", p.Kind, err, p.SafestLimit())
			continue
		}
		idx, _ := p.LimitIndex(r.MilliC)
		fmt.Fprintf(w, "%s: %s zone %d %dm°C, limit %dmA\n", p.Kind, r.Sensor, r.Zone, r.MilliC, logic.LimitForIndex(idx))
	}

	if p, ok := logic.SelectProfile(wired, wireless, wiredType); ok {
		fmt.Fprintf(w, "active profile: %s\n", p.Kind)
	} else {
		fmt.Fprintf(w, "active profile: none\n")
	}
	return nil
}
