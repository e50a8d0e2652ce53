package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	State         string      `json:"state"`
	LastStatus    string      `json:"battery_status"`
	Charger       ChargerJSON `json:"charger"`
	Limit         *LimitJSON  `json:"limit,omitempty"`
	Throttled     bool        `json:"throttled"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Counts        CountsJSON  `json:"counts"`
	Config        ConfigJSON  `json:"config"`
}

// ChargerJSON describes the current charger session.
type ChargerJSON struct {
	SessionID string `json:"session_id,omitempty"`
	Profile   string `json:"profile,omitempty"`
	Wired     bool   `json:"wired"`
	Wireless  bool   `json:"wireless"`
	Fast      bool   `json:"fast"`
}

// LimitJSON describes the last limit written.
type LimitJSON struct {
	MA          int    `json:"ma"`
	TempMilliC  int    `json:"temp_millic"`
	TempUnknown bool   `json:"temp_unknown,omitempty"`
	ChangedAt   string `json:"changed_at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	Activations int `json:"activations"`
	LimitWrites int `json:"limit_writes"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IntervalMs   int64  `json:"interval_ms"`
	HealthPollMs int64  `json:"health_poll_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	HealthSource string `json:"health_source"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		State:      string(snap.Session.State()),
		LastStatus: snap.Session.LastStatus.String(),
		Charger: ChargerJSON{
			SessionID: snap.Session.ID,
			Profile:   string(snap.Session.Charger),
			Wired:     snap.Session.WiredActive,
			Wireless:  snap.Session.WirelessActive,
			Fast:      snap.Session.UsingFastProfile,
		},
		Throttled:     snap.Throttled(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Activations: snap.Counts.Activations,
			LimitWrites: snap.Counts.LimitWrites,
		},
		Config: ConfigJSON{
			IntervalMs:   snap.Config.IntervalMs,
			HealthPollMs: snap.Config.HealthPollMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			HealthSource: snap.Config.HealthSource,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
	if snap.HasLimit {
		inner.Limit = &LimitJSON{
			MA:          snap.LimitMA,
			TempMilliC:  snap.TempMilliC,
			TempUnknown: snap.TempUnknown,
			ChangedAt:   snap.LastChange.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT lifecycle event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
