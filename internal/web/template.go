package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/charge-limiter/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"celsius": func(milliC int) string {
		return fmt.Sprintf("%.1f°C", float64(milliC)/1000)
	},
	"orNone": func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Charge Limiter</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.limiting { color: #c60; font-weight: bold; }
.idle { color: #888; }
.throttled { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Charge Limiter</h1>

<h2>Controller</h2>
<table>
<tr><th>State</th><td id="state" class="{{if .Session.LimitingEnabled}}limiting{{else}}idle{{end}}">{{.Session.State}}</td></tr>
<tr><th>Battery</th><td>{{.Session.LastStatus}}</td></tr>
<tr><th>Charger</th><td>{{orNone (printf "%s" .Session.Charger)}}</td></tr>
<tr><th>Session</th><td>{{orNone .Session.ID}}</td></tr>
</table>

<h2>Limit</h2>
<table>
{{if .HasLimit}}<tr><th>Current limit</th><td class="{{if .Throttled}}throttled{{end}}">{{.LimitMA}} mA</td></tr>
<tr><th>Temperature</th><td>{{if .TempUnknown}}unknown{{else}}{{celsius .TempMilliC}}{{end}}</td></tr>
<tr><th>Changed</th><td>{{.LastChange.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Current limit</th><td>none in force</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{orNone .Config.Broker}}</td></tr>
</table>

<h2>Activity</h2>
<table>
<tr><th>Activations</th><td>{{.Counts.Activations}}</td></tr>
<tr><th>Limit writes</th><td>{{.Counts.LimitWrites}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Health source</th><td>{{.Config.HealthSource}} every {{.Config.HealthPollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Template methods cannot be called with arguments, so flatten the derived values.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Throttled bool
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Throttled: snap.Throttled(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render: %v", err)
	}
}
