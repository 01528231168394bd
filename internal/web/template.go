package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/antenna-control/internal/status"
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
	"pairOrNone": func(p string) string {
		if p == "" {
			return "none"
		}
		return p
	},
	"loopClass": func(state string) string {
		switch state {
		case "RUNNING":
			return "on"
		case "STOPPED":
			return "off"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Antenna Control</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Antenna Control</h1>

<h2>State</h2>
<table>
<tr><th>DF Mode</th><td class="{{if .DFMode}}on{{else}}off{{end}}">{{if .DFMode}}ENABLED{{else}}DISABLED{{end}}</td></tr>
<tr><th>Polling</th><td class="{{loopClass .Loop}}">{{.Loop}}</td></tr>
<tr><th>Switch Pattern</th><td>{{printf "%d" .Pattern}}</td></tr>
<tr><th>Antenna</th><td class="{{if .Pattern.Pair}}on{{else}}unknown{{end}}">{{pairOrNone .Pattern.Pair}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counters</h2>
<table>
<tr><th>Samples</th><td>{{.Counts.Samples}}</td></tr>
<tr><th>Changes</th><td>{{.Counts.Changes}}</td></tr>
<tr><th>Read errors</th><td>{{.Counts.ReadErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Device</th><td>{{.Kind}} ({{.Model}})</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Stop timeout</th><td>{{.Config.StopTimeoutMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.Chip}} mode={{index .Config.Pins 0}} bits={{index .Config.Pins 1}},{{index .Config.Pins 2}},{{index .Config.Pins 3}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Kind   string
		Model  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Kind:     status.DeviceKind,
		Model:    status.DeviceModel,
	}
	return indexTmpl.Execute(w, data)
}
