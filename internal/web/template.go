package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/prox-fusion/internal/status"
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
	"stateOrUnknown": func(s status.State) string {
		if s == "" {
			return "UNKNOWN"
		}
		return string(s)
	},
	"yesNo": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Proximity Fusion</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.near { color: red; font-weight: bold; }
.far { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Proximity Fusion</h1>

<h2>State</h2>
<table>
<tr><th>Proximity</th><td class="{{if eq (stateOrUnknown .Near) "NEAR"}}near{{else if eq (stateOrUnknown .Near) "FAR"}}far{{else}}unknown{{end}}">{{stateOrUnknown .Near}}</td></tr>
<tr><th>Registered</th><td>{{yesNo .Registered}}</td></tr>
<tr><th>Secondary safe</th><td>{{yesNo .SecondarySafe}}</td></tr>
<tr><th>Listeners</th><td>{{.Listeners}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Near</th><td>{{.Counts.Near}}</td></tr>
<tr><th>Far</th><td>{{.Counts.Far}}</td></tr>
</table>

<h2>Daemon</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02 15:04:05 UTC"}}</td></tr>
<tr><th>Sample interval</th><td>{{.Config.SampleMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{.Config.HeartbeatMs}}ms</td></tr>
<tr><th>Primary pin</th><td>{{.Config.PrimaryPin}}</td></tr>
<tr><th>Secondary pin</th><td>{{if lt .Config.SecondaryPin 0}}none{{else}}{{.Config.SecondaryPin}}{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	if err := indexTmpl.Execute(w, snap); err != nil {
		log.Printf("web: render template: %v", err)
	}
}
