package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/piface-relay/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"stateClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.Device}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.alert { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{.Config.Device}}</h1>

<h2>Board</h2>
<table>
<tr><th>Device</th><td class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{if .Connected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Bus</th><td>{{.Config.Bus}}</td></tr>
{{if .LastMessage}}<tr><th>Last message</th><td>{{.LastMessage}}</td></tr>{{end}}
</table>
<form method="post" action="/connect"><button>Connect</button></form>
<form method="post" action="/disconnect"><button>Disconnect</button></form>

<h2>Relays</h2>
<table>
{{range $i, $s := .Relays}}{{$state := stateOrUnknown (printf "%s" $s)}}<tr><th>Relay {{inc $i}}</th><td class="{{stateClass $state}}">{{$state}}</td><td><form method="post" action="/relays/{{inc $i}}/toggle"><button>Toggle</button></form></td></tr>
{{end}}</table>

<h2>Switches</h2>
<table>
<tr><th>State</th><td class="{{if eq (printf "%s" .Group) "ALERT"}}alert{{end}}">{{.Group}}{{if .Armed}} ({{.Armed}} armed){{end}}</td></tr>
</table>
<form method="post" action="/actions/ALL_ON"><button>All On</button></form>
<form method="post" action="/actions/ALL_OFF"><button>All Off</button></form>
<form method="post" action="/actions/SHUTDOWN"><button>Shutdown</button></form>
<form method="post" action="/actions/RESTART"><button>Restart</button></form>

<h2>Telemetry</h2>
<table>
<tr><th>Local time</th><td>{{.Time.LocalTime}}</td></tr>
<tr><th>UTC offset</th><td>{{.Time.UTCOffset}}</td></tr>
<tr><th>Counter</th><td>{{.Counter}}</td></tr>
{{if .System}}<tr><th>Hardware</th><td>{{.System.Hardware}}</td></tr>
<tr><th>Uptime</th><td>{{.System.Uptime}}</td></tr>
<tr><th>Load</th><td>{{.System.Load}}</td></tr>
<tr><th>Free memory</th><td>{{.System.FreeMemory}}</td></tr>
<tr><th>Temperature</th><td>{{.System.Temperature}}</td></tr>{{end}}
{{if .Network}}<tr><th>Hostname</th><td>{{.Network.Hostname}}</td></tr>
<tr><th>Local IP</th><td>{{.Network.LocalIP}}</td></tr>
<tr><th>Public IP</th><td>{{.Network.PublicIP}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
</table>

<h2>Daemon</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Arm timeout</th><td>{{.Config.ArmTimeoutMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
