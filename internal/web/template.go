package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/cover-controller/internal/status"
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
	"celsius": func(f float64) string { return fmt.Sprintf("%.1f °C", f) },
	"percent": func(f float64) string { return fmt.Sprintf("%.1f %%", f) },
	"volts":   func(f float64) string { return fmt.Sprintf("%.2f V", f) },
	"angle":   func(f float64) string { return fmt.Sprintf("%.1f°", f) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Cover Controller</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.stale { color: orange; }
button { font-family: monospace; margin: 2px; }
#log { background: #111; color: #ddd; height: 16em; overflow-y: scroll; padding: 4px; white-space: pre-wrap; font-size: 0.85em; }
</style>
</head>
<body>
<h1>Cover Controller</h1>

<h2>Cover</h2>
<table>
<tr><th>Link</th><td class="{{if .Link.Connected}}connected{{else if eq .Link.State.String "STALE"}}stale{{else}}disconnected{{end}}">{{.Link.State}}</td></tr>
{{if .Link.HasRecord}}<tr><th>Firmware</th><td>{{.Link.Record.Firmware}}</td></tr>
<tr><th>Position</th><td>{{angle .Link.Record.CurrentAngle}} (closed {{angle .Link.Record.CloseAngle}}, open {{angle .Link.Record.OpenAngle}})</td></tr>
<tr><th>Panel brightness</th><td class="{{if gt .Link.Record.Brightness 0}}on{{else}}off{{end}}">{{.Link.Record.Brightness}}</td></tr>
<tr><th>Input voltage</th><td>{{volts .Link.Record.InputVoltage}}</td></tr>
<tr><th>Cover heater</th><td>{{.Link.Record.Heater}}</td></tr>
<tr><th>External control</th><td>{{if .Link.Record.ExternalControl}}yes{{else}}no{{end}}</td></tr>{{end}}
<tr><th>Potentiometer</th><td>{{.Input.Brightness}}</td></tr>
</table>
<p>
<button onclick="act('open_cover')">Open</button>
<button onclick="act('close_cover')">Close</button>
<button onclick="act('set_brightness')">Light on</button>
<button onclick="act('turn_off_light')">Light off</button>
<span id="act-result"></span>
</p>

<h2>Dew Heaters</h2>
<table>
{{if .Sensor.Present}}{{if .Sensor.Valid}}<tr><th>Temperature</th><td>{{celsius .Sensor.Reading.Temperature}}</td></tr>
<tr><th>Humidity</th><td>{{percent .Sensor.Reading.Humidity}}</td></tr>
<tr><th>Pressure</th><td>{{printf "%.1f hPa" .Sensor.Reading.Pressure}}</td></tr>
<tr><th>Dew point</th><td>{{celsius .Thermal.DewPoint}}</td></tr>{{else}}<tr><th>Sensor</th><td class="disconnected">read error</td></tr>{{end}}{{else}}<tr><th>Sensor</th><td class="disconnected">not fitted</td></tr>{{end}}
<tr><th>Heater 1</th><td class="{{if gt (index .Thermal.Power 0) 0}}on{{else}}off{{end}}">{{index .Thermal.Power 0}}% (max {{index .Thermal.MaxPower 0}}%)</td></tr>
<tr><th>Heater 2</th><td class="{{if gt (index .Thermal.Power 1) 0}}on{{else}}off{{end}}">{{index .Thermal.Power 1}}% (max {{index .Thermal.MaxPower 1}}%)</td></tr>
<tr><th>Supply</th><td>{{volts .SupplyVolts}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.WSBroker}}<tr><th>Websocket broker</th><td>{{.Config.WSBroker}}</td></tr>{{end}}
<tr><th>Serial</th><td>{{.Config.SerialPort}} ({{.Config.ProtocolID}})</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Auto-close</th><td>{{if .Config.AutoClose}}{{.Config.AutoCloseTime}}{{if .AutoCloseFired}} (done today){{end}}{{else}}disabled{{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/config">Config</a> <button onclick="act('reload_config')">Reload config</button></p>

<h2>Log</h2>
<div id="log"></div>

<script>
function act(name) {
  var out = document.getElementById("act-result");
  fetch("/action/" + name, { method: "POST" })
    .then(function(r) { return r.text().then(function(t) { out.textContent = r.ok ? "OK" : t; }); })
    .catch(function(e) { out.textContent = String(e); });
}
(function() {
  var el = document.getElementById("log");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/log/ws");
  ws.onmessage = function(ev) {
    el.textContent += ev.data + "\n";
    el.scrollTop = el.scrollHeight;
  };
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
