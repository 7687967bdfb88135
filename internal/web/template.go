package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/energy-dashboard/internal/energy"
	"github.com/sweeney/energy-dashboard/internal/engine"
	"github.com/sweeney/energy-dashboard/internal/status"
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
	"kw": func(watts float64) string {
		return fmt.Sprintf("%.1f kW", watts/1000)
	},
	"money": func(v float64) string {
		return fmt.Sprintf("$%.2f", v)
	},
}).Parse(indexHTML))

// pageData is everything the index page renders.
type pageData struct {
	Snapshot       energy.RealTime
	Appliances     []energy.Appliance
	Summary        energy.ApplianceSummary
	Breakdown      []energy.TypePower
	History        []energy.HistoricalRecord
	HistorySummary energy.HistorySummary
	Reference      engine.Reference
	XPProgress     float64
	Running        bool
	Live           bool
	Status         *status.Snapshot
	Uptime         time.Duration
}

func (s *Server) pageData() pageData {
	ref := s.engine.Reference()
	d := pageData{
		Snapshot:       s.engine.Snapshot(),
		Appliances:     s.engine.Appliances(),
		Summary:        s.engine.Summary(),
		Breakdown:      s.engine.Breakdown(),
		History:        s.engine.History(),
		HistorySummary: s.engine.HistorySummary(),
		Reference:      ref,
		XPProgress:     ref.Gamification.XPProgress(),
		Running:        s.engine.RealtimeRunning(),
		Live:           s.hub != nil,
	}
	if s.tracker != nil {
		snap := s.tracker.Snapshot()
		d.Status = &snap
		d.Uptime = snap.Uptime()
	}
	return d
}

func renderHTML(w io.Writer, data pageData) error {
	return indexTmpl.Execute(w, data)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Energy Dashboard</title>
<style>
body { font-family: monospace; max-width: 900px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.high { color: red; }
.medium { color: orange; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Energy Dashboard{{if .Live}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Now</h2>
<table>
<tr><th>Total power</th><td id="rt-power">{{kw .Snapshot.TotalPower}}</td></tr>
<tr><th>Active appliances</th><td id="rt-active">{{.Snapshot.ActiveAppliances}} / {{.Summary.Total}}</td></tr>
<tr><th>Estimated daily cost</th><td id="rt-cost">{{money .Snapshot.EstimatedDailyCost}}</td></tr>
<tr><th>Efficiency</th><td id="rt-eff">{{.Snapshot.CurrentEfficiency}}%</td></tr>
<tr><th>Weather</th><td>{{.Snapshot.Weather.Temperature}}&deg; {{.Snapshot.Weather.Condition}}, {{.Snapshot.Weather.Humidity}}% humidity</td></tr>
<tr><th>Updated</th><td id="rt-time">{{.Snapshot.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Live updates</th><td id="rt-running">{{if .Running}}running{{else}}paused{{end}}</td></tr>
</table>

<h2>Appliances</h2>
<table>
<tr><th>Name</th><th>Type</th><th>Rating</th><th>Status</th><th></th></tr>
{{range .Appliances}}<tr>
<td>{{.Name}}</td><td>{{.Type}}</td><td>{{.PowerRating}} W</td>
<td id="status-{{.ID}}" class="{{.Status}}">{{.Status}}</td>
<td><button data-id="{{.ID}}" class="toggle">Toggle</button></td>
</tr>
{{end}}</table>

<h2>Power by type</h2>
<table id="breakdown">
{{range .Breakdown}}<tr><th>{{.Type}}</th><td>{{.Watts}} W</td></tr>
{{end}}</table>

<h2>History</h2>
<table>
<tr><th>Date</th><th>kWh</th><th>Cost</th><th>Carbon (kg)</th><th>Peak (kWh)</th><th>Efficiency</th></tr>
{{range .History}}<tr><td>{{.Date}}</td><td>{{.Consumption}}</td><td>{{money .Cost}}</td><td>{{.CarbonFootprint}}</td><td>{{.PeakHoursUsage}}</td><td>{{.EfficiencyScore}}%</td></tr>
{{end}}<tr><th>{{.HistorySummary.Days}} days</th><th>{{.HistorySummary.TotalConsumption}}</th><th>{{money .HistorySummary.TotalCost}}</th><th>{{.HistorySummary.TotalCarbon}}</th><th></th><th>{{.HistorySummary.AverageEfficiency}}%</th></tr>
</table>

{{with .Reference.Predictions}}<h2>Predictions</h2>
<table>
<tr><th>Tomorrow</th><td>{{.NextDayConsumption}} kWh</td></tr>
<tr><th>Next week (avg)</th><td>{{.NextWeekAverage}} kWh</td></tr>
<tr><th>This month</th><td>{{.MonthlyProjection}} kWh</td></tr>
<tr><th>Savings potential</th><td>{{money .CostSavingsPotential}}</td></tr>
{{range .EfficiencyImprovements}}<tr><th>{{.Appliance}} ({{.CurrentEfficiency}}%)</th><td>{{.RecommendedAction}}, saves {{money .PotentialSavings}}</td></tr>
{{end}}</table>{{end}}

{{with .Reference.Gamification}}<h2>Progress</h2>
<table>
<tr><th>Level</th><td>{{.UserLevel}} ({{$.XPProgress}}% to next)</td></tr>
<tr><th>Points</th><td>{{.PointsEarned}}</td></tr>
<tr><th>Leaderboard</th><td>#{{.LeaderboardPosition}} of {{.TotalUsers}}</td></tr>
{{range .Badges}}<tr><th>Badge</th><td>{{.Name}}: {{.Description}}</td></tr>
{{end}}{{range .Challenges}}<tr><th>{{.Name}}</th><td>{{.Progress}}% ({{.Reward}} pts) {{.Description}}</td></tr>
{{end}}</table>{{end}}

{{if .Reference.Anomalies}}<h2>Anomalies</h2>
<table>
{{range .Reference.Anomalies}}<tr><td>{{.Timestamp}}</td><td>{{.Appliance}}</td><td class="{{.Severity}}">{{.Severity}}</td><td>{{.Description}}</td></tr>
{{end}}</table>{{end}}

{{with .Status}}<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime $.Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Session</th><td>{{.Session}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Tariff</th><td>{{money .Config.Tariff}}/kWh</td></tr>
<tr><th>Drift</th><td>{{.Config.DriftPolicy}}</td></tr>
<tr><th>MQTT</th><td>{{if .Config.Broker}}{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}}){{else}}disabled{{end}}</td></tr>
</table>{{end}}

<p><a href="/export.csv">CSV</a> | <a href="/export.json">JSON</a> | <a href="/index.json">Status</a></p>

<script>
(function() {
  function text(id, v) { var el = document.getElementById(id); if (el) el.textContent = v; }

  function render(s) {
    text("rt-power", (s.total_power / 1000).toFixed(1) + " kW");
    var active = document.getElementById("rt-active");
    if (active) active.textContent = s.active_appliances + active.textContent.replace(/^\d+/, "");
    text("rt-cost", "$" + s.estimated_daily_cost.toFixed(2));
    text("rt-eff", s.current_efficiency + "%");
    text("rt-time", s.timestamp);
  }

  function setStatus(id, st) {
    var el = document.getElementById("status-" + id);
    if (el) { el.textContent = st; el.className = st; }
  }

  document.querySelectorAll("button.toggle").forEach(function(b) {
    b.addEventListener("click", function() {
      fetch("/api/appliances/" + b.dataset.id + "/toggle", { method: "POST" })
        .then(function(r) { return r.json(); })
        .then(function(res) {
          if (res.error) return;
          setStatus(res.id, res.status);
          render(res.snapshot);
        });
    });
  });

  document.addEventListener("visibilitychange", function() {
    fetch("/api/visibility", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ state: document.hidden ? "hidden" : "visible" })
    }).then(function(r) { return r.json(); })
      .then(function(res) { text("rt-running", res.running ? "running" : "paused"); });
  });
{{if .Live}}
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) { dot.className = "live-dot " + cls; dot.title = title; }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 5000); };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        render(msg.snapshot);
        if (msg.toggle) setStatus(msg.toggle.id, msg.toggle.status);
      } catch (e) {}
    };
  }
  connect();
{{end}}
})();
</script>
</body>
</html>
`
