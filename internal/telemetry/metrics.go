// Package telemetry defines the Prometheus collectors exported on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine
	SimulationTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_simulation_ticks_total",
		Help: "Simulation ticks applied to the real-time snapshot",
	})

	SimulationFaults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_simulation_faults_total",
		Help: "Simulation ticks that panicked and were skipped",
	})

	Toggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy_toggles_total",
		Help: "Appliance toggle requests by result",
	}, []string{"result"})

	DroppedUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energy_dropped_updates_total",
		Help: "State updates dropped because a subscriber was not keeping up",
	})

	TotalPowerWatts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "energy_total_power_watts",
		Help: "Current total power draw reported by the snapshot",
	})

	ActiveAppliances = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "energy_active_appliances",
		Help: "Number of appliances switched on",
	})

	Efficiency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "energy_current_efficiency",
		Help: "Current efficiency score",
	})

	RealtimeRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "energy_realtime_running",
		Help: "1 while the simulation loop is running",
	})

	// Transport
	MQTTPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy_mqtt_publishes_total",
		Help: "MQTT publish attempts by topic kind and result",
	}, []string{"kind", "result"})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "energy_websocket_clients",
		Help: "Connected websocket clients",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energy_http_requests_total",
		Help: "HTTP requests by method and status code",
	}, []string{"method", "code"})
)

// Bool converts a flag to a gauge value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
