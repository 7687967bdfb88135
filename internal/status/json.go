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
	Event           string     `json:"event,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Session         string     `json:"session"`
	RealtimeRunning bool       `json:"realtime_running"`
	UptimeSeconds   int64      `json:"uptime_seconds"`
	StartTime       string     `json:"start_time"`
	Timestamp       string     `json:"timestamp"`
	MQTT            MQTTStatus `json:"mqtt"`
	Energy          EnergyJSON `json:"energy"`
	Config          ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// EnergyJSON is the headline of the real-time snapshot.
type EnergyJSON struct {
	TotalPower         float64 `json:"total_power"`
	ActiveAppliances   int     `json:"active_appliances"`
	TotalAppliances    int     `json:"total_appliances"`
	EstimatedDailyCost float64 `json:"estimated_daily_cost"`
	CurrentEfficiency  int     `json:"current_efficiency"`
	SnapshotTime       string  `json:"snapshot_time"`
}

// ConfigJSON is the JSON representation of service config.
type ConfigJSON struct {
	IntervalMs  int64   `json:"interval_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	Tariff      float64 `json:"tariff"`
	DriftPolicy string  `json:"drift_policy"`
	HTTPAddr    string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Session:         snap.Session,
		RealtimeRunning: snap.RealtimeRunning,
		UptimeSeconds:   int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:       snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:       snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Enabled:   snap.Config.Broker != "",
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
		},
		Energy: EnergyJSON{
			TotalPower:         snap.Energy.TotalPower,
			ActiveAppliances:   snap.Energy.ActiveAppliances,
			TotalAppliances:    snap.Appliances.Total,
			EstimatedDailyCost: snap.Energy.EstimatedDailyCost,
			CurrentEfficiency:  snap.Energy.CurrentEfficiency,
			SnapshotTime:       snap.Energy.Timestamp.UTC().Format(time.RFC3339),
		},
		Config: ConfigJSON{
			IntervalMs:  snap.Config.IntervalMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Tariff:      snap.Config.Tariff,
			DriftPolicy: snap.Config.DriftPolicy,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
