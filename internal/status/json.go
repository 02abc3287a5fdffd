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
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Proximity     string       `json:"proximity"`
	Registered    bool         `json:"registered"`
	SecondarySafe bool         `json:"secondary_safe"`
	Listeners     int          `json:"listeners"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Near int `json:"near"`
	Far  int `json:"far"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleMs     int64  `json:"sample_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	PrimaryPin   int    `json:"primary_pin"`
	SecondaryPin int    `json:"secondary_pin"`
}

func buildInner(snap Snapshot) StatusInner {
	prox := string(snap.Near)
	if prox == "" {
		prox = "UNKNOWN"
	}

	return StatusInner{
		Proximity:     prox,
		Registered:    snap.Registered,
		SecondarySafe: snap.SecondarySafe,
		Listeners:     snap.Listeners,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Near: snap.Counts.Near,
			Far:  snap.Counts.Far,
		},
		Config: ConfigJSON{
			SampleMs:     snap.Config.SampleMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			PrimaryPin:   snap.Config.PrimaryPin,
			SecondaryPin: snap.Config.SecondaryPin,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
