package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HeartbeatsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rondo_heartbeats_total",
		Help: "Device heartbeats ingested.",
	})

	DevicesConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rondo_devices_connected",
		Help: "Devices currently holding a signaling connection.",
	})

	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rondo_gate_decisions_total",
		Help: "Enforcement gate decisions by connection kind and outcome.",
	}, []string{"kind", "outcome"})

	BanRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rondo_ban_refresh_total",
		Help: "Ban directory refresh attempts by result.",
	}, []string{"result"})

	BannedDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rondo_banned_devices",
		Help: "Devices banned in the current directory snapshot.",
	})

	RelaySessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rondo_relay_sessions_active",
		Help: "Relay bridges currently piping traffic.",
	})

	RelayBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rondo_relay_bytes_total",
		Help: "Bytes copied through relay bridges.",
	})
)
