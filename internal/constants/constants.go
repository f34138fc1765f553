package constants

import "time"

const AppName = "rondo"

// Network defaults
const (
	DefaultPort        = "8080"
	DefaultStatusBind  = "127.0.0.1:8081"
	WSBufferSize       = 131072 // 128KB WebSocket buffer
	CopyBufferSize     = 262144 // 256KB for io.Copy operations
	MaxWSMessageSize   = 4 * 1024 * 1024
	WSHandshakeTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
	WSCompression      = false
)

// Presence settings. PresenceTimeout is a contract with the device
// population: agents heartbeat well inside this window and assume the
// server honors it. Do not change one side without the other.
const (
	PresenceTimeout   = 30 * time.Second
	HeartbeatInterval = 10 * time.Second
	PresenceShards    = 32
)

// Ban directory
const (
	BanRefreshInterval = 3 * time.Second
	RedisBanPrefix     = "rondo:ban:"
	RedisScanBatch     = 100
)

// Device registration
const (
	RedisDevicePrefix = "rondo:device:"
	DeviceDuration    = 24 * time.Hour
	MinDeviceDuration = time.Minute
	MaxDeviceDuration = 7 * 24 * time.Hour
)

// Rate limiting / protection
const (
	MaxConnectionsPerIP   = 10
	MaxRegisterBodySize   = 4096
	MaxAuditLogsPerMinute = 600
)

// Yamux session tuning
const (
	YamuxAcceptBacklog       = 256
	YamuxKeepAliveInterval   = 15 * time.Second
	YamuxMaxStreamWindowSize = 262144
	YamuxEnableKeepAlive     = true
)

// Public API endpoints
const (
	EndpointRegister  = "/api/register"
	EndpointWebSocket = "/ws/"
)

// Status API endpoints (separate listener)
const (
	EndpointHealth     = "/health"
	EndpointPeers      = "/peers"
	EndpointMetrics    = "/metrics"
	EndpointBanRefresh = "/api/bans/refresh"
)

// Messages
const (
	MsgInvalidJSON      = "Invalid JSON"
	MsgMethodNotAllowed = "Method not allowed"
	MsgInvalidDeviceID  = "Invalid device id"
	MsgUnauthorized     = "Unauthorized"
	MsgDeviceNotFound   = "Device not found or expired"
	MsgTargetOffline    = "Target device is offline"
	MsgConnectionDenied = "Connection denied"
)
