package security

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"rondo/internal/constants"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	IP        string    `json:"ip,omitempty"`
	SourceID  string    `json:"source_id,omitempty"`
	TargetID  string    `json:"target_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Details   string    `json:"details"`
	Severity  string    `json:"severity"`
}

// AuditLogger writes a rate-limited JSON audit trail. Every enforcement
// decision lands here with enough context to reconstruct who tried to
// reach whom and why it was refused.
type AuditLogger struct {
	mu          sync.Mutex
	file        *os.File
	enc         *json.Encoder
	logCount    map[string]int
	windowStart time.Time
}

var (
	instance *AuditLogger
	once     sync.Once
)

func GetAuditLogger() (*AuditLogger, error) {
	var err error
	once.Do(func() {
		instance, err = newAuditLogger()
	})
	return instance, err
}

func newAuditLogger() (*AuditLogger, error) {
	dir, err := getAuditLogDir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	filename := filepath.Join(dir, fmt.Sprintf("audit-%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{
		file:        file,
		enc:         json.NewEncoder(file),
		logCount:    make(map[string]int),
		windowStart: time.Now(),
	}, nil
}

func getAuditLogDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", constants.AppName, "audit"), nil
	case "darwin":
		return filepath.Join(home, "Library", "Logs", constants.AppName, "audit"), nil
	default:
		return filepath.Join(home, ".local", "share", constants.AppName, "audit"), nil
	}
}

func (al *AuditLogger) Log(event AuditEvent) {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := time.Now()

	if now.Sub(al.windowStart) > time.Minute {
		al.windowStart = now
		al.logCount = make(map[string]int)
	}

	totalLogs := 0
	for _, count := range al.logCount {
		totalLogs += count
	}

	if totalLogs >= constants.MaxAuditLogsPerMinute {
		return
	}

	al.logCount[event.EventType]++
	event.Timestamp = now
	al.enc.Encode(event)
}

func (al *AuditLogger) LogDecision(sourceID, targetID, kind string, allowed bool, reason string) {
	event := AuditEvent{
		EventType: "gate_allow",
		SourceID:  sourceID,
		TargetID:  targetID,
		Kind:      kind,
		Details:   "connection allowed",
		Severity:  "info",
	}
	if !allowed {
		event.EventType = "gate_deny"
		event.Details = reason
		event.Severity = "warning"
	}
	al.Log(event)
}

func (al *AuditLogger) LogAuthFailure(ip, deviceID, reason string) {
	al.Log(AuditEvent{
		EventType: "auth_failure",
		IP:        ip,
		SourceID:  deviceID,
		Details:   reason,
		Severity:  "warning",
	})
}

func (al *AuditLogger) LogConnectionLimit(ip string) {
	al.Log(AuditEvent{
		EventType: "connection_limit",
		IP:        ip,
		Details:   "per-IP connection limit exceeded",
		Severity:  "warning",
	})
}

func (al *AuditLogger) LogStatusAccess(ip, path string, authorized bool) {
	severity := "info"
	details := "status API access"
	if !authorized {
		severity = "warning"
		details = "status API access with bad or missing credential"
	}
	al.Log(AuditEvent{
		EventType: "status_access",
		IP:        ip,
		Details:   details + ": " + path,
		Severity:  severity,
	})
}

func (al *AuditLogger) Close() error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.file != nil {
		return al.file.Close()
	}
	return nil
}
