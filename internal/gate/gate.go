package gate

import (
	"fmt"
	"log"
	"time"

	"rondo/internal/ban"
	"rondo/internal/metrics"
	"rondo/internal/security"
)

// Reason tags why a connection was refused. Source and target bans are
// reported separately so the audit trail can distinguish "you are
// banned" from "that device is banned"; the wire response to the caller
// does not have to reveal which.
type Reason string

const (
	ReasonSourceBanned Reason = "source_banned"
	ReasonTargetBanned Reason = "target_banned"
	ReasonNotReady     Reason = "ban_state_unavailable"
)

// Request is one proposed connection. Ephemeral; lives for the duration
// of a single Decide call.
type Request struct {
	SourceID string
	TargetID string
	Kind     string // protocol.KindPunchHole or protocol.KindRelay
}

type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Allowed: false, Reason: r} }

// FailPolicy governs the gate when the ban directory has never been
// populated since startup. This is the one knob that silently defeats
// ban enforcement if misconfigured, so it is explicit and loud.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	FailClosed
)

func (p FailPolicy) String() string {
	if p == FailClosed {
		return "closed"
	}
	return "open"
}

func ParseFailPolicy(s string) (FailPolicy, error) {
	switch s {
	case "open":
		return FailOpen, nil
	case "closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("unknown fail policy %q (want open or closed)", s)
	}
}

// Gate vetoes connection setup bidirectionally. Both the punch-hole and
// the relay negotiation handlers route through the same Decide entry
// point; do not add a second check site.
type Gate struct {
	bans   *ban.Directory
	policy FailPolicy
	audit  *security.AuditLogger
}

func New(bans *ban.Directory, policy FailPolicy, audit *security.AuditLogger) *Gate {
	if policy == FailOpen {
		log.Printf("⚠️  Gate fail policy is OPEN: connections are allowed while the ban list has never loaded")
	} else {
		log.Printf("🚫 Gate fail policy is CLOSED: all connections are denied until the ban list loads")
	}
	return &Gate{bans: bans, policy: policy, audit: audit}
}

// Decide approves or rejects one proposed connection. Non-blocking and
// I/O free: it only consults the cached ban snapshot. Presence is not a
// precondition here — a device that never registered must not bypass a
// ban by staying offline.
func (g *Gate) Decide(req Request, now time.Time) Decision {
	if !g.bans.Initialized() {
		if g.policy == FailClosed {
			log.Printf("🚫 Gate deny (%s): ban state unavailable, fail-closed: %s -> %s", req.Kind, req.SourceID, req.TargetID)
			return g.record(req, deny(ReasonNotReady))
		}
		log.Printf("⚠️  Gate allow (%s): ban state unavailable, fail-open: %s -> %s", req.Kind, req.SourceID, req.TargetID)
		return g.record(req, allow())
	}

	sourceBanned := g.bans.IsBanned(req.SourceID)
	targetBanned := g.bans.IsBanned(req.TargetID)

	switch {
	case sourceBanned:
		log.Printf("🚫 Gate deny (%s): source %s is banned (target %s)", req.Kind, req.SourceID, req.TargetID)
		return g.record(req, deny(ReasonSourceBanned))
	case targetBanned:
		log.Printf("🚫 Gate deny (%s): target %s is banned (source %s)", req.Kind, req.TargetID, req.SourceID)
		return g.record(req, deny(ReasonTargetBanned))
	default:
		return g.record(req, allow())
	}
}

func (g *Gate) record(req Request, d Decision) Decision {
	outcome := "allow"
	if !d.Allowed {
		outcome = "deny_" + string(d.Reason)
	}
	metrics.DecisionsTotal.WithLabelValues(req.Kind, outcome).Inc()

	if g.audit != nil {
		g.audit.LogDecision(req.SourceID, req.TargetID, req.Kind, d.Allowed, string(d.Reason))
	}
	return d
}
