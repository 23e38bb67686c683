package authcore

import (
	"log"

	"github.com/hogarcare/authcore/internal/audit"
	"github.com/hogarcare/authcore/internal/stores"
	"github.com/hogarcare/authcore/jwt"
	"github.com/hogarcare/authcore/password"
)

// Engine is the authentication core. Build one via [New] at startup and
// share it; all methods are safe for concurrent use.
type Engine struct {
	config Config

	creds      CredentialStore
	recovery   RecoveryTokenStore
	auditStore stores.AuditStore
	notifier   NotificationSender

	audit   *audit.Dispatcher
	metrics *Metrics

	passwordHash *password.Hasher
	totp         *totpManager
	tokens       *jwt.Manager

	// dummyHash is compared against when the email is unknown so both
	// paths cost one argon2 verification.
	dummyHash string
}

// Close shuts down the audit dispatcher, draining queued records. It is
// safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit records were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(format string, args ...any) {
	log.Printf("authcore: "+format, args...)
}
