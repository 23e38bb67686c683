package authcore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hogarcare/authcore/internal/audit"
)

// AuditSpec describes the record an audited operation should produce.
type AuditSpec struct {
	Action      AuditAction
	Table       string
	Description string
}

// auditEntry is the raw material for one audit record; emitAudit fills
// actor, IP and user agent from ctx.
type auditEntry struct {
	action      AuditAction
	table       string
	recordID    string
	description string
	success     bool
	errText     string
	actorID     string
	metadata    map[string]string
}

// emitAudit hands the record to the async dispatcher. It never blocks
// the caller beyond buffer admission and never returns an error.
func (e *Engine) emitAudit(ctx context.Context, entry auditEntry) {
	if e == nil || e.audit == nil {
		return
	}

	actor := entry.actorID
	if actor == "" {
		actor = actorFrom(ctx)
	}

	event := audit.Event{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Action:      string(entry.action),
		ActorID:     actor,
		Table:       entry.table,
		RecordID:    entry.recordID,
		Description: entry.description,
		IP:          clientIPFrom(ctx),
		UserAgent:   userAgentFrom(ctx),
		Success:     entry.success,
		Error:       entry.errText,
		Metadata:    entry.metadata,
	}

	e.audit.Emit(ctx, event)
}

// RunAudited executes op and, when it succeeds and an actor is attached
// to ctx, records exactly one audit entry describing it. Failures of op
// produce no record; failures of the audit pipeline never affect op's
// result.
func RunAudited[T any](ctx context.Context, e *Engine, spec AuditSpec, op func(context.Context) (T, string, error)) (T, error) {
	result, recordID, err := op(ctx)
	if err != nil {
		return result, err
	}

	if actorFrom(ctx) != "" {
		e.emitAudit(ctx, auditEntry{
			action:      spec.Action,
			table:       spec.Table,
			recordID:    recordID,
			description: spec.Description,
			success:     true,
		})
	}

	return result, nil
}

// SearchAuditRecords returns a filtered, newest-first page of the audit
// log. Zero-valued query fields match everything; Page defaults to 1 and
// Limit to 50.
func (e *Engine) SearchAuditRecords(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.auditStore == nil {
		return nil, ErrAuditUnavailable
	}
	return e.auditStore.Query(ctx, q)
}

// AuditStatistics aggregates the audit log over [from, to]. Zero times
// leave that bound open.
func (e *Engine) AuditStatistics(ctx context.Context, from, to time.Time) (*AuditStats, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.auditStore == nil {
		return nil, ErrAuditUnavailable
	}
	return e.auditStore.Aggregate(ctx, from, to)
}
