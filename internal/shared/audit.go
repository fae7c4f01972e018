package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs. Reason is mandatory
// for lock/unlock/proxy actions and is enforced by the calling service.
type AuditLog struct {
	TenantID  uuid.UUID
	ActorID   uuid.UUID
	Action    string
	Entity    string
	EntityID  string
	OldValues map[string]any
	NewValues map[string]any
	Reason    string
	At        time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.TenantID == uuid.Nil {
		return errors.New("audit log requires tenant")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	oldJSON, err := json.Marshal(log.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(log.NewValues)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (tenant_id, actor_id, action, entity, entity_id, old_values, new_values, reason, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), COALESCE(NULLIF($9, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`,
		log.TenantID, log.ActorID, log.Action, log.Entity, log.EntityID, oldJSON, newJSON, log.Reason, log.At)
	return err
}

// AuditRecorder is the port services depend on for audit side effects.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}
