// Package audit records who changed an organization's delivery
// configuration. Secrets are never written to the trail.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 100

	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionRedeliver  = "redeliver"
	ActionTest       = "test"
	ResourceWebhook  = "webhook"
	ResourceRule     = "notification_rule"
	ResourceDelivery = "delivery"
)

type AuditLog struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Metadata       map[string]interface{} `json:"metadata"`
	IPAddress      string                 `json:"ip_address"`
	UserAgent      string                 `json:"user_agent"`
	CreatedAt      int64                  `json:"created_at"`
}

type Logger struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

func NewLogger(db *sql.DB, logger zerolog.Logger) *Logger {
	return &Logger{db: db, logger: logger, now: time.Now}
}

// Log stores entry. A failed write is logged and otherwise ignored so an
// audit outage never fails the change being audited.
func (l *Logger) Log(ctx context.Context, entry AuditLog) {
	entry.ID = "audit_" + uuid.New().String()
	entry.CreatedAt = l.now().Unix()
	if entry.Metadata == nil {
		entry.Metadata = map[string]interface{}{}
	}

	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		l.logger.Error().Err(err).Str("action", entry.Action).Msg("failed to encode audit metadata")
		return
	}

	query := `
		INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = l.db.ExecContext(context.WithoutCancel(ctx), query,
		entry.ID, entry.OrganizationID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID,
		string(metaJSON), entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		l.logger.Error().Err(err).
			Str("organization_id", entry.OrganizationID).
			Str("action", entry.Action).
			Str("resource_id", entry.ResourceID).
			Msg("failed to write audit log")
	}
}

// List returns orgID's trail newest first.
func (l *Logger) List(ctx context.Context, orgID string, limit int) ([]*AuditLog, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs WHERE organization_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
	`
	rows, err := l.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []*AuditLog{}
	for rows.Next() {
		var entry AuditLog
		var metaStr string
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.UserID, &entry.Action, &entry.ResourceType,
			&entry.ResourceID, &metaStr, &entry.IPAddress, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaStr), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode audit metadata: %w", err)
		}
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
