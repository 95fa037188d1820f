package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"beacon/internal/platform/models"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

const webhookColumns = `id, organization_id, name, url, events, secret, headers, enabled, created_at, updated_at`

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	if webhook.ID == "" {
		webhook.ID = "wh_" + uuid.New().String()
	}
	now := time.Now().Unix()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now

	eventsJSON, headersJSON, err := encodeWebhook(webhook)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhooks (` + webhookColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		webhook.ID, webhook.OrganizationID, webhook.Name, webhook.URL, eventsJSON,
		webhook.Secret, headersJSON, webhook.Enabled, webhook.CreatedAt, webhook.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the webhook does not exist in orgID.
func (r *WebhookRepository) GetByID(ctx context.Context, orgID, id string) (*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = ? AND organization_id = ?`
	w, err := scanWebhook(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

func (r *WebhookRepository) List(ctx context.Context, orgID string) ([]*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE organization_id = ? ORDER BY created_at DESC`
	return r.query(ctx, query, orgID)
}

// ListEnabled returns the enabled webhooks of orgID. Event matching is left
// to the caller since events are stored as a JSON array.
func (r *WebhookRepository) ListEnabled(ctx context.Context, orgID string) ([]*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE organization_id = ? AND enabled = 1 ORDER BY created_at ASC`
	return r.query(ctx, query, orgID)
}

func (r *WebhookRepository) Update(ctx context.Context, webhook *models.Webhook) error {
	eventsJSON, headersJSON, err := encodeWebhook(webhook)
	if err != nil {
		return err
	}
	webhook.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE webhooks
		SET name = ?, url = ?, events = ?, secret = ?, headers = ?, enabled = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`
	_, err = r.db.ExecContext(ctx, query,
		webhook.Name, webhook.URL, eventsJSON, webhook.Secret, headersJSON, webhook.Enabled,
		webhook.UpdatedAt, webhook.ID, webhook.OrganizationID)
	if err != nil {
		return fmt.Errorf("update webhook: %w", err)
	}
	return nil
}

// Delete removes the webhook and its delivery records in one transaction.
// It reports whether a webhook row was removed.
func (r *WebhookRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return false, fmt.Errorf("delete webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM webhook_deliveries WHERE webhook_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete webhook deliveries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *WebhookRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := []*models.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func encodeWebhook(w *models.Webhook) (string, string, error) {
	eventsJSON, err := json.Marshal(w.Events)
	if err != nil {
		return "", "", err
	}
	headers := w.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return "", "", err
	}
	return string(eventsJSON), string(headersJSON), nil
}

func scanWebhook(s interface {
	Scan(dest ...interface{}) error
}) (*models.Webhook, error) {
	var w models.Webhook
	var eventsStr, headersStr string

	err := s.Scan(&w.ID, &w.OrganizationID, &w.Name, &w.URL, &eventsStr, &w.Secret,
		&headersStr, &w.Enabled, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(eventsStr), &w.Events); err != nil {
		return nil, fmt.Errorf("decode webhook %s events: %w", w.ID, err)
	}
	if headersStr != "" {
		if err := json.Unmarshal([]byte(headersStr), &w.Headers); err != nil {
			return nil, fmt.Errorf("decode webhook %s headers: %w", w.ID, err)
		}
	}
	return &w, nil
}
