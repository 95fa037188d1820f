package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"beacon/internal/platform/models"
)

const (
	DefaultDeliveryLimit = 50
	MaxDeliveryLimit     = 100
)

// DeliveryRepository is the delivery ledger: one row per logical delivery,
// mutated in place on every attempt.
type DeliveryRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db, now: time.Now}
}

const deliveryColumns = `id, webhook_id, event_type, payload, attempts, success, status_code, response_body, error, duration_ms, created_at, completed_at`

// RecordAttempt stores payload before the first send and returns the new
// delivery id. The attempt counter starts at zero.
func (r *DeliveryRepository) RecordAttempt(ctx context.Context, webhookID, eventType string, payload []byte) (string, error) {
	id := "dlv_" + uuid.New().String()
	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, event_type, payload, attempts, success, duration_ms, created_at)
		VALUES (?, ?, ?, ?, 0, 0, 0, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, id, webhookID, eventType, payload, r.now().UnixMilli()); err != nil {
		return "", fmt.Errorf("insert delivery: %w", err)
	}
	return id, nil
}

// UpdateOutcome increments the attempt counter and overwrites the outcome
// fields in a single statement, so concurrent redeliveries of one id
// serialize on the row instead of losing increments.
func (r *DeliveryRepository) UpdateOutcome(ctx context.Context, deliveryID string, outcome models.DeliveryOutcome) error {
	query := `
		UPDATE webhook_deliveries
		SET attempts = attempts + 1, success = ?, status_code = ?, response_body = ?, error = ?,
		    duration_ms = ?, completed_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		outcome.Success, nullInt(outcome.StatusCode), nullString(outcome.Body), nullString(outcome.Error),
		outcome.DurationMs, r.now().UnixMilli(), deliveryID)
	if err != nil {
		return fmt.Errorf("update delivery outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update delivery outcome: delivery %s does not exist", deliveryID)
	}
	return nil
}

// GetByID returns nil, nil when the delivery does not exist.
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*models.DeliveryRecord, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = ?`
	d, err := scanDelivery(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

// List returns the deliveries of webhookID newest first.
func (r *DeliveryRepository) List(ctx context.Context, webhookID string, filter models.DeliveryFilter) ([]*models.DeliveryRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultDeliveryLimit
	}
	if limit > MaxDeliveryLimit {
		limit = MaxDeliveryLimit
	}

	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE webhook_id = ?`
	args := []interface{}{webhookID}
	if filter.Success != nil {
		query += ` AND success = ?`
		args = append(args, *filter.Success)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := []*models.DeliveryRecord{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func scanDelivery(s interface {
	Scan(dest ...interface{}) error
}) (*models.DeliveryRecord, error) {
	var d models.DeliveryRecord
	var statusCode, completedAt sql.NullInt64
	var body, errMsg sql.NullString

	err := s.Scan(&d.ID, &d.WebhookID, &d.EventType, &d.Payload, &d.Attempts, &d.Success,
		&statusCode, &body, &errMsg, &d.DurationMs, &d.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if statusCode.Valid {
		d.StatusCode = int(statusCode.Int64)
	}
	if body.Valid {
		d.ResponseBody = body.String
	}
	if errMsg.Valid {
		d.Error = errMsg.String
	}
	if completedAt.Valid {
		val := completedAt.Int64
		d.CompletedAt = &val
	}
	return &d, nil
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
