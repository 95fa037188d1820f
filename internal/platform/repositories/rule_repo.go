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

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, organization_id, name, channel, events, config, enabled, created_at, updated_at`

func (r *RuleRepository) Create(ctx context.Context, rule *models.NotificationRule) error {
	if rule.ID == "" {
		rule.ID = "nr_" + uuid.New().String()
	}
	now := time.Now().Unix()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	eventsJSON, configJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notification_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.OrganizationID, rule.Name, string(rule.Channel), eventsJSON, configJSON,
		rule.Enabled, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert notification rule: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the rule does not exist in orgID.
func (r *RuleRepository) GetByID(ctx context.Context, orgID, id string) (*models.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE id = ? AND organization_id = ?`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification rule: %w", err)
	}
	return rule, nil
}

func (r *RuleRepository) List(ctx context.Context, orgID string) ([]*models.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE organization_id = ? ORDER BY created_at DESC`
	return r.query(ctx, query, orgID)
}

func (r *RuleRepository) ListEnabled(ctx context.Context, orgID string) ([]*models.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE organization_id = ? AND enabled = 1 ORDER BY created_at ASC`
	return r.query(ctx, query, orgID)
}

func (r *RuleRepository) Update(ctx context.Context, rule *models.NotificationRule) error {
	eventsJSON, configJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}
	rule.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE notification_rules
		SET name = ?, channel = ?, events = ?, config = ?, enabled = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.Name, string(rule.Channel), eventsJSON, configJSON, rule.Enabled, rule.UpdatedAt,
		rule.ID, rule.OrganizationID)
	if err != nil {
		return fmt.Errorf("update notification rule: %w", err)
	}
	return nil
}

func (r *RuleRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_rules WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return false, fmt.Errorf("delete notification rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RuleRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.NotificationRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notification rules: %w", err)
	}
	defer rows.Close()

	rules := []*models.NotificationRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func encodeRule(rule *models.NotificationRule) (string, string, error) {
	eventsJSON, err := json.Marshal(rule.Events)
	if err != nil {
		return "", "", err
	}
	configJSON, err := json.Marshal(rule.Config)
	if err != nil {
		return "", "", err
	}
	return string(eventsJSON), string(configJSON), nil
}

func scanRule(s interface {
	Scan(dest ...interface{}) error
}) (*models.NotificationRule, error) {
	var rule models.NotificationRule
	var channel, eventsStr, configStr string

	err := s.Scan(&rule.ID, &rule.OrganizationID, &rule.Name, &channel, &eventsStr, &configStr,
		&rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rule.Channel = models.Channel(channel)

	if err := json.Unmarshal([]byte(eventsStr), &rule.Events); err != nil {
		return nil, fmt.Errorf("decode rule %s events: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(configStr), &rule.Config); err != nil {
		return nil, fmt.Errorf("decode rule %s config: %w", rule.ID, err)
	}
	return &rule, nil
}
