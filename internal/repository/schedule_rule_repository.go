package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

type ScheduleRuleRepository interface {
	Create(ctx context.Context, rule *models.ScheduleRule) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduleRule, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduleRule, error)
	Update(ctx context.Context, rule *models.ScheduleRule) error
	SetActive(ctx context.Context, id int64, active bool) error
	Remove(ctx context.Context, id int64) error
}

type scheduleRuleRepository struct {
	db *sql.DB
}

func NewScheduleRuleRepository(db *sql.DB) ScheduleRuleRepository {
	return &scheduleRuleRepository{db: db}
}

const ruleColumns = `id, user_id, name, type, time, days, timezone, active, created_at, updated_at`

func scanRule(row rowScanner) (*models.ScheduleRule, error) {
	var rule models.ScheduleRule
	err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Name,
		&rule.Type,
		&rule.Time,
		pq.Array(&rule.Days),
		&rule.Timezone,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *scheduleRuleRepository) Create(ctx context.Context, rule *models.ScheduleRule) (int64, error) {
	query := `
		INSERT INTO schedule_rules (user_id, name, type, time, days, timezone, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rule.UserID,
		rule.Name,
		rule.Type,
		rule.Time,
		pq.Array(rule.Days),
		rule.Timezone,
		rule.Active,
	).Scan(&id)
	if err != nil {
		return 0, logged("rule.create", err)
	}
	rule.ID = id
	return id, nil
}

func (r *scheduleRuleRepository) GetByID(ctx context.Context, id int64) (*models.ScheduleRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM schedule_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, logged("rule.get", err)
	}
	return rule, nil
}

func (r *scheduleRuleRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduleRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM schedule_rules WHERE user_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, logged("rule.list", err)
	}
	defer rows.Close()

	var rules []*models.ScheduleRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, logged("rule.list", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *scheduleRuleRepository) Update(ctx context.Context, rule *models.ScheduleRule) error {
	query := `
		UPDATE schedule_rules
		SET name = $1,
			type = $2,
			time = $3,
			days = $4,
			timezone = $5,
			active = $6,
			updated_at = $7
		WHERE id = $8
	`
	_, err := r.db.ExecContext(ctx, query, rule.Name, rule.Type, rule.Time, pq.Array(rule.Days), rule.Timezone, rule.Active, time.Now(), rule.ID)
	if err != nil {
		return logged("rule.update", err)
	}
	return nil
}

func (r *scheduleRuleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE schedule_rules SET active = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, active, time.Now(), id); err != nil {
		return logged("rule.set_active", err)
	}
	return nil
}

func (r *scheduleRuleRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM schedule_rules WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return logged("rule.remove", err)
	}
	return nil
}
