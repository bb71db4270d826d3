package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"blogpulse/internal/model"
)

type quotaRepository struct {
	db *sqlx.DB
}

func NewQuotaRepository(db *sqlx.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

// EnsureExists lazily creates the quota row with zero usage. Safe under
// concurrency: the conflicting insert is simply a no-op.
func (r *quotaRepository) EnsureExists(ctx context.Context, userKey string, now time.Time) error {
	query := `
		INSERT INTO chat_quotas (user_key, daily_used, bonus_credits, last_reset_at)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (user_key) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, userKey, now)
	if err != nil {
		return fmt.Errorf("ensure quota exists: %w", err)
	}
	return nil
}

func (r *quotaRepository) Get(ctx context.Context, userKey string) (*model.ChatQuota, error) {
	query := `
		SELECT user_key, daily_used, bonus_credits, last_reset_at
		FROM chat_quotas
		WHERE user_key = $1
	`
	var q model.ChatQuota
	err := r.db.GetContext(ctx, &q, query, userKey)
	if err != nil {
		return nil, fmt.Errorf("get quota: %w", err)
	}
	return &q, nil
}

// ResetDailyIfStale zeroes the daily counter when last_reset_at falls on an
// earlier UTC calendar day. The date comparison lives in the WHERE clause,
// so concurrent callers on the same new day reset at most once.
func (r *quotaRepository) ResetDailyIfStale(ctx context.Context, userKey string, now time.Time) error {
	query := `
		UPDATE chat_quotas
		SET daily_used = 0, last_reset_at = $2
		WHERE user_key = $1
		  AND date(last_reset_at AT TIME ZONE 'UTC') <> date($2 AT TIME ZONE 'UTC')
	`
	_, err := r.db.ExecContext(ctx, query, userKey, now.UTC())
	if err != nil {
		return fmt.Errorf("reset daily quota: %w", err)
	}
	return nil
}

// ConsumeOne draws one unit in a single conditional UPDATE. Daily allowance
// first, bonus credits only once daily_used has hit the limit; zero rows
// means nothing was left and nothing changed.
func (r *quotaRepository) ConsumeOne(ctx context.Context, userKey string, limit int) (*model.ChatQuota, error) {
	query := `
		UPDATE chat_quotas
		SET daily_used = CASE WHEN daily_used < $2 THEN daily_used + 1 ELSE daily_used END,
		    bonus_credits = CASE WHEN daily_used < $2 THEN bonus_credits ELSE bonus_credits - 1 END
		WHERE user_key = $1 AND (daily_used < $2 OR bonus_credits > 0)
		RETURNING user_key, daily_used, bonus_credits, last_reset_at
	`
	var q model.ChatQuota
	err := r.db.GetContext(ctx, &q, query, userKey, limit)
	if err == sql.ErrNoRows {
		return nil, model.ErrQuotaExceeded
	}
	if err != nil {
		return nil, fmt.Errorf("consume quota: %w", err)
	}
	return &q, nil
}

// AddBonus credits bonus inside the caller's transaction, creating the quota
// row if absent.
func (r *quotaRepository) AddBonus(ctx context.Context, tx *sqlx.Tx, userKey string, amount int, now time.Time) error {
	query := `
		INSERT INTO chat_quotas (user_key, daily_used, bonus_credits, last_reset_at)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (user_key) DO UPDATE SET
			bonus_credits = chat_quotas.bonus_credits + EXCLUDED.bonus_credits
	`
	_, err := tx.ExecContext(ctx, query, userKey, amount, now)
	if err != nil {
		return fmt.Errorf("add bonus credits: %w", err)
	}
	return nil
}

type redemptionRepository struct {
	db *sqlx.DB
}

func NewRedemptionRepository(db *sqlx.DB) RedemptionRepository {
	return &redemptionRepository{db: db}
}

// Exists is the early duplicate check. The insert below remains the
// authoritative one; this only exists to fail fast before checksum work.
func (r *redemptionRepository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM redemptions WHERE code = $1)`, code)
	if err != nil {
		return false, fmt.Errorf("check redemption exists: %w", err)
	}
	return exists, nil
}

// Insert records a redemption. The unique constraint on code is what makes
// redemption globally exactly-once; a 23505 from a concurrent redeemer maps
// to ErrCodeAlreadyRedeemed.
func (r *redemptionRepository) Insert(ctx context.Context, tx *sqlx.Tx, red *model.Redemption) error {
	query := `
		INSERT INTO redemptions (code, user_key, bonus, redeemed_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.ExecContext(ctx, query, red.Code, red.UserKey, red.Bonus, red.RedeemedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return model.ErrCodeAlreadyRedeemed
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}
