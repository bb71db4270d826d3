package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"blogpulse/internal/model"
)

type deviceTokenRepository struct {
	db *sqlx.DB
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Upsert creates or updates a device token. If the token already exists it
// is reassigned to the current user (device changed hands).
func (r *deviceTokenRepository) Upsert(ctx context.Context, userID int64, token, platform string) error {
	query := `
		INSERT INTO device_tokens (user_id, token, platform, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, userID, token, platform)
	if err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

func (r *deviceTokenRepository) GetByUserID(ctx context.Context, userID int64) ([]model.DeviceToken, error) {
	query := `
		SELECT id, user_id, token, platform, created_at, updated_at
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	var tokens []model.DeviceToken
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("get device tokens: %w", err)
	}
	return tokens, nil
}

// GetByUserEmail returns the device tokens registered by the user with the
// given email. The worker resolves the blog owner's devices this way.
func (r *deviceTokenRepository) GetByUserEmail(ctx context.Context, email string) ([]model.DeviceToken, error) {
	query := `
		SELECT dt.id, dt.user_id, dt.token, dt.platform, dt.created_at, dt.updated_at
		FROM device_tokens dt
		JOIN users u ON u.id = dt.user_id
		WHERE u.email = $1
		ORDER BY dt.updated_at DESC
	`
	var tokens []model.DeviceToken
	if err := r.db.SelectContext(ctx, &tokens, query, email); err != nil {
		return nil, fmt.Errorf("get device tokens by email: %w", err)
	}
	return tokens, nil
}

func (r *deviceTokenRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}
