package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"blogpulse/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateAvatar(ctx context.Context, userID int64, avatarURL string) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
}

type CommentRepository interface {
	// Insert persists a new top-level comment document.
	Insert(ctx context.Context, comment *model.Comment) error
	// GetByID returns the comment document with the given top-level id.
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	// FindByReplyID returns the comment document whose reply tree contains
	// the given node id, at any depth (flat reply_ids index lookup).
	FindByReplyID(ctx context.Context, replyID string) (*model.Comment, error)
	// Exists reports whether a top-level comment with the id exists.
	Exists(ctx context.Context, id string) (bool, error)
	// LikeTopLevel appends the user to liked_by and bumps like_count in one
	// conditional UPDATE. Returns false when the precondition (not already
	// in liked_by) failed or the row does not exist.
	LikeTopLevel(ctx context.Context, commentID, email string) (bool, error)
	// ReportTopLevel sets reported=true. Returns false when the row does
	// not exist. Idempotent.
	ReportTopLevel(ctx context.Context, commentID string) (bool, error)
	// UpdateTree replaces the reply tree and flat id index, guarded by a
	// version CAS. Returns false when the version moved underneath us.
	UpdateTree(ctx context.Context, comment *model.Comment) (bool, error)
	// CountByPost returns the number of top-level comments for a post.
	CountByPost(ctx context.Context, postSlug string) (int64, error)
	// ListByPost returns all comment documents for a post, oldest first.
	ListByPost(ctx context.Context, postSlug string) ([]model.Comment, error)
}

type QuotaRepository interface {
	// EnsureExists lazily creates the quota row with zero usage.
	EnsureExists(ctx context.Context, userKey string, now time.Time) error
	// Get returns the quota row, ErrUserNotFound semantics do not apply:
	// callers EnsureExists first.
	Get(ctx context.Context, userKey string) (*model.ChatQuota, error)
	// ResetDailyIfStale zeroes daily_used when last_reset_at falls on an
	// earlier UTC calendar day than now. Conditional UPDATE, exactly-once
	// per day under concurrency.
	ResetDailyIfStale(ctx context.Context, userKey string, now time.Time) error
	// ConsumeOne draws one unit, daily allowance first, then bonus. The
	// precondition is evaluated by the store; ErrQuotaExceeded when nothing
	// is left. Returns the post-consume row.
	ConsumeOne(ctx context.Context, userKey string, limit int) (*model.ChatQuota, error)
	// AddBonus credits bonus inside the caller's transaction, creating the
	// quota row if absent.
	AddBonus(ctx context.Context, tx *sqlx.Tx, userKey string, amount int, now time.Time) error
}

type RedemptionRepository interface {
	// Exists reports whether the normalized code was ever redeemed.
	Exists(ctx context.Context, code string) (bool, error)
	// Insert records a redemption inside the caller's transaction. A unique
	// violation on the code maps to ErrCodeAlreadyRedeemed; that insert is
	// the authoritative uniqueness check.
	Insert(ctx context.Context, tx *sqlx.Tx, redemption *model.Redemption) error
}

type DeviceTokenRepository interface {
	Upsert(ctx context.Context, userID int64, token, platform string) error
	GetByUserID(ctx context.Context, userID int64) ([]model.DeviceToken, error)
	GetByUserEmail(ctx context.Context, email string) ([]model.DeviceToken, error)
	Delete(ctx context.Context, token string) error
}
