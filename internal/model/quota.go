package model

import (
	"errors"
	"time"
)

// ChatQuota tracks a user's daily chat allowance. daily_used resets to zero
// the first time the record is touched on a new UTC calendar day;
// bonus_credits only grow through code redemption and are drawn from after
// the daily allowance is exhausted.
type ChatQuota struct {
	UserKey      string    `db:"user_key" json:"-"`
	DailyUsed    int       `db:"daily_used" json:"daily_used"`
	BonusCredits int       `db:"bonus_credits" json:"bonus_credits"`
	LastResetAt  time.Time `db:"last_reset_at" json:"-"`
}

// Remaining computes the effective remaining allowance, never negative.
func (q *ChatQuota) Remaining(limit int) int {
	daily := limit - q.DailyUsed
	if daily < 0 {
		daily = 0
	}
	return daily + q.BonusCredits
}

// QuotaStatus is the response for GET /chat/quota.
type QuotaStatus struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
	Bonus     int `json:"bonus"`
}

// Redemption records a consumed bonus code. The unique constraint on Code is
// what makes redemption exactly-once; a duplicate insert is the
// authoritative "already redeemed" signal.
type Redemption struct {
	Code       string    `db:"code" json:"code"`
	UserKey    string    `db:"user_key" json:"user_key"`
	Bonus      int       `db:"bonus" json:"bonus"`
	RedeemedAt time.Time `db:"redeemed_at" json:"redeemed_at"`
}

// RedeemRequest is the request body for POST /chat/quota/redeem.
type RedeemRequest struct {
	Code string `json:"code"`
}

// RedeemResponse reports the credits granted by a successful redemption.
type RedeemResponse struct {
	BonusGranted int `json:"bonus_granted"`
	Remaining    int `json:"remaining"`
}

// DefaultDailyChatLimit is used when CHAT_DAILY_LIMIT is not configured.
const DefaultDailyChatLimit = 15

// Quota and redemption errors
var (
	ErrQuotaExceeded       = errors.New("daily chat quota exceeded")
	ErrCodeAlreadyRedeemed = errors.New("code already redeemed")
	ErrCodeInvalid         = errors.New("invalid code")
	ErrCodeExpired         = errors.New("code expired")
)
