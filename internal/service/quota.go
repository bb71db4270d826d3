package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"blogpulse/internal/model"
	"blogpulse/internal/promo"
	"blogpulse/internal/queue"
	"blogpulse/internal/repository"
)

// QuotaService tracks each user's daily chat allowance and redeems bonus
// codes. The daily counter resets on UTC calendar-day boundaries; bonus
// credits are only drawn once the daily allowance is gone.
type QuotaService struct {
	quotaRepo      repository.QuotaRepository
	redemptionRepo repository.RedemptionRepository
	db             *sqlx.DB
	publisher      queue.Publisher

	dailyLimit int
	codeSecret string
	now        func() time.Time
}

func NewQuotaService(
	quotaRepo repository.QuotaRepository,
	redemptionRepo repository.RedemptionRepository,
	db *sqlx.DB,
	publisher queue.Publisher,
	dailyLimit int,
	codeSecret string,
) *QuotaService {
	if dailyLimit <= 0 {
		dailyLimit = model.DefaultDailyChatLimit
	}
	return &QuotaService{
		quotaRepo:      quotaRepo,
		redemptionRepo: redemptionRepo,
		db:             db,
		publisher:      publisher,
		dailyLimit:     dailyLimit,
		codeSecret:     codeSecret,
		now:            time.Now,
	}
}

// DailyLimit exposes the configured limit for responses.
func (s *QuotaService) DailyLimit() int {
	return s.dailyLimit
}

// GetStatus returns the caller's remaining allowance, lazily creating the
// quota record and applying the once-per-day reset first.
func (s *QuotaService) GetStatus(ctx context.Context, userKey string) (*model.QuotaStatus, error) {
	quota, err := s.loadFresh(ctx, userKey)
	if err != nil {
		return nil, err
	}

	return &model.QuotaStatus{
		Remaining: quota.Remaining(s.dailyLimit),
		Limit:     s.dailyLimit,
		Bonus:     quota.BonusCredits,
	}, nil
}

// Consume draws one unit: daily allowance first, bonus credits second.
// Returns ErrQuotaExceeded with no mutation when nothing is left.
func (s *QuotaService) Consume(ctx context.Context, userKey string) (*model.QuotaStatus, error) {
	if _, err := s.loadFresh(ctx, userKey); err != nil {
		return nil, err
	}

	quota, err := s.quotaRepo.ConsumeOne(ctx, userKey, s.dailyLimit)
	if err != nil {
		return nil, err
	}

	log.Printf("[QuotaService] %s consumed one unit: daily=%d/%d bonus=%d",
		userKey, quota.DailyUsed, s.dailyLimit, quota.BonusCredits)

	return &model.QuotaStatus{
		Remaining: quota.Remaining(s.dailyLimit),
		Limit:     s.dailyLimit,
		Bonus:     quota.BonusCredits,
	}, nil
}

// Redeem validates a bonus code and credits its tier amount. Each step
// aborts with no state change on failure; the redemption record and the
// credit land in one transaction, with the unique code constraint as the
// authoritative duplicate check.
func (s *QuotaService) Redeem(ctx context.Context, userKey, rawCode string) (*model.RedeemResponse, error) {
	now := s.now()

	code := promo.Normalize(rawCode)
	if code == "" {
		return nil, model.ErrCodeInvalid
	}

	// Fail fast on known duplicates before any checksum work. The insert
	// below still decides races.
	redeemed, err := s.redemptionRepo.Exists(ctx, code)
	if err != nil {
		return nil, err
	}
	if redeemed {
		return nil, model.ErrCodeAlreadyRedeemed
	}

	bonus, err := promo.Verify(code, s.codeSecret, now)
	if err != nil {
		switch {
		case errors.Is(err, promo.ErrExpired):
			return nil, model.ErrCodeExpired
		case errors.Is(err, promo.ErrMalformed), errors.Is(err, promo.ErrBadChecksum):
			return nil, model.ErrCodeInvalid
		default:
			return nil, err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	redemption := &model.Redemption{
		Code:       code,
		UserKey:    userKey,
		Bonus:      bonus,
		RedeemedAt: now,
	}
	if err := s.redemptionRepo.Insert(ctx, tx, redemption); err != nil {
		return nil, err // ErrCodeAlreadyRedeemed or wrapped storage error
	}

	if err := s.quotaRepo.AddBonus(ctx, tx, userKey, bonus, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	log.Printf("[QuotaService] %s redeemed code for %d bonus credits", userKey, bonus)

	if s.publisher != nil {
		event := queue.NewCodeRedeemedEvent(userKey, bonus)
		if _, err := s.publisher.Publish(ctx, queue.StreamEngagement, event); err != nil {
			log.Printf("[QuotaService] Failed to publish CodeRedeemed event: %v", err)
		}
	}

	status, err := s.GetStatus(ctx, userKey)
	if err != nil {
		// The credit committed; report it even if the follow-up read failed.
		log.Printf("[QuotaService] Post-redeem status read failed for %s: %v", userKey, err)
		return &model.RedeemResponse{BonusGranted: bonus, Remaining: -1}, nil
	}

	return &model.RedeemResponse{
		BonusGranted: bonus,
		Remaining:    status.Remaining,
	}, nil
}

// loadFresh lazily creates the quota row, applies the calendar-day reset,
// and returns the current state.
func (s *QuotaService) loadFresh(ctx context.Context, userKey string) (*model.ChatQuota, error) {
	now := s.now().UTC()

	if err := s.quotaRepo.EnsureExists(ctx, userKey, now); err != nil {
		return nil, err
	}
	if err := s.quotaRepo.ResetDailyIfStale(ctx, userKey, now); err != nil {
		return nil, err
	}
	return s.quotaRepo.Get(ctx, userKey)
}
