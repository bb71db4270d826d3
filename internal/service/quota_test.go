package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"blogpulse/internal/model"
	"blogpulse/internal/promo"
)

// =============================================================================
// MOCKS
// =============================================================================

// mockQuotaRepository keeps one in-memory quota row and implements the
// repository contract, including the daily-first/bonus-second draw order the
// conditional UPDATE enforces in Postgres.
type mockQuotaRepository struct {
	quota *model.ChatQuota

	ensureCalls int
	resetCalls  int
}

func (m *mockQuotaRepository) EnsureExists(ctx context.Context, userKey string, now time.Time) error {
	m.ensureCalls++
	if m.quota == nil {
		m.quota = &model.ChatQuota{UserKey: userKey, LastResetAt: now}
	}
	return nil
}

func (m *mockQuotaRepository) Get(ctx context.Context, userKey string) (*model.ChatQuota, error) {
	q := *m.quota
	return &q, nil
}

func (m *mockQuotaRepository) ResetDailyIfStale(ctx context.Context, userKey string, now time.Time) error {
	m.resetCalls++
	last := m.quota.LastResetAt.UTC()
	if last.Year() != now.Year() || last.YearDay() != now.YearDay() {
		m.quota.DailyUsed = 0
		m.quota.LastResetAt = now
	}
	return nil
}

func (m *mockQuotaRepository) ConsumeOne(ctx context.Context, userKey string, limit int) (*model.ChatQuota, error) {
	switch {
	case m.quota.DailyUsed < limit:
		m.quota.DailyUsed++
	case m.quota.BonusCredits > 0:
		m.quota.BonusCredits--
	default:
		return nil, model.ErrQuotaExceeded
	}
	q := *m.quota
	return &q, nil
}

func (m *mockQuotaRepository) AddBonus(ctx context.Context, tx *sqlx.Tx, userKey string, amount int, now time.Time) error {
	m.quota.BonusCredits += amount
	return nil
}

type mockRedemptionRepository struct {
	existsFn func(ctx context.Context, code string) (bool, error)
	insertFn func(ctx context.Context, tx *sqlx.Tx, redemption *model.Redemption) error
}

func (m *mockRedemptionRepository) Exists(ctx context.Context, code string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, code)
	}
	return false, nil
}

func (m *mockRedemptionRepository) Insert(ctx context.Context, tx *sqlx.Tx, redemption *model.Redemption) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, redemption)
	}
	return nil
}

const testCodeSecret = "test-secret"

func newQuotaService(quotaRepo *mockQuotaRepository, redemptionRepo *mockRedemptionRepository, limit int) *QuotaService {
	return NewQuotaService(quotaRepo, redemptionRepo, nil, nil, limit, testCodeSecret)
}

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestQuotaService_GetStatus_NewUser(t *testing.T) {
	mockRepo := &mockQuotaRepository{}
	svc := newQuotaService(mockRepo, &mockRedemptionRepository{}, 15)

	status, err := svc.GetStatus(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if status.Remaining != 15 {
		t.Errorf("remaining = %d, want 15", status.Remaining)
	}
	if status.Limit != 15 {
		t.Errorf("limit = %d, want 15", status.Limit)
	}
	if mockRepo.ensureCalls != 1 {
		t.Error("EnsureExists should be called before reading")
	}
	if mockRepo.resetCalls != 1 {
		t.Error("ResetDailyIfStale should be called before reading")
	}
}

func TestQuotaService_DefaultLimit(t *testing.T) {
	svc := newQuotaService(&mockQuotaRepository{}, &mockRedemptionRepository{}, 0)
	if svc.DailyLimit() != model.DefaultDailyChatLimit {
		t.Errorf("limit = %d, want default %d", svc.DailyLimit(), model.DefaultDailyChatLimit)
	}
}

func TestQuotaService_GetStatus_ResetsOnNewDay(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	mockRepo := &mockQuotaRepository{
		quota: &model.ChatQuota{
			UserKey:      "ada@example.com",
			DailyUsed:    15,
			BonusCredits: 3,
			LastResetAt:  yesterday,
		},
	}
	svc := newQuotaService(mockRepo, &mockRedemptionRepository{}, 15)

	status, err := svc.GetStatus(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Daily allowance comes back; bonus credits survive the reset.
	if status.Remaining != 18 {
		t.Errorf("remaining = %d, want 18 (15 daily + 3 bonus)", status.Remaining)
	}
	if status.Bonus != 3 {
		t.Errorf("bonus = %d, want 3", status.Bonus)
	}
}

// =============================================================================
// CONSUME TESTS
// =============================================================================

func TestQuotaService_Consume_DailyThenBonus(t *testing.T) {
	// One unit of daily allowance left, plus two bonus credits.
	mockRepo := &mockQuotaRepository{
		quota: &model.ChatQuota{
			UserKey:      "ada@example.com",
			DailyUsed:    14,
			BonusCredits: 2,
			LastResetAt:  time.Now().UTC(),
		},
	}
	svc := newQuotaService(mockRepo, &mockRedemptionRepository{}, 15)
	ctx := context.Background()

	// Draw the last daily unit.
	status, err := svc.Consume(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Remaining != 2 {
		t.Errorf("remaining = %d, want 2 (bonus only)", status.Remaining)
	}
	if mockRepo.quota.BonusCredits != 2 {
		t.Errorf("bonus touched too early: %d", mockRepo.quota.BonusCredits)
	}

	// Daily is exhausted; the next draws come from bonus.
	status, err = svc.Consume(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Remaining != 1 || mockRepo.quota.BonusCredits != 1 {
		t.Errorf("remaining = %d bonus = %d, want 1 and 1", status.Remaining, mockRepo.quota.BonusCredits)
	}

	if _, err = svc.Consume(ctx, "ada@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Everything is gone now.
	_, err = svc.Consume(ctx, "ada@example.com")
	if !errors.Is(err, model.ErrQuotaExceeded) {
		t.Errorf("error = %v, want %v", err, model.ErrQuotaExceeded)
	}
	if mockRepo.quota.DailyUsed != 15 || mockRepo.quota.BonusCredits != 0 {
		t.Errorf("failed consume must not mutate state: daily=%d bonus=%d",
			mockRepo.quota.DailyUsed, mockRepo.quota.BonusCredits)
	}
}

func TestQuotaService_Consume_ExhaustedWithoutBonus(t *testing.T) {
	mockRepo := &mockQuotaRepository{
		quota: &model.ChatQuota{
			UserKey:     "ada@example.com",
			DailyUsed:   15,
			LastResetAt: time.Now().UTC(),
		},
	}
	svc := newQuotaService(mockRepo, &mockRedemptionRepository{}, 15)

	_, err := svc.Consume(context.Background(), "ada@example.com")
	if !errors.Is(err, model.ErrQuotaExceeded) {
		t.Errorf("error = %v, want %v", err, model.ErrQuotaExceeded)
	}
}

// =============================================================================
// REDEEM TESTS
//
// The happy path runs through a real database transaction and is exercised
// against Postgres; these cover the validation steps that must abort with no
// state change.
// =============================================================================

func TestQuotaService_Redeem_MalformedCode(t *testing.T) {
	svc := newQuotaService(&mockQuotaRepository{}, &mockRedemptionRepository{}, 15)

	for _, raw := range []string{"", "???", "BLOG-ONLY-TWO", "WRONG-SM4A-0ABC-1234"} {
		_, err := svc.Redeem(context.Background(), "ada@example.com", raw)
		if !errors.Is(err, model.ErrCodeInvalid) {
			t.Errorf("Redeem(%q) error = %v, want %v", raw, err, model.ErrCodeInvalid)
		}
	}
}

func TestQuotaService_Redeem_TamperedCode(t *testing.T) {
	code, err := promo.Mint("SM", time.Now(), testCodeSecret)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	// Signed with a different secret than the service verifies with.
	svc := NewQuotaService(&mockQuotaRepository{}, &mockRedemptionRepository{}, nil, nil, 15, "other-secret")

	_, err = svc.Redeem(context.Background(), "ada@example.com", code)
	if !errors.Is(err, model.ErrCodeInvalid) {
		t.Errorf("error = %v, want %v", err, model.ErrCodeInvalid)
	}
}

func TestQuotaService_Redeem_ExpiredCode(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	code, err := promo.Mint("LG", issued, testCodeSecret)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	svc := newQuotaService(&mockQuotaRepository{}, &mockRedemptionRepository{}, 15)
	svc.now = func() time.Time { return issued.AddDate(0, 0, promo.ValidityDays+1) }

	_, err = svc.Redeem(context.Background(), "ada@example.com", code)
	if !errors.Is(err, model.ErrCodeExpired) {
		t.Errorf("error = %v, want %v", err, model.ErrCodeExpired)
	}
}

func TestQuotaService_Redeem_AlreadyRedeemed(t *testing.T) {
	code, err := promo.Mint("MD", time.Now(), testCodeSecret)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	mockRedemptions := &mockRedemptionRepository{
		existsFn: func(ctx context.Context, c string) (bool, error) {
			return c == code, nil
		},
	}
	svc := newQuotaService(&mockQuotaRepository{}, mockRedemptions, 15)

	_, err = svc.Redeem(context.Background(), "ada@example.com", code)
	if !errors.Is(err, model.ErrCodeAlreadyRedeemed) {
		t.Errorf("error = %v, want %v", err, model.ErrCodeAlreadyRedeemed)
	}
}

func TestQuotaService_Redeem_NormalizesUserInput(t *testing.T) {
	code, err := promo.Mint("SM", time.Now(), testCodeSecret)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// The sloppy rendition of an already-redeemed code must still hit the
	// duplicate check, proving normalization happens before lookup.
	sloppy := " " + lowerFirstSegments(code) + " "
	mockRedemptions := &mockRedemptionRepository{
		existsFn: func(ctx context.Context, c string) (bool, error) {
			return c == code, nil
		},
	}
	svc := newQuotaService(&mockQuotaRepository{}, mockRedemptions, 15)

	_, err = svc.Redeem(context.Background(), "ada@example.com", sloppy)
	if !errors.Is(err, model.ErrCodeAlreadyRedeemed) {
		t.Errorf("error = %v, want %v", err, model.ErrCodeAlreadyRedeemed)
	}
}

func lowerFirstSegments(code string) string {
	half := len(code) / 2
	return strings.ToLower(code[:half]) + code[half:]
}
