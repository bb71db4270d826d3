package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"blogpulse/internal/model"
)

type mockChatClient struct {
	generateFn func(ctx context.Context, message string) (string, error)
	calls      int
}

func (m *mockChatClient) Generate(ctx context.Context, message string) (string, error) {
	m.calls++
	if m.generateFn != nil {
		return m.generateFn(ctx, message)
	}
	return "a helpful answer", nil
}

func chatServiceWithQuota(daily, bonus int, client ChatClient) (*ChatService, *mockQuotaRepository) {
	mockRepo := &mockQuotaRepository{
		quota: &model.ChatQuota{
			UserKey:      "ada@example.com",
			DailyUsed:    daily,
			BonusCredits: bonus,
			LastResetAt:  time.Now().UTC(),
		},
	}
	quotaSvc := newQuotaService(mockRepo, &mockRedemptionRepository{}, 15)
	return NewChatService(quotaSvc, client), mockRepo
}

func TestChatService_Ask_Success(t *testing.T) {
	client := &mockChatClient{
		generateFn: func(ctx context.Context, message string) (string, error) {
			if message != "what is a goroutine?" {
				t.Errorf("message = %q", message)
			}
			return "a lightweight thread", nil
		},
	}
	svc, mockRepo := chatServiceWithQuota(0, 0, client)

	resp, err := svc.Ask(context.Background(), testIdentity(), "what is a goroutine?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Reply != "a lightweight thread" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.Remaining != 14 {
		t.Errorf("remaining = %d, want 14", resp.Remaining)
	}
	if mockRepo.quota.DailyUsed != 1 {
		t.Errorf("daily_used = %d, want 1", mockRepo.quota.DailyUsed)
	}
}

func TestChatService_Ask_Validation(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantErr error
	}{
		{"empty", "", model.ErrMessageRequired},
		{"whitespace only", "  \n ", model.ErrMessageRequired},
		{"too long", strings.Repeat("x", model.MaxChatMessageLength+1), model.ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockChatClient{}
			svc, mockRepo := chatServiceWithQuota(0, 0, client)

			_, err := svc.Ask(context.Background(), testIdentity(), tt.message)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if client.calls != 0 {
				t.Error("assistant should not be called for invalid input")
			}
			if mockRepo.quota.DailyUsed != 0 {
				t.Error("quota must not be consumed for invalid input")
			}
		})
	}
}

func TestChatService_Ask_QuotaExceeded(t *testing.T) {
	client := &mockChatClient{}
	svc, _ := chatServiceWithQuota(15, 0, client)

	_, err := svc.Ask(context.Background(), testIdentity(), "one more question")
	if !errors.Is(err, model.ErrQuotaExceeded) {
		t.Errorf("error = %v, want %v", err, model.ErrQuotaExceeded)
	}
	if client.calls != 0 {
		t.Error("assistant should not be called when the quota is exhausted")
	}
}

func TestChatService_Ask_DrawsBonusAfterDaily(t *testing.T) {
	svc, mockRepo := chatServiceWithQuota(15, 2, &mockChatClient{})

	resp, err := svc.Ask(context.Background(), testIdentity(), "still have credits?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", resp.Remaining)
	}
	if mockRepo.quota.BonusCredits != 1 {
		t.Errorf("bonus = %d, want 1", mockRepo.quota.BonusCredits)
	}
}

func TestChatService_Ask_UpstreamFailure(t *testing.T) {
	client := &mockChatClient{
		generateFn: func(ctx context.Context, message string) (string, error) {
			return "", errors.New("model overloaded")
		},
	}
	svc, mockRepo := chatServiceWithQuota(0, 0, client)

	_, err := svc.Ask(context.Background(), testIdentity(), "hello")
	if !errors.Is(err, model.ErrChatUnavailable) {
		t.Errorf("error = %v, want %v", err, model.ErrChatUnavailable)
	}

	// The unit was drawn before the upstream call; a failed attempt counts.
	if mockRepo.quota.DailyUsed != 1 {
		t.Errorf("daily_used = %d, want 1", mockRepo.quota.DailyUsed)
	}
}
