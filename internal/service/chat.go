package service

import (
	"context"
	"log"
	"strings"

	"blogpulse/internal/model"
)

// ChatService gates the blog's AI assistant behind the per-user quota. A
// unit is consumed only when the message passes validation; a failed
// upstream call still counts, matching the pay-per-attempt policy.
type ChatService struct {
	quotaService *QuotaService
	client       ChatClient
}

func NewChatService(quotaService *QuotaService, client ChatClient) *ChatService {
	return &ChatService{
		quotaService: quotaService,
		client:       client,
	}
}

// Ask validates the message, draws one quota unit, and forwards the message
// to the assistant.
func (s *ChatService) Ask(ctx context.Context, identity model.Identity, message string) (*model.ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, model.ErrMessageRequired
	}
	if len(message) > model.MaxChatMessageLength {
		return nil, model.ErrMessageTooLong
	}

	status, err := s.quotaService.Consume(ctx, identity.Key())
	if err != nil {
		return nil, err
	}

	if s.client == nil {
		return nil, model.ErrChatUnavailable
	}

	reply, err := s.client.Generate(ctx, message)
	if err != nil {
		log.Printf("[ChatService] Assistant call failed for %s: %v", identity.Key(), err)
		return nil, model.ErrChatUnavailable
	}

	return &model.ChatResponse{
		Reply:     reply,
		Remaining: status.Remaining,
	}, nil
}
