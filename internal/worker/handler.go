package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"blogpulse/internal/model"
	"blogpulse/internal/queue"
)

// DeviceTokenProvider abstracts the device token repository so workers don't
// depend on the DB layer directly.
type DeviceTokenProvider interface {
	GetByUserEmail(ctx context.Context, email string) ([]model.DeviceToken, error)
}

// ExpoSender sends pushes through Expo's Push API.
type ExpoSender interface {
	SendToTokens(tokens []string, title, body string, data map[string]interface{}) error
}

// FCMSender sends pushes through Firebase Cloud Messaging.
type FCMSender interface {
	SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// Handler turns engagement events into push notifications on the blog
// owner's devices. Tokens are split by platform: Expo-registered devices go
// through Expo Push, everything else through FCM.
type Handler struct {
	tokens     DeviceTokenProvider
	expo       ExpoSender // Can be nil if Expo push not wired
	fcm        FCMSender  // Can be nil if FCM not configured
	ownerEmail string
}

// NewHandler creates a new event handler. Either sender may be nil.
func NewHandler(tokens DeviceTokenProvider, expo ExpoSender, fcm FCMSender, ownerEmail string) *Handler {
	return &Handler{
		tokens:     tokens,
		expo:       expo,
		fcm:        fcm,
		ownerEmail: ownerEmail,
	}
}

// HandleEvent routes an event to a notification based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.EngagementEvent) error {
	startTime := time.Now()

	title, body, ok := h.buildMessage(event)
	if !ok {
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	// The owner doesn't need to hear about their own activity.
	if event.ActorEmail != "" && event.ActorEmail == h.ownerEmail {
		log.Printf("[Worker] Skipping self-notification: type=%s", event.Type)
		return nil
	}

	if err := h.notifyOwner(ctx, event, title, body); err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// buildMessage creates the title and body for a push notification.
func (h *Handler) buildMessage(event queue.EngagementEvent) (title, body string, ok bool) {
	actor := event.ActorName
	if actor == "" {
		actor = "A reader"
	}

	switch event.Type {
	case queue.EventCommentCreated:
		return "New Comment", fmt.Sprintf("%s commented on %s", actor, event.PostSlug), true
	case queue.EventReplyCreated:
		return "New Reply", fmt.Sprintf("%s replied in a thread on %s", actor, event.PostSlug), true
	case queue.EventCommentLiked:
		return "New Like", fmt.Sprintf("%s liked a comment on %s", actor, event.PostSlug), true
	case queue.EventCommentReported:
		return "Comment Reported", fmt.Sprintf("A comment on %s was flagged for review", event.PostSlug), true
	case queue.EventCodeRedeemed:
		return "Code Redeemed", fmt.Sprintf("%s redeemed a bonus code for %d credits", event.ActorEmail, event.Bonus), true
	default:
		return "", "", false
	}
}

// notifyOwner fans the notification out to every device the owner has
// registered, choosing the transport per token platform.
func (h *Handler) notifyOwner(ctx context.Context, event queue.EngagementEvent, title, body string) error {
	if h.ownerEmail == "" {
		return nil
	}

	devices, err := h.tokens.GetByUserEmail(ctx, h.ownerEmail)
	if err != nil {
		return fmt.Errorf("get owner device tokens: %w", err)
	}
	if len(devices) == 0 {
		return nil // Owner has no registered devices
	}

	var expoTokens, fcmTokens []string
	for _, d := range devices {
		if d.Platform == model.PlatformExpo {
			expoTokens = append(expoTokens, d.Token)
		} else {
			fcmTokens = append(fcmTokens, d.Token)
		}
	}

	data := map[string]string{
		"type":      event.Type,
		"post_slug": event.PostSlug,
	}
	if event.CommentID != "" {
		data["comment_id"] = event.CommentID
	}

	if len(expoTokens) > 0 && h.expo != nil {
		expoData := make(map[string]interface{}, len(data))
		for k, v := range data {
			expoData[k] = v
		}
		if err := h.expo.SendToTokens(expoTokens, title, body, expoData); err != nil {
			log.Printf("[Worker] Expo push failed: %v", err)
		}
	}

	if len(fcmTokens) > 0 && h.fcm != nil {
		if err := h.fcm.SendToTokens(ctx, fcmTokens, title, body, data); err != nil {
			log.Printf("[Worker] FCM push failed: %v", err)
		}
	}

	return nil
}
