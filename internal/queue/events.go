package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the engagement stream
const (
	EventCommentCreated  = "comment_created"
	EventReplyCreated    = "reply_created"
	EventCommentLiked    = "comment_liked"
	EventCommentReported = "comment_reported"
	EventCodeRedeemed    = "code_redeemed"
)

// Stream names
const (
	StreamEngagement = "stream:engagement"
)

// Consumer group name for engagement workers
const (
	ConsumerGroupEngagement = "engagement_workers"
)

// EngagementEvent is published to the engagement stream after a mutation
// commits. Workers fan these out to the owner's devices and keep the
// comment-count cache fresh; the publishing request never waits on them.
type EngagementEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when the event occurred

	// Comment events
	PostSlug  string `json:"post_slug,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
	ReplyID   string `json:"reply_id,omitempty"`

	// Who acted (the commenter/liker/reporter, or the redeemer)
	ActorName  string `json:"actor_name,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`

	// Redemption events
	Bonus int `json:"bonus,omitempty"`
}

// NewCommentCreatedEvent is published when a top-level comment lands.
func NewCommentCreatedEvent(postSlug, commentID, actorName, actorEmail string) EngagementEvent {
	return EngagementEvent{
		Type:       EventCommentCreated,
		Timestamp:  time.Now().Unix(),
		PostSlug:   postSlug,
		CommentID:  commentID,
		ActorName:  actorName,
		ActorEmail: actorEmail,
	}
}

// NewReplyCreatedEvent is published when a reply lands anywhere in a tree.
func NewReplyCreatedEvent(postSlug, commentID, replyID, actorName, actorEmail string) EngagementEvent {
	return EngagementEvent{
		Type:       EventReplyCreated,
		Timestamp:  time.Now().Unix(),
		PostSlug:   postSlug,
		CommentID:  commentID,
		ReplyID:    replyID,
		ActorName:  actorName,
		ActorEmail: actorEmail,
	}
}

// NewCommentLikedEvent is published when a comment or reply gains a like.
func NewCommentLikedEvent(postSlug, commentID, targetID, actorName, actorEmail string) EngagementEvent {
	return EngagementEvent{
		Type:       EventCommentLiked,
		Timestamp:  time.Now().Unix(),
		PostSlug:   postSlug,
		CommentID:  commentID,
		ReplyID:    targetID,
		ActorName:  actorName,
		ActorEmail: actorEmail,
	}
}

// NewCommentReportedEvent is published when a node is flagged for moderation.
func NewCommentReportedEvent(postSlug, commentID, replyID, actorEmail string) EngagementEvent {
	return EngagementEvent{
		Type:       EventCommentReported,
		Timestamp:  time.Now().Unix(),
		PostSlug:   postSlug,
		CommentID:  commentID,
		ReplyID:    replyID,
		ActorEmail: actorEmail,
	}
}

// NewCodeRedeemedEvent is published after a bonus code is consumed.
func NewCodeRedeemedEvent(actorEmail string, bonus int) EngagementEvent {
	return EngagementEvent{
		Type:       EventCodeRedeemed,
		Timestamp:  time.Now().Unix(),
		ActorEmail: actorEmail,
		Bonus:      bonus,
	}
}

// ToMap serializes the event for XADD. The whole event rides in a single
// JSON "data" field so the struct can grow without schema churn.
func (e EngagementEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"data": string(data),
	}, nil
}

// ParseEngagementEvent parses an EngagementEvent from stream message values.
func ParseEngagementEvent(values map[string]interface{}) (EngagementEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return EngagementEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event EngagementEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return EngagementEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
