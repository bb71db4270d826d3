package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Author identifies who wrote a comment or reply. Name and email come from
// the authenticated session, never from the request body.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Comment is a top-level comment document on a blog post. Replies live
// inside the document as a recursive tree (JSONB column), with a flat
// reply_ids index so "which document contains node X" is a single lookup
// regardless of nesting depth.
type Comment struct {
	ID          string         `db:"id" json:"id"`
	PostSlug    string         `db:"post_slug" json:"post_slug"`
	AuthorName  string         `db:"author_name" json:"-"`
	AuthorEmail string         `db:"author_email" json:"-"`
	Content     string         `db:"content" json:"content"`
	LikeCount   int            `db:"like_count" json:"like_count"`
	LikedBy     pq.StringArray `db:"liked_by" json:"liked_by"`
	Reported    bool           `db:"reported" json:"reported"`
	Replies     ReplyTree      `db:"replies" json:"replies"`
	ReplyIDs    pq.StringArray `db:"reply_ids" json:"-"`
	Version     int            `db:"version" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`

	Author Author `json:"author"` // Assembled from the flat columns for responses
}

// Reply is a node in a comment's reply tree. Same engagement shape as a
// top-level comment, nested to arbitrary depth.
type Reply struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	LikeCount int       `json:"like_count"`
	LikedBy   []string  `json:"liked_by"`
	Reported  bool      `json:"reported"`
	Replies   ReplyTree `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

// ReplyTree is an ordered forest of replies. It marshals to and from the
// JSONB replies column.
type ReplyTree []*Reply

// Value implements driver.Valuer for JSONB storage.
func (t ReplyTree) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for JSONB storage.
func (t *ReplyTree) Scan(src interface{}) error {
	if src == nil {
		*t = ReplyTree{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ReplyTree", src)
	}
	return json.Unmarshal(data, t)
}

// Find returns the reply with the given id anywhere in the forest.
// Depth-first, sibling order as stored, first match wins.
func (t ReplyTree) Find(id string) *Reply {
	for _, r := range t {
		if r.ID == id {
			return r
		}
		if found := r.Replies.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Contains reports whether any node in the forest has the given id.
func (t ReplyTree) Contains(id string) bool {
	return t.Find(id) != nil
}

// IDs returns every node id in the forest, depth-first.
func (t ReplyTree) IDs() []string {
	var ids []string
	for _, r := range t {
		ids = append(ids, r.ID)
		ids = append(ids, r.Replies.IDs()...)
	}
	return ids
}

// Like records a like by the given user on this reply. Returns
// ErrAlreadyLiked if the user already liked it. Maintains the
// like_count == len(liked_by) invariant.
func (r *Reply) Like(email string) error {
	for _, e := range r.LikedBy {
		if e == email {
			return ErrAlreadyLiked
		}
	}
	r.LikedBy = append(r.LikedBy, email)
	r.LikeCount = len(r.LikedBy)
	return nil
}

// FillAuthor populates the response Author from the flat DB columns.
func (c *Comment) FillAuthor() {
	c.Author = Author{Name: c.AuthorName, Email: c.AuthorEmail}
}

// CreateCommentRequest is the request body for creating a top-level comment.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// CreateReplyRequest is the request body for replying to a comment or reply.
type CreateReplyRequest struct {
	Content string `json:"content"`
}

// ReportRequest is the request body for reporting. ReplyID targets a nested
// reply; empty means the top-level comment itself.
type ReportRequest struct {
	ReplyID string `json:"reply_id,omitempty"`
}

// CommentCountResponse is the per-post comment count response.
type CommentCountResponse struct {
	PostSlug string `json:"post_slug"`
	Count    int64  `json:"count"`
}

// CommentListResponse is the full-thread listing for a post.
type CommentListResponse struct {
	Comments []Comment `json:"comments"`
}

// ValidateContent checks a submitted comment body after trimming.
func ValidateContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrContentRequired
	}
	if len(trimmed) > MaxCommentLength {
		return ErrContentTooLong
	}
	return nil
}

// Comment constraints
const (
	MaxCommentLength = 5000
)

// Comment errors
var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrReplyNotFound   = errors.New("reply not found")
	ErrContentRequired = errors.New("comment content is required")
	ErrContentTooLong  = errors.New("comment content too long")
	ErrAlreadyLiked    = errors.New("already liked")
)
