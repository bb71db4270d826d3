package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blogpulse/internal/httputil"
	"blogpulse/internal/model"
	"blogpulse/internal/service"
	"blogpulse/internal/transport/http/middleware"
)

type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// Create handles POST /posts/:slug/comments
// Creates a top-level comment on a post for the authenticated user.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postSlug := chi.URLParam(r, "slug")
	if postSlug == "" {
		httputil.WriteBadRequest(w, "Invalid post slug")
		return
	}

	var req model.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.Add(r.Context(), postSlug, identity, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrContentRequired):
			httputil.WriteBadRequest(w, "Comment content is required")
		case errors.Is(err, model.ErrContentTooLong):
			httputil.WriteBadRequest(w, "Comment content too long")
		default:
			log.Printf("[ERROR] Create comment handler: user=%s post=%s err=%v", identity.Key(), postSlug, err)
			httputil.WriteInternalError(w, "Failed to create comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Reply handles POST /comments/:id/replies
// The target may be a top-level comment or a reply at any depth; the
// response is the updated root comment document.
func (h *CommentHandler) Reply(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	targetID := chi.URLParam(r, "id")
	if targetID == "" {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	var req model.CreateReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.Reply(r.Context(), targetID, identity, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrContentRequired):
			httputil.WriteBadRequest(w, "Reply content is required")
		case errors.Is(err, model.ErrContentTooLong):
			httputil.WriteBadRequest(w, "Reply content too long")
		default:
			log.Printf("[ERROR] Reply handler: user=%s target=%s err=%v", identity.Key(), targetID, err)
			httputil.WriteInternalError(w, "Failed to add reply")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Like handles POST /comments/:id/like
// At most one like per user per comment or reply.
func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	targetID := chi.URLParam(r, "id")
	if targetID == "" {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	comment, err := h.commentService.Like(r.Context(), targetID, identity)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrAlreadyLiked):
			httputil.WriteConflictWithCode(w, httputil.ErrCodeAlreadyLiked, "You already liked this")
		default:
			log.Printf("[ERROR] Like handler: user=%s target=%s err=%v", identity.Key(), targetID, err)
			httputil.WriteInternalError(w, "Failed to like comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comment)
}

// Report handles POST /comments/:id/report
// An optional reply_id in the body targets a nested reply. Repeat reports
// succeed without changing anything.
func (h *CommentHandler) Report(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	commentID := chi.URLParam(r, "id")
	if commentID == "" {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	var req model.ReportRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteBadRequest(w, "Invalid request body")
			return
		}
	}

	comment, err := h.commentService.Report(r.Context(), commentID, req.ReplyID, identity)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrReplyNotFound):
			httputil.WriteNotFound(w, "Reply not found")
		default:
			log.Printf("[ERROR] Report handler: user=%s comment=%s err=%v", identity.Key(), commentID, err)
			httputil.WriteInternalError(w, "Failed to report comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comment)
}

// List handles GET /posts/:slug/comments
// Returns all threads for a post, oldest first. Public.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postSlug := chi.URLParam(r, "slug")
	if postSlug == "" {
		httputil.WriteBadRequest(w, "Invalid post slug")
		return
	}

	comments, err := h.commentService.ListByPost(r.Context(), postSlug)
	if err != nil {
		log.Printf("[ERROR] List comments handler: post=%s err=%v", postSlug, err)
		httputil.WriteInternalError(w, "Failed to get comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.CommentListResponse{Comments: comments})
}

// Count handles GET /posts/:slug/comments/count
// Returns the number of top-level comments. Public, served through the
// Redis cache.
func (h *CommentHandler) Count(w http.ResponseWriter, r *http.Request) {
	postSlug := chi.URLParam(r, "slug")
	if postSlug == "" {
		httputil.WriteBadRequest(w, "Invalid post slug")
		return
	}

	count, err := h.commentService.Count(r.Context(), postSlug)
	if err != nil {
		log.Printf("[ERROR] Count comments handler: post=%s err=%v", postSlug, err)
		httputil.WriteInternalError(w, "Failed to count comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.CommentCountResponse{
		PostSlug: postSlug,
		Count:    count,
	})
}
