package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"blogpulse/internal/cache"
	"blogpulse/internal/model"
	"blogpulse/internal/queue"
	"blogpulse/internal/repository"
)

// treeUpdateAttempts bounds the reload-and-retry loop around the version CAS
// on in-document tree mutations. Contention on a single comment's tree is
// rare; exhausting this means something is badly wrong.
const treeUpdateAttempts = 3

// CommentService owns the nested comment threads: add, reply at any depth,
// like once per user, report, count. Authors always come from the
// authenticated identity.
type CommentService struct {
	commentRepo repository.CommentRepository
	countCache  cache.CountCache
	publisher   queue.Publisher
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	countCache cache.CountCache,
	publisher queue.Publisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		countCache:  countCache,
		publisher:   publisher,
	}
}

// Add creates a top-level comment on a post.
func (s *CommentService) Add(ctx context.Context, postSlug string, identity model.Identity, content string) (*model.Comment, error) {
	if err := model.ValidateContent(content); err != nil {
		return nil, err
	}
	if postSlug == "" {
		return nil, model.ErrContentRequired
	}

	comment := &model.Comment{
		ID:          uuid.NewString(),
		PostSlug:    postSlug,
		AuthorName:  identity.Name,
		AuthorEmail: identity.Key(),
		Content:     content,
		LikedBy:     []string{},
		Replies:     model.ReplyTree{},
		ReplyIDs:    []string{},
		Version:     1,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.commentRepo.Insert(ctx, comment); err != nil {
		return nil, err
	}
	comment.FillAuthor()

	log.Printf("[CommentService] %s commented on post %s", identity.Key(), postSlug)

	// The next count read repopulates from the database.
	if err := s.countCache.Invalidate(ctx, postSlug); err != nil {
		log.Printf("[CommentService] Failed to invalidate count cache for %s: %v", postSlug, err)
	}

	s.publish(ctx, queue.NewCommentCreatedEvent(postSlug, comment.ID, identity.Name, identity.Key()))

	return comment, nil
}

// Reply appends a reply under the node with targetID, which may be a
// top-level comment or a reply at any depth. Returns the updated root
// comment document.
func (s *CommentService) Reply(ctx context.Context, targetID string, identity model.Identity, content string) (*model.Comment, error) {
	if err := model.ValidateContent(content); err != nil {
		return nil, err
	}

	reply := &model.Reply{
		ID:        uuid.NewString(),
		Author:    model.Author{Name: identity.Name, Email: identity.Key()},
		Content:   content,
		LikedBy:   []string{},
		Replies:   model.ReplyTree{},
		CreatedAt: time.Now().UTC(),
	}

	root, err := s.findContainingComment(ctx, targetID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < treeUpdateAttempts; attempt++ {
		if root.ID == targetID {
			root.Replies = append(root.Replies, reply)
		} else {
			parent := root.Replies.Find(targetID)
			if parent == nil {
				// Ids are never deleted, so a vanished node means the
				// lookup index and tree disagree.
				return nil, model.ErrCommentNotFound
			}
			parent.Replies = append(parent.Replies, reply)
		}
		root.ReplyIDs = root.Replies.IDs()

		ok, err := s.commentRepo.UpdateTree(ctx, root)
		if err != nil {
			return nil, err
		}
		if ok {
			root.FillAuthor()
			log.Printf("[CommentService] %s replied to %s (comment %s)", identity.Key(), targetID, root.ID)
			s.publish(ctx, queue.NewReplyCreatedEvent(root.PostSlug, root.ID, reply.ID, identity.Name, identity.Key()))
			return root, nil
		}

		// Version moved underneath us; reload and reapply.
		root, err = s.commentRepo.GetByID(ctx, root.ID)
		if err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("reply to %s: too much contention on comment tree", targetID)
}

// Like records a like by the calling user on a comment or any nested reply.
// At most one like per user per node, enforced atomically.
func (s *CommentService) Like(ctx context.Context, targetID string, identity model.Identity) (*model.Comment, error) {
	email := identity.Key()

	// Fast path: targetID is a top-level comment. One conditional UPDATE
	// handles existence, dedupe, and the counter together.
	applied, err := s.commentRepo.LikeTopLevel(ctx, targetID, email)
	if err != nil {
		return nil, err
	}
	if applied {
		root, err := s.commentRepo.GetByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		root.FillAuthor()
		log.Printf("[CommentService] %s liked comment %s", email, targetID)
		s.publish(ctx, queue.NewCommentLikedEvent(root.PostSlug, root.ID, targetID, identity.Name, email))
		return root, nil
	}

	// The UPDATE matched nothing: either the comment exists and the user
	// already liked it, or targetID is not a top-level comment at all.
	exists, err := s.commentRepo.Exists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrAlreadyLiked
	}

	// Slow path: targetID lives somewhere inside a reply tree.
	root, err := s.commentRepo.FindByReplyID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < treeUpdateAttempts; attempt++ {
		node := root.Replies.Find(targetID)
		if node == nil {
			return nil, model.ErrCommentNotFound
		}
		if err := node.Like(email); err != nil {
			return nil, err // ErrAlreadyLiked
		}

		ok, err := s.commentRepo.UpdateTree(ctx, root)
		if err != nil {
			return nil, err
		}
		if ok {
			root.FillAuthor()
			log.Printf("[CommentService] %s liked reply %s (comment %s)", email, targetID, root.ID)
			s.publish(ctx, queue.NewCommentLikedEvent(root.PostSlug, root.ID, targetID, identity.Name, email))
			return root, nil
		}

		// Lost the CAS. Reload; if the winning write was this same user's
		// like, the dedupe check reports AlreadyLiked on the next pass.
		root, err = s.commentRepo.GetByID(ctx, root.ID)
		if err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("like %s: too much contention on comment tree", targetID)
}

// Report flags a comment, or a reply within it, for moderation. Idempotent:
// reported is a one-way flag.
func (s *CommentService) Report(ctx context.Context, commentID, replyID string, identity model.Identity) (*model.Comment, error) {
	if replyID == "" {
		found, err := s.commentRepo.ReportTopLevel(ctx, commentID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, model.ErrCommentNotFound
		}

		root, err := s.commentRepo.GetByID(ctx, commentID)
		if err != nil {
			return nil, err
		}
		root.FillAuthor()
		log.Printf("[CommentService] %s reported comment %s", identity.Key(), commentID)
		s.publish(ctx, queue.NewCommentReportedEvent(root.PostSlug, commentID, "", identity.Key()))
		return root, nil
	}

	// The reply must be inside this specific comment's subtree.
	root, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < treeUpdateAttempts; attempt++ {
		node := root.Replies.Find(replyID)
		if node == nil {
			return nil, model.ErrReplyNotFound
		}
		if node.Reported {
			// Already flagged; nothing to write.
			root.FillAuthor()
			return root, nil
		}
		node.Reported = true

		ok, err := s.commentRepo.UpdateTree(ctx, root)
		if err != nil {
			return nil, err
		}
		if ok {
			root.FillAuthor()
			log.Printf("[CommentService] %s reported reply %s (comment %s)", identity.Key(), replyID, commentID)
			s.publish(ctx, queue.NewCommentReportedEvent(root.PostSlug, commentID, replyID, identity.Key()))
			return root, nil
		}

		root, err = s.commentRepo.GetByID(ctx, commentID)
		if err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("report %s: too much contention on comment tree", replyID)
}

// Count returns the number of top-level comments for a post, read through
// the Redis cache.
func (s *CommentService) Count(ctx context.Context, postSlug string) (int64, error) {
	count, found, err := s.countCache.Get(ctx, postSlug)
	if err != nil {
		// Cache trouble shouldn't break a public read; fall through to DB.
		log.Printf("[CommentService] Count cache read failed for %s: %v", postSlug, err)
	}
	if found {
		return count, nil
	}

	count, err = s.commentRepo.CountByPost(ctx, postSlug)
	if err != nil {
		return 0, err
	}

	if err := s.countCache.Set(ctx, postSlug, count); err != nil {
		log.Printf("[CommentService] Count cache write failed for %s: %v", postSlug, err)
	}

	return count, nil
}

// ListByPost returns all threads for a post, oldest first.
func (s *CommentService) ListByPost(ctx context.Context, postSlug string) ([]model.Comment, error) {
	comments, err := s.commentRepo.ListByPost(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].FillAuthor()
	}
	return comments, nil
}

// findContainingComment resolves a target id to its root comment document:
// direct top-level match first, then the flat nested-id index.
func (s *CommentService) findContainingComment(ctx context.Context, targetID string) (*model.Comment, error) {
	root, err := s.commentRepo.GetByID(ctx, targetID)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, model.ErrCommentNotFound) {
		return nil, err
	}
	return s.commentRepo.FindByReplyID(ctx, targetID)
}

// publish is after-commit and best-effort; notification loss never fails
// the triggering operation.
func (s *CommentService) publish(ctx context.Context, event queue.EngagementEvent) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, queue.StreamEngagement, event); err != nil {
		log.Printf("[CommentService] Failed to publish %s event: %v", event.Type, err)
	}
}
