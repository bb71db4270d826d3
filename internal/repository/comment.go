package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"blogpulse/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

const commentColumns = `id, post_slug, author_name, author_email, content,
	like_count, liked_by, reported, replies, reply_ids, version, created_at`

// Insert persists a new top-level comment document.
func (r *commentRepository) Insert(ctx context.Context, c *model.Comment) error {
	query := `
		INSERT INTO comments (id, post_slug, author_name, author_email, content,
			like_count, liked_by, reported, replies, reply_ids, version, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, '{}', FALSE, '[]', '{}', 1, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.PostSlug, c.AuthorName, c.AuthorEmail, c.Content, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetByID returns the comment document with the given top-level id.
func (r *commentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	var c model.Comment
	err := r.db.GetContext(ctx, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &c, nil
}

// FindByReplyID locates the comment document containing the node anywhere in
// its reply tree. reply_ids is the flat per-document index of every nested
// node id, so this stays one indexed lookup regardless of depth.
func (r *commentRepository) FindByReplyID(ctx context.Context, replyID string) (*model.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE $1 = ANY(reply_ids)`

	var c model.Comment
	err := r.db.GetContext(ctx, &c, query, replyID)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find comment by reply id: %w", err)
	}
	return &c, nil
}

// Exists reports whether a top-level comment with the id exists.
func (r *commentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("check comment exists: %w", err)
	}
	return exists, nil
}

// LikeTopLevel is the like fast path: one conditional UPDATE that only
// succeeds when the user is not yet in liked_by, so two concurrent likes by
// the same user cannot both count.
func (r *commentRepository) LikeTopLevel(ctx context.Context, commentID, email string) (bool, error) {
	query := `
		UPDATE comments
		SET liked_by = array_append(liked_by, $2),
		    like_count = like_count + 1
		WHERE id = $1 AND NOT ($2 = ANY(liked_by))
	`
	result, err := r.db.ExecContext(ctx, query, commentID, email)
	if err != nil {
		return false, fmt.Errorf("like comment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("like comment rows affected: %w", err)
	}
	return rows > 0, nil
}

// ReportTopLevel sets the one-way reported flag. Re-reporting is a no-op.
func (r *commentRepository) ReportTopLevel(ctx context.Context, commentID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET reported = TRUE WHERE id = $1`, commentID)
	if err != nil {
		return false, fmt.Errorf("report comment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("report comment rows affected: %w", err)
	}
	return rows > 0, nil
}

// UpdateTree writes back a mutated reply tree under a version CAS. The
// service reloads and retries on a false return; the CAS is what keeps
// concurrent in-document mutations from silently dropping each other.
func (r *commentRepository) UpdateTree(ctx context.Context, c *model.Comment) (bool, error) {
	query := `
		UPDATE comments
		SET replies = $2, reply_ids = $3, version = version + 1
		WHERE id = $1 AND version = $4
	`
	result, err := r.db.ExecContext(ctx, query, c.ID, c.Replies, c.ReplyIDs, c.Version)
	if err != nil {
		return false, fmt.Errorf("update reply tree: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update reply tree rows affected: %w", err)
	}
	if rows > 0 {
		c.Version++
	}
	return rows > 0, nil
}

// CountByPost returns the number of top-level comments (replies not counted).
func (r *commentRepository) CountByPost(ctx context.Context, postSlug string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM comments WHERE post_slug = $1`, postSlug)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return count, nil
}

// ListByPost returns all comment documents for a post, oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postSlug string) ([]model.Comment, error) {
	query := `SELECT ` + commentColumns + `
		FROM comments
		WHERE post_slug = $1
		ORDER BY created_at ASC, id ASC`

	var comments []model.Comment
	err := r.db.SelectContext(ctx, &comments, query, postSlug)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
