package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"blogpulse/internal/model"
	"blogpulse/internal/queue"
)

// =============================================================================
// MOCKS
// =============================================================================
//
// The comment service depends on the CommentRepository, CountCache, and
// Publisher interfaces, so tests swap in controlled implementations instead
// of hitting Postgres and Redis.

type mockCommentRepository struct {
	insertFn         func(ctx context.Context, comment *model.Comment) error
	getByIDFn        func(ctx context.Context, id string) (*model.Comment, error)
	findByReplyIDFn  func(ctx context.Context, replyID string) (*model.Comment, error)
	existsFn         func(ctx context.Context, id string) (bool, error)
	likeTopLevelFn   func(ctx context.Context, commentID, email string) (bool, error)
	reportTopLevelFn func(ctx context.Context, commentID string) (bool, error)
	updateTreeFn     func(ctx context.Context, comment *model.Comment) (bool, error)
	countByPostFn    func(ctx context.Context, postSlug string) (int64, error)
	listByPostFn     func(ctx context.Context, postSlug string) ([]model.Comment, error)

	insertCalls     int
	updateTreeCalls int
}

func (m *mockCommentRepository) Insert(ctx context.Context, comment *model.Comment) error {
	m.insertCalls++
	if m.insertFn != nil {
		return m.insertFn(ctx, comment)
	}
	return nil
}

func (m *mockCommentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrCommentNotFound
}

func (m *mockCommentRepository) FindByReplyID(ctx context.Context, replyID string) (*model.Comment, error) {
	if m.findByReplyIDFn != nil {
		return m.findByReplyIDFn(ctx, replyID)
	}
	return nil, model.ErrCommentNotFound
}

func (m *mockCommentRepository) Exists(ctx context.Context, id string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, id)
	}
	return false, nil
}

func (m *mockCommentRepository) LikeTopLevel(ctx context.Context, commentID, email string) (bool, error) {
	if m.likeTopLevelFn != nil {
		return m.likeTopLevelFn(ctx, commentID, email)
	}
	return false, nil
}

func (m *mockCommentRepository) ReportTopLevel(ctx context.Context, commentID string) (bool, error) {
	if m.reportTopLevelFn != nil {
		return m.reportTopLevelFn(ctx, commentID)
	}
	return false, nil
}

func (m *mockCommentRepository) UpdateTree(ctx context.Context, comment *model.Comment) (bool, error) {
	m.updateTreeCalls++
	if m.updateTreeFn != nil {
		return m.updateTreeFn(ctx, comment)
	}
	return true, nil
}

func (m *mockCommentRepository) CountByPost(ctx context.Context, postSlug string) (int64, error) {
	if m.countByPostFn != nil {
		return m.countByPostFn(ctx, postSlug)
	}
	return 0, nil
}

func (m *mockCommentRepository) ListByPost(ctx context.Context, postSlug string) ([]model.Comment, error) {
	if m.listByPostFn != nil {
		return m.listByPostFn(ctx, postSlug)
	}
	return nil, nil
}

type mockCountCache struct {
	getFn        func(ctx context.Context, postSlug string) (int64, bool, error)
	setFn        func(ctx context.Context, postSlug string, count int64) error
	invalidateFn func(ctx context.Context, postSlug string) error

	invalidateCalls int
}

func (m *mockCountCache) Get(ctx context.Context, postSlug string) (int64, bool, error) {
	if m.getFn != nil {
		return m.getFn(ctx, postSlug)
	}
	return 0, false, nil
}

func (m *mockCountCache) Set(ctx context.Context, postSlug string, count int64) error {
	if m.setFn != nil {
		return m.setFn(ctx, postSlug, count)
	}
	return nil
}

func (m *mockCountCache) Invalidate(ctx context.Context, postSlug string) error {
	m.invalidateCalls++
	if m.invalidateFn != nil {
		return m.invalidateFn(ctx, postSlug)
	}
	return nil
}

type mockPublisher struct {
	events []queue.EngagementEvent
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.EngagementEvent) (string, error) {
	m.events = append(m.events, event)
	return "1-0", nil
}

func testIdentity() model.Identity {
	return model.Identity{UserID: 1, Name: "Ada", Email: "Ada@Example.com"}
}

// newTestTree builds a comment with the shape used across these tests:
//
//	root
//	└── r1
//	    └── r2
func newTestTree() *model.Comment {
	return &model.Comment{
		ID:       "root",
		PostSlug: "hello-world",
		LikedBy:  []string{},
		Replies: model.ReplyTree{
			{
				ID:      "r1",
				Author:  model.Author{Name: "Bob", Email: "bob@example.com"},
				Content: "first",
				LikedBy: []string{},
				Replies: model.ReplyTree{
					{
						ID:      "r2",
						Author:  model.Author{Name: "Cat", Email: "cat@example.com"},
						Content: "second",
						LikedBy: []string{},
					},
				},
			},
		},
		ReplyIDs:  []string{"r1", "r2"},
		Version:   1,
		CreatedAt: time.Now(),
	}
}

// =============================================================================
// ADD TESTS
// =============================================================================

func TestCommentService_Add_Success(t *testing.T) {
	mockRepo := &mockCommentRepository{
		insertFn: func(ctx context.Context, comment *model.Comment) error {
			return nil
		},
	}
	mockCache := &mockCountCache{}
	mockPub := &mockPublisher{}
	svc := NewCommentService(mockRepo, mockCache, mockPub)

	comment, err := svc.Add(context.Background(), "hello-world", testIdentity(), "  nice post!  ")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if comment.ID == "" {
		t.Error("expected a generated comment id")
	}
	if comment.PostSlug != "hello-world" {
		t.Errorf("post_slug = %q, want %q", comment.PostSlug, "hello-world")
	}

	// Author must come from the session, lowercased email.
	if comment.Author.Email != "ada@example.com" {
		t.Errorf("author email = %q, want %q", comment.Author.Email, "ada@example.com")
	}
	if comment.Author.Name != "Ada" {
		t.Errorf("author name = %q, want %q", comment.Author.Name, "Ada")
	}

	if mockRepo.insertCalls != 1 {
		t.Errorf("Insert called %d times, want 1", mockRepo.insertCalls)
	}
	if mockCache.invalidateCalls != 1 {
		t.Errorf("Invalidate called %d times, want 1", mockCache.invalidateCalls)
	}
	if len(mockPub.events) != 1 || mockPub.events[0].Type != queue.EventCommentCreated {
		t.Errorf("expected one %s event, got %v", queue.EventCommentCreated, mockPub.events)
	}
}

func TestCommentService_Add_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty", "", model.ErrContentRequired},
		{"whitespace only", "   \n\t ", model.ErrContentRequired},
		{"too long", strings.Repeat("a", model.MaxCommentLength+1), model.ErrContentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mockCommentRepository{}
			svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

			_, err := svc.Add(context.Background(), "hello-world", testIdentity(), tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if mockRepo.insertCalls != 0 {
				t.Error("Insert should not be called on validation failure")
			}
		})
	}
}

// =============================================================================
// REPLY TESTS
// =============================================================================

func TestCommentService_Reply_ToTopLevel(t *testing.T) {
	root := newTestTree()
	mockRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id string) (*model.Comment, error) {
			if id == "root" {
				return root, nil
			}
			return nil, model.ErrCommentNotFound
		},
	}
	svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

	updated, err := svc.Reply(context.Background(), "root", testIdentity(), "a direct reply")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(updated.Replies) != 2 {
		t.Fatalf("top-level replies = %d, want 2", len(updated.Replies))
	}
	newReply := updated.Replies[1]
	if newReply.Content != "a direct reply" {
		t.Errorf("content = %q", newReply.Content)
	}
	if newReply.Author.Email != "ada@example.com" {
		t.Errorf("author email = %q, want session identity", newReply.Author.Email)
	}

	// Flat index must now contain the new node.
	if !updated.Replies.Contains(newReply.ID) {
		t.Error("tree should contain the new reply")
	}
	found := false
	for _, id := range updated.ReplyIDs {
		if id == newReply.ID {
			found = true
		}
	}
	if !found {
		t.Error("reply_ids index should contain the new reply id")
	}
}

func TestCommentService_Reply_ToNestedReply(t *testing.T) {
	root := newTestTree()
	mockRepo := &mockCommentRepository{
		// r2 is not a top-level comment; the service falls back to the index.
		findByReplyIDFn: func(ctx context.Context, replyID string) (*model.Comment, error) {
			if replyID == "r2" {
				return root, nil
			}
			return nil, model.ErrCommentNotFound
		},
	}
	mockPub := &mockPublisher{}
	svc := NewCommentService(mockRepo, &mockCountCache{}, mockPub)

	updated, err := svc.Reply(context.Background(), "r2", testIdentity(), "deep reply")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	r2 := updated.Replies.Find("r2")
	if r2 == nil {
		t.Fatal("r2 missing from tree")
	}
	if len(r2.Replies) != 1 {
		t.Fatalf("r2 children = %d, want 1", len(r2.Replies))
	}
	if r2.Replies[0].Content != "deep reply" {
		t.Errorf("content = %q", r2.Replies[0].Content)
	}

	if len(mockPub.events) != 1 || mockPub.events[0].Type != queue.EventReplyCreated {
		t.Errorf("expected one %s event", queue.EventReplyCreated)
	}
}

func TestCommentService_Reply_RetriesOnVersionConflict(t *testing.T) {
	mockRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id string) (*model.Comment, error) {
			if id == "root" {
				// Fresh copy each load, like a real re-read after a lost CAS.
				return newTestTree(), nil
			}
			return nil, model.ErrCommentNotFound
		},
	}
	attempt := 0
	mockRepo.updateTreeFn = func(ctx context.Context, comment *model.Comment) (bool, error) {
		attempt++
		return attempt > 1, nil // First write loses the version race
	}
	svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

	updated, err := svc.Reply(context.Background(), "root", testIdentity(), "contended reply")
	if err != nil {
		t.Fatalf("expected retry to succeed, got: %v", err)
	}

	if mockRepo.updateTreeCalls != 2 {
		t.Errorf("UpdateTree called %d times, want 2", mockRepo.updateTreeCalls)
	}

	// The reply must appear exactly once despite the retry.
	count := 0
	for _, r := range updated.Replies {
		if r.Content == "contended reply" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("reply appears %d times, want 1", count)
	}
}

func TestCommentService_Reply_TargetNotFound(t *testing.T) {
	svc := NewCommentService(&mockCommentRepository{}, &mockCountCache{}, &mockPublisher{})

	_, err := svc.Reply(context.Background(), "ghost", testIdentity(), "hello?")
	if !errors.Is(err, model.ErrCommentNotFound) {
		t.Errorf("error = %v, want %v", err, model.ErrCommentNotFound)
	}
}

// =============================================================================
// LIKE TESTS
// =============================================================================

func TestCommentService_Like_TopLevel(t *testing.T) {
	root := newTestTree()
	root.LikedBy = []string{"ada@example.com"}
	root.LikeCount = 1

	mockRepo := &mockCommentRepository{
		likeTopLevelFn: func(ctx context.Context, commentID, email string) (bool, error) {
			if email != "ada@example.com" {
				t.Errorf("like email = %q, want lowercased session email", email)
			}
			return true, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*model.Comment, error) {
			return root, nil
		},
	}
	mockPub := &mockPublisher{}
	svc := NewCommentService(mockRepo, &mockCountCache{}, mockPub)

	updated, err := svc.Like(context.Background(), "root", testIdentity())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if updated.LikeCount != 1 {
		t.Errorf("like_count = %d, want 1", updated.LikeCount)
	}
	if len(mockPub.events) != 1 || mockPub.events[0].Type != queue.EventCommentLiked {
		t.Errorf("expected one %s event", queue.EventCommentLiked)
	}
}

func TestCommentService_Like_TopLevelTwice(t *testing.T) {
	mockRepo := &mockCommentRepository{
		likeTopLevelFn: func(ctx context.Context, commentID, email string) (bool, error) {
			return false, nil // Conditional update matched nothing
		},
		existsFn: func(ctx context.Context, id string) (bool, error) {
			return true, nil // ...because the user is already in liked_by
		},
	}
	svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

	_, err := svc.Like(context.Background(), "root", testIdentity())
	if !errors.Is(err, model.ErrAlreadyLiked) {
		t.Errorf("error = %v, want %v", err, model.ErrAlreadyLiked)
	}
}

func TestCommentService_Like_NestedReply(t *testing.T) {
	root := newTestTree()
	mockRepo := &mockCommentRepository{
		findByReplyIDFn: func(ctx context.Context, replyID string) (*model.Comment, error) {
			return root, nil
		},
	}
	svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

	updated, err := svc.Like(context.Background(), "r2", testIdentity())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	r2 := updated.Replies.Find("r2")
	if r2.LikeCount != 1 {
		t.Errorf("like_count = %d, want 1", r2.LikeCount)
	}
	if len(r2.LikedBy) != r2.LikeCount {
		t.Errorf("like_count %d != len(liked_by) %d", r2.LikeCount, len(r2.LikedBy))
	}
	if r2.LikedBy[0] != "ada@example.com" {
		t.Errorf("liked_by = %v", r2.LikedBy)
	}
}

func TestCommentService_Like_NestedReplyTwice(t *testing.T) {
	root := newTestTree()
	r2 := root.Replies.Find("r2")
	r2.LikedBy = []string{"ada@example.com"}
	r2.LikeCount = 1

	mockRepo := &mockCommentRepository{
		findByReplyIDFn: func(ctx context.Context, replyID string) (*model.Comment, error) {
			return root, nil
		},
	}
	svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

	_, err := svc.Like(context.Background(), "r2", testIdentity())
	if !errors.Is(err, model.ErrAlreadyLiked) {
		t.Errorf("error = %v, want %v", err, model.ErrAlreadyLiked)
	}
	if mockRepo.updateTreeCalls != 0 {
		t.Error("UpdateTree should not run when the like is a duplicate")
	}
}

func TestCommentService_Like_NotFound(t *testing.T) {
	svc := NewCommentService(&mockCommentRepository{}, &mockCountCache{}, &mockPublisher{})

	_, err := svc.Like(context.Background(), "ghost", testIdentity())
	if !errors.Is(err, model.ErrCommentNotFound) {
		t.Errorf("error = %v, want %v", err, model.ErrCommentNotFound)
	}
}

// =============================================================================
// REPORT TESTS
// =============================================================================

func TestCommentService_Report_TopLevel(t *testing.T) {
	root := newTestTree()
	root.Reported = true

	mockRepo := &mockCommentRepository{
		reportTopLevelFn: func(ctx context.Context, commentID string) (bool, error) {
			return true, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*model.Comment, error) {
			return root, nil
		},
	}
	svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

	updated, err := svc.Report(context.Background(), "root", "", testIdentity())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !updated.Reported {
		t.Error("comment should be reported")
	}
}

func TestCommentService_Report_Reply(t *testing.T) {
	root := newTestTree()
	mockRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id string) (*model.Comment, error) {
			return root, nil
		},
	}
	svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

	updated, err := svc.Report(context.Background(), "root", "r2", testIdentity())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !updated.Replies.Find("r2").Reported {
		t.Error("r2 should be reported")
	}
}

func TestCommentService_Report_ReplyIdempotent(t *testing.T) {
	root := newTestTree()
	root.Replies.Find("r2").Reported = true

	mockRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id string) (*model.Comment, error) {
			return root, nil
		},
	}
	svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

	_, err := svc.Report(context.Background(), "root", "r2", testIdentity())
	if err != nil {
		t.Fatalf("repeat report should succeed, got: %v", err)
	}
	if mockRepo.updateTreeCalls != 0 {
		t.Error("UpdateTree should not run when the flag is already set")
	}
}

func TestCommentService_Report_ReplyNotFound(t *testing.T) {
	root := newTestTree()
	mockRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id string) (*model.Comment, error) {
			return root, nil
		},
	}
	svc := NewCommentService(mockRepo, &mockCountCache{}, &mockPublisher{})

	_, err := svc.Report(context.Background(), "root", "ghost", testIdentity())
	if !errors.Is(err, model.ErrReplyNotFound) {
		t.Errorf("error = %v, want %v", err, model.ErrReplyNotFound)
	}
}

// =============================================================================
// COUNT TESTS
// =============================================================================

func TestCommentService_Count(t *testing.T) {
	t.Run("cache hit skips the database", func(t *testing.T) {
		dbCalls := 0
		mockRepo := &mockCommentRepository{
			countByPostFn: func(ctx context.Context, postSlug string) (int64, error) {
				dbCalls++
				return 99, nil
			},
		}
		mockCache := &mockCountCache{
			getFn: func(ctx context.Context, postSlug string) (int64, bool, error) {
				return 7, true, nil
			},
		}
		svc := NewCommentService(mockRepo, mockCache, &mockPublisher{})

		count, err := svc.Count(context.Background(), "hello-world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 7 {
			t.Errorf("count = %d, want 7", count)
		}
		if dbCalls != 0 {
			t.Error("database should not be hit on a cache hit")
		}
	})

	t.Run("cache miss falls through and repopulates", func(t *testing.T) {
		var cached int64 = -1
		mockRepo := &mockCommentRepository{
			countByPostFn: func(ctx context.Context, postSlug string) (int64, error) {
				return 4, nil
			},
		}
		mockCache := &mockCountCache{
			setFn: func(ctx context.Context, postSlug string, count int64) error {
				cached = count
				return nil
			},
		}
		svc := NewCommentService(mockRepo, mockCache, &mockPublisher{})

		count, err := svc.Count(context.Background(), "hello-world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 4 {
			t.Errorf("count = %d, want 4", count)
		}
		if cached != 4 {
			t.Errorf("cache should be repopulated with 4, got %d", cached)
		}
	})

	t.Run("cache error degrades to the database", func(t *testing.T) {
		mockRepo := &mockCommentRepository{
			countByPostFn: func(ctx context.Context, postSlug string) (int64, error) {
				return 12, nil
			},
		}
		mockCache := &mockCountCache{
			getFn: func(ctx context.Context, postSlug string) (int64, bool, error) {
				return 0, false, errors.New("redis down")
			},
		}
		svc := NewCommentService(mockRepo, mockCache, &mockPublisher{})

		count, err := svc.Count(context.Background(), "hello-world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 12 {
			t.Errorf("count = %d, want 12", count)
		}
	})
}
