package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func sampleTree() ReplyTree {
	return ReplyTree{
		{
			ID: "a",
			Replies: ReplyTree{
				{ID: "a1"},
				{ID: "a2", Replies: ReplyTree{{ID: "a2x"}}},
			},
		},
		{ID: "b"},
	}
}

func TestReplyTree_Find(t *testing.T) {
	tree := sampleTree()

	tests := []struct {
		id    string
		found bool
	}{
		{"a", true},
		{"a1", true},
		{"a2x", true}, // Three levels deep
		{"b", true},
		{"ghost", false},
		{"", false},
	}

	for _, tt := range tests {
		got := tree.Find(tt.id)
		if (got != nil) != tt.found {
			t.Errorf("Find(%q) found = %v, want %v", tt.id, got != nil, tt.found)
		}
		if got != nil && got.ID != tt.id {
			t.Errorf("Find(%q) returned node %q", tt.id, got.ID)
		}
	}
}

func TestReplyTree_IDs_DepthFirst(t *testing.T) {
	tree := sampleTree()

	got := tree.IDs()
	want := []string{"a", "a1", "a2", "a2x", "b"}
	if len(got) != len(want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", got, want)
		}
	}
}

func TestReplyTree_Contains(t *testing.T) {
	tree := sampleTree()
	if !tree.Contains("a2x") {
		t.Error("Contains should find deeply nested ids")
	}
	if tree.Contains("nope") {
		t.Error("Contains should reject unknown ids")
	}
}

func TestReply_Like(t *testing.T) {
	r := &Reply{ID: "x", LikedBy: []string{}}

	if err := r.Like("ada@example.com"); err != nil {
		t.Fatalf("first like: %v", err)
	}
	if err := r.Like("bob@example.com"); err != nil {
		t.Fatalf("second user like: %v", err)
	}

	if err := r.Like("ada@example.com"); !errors.Is(err, ErrAlreadyLiked) {
		t.Errorf("duplicate like error = %v, want %v", err, ErrAlreadyLiked)
	}

	if r.LikeCount != 2 {
		t.Errorf("like_count = %d, want 2", r.LikeCount)
	}
	if r.LikeCount != len(r.LikedBy) {
		t.Errorf("like_count %d != len(liked_by) %d", r.LikeCount, len(r.LikedBy))
	}
}

func TestReplyTree_ValueScan_RoundTrip(t *testing.T) {
	tree := sampleTree()
	tree.Find("a1").Content = "hello"
	tree.Find("a1").LikedBy = []string{"ada@example.com"}
	tree.Find("a1").LikeCount = 1

	val, err := tree.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var back ReplyTree
	if err := back.Scan(val); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	node := back.Find("a1")
	if node == nil || node.Content != "hello" || node.LikeCount != 1 {
		t.Errorf("round trip lost data: %+v", node)
	}
	if back.Find("a2x") == nil {
		t.Error("round trip lost nested structure")
	}
}

func TestReplyTree_ScanNil(t *testing.T) {
	var tree ReplyTree
	if err := tree.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if tree == nil || len(tree) != 0 {
		t.Errorf("nil column should scan to an empty tree, got %v", tree)
	}
}

func TestReplyTree_NilValue(t *testing.T) {
	var tree ReplyTree
	val, err := tree.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var parsed []json.RawMessage
	if err := json.Unmarshal(val.([]byte), &parsed); err != nil || len(parsed) != 0 {
		t.Errorf("nil tree should serialize as empty array, got %s", val)
	}
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"ok", "looks good to me", nil},
		{"ok after trim", "  padded  ", nil},
		{"empty", "", ErrContentRequired},
		{"whitespace", " \t\n", ErrContentRequired},
		{"at limit", strings.Repeat("a", MaxCommentLength), nil},
		{"over limit", strings.Repeat("a", MaxCommentLength+1), ErrContentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(tt.content)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
