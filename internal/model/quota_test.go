package model

import "testing"

func TestChatQuota_Remaining(t *testing.T) {
	tests := []struct {
		name  string
		quota ChatQuota
		limit int
		want  int
	}{
		{"fresh", ChatQuota{}, 15, 15},
		{"partially used", ChatQuota{DailyUsed: 6}, 15, 9},
		{"exhausted", ChatQuota{DailyUsed: 15}, 15, 0},
		{"exhausted with bonus", ChatQuota{DailyUsed: 15, BonusCredits: 50}, 15, 50},
		{"overdrawn never negative", ChatQuota{DailyUsed: 20}, 15, 0},
		{"bonus on top of daily", ChatQuota{DailyUsed: 10, BonusCredits: 5}, 15, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.quota.Remaining(tt.limit); got != tt.want {
				t.Errorf("Remaining(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestIdentity_Key(t *testing.T) {
	id := Identity{UserID: 1, Name: "Ada", Email: "Ada@Example.COM"}
	if id.Key() != "ada@example.com" {
		t.Errorf("Key() = %q, want lowercased email", id.Key())
	}
}
