package promo

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "blog-smab-0001-abcd", "BLOG-SMAB-0001-ABCD"},
		{"whitespace and punctuation", "  BLOG-SMAB-0001-ABCD \n", "BLOG-SMAB-0001-ABCD"},
		{"underscores stripped", "BLOG_SMAB_0001_ABCD", "BLOGSMAB0001ABCD"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMintVerify_RoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		tier string
		want int
	}{
		{"SM", 15},
		{"MD", 50},
		{"LG", 100},
		{"XL", 500},
		{"ZZ", DefaultBonus},
	}

	for _, tt := range tests {
		t.Run(tt.tier, func(t *testing.T) {
			code, err := Mint(tt.tier, now, testSecret)
			if err != nil {
				t.Fatalf("Mint: %v", err)
			}

			parts := strings.Split(code, "-")
			if len(parts) != 4 || parts[0] != Prefix {
				t.Fatalf("unexpected code shape: %q", code)
			}

			bonus, err := Verify(Normalize(code), testSecret, now)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if bonus != tt.want {
				t.Errorf("bonus = %d, want %d", bonus, tt.want)
			}
		})
	}
}

func TestVerify_SurvivesNormalization(t *testing.T) {
	now := time.Now()
	code, err := Mint("SM", now, testSecret)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// A user pasting the code lowercased with surrounding junk must still
	// verify after Normalize.
	messy := "  " + strings.ToLower(code) + "\t"
	if _, err := Verify(Normalize(messy), testSecret, now); err != nil {
		t.Errorf("Verify after Normalize: %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	now := time.Now()

	tests := []string{
		"",
		"BLOG-SMAB-0001",           // missing checksum segment
		"POST-SMAB-0001-ABCD",      // wrong prefix
		"BLOG-SMAB-0001-ABCD-EXTR", // extra segment
		"BLOG-SM-0001-ABCD",        // short segment
		"BLOG-SMAB-00011-ABCD",     // long segment
	}

	for _, code := range tests {
		if _, err := Verify(code, testSecret, now); !errors.Is(err, ErrMalformed) {
			t.Errorf("Verify(%q) = %v, want ErrMalformed", code, err)
		}
	}
}

func TestVerify_TamperedChecksum(t *testing.T) {
	now := time.Now()
	code, err := Mint("MD", now, testSecret)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// Flip each character of the checksum segment in turn.
	base := code[:len(code)-SegmentLength]
	sum := code[len(code)-SegmentLength:]
	for i := 0; i < SegmentLength; i++ {
		altered := []byte(sum)
		if altered[i] == 'A' {
			altered[i] = 'B'
		} else {
			altered[i] = 'A'
		}
		tampered := base + string(altered)
		if _, err := Verify(tampered, testSecret, now); !errors.Is(err, ErrBadChecksum) {
			t.Errorf("Verify(%q) = %v, want ErrBadChecksum", tampered, err)
		}
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	code, err := Mint("LG", now, testSecret)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := Verify(code, "other-secret", now); !errors.Is(err, ErrBadChecksum) {
		t.Errorf("Verify with wrong secret = %v, want ErrBadChecksum", err)
	}
}

func TestVerify_Expiry(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	code, err := Mint("SM", issued, testSecret)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// Exactly 30 days later is still valid (day granularity).
	onEdge := issued.AddDate(0, 0, ValidityDays)
	if _, err := Verify(code, testSecret, onEdge); err != nil {
		t.Errorf("Verify at day %d = %v, want valid", ValidityDays, err)
	}

	// 31 days later is expired, regardless of checksum validity.
	past := issued.AddDate(0, 0, ValidityDays+1)
	if _, err := Verify(code, testSecret, past); !errors.Is(err, ErrExpired) {
		t.Errorf("Verify at day %d = %v, want ErrExpired", ValidityDays+1, err)
	}
}

func TestMint_BadTier(t *testing.T) {
	if _, err := Mint("TOOLONG", time.Now(), testSecret); err == nil {
		t.Error("expected error for tier longer than two characters")
	}
	if _, err := Mint("", time.Now(), testSecret); err == nil {
		t.Error("expected error for empty tier")
	}
}
