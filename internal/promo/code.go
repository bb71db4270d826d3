// Package promo mints and verifies bonus-credit redemption codes.
//
// Code layout: BLOG-TTRR-DDDD-CCCC
//   - TTRR: two-letter tier (SM/MD/LG/XL) plus two random characters
//   - DDDD: issue day as base-36 days-since-epoch, zero-padded
//   - CCCC: first four characters of the uppercased hex HMAC-SHA256 over
//     "BLOG-TTRR-DDDD" with the server secret
//
// Everything here is pure; persistence (one redemption per code, globally)
// lives in the repository layer.
package promo

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Prefix is the fixed literal first segment of every code.
	Prefix = "BLOG"

	// SegmentLength is the length of each of the three variable segments.
	SegmentLength = 4

	// ValidityDays is how many days past the encoded issue day a code
	// stays redeemable (day granularity, UTC).
	ValidityDays = 30

	// DefaultBonus is granted when the tier prefix is unrecognized.
	DefaultBonus = 10
)

// tierBonuses maps the first two characters of the type segment to credits.
var tierBonuses = map[string]int{
	"SM": 15,
	"MD": 50,
	"LG": 100,
	"XL": 500,
}

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Verification errors
var (
	ErrMalformed   = errors.New("malformed code")
	ErrBadChecksum = errors.New("code checksum mismatch")
	ErrExpired     = errors.New("code expired")
)

// Normalize uppercases the raw input and strips every character outside
// [A-Z0-9-]. Applied before any other check so user-pasted codes survive
// stray whitespace and lowercase typing.
func Normalize(raw string) string {
	upper := strings.ToUpper(raw)
	var b strings.Builder
	b.Grow(len(upper))
	for _, c := range upper {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// Mint creates a code for the given tier, issued at the given time.
// Unknown tiers are allowed; they verify to the default bonus.
func Mint(tier string, issuedAt time.Time, secret string) (string, error) {
	tier = strings.ToUpper(strings.TrimSpace(tier))
	if len(tier) != 2 {
		return "", fmt.Errorf("tier must be two characters, got %q", tier)
	}

	pad, err := randomChars(SegmentLength - len(tier))
	if err != nil {
		return "", fmt.Errorf("generate type segment: %w", err)
	}
	typeSeg := tier + pad
	timeSeg := encodeDay(dayNumber(issuedAt))
	sum := checksum(typeSeg, timeSeg, secret)

	return strings.Join([]string{Prefix, typeSeg, timeSeg, sum}, "-"), nil
}

// Verify checks a normalized code's structure, checksum, and expiry, and
// returns the bonus credits it grants. Callers must Normalize first and are
// responsible for the one-redemption-per-code guarantee.
func Verify(code, secret string, now time.Time) (int, error) {
	typeSeg, timeSeg, sumSeg, err := split(code)
	if err != nil {
		return 0, err
	}

	// Case-sensitive compare; both sides are uppercase hex.
	if !hmac.Equal([]byte(sumSeg), []byte(checksum(typeSeg, timeSeg, secret))) {
		return 0, ErrBadChecksum
	}

	issueDay, err := strconv.ParseInt(timeSeg, 36, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	if dayNumber(now) > issueDay+ValidityDays {
		return 0, ErrExpired
	}

	if bonus, ok := tierBonuses[typeSeg[:2]]; ok {
		return bonus, nil
	}
	return DefaultBonus, nil
}

// split validates PREFIX-XXXX-XXXX-XXXX structure and returns the three
// variable segments.
func split(code string) (typeSeg, timeSeg, sumSeg string, err error) {
	parts := strings.Split(code, "-")
	if len(parts) != 4 || parts[0] != Prefix {
		return "", "", "", ErrMalformed
	}
	for _, seg := range parts[1:] {
		if len(seg) != SegmentLength || !isAlphanumeric(seg) {
			return "", "", "", ErrMalformed
		}
	}
	return parts[1], parts[2], parts[3], nil
}

func isAlphanumeric(s string) bool {
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// checksum is the first SegmentLength characters of the uppercased hex
// HMAC-SHA256 over "PREFIX-type-time". Uppercase so the checksum survives
// Normalize on the way back in.
func checksum(typeSeg, timeSeg, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Prefix + "-" + typeSeg + "-" + timeSeg))
	sum := strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
	return sum[:SegmentLength]
}

// dayNumber is days since the Unix epoch in UTC.
func dayNumber(t time.Time) int64 {
	return t.UTC().Unix() / (24 * 60 * 60)
}

// encodeDay renders a day number as zero-padded uppercase base-36.
func encodeDay(day int64) string {
	s := strings.ToUpper(strconv.FormatInt(day, 36))
	for len(s) < SegmentLength {
		s = "0" + s
	}
	return s
}

func randomChars(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return string(out), nil
}
