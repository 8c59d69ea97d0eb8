package utils

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hako/durafmt"
	"github.com/kozaktomas/diacritics"
)

// Strip returns the leading number of s: digits with at most one decimal point.
// Thousands separators are skipped and reading stops at any other character.
func Strip(s string) string {
	var result strings.Builder
	dot := false
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case '0' <= b && b <= '9':
			result.WriteByte(b)
		case b == ',' && result.Len() > 0:
		case b == '.' && !dot:
			dot = true
			result.WriteByte(b)
		default:
			return result.String()
		}
	}
	return result.String()
}

func FormatDate(t time.Time) string {
	if t.Unix() <= 0 {
		return ""
	}

	return t.In(getTz()).Format("2006-01-02 15:04:05")
}

// FormatDuration renders d with its two most significant units, e.g. "1 minute 12 seconds".
func FormatDuration(d time.Duration) string {
	return durafmt.Parse(d.Round(time.Second)).LimitFirstN(2).String()
}

// Today returns the current date in the dining timezone truncated to midnight.
func Today() time.Time {
	now := time.Now().In(getTz())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func getTz() *time.Location {
	tz, err := time.LoadLocation("America/Indiana/Indianapolis")
	if err != nil {
		os.Stderr.WriteString("Failed to load timezone: " + err.Error())
		os.Exit(1)
	}
	return tz
}

var reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns s into a lower-case ascii identifier usable in file names and keys.
func Slug(s string) string {
	if normalized, err := diacritics.Remove(s); err == nil {
		s = normalized
	}

	s = strings.ToLower(s)
	s = reNonSlug.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

func GetOkJSON() []byte {
	return []byte(`{"is_ok":true}`)
}
