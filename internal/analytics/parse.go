package analytics

import (
	"strconv"
	"strings"
)

// ParseRank converts a scraped rank string to its ordinal. DNF/DSQ style
// sentinels, blanks, and anything else non-numeric report ok=false.
func ParseRank(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	rank, err := strconv.Atoi(s)
	if err != nil || rank < 1 {
		return 0, false
	}
	return rank, true
}

// ParseFinalTime converts a race time string ("1:12.34" or "52.10") to
// seconds. Malformed or empty times report ok=false.
func ParseFinalTime(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if i := strings.Index(s, ":"); i >= 0 {
		minutes, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, false
		}
		seconds, err := strconv.ParseFloat(s[i+1:], 64)
		if err != nil {
			return 0, false
		}
		return minutes*60 + seconds, true
	}
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}

// normalizeCountry makes country codes comparable across the results and
// race-details feeds, which disagree on casing and padding.
func normalizeCountry(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
