package core

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Eprint writes msg to stderr when verbose is true.
func Eprint(msg string, verbose bool) {
	if verbose {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// ProgressPrint writes msg to stderr unless quiet is true.
func ProgressPrint(msg string, quiet bool) {
	if !quiet {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// GetAPIKey returns the news API key from the environment.
func GetAPIKey() string {
	return os.Getenv(APIKeyEnvVar)
}

// GetTZ returns a *time.Location for the given timezone name.
// An empty name means local time; unknown names fall back to UTC.
func GetTZ(name string) *time.Location {
	if name == "" {
		name = DefaultTZ
	}
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Timezone '%s' not found; falling back to UTC.\n", name)
		return time.UTC
	}
	return loc
}

// ParseDate parses a YYYY-MM-DD string into a time.Time (date only, at midnight UTC).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFmt, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s' (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

// ParseDateSpec returns a concrete date for flexible spec strings.
// Supports:
// 1. today / yesterday
// 2. Exact YYYY-MM-DD
// 3. Relative forms like d-7 (days), w-2 (weeks), m-3 (months)
func ParseDateSpec(spec string, now time.Time) (time.Time, error) {
	today := DateOnly(now)

	switch strings.ToLower(spec) {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	if t, err := time.Parse(DateFmt, spec); err == nil {
		return t, nil
	}

	relRegex := regexp.MustCompile(`^([dwm])-(\d+)$`)
	if matches := relRegex.FindStringSubmatch(strings.ToLower(spec)); matches != nil {
		num, _ := strconv.Atoi(matches[2])
		switch matches[1] {
		case "d":
			return today.AddDate(0, 0, -num), nil
		case "w":
			return today.AddDate(0, 0, -num*7), nil
		case "m":
			return today.AddDate(0, -num, 0), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date specification: '%s'", spec)
}

// ParseDuration accepts Go durations plus an "Nd" day suffix.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

// DateOnly returns the calendar day of t (in t's location) as midnight UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate formats a time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateFmt)
}

// FormatDatetime formats a time.Time as YYYY-MM-DD HH:MM:SS.
func FormatDatetime(t time.Time) string {
	return t.Format(DatetimeFmt)
}

// Truncate shortens s to n runes, ending with "..." when cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
